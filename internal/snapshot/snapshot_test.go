package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestWriteLoadLocateRoundTrip(t *testing.T) {
	root := t.TempDir()
	srcDir := t.TempDir()

	vectorsPath := writeTempFile(t, srcDir, "vectors.bin", []byte("vector-bytes"))
	metaPath := writeTempFile(t, srcDir, "meta.log", []byte("meta-bytes"))

	manifest := Manifest{
		LSN:            7,
		CollectionName: "docs",
		Dim:            128,
		Metric:         "cosine",
		CodecKind:      "none",
		Stride:         512,
		VectorCount:    3,
	}

	dir, err := Write(root, manifest, []byte(`{"next_id":3}`), []byte("graph-bytes"), SourceFiles{
		VectorsPath: vectorsPath,
		MetaPath:    metaPath,
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	found, ok, err := Locate(root)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if !ok {
		t.Fatalf("expected Locate to find the just-written snapshot")
	}
	if found != dir {
		t.Errorf("Locate found %s, want %s", found, dir)
	}

	loaded, err := Load(found)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Manifest.CollectionName != "docs" || loaded.Manifest.LSN != 7 {
		t.Errorf("unexpected manifest: %+v", loaded.Manifest)
	}
	if string(loaded.IndexBytes) != "graph-bytes" {
		t.Errorf("IndexBytes = %q, want %q", loaded.IndexBytes, "graph-bytes")
	}
	if loaded.RawPath != "" {
		t.Errorf("expected no raw path, got %q", loaded.RawPath)
	}
	vecBytes, err := os.ReadFile(loaded.VectorsPath)
	if err != nil || string(vecBytes) != "vector-bytes" {
		t.Errorf("vectors.bin copy = %q, err %v", vecBytes, err)
	}
}

func TestLocatePicksHighestLSN(t *testing.T) {
	root := t.TempDir()
	srcDir := t.TempDir()
	vectorsPath := writeTempFile(t, srcDir, "vectors.bin", []byte("v"))
	metaPath := writeTempFile(t, srcDir, "meta.log", []byte("m"))

	var last string
	for _, lsn := range []uint64{1, 50, 9} {
		dir, err := Write(root, Manifest{LSN: lsn, CollectionName: "c"}, []byte("{}"), []byte("g"), SourceFiles{
			VectorsPath: vectorsPath,
			MetaPath:    metaPath,
		})
		if err != nil {
			t.Fatalf("Write lsn=%d: %v", lsn, err)
		}
		if lsn == 50 {
			last = dir
		}
	}

	found, ok, err := Locate(root)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if !ok || found != last {
		t.Errorf("Locate = %q, ok=%v, want %q", found, ok, last)
	}
}

func TestLocateIgnoresIncompleteSnapshot(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "snap-00000000000000000005.tmp"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	_, ok, err := Locate(root)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if ok {
		t.Errorf("expected Locate to ignore a .tmp (never-renamed) directory")
	}
}

func TestLocateOnEmptyRootFindsNothing(t *testing.T) {
	_, ok, err := Locate(t.TempDir())
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if ok {
		t.Errorf("expected no snapshot in an empty root")
	}
}

func TestPruneExceptKeepsOnlyNamed(t *testing.T) {
	root := t.TempDir()
	srcDir := t.TempDir()
	vectorsPath := writeTempFile(t, srcDir, "vectors.bin", []byte("v"))
	metaPath := writeTempFile(t, srcDir, "meta.log", []byte("m"))

	var dirs []string
	for _, lsn := range []uint64{1, 2, 3} {
		dir, err := Write(root, Manifest{LSN: lsn}, []byte("{}"), []byte("g"), SourceFiles{
			VectorsPath: vectorsPath,
			MetaPath:    metaPath,
		})
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		dirs = append(dirs, dir)
	}

	if err := PruneExcept(root, dirs[2]); err != nil {
		t.Fatalf("PruneExcept: %v", err)
	}
	for i, d := range dirs {
		_, err := os.Stat(d)
		if i == 2 && err != nil {
			t.Errorf("kept snapshot %s should still exist: %v", d, err)
		}
		if i != 2 && err == nil {
			t.Errorf("pruned snapshot %s should no longer exist", d)
		}
	}
}
