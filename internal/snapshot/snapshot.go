// Package snapshot implements the self-contained, atomically-published
// snapshot directories from spec.md §4.5/§6: a point-in-time copy of
// one collection's store manifest, encoded/raw/metadata files, and
// HNSW graph topology (index.bin), written to a temp directory and
// renamed into place in one atomic step. Grounded on the checkpoint-
// to-temp-file-then-rename idiom of ClusterCockpit's metricstore
// checkpointing (`toCheckpointBinary`), generalized from one binary
// blob to a directory of sibling files.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	manifestFile = "manifest.json"
	indexFile    = "index.bin"
	commitMarker = "COMMIT"

	vectorsFile = "vectors.bin"
	rawFileName = "raw.bin"
	metaFile    = "meta.log"
)

// Manifest is everything spec.md §6's on-disk layout keeps in a
// snapshot's manifest.json: the collection's config/stats plus the
// store's id-mapping state (external↔internal map, free-list,
// tombstones) as an embedded JSON blob — the layout names no separate
// file for the id map, so it travels inside the manifest rather than
// as its own sibling.
type Manifest struct {
	LSN            uint64          `json:"lsn"`
	CollectionName string          `json:"collection_name"`
	Dim            int             `json:"dim"`
	Metric         string          `json:"metric"`
	CodecKind      string          `json:"codec_kind"`
	Stride         int             `json:"stride"`
	KeepRaw        bool            `json:"keep_raw"`
	RawStride      int             `json:"raw_stride"`
	VectorCount    int             `json:"vector_count"`
	CreatedAtUnix  int64           `json:"created_at_unix"`
	StoreManifest  json.RawMessage `json:"store_manifest"`
}

// SourceFiles points Write at the live store files to copy into the
// snapshot. RawPath is empty when the collection does not keep raw
// vectors.
type SourceFiles struct {
	VectorsPath string
	RawPath     string
	MetaPath    string
}

func snapDirName(lsn uint64) string { return fmt.Sprintf("snap-%020d", lsn) }

// Write builds a snapshot for manifest.LSN under root, atomically. It
// assembles every file in a sibling "<name>.tmp" directory — including
// the COMMIT marker, written last — and only then renames it into
// place, so a reader can never observe a partially-written snapshot:
// the directory either doesn't exist yet, or exists complete.
func Write(root string, manifest Manifest, storeManifest, indexBytes []byte, src SourceFiles) (dir string, err error) {
	finalName := snapDirName(manifest.LSN)
	tmpDir := filepath.Join(root, finalName+".tmp")
	finalDir := filepath.Join(root, finalName)

	if err := os.RemoveAll(tmpDir); err != nil {
		return "", fmt.Errorf("snapshot: clear stale tmp dir: %w", err)
	}
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: create tmp dir: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(tmpDir)
		}
	}()

	manifest.StoreManifest = json.RawMessage(storeManifest)
	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("snapshot: marshal manifest: %w", err)
	}
	if err := writeFile(filepath.Join(tmpDir, manifestFile), manifestBytes); err != nil {
		return "", err
	}
	if err := writeFile(filepath.Join(tmpDir, indexFile), indexBytes); err != nil {
		return "", err
	}
	if err := copyFile(src.VectorsPath, filepath.Join(tmpDir, vectorsFile)); err != nil {
		return "", err
	}
	if src.RawPath != "" {
		if err := copyFile(src.RawPath, filepath.Join(tmpDir, rawFileName)); err != nil {
			return "", err
		}
	}
	if err := copyFile(src.MetaPath, filepath.Join(tmpDir, metaFile)); err != nil {
		return "", err
	}
	if err := writeFile(filepath.Join(tmpDir, commitMarker), []byte(strconv.FormatUint(manifest.LSN, 10))); err != nil {
		return "", err
	}

	if err := os.RemoveAll(finalDir); err != nil {
		return "", fmt.Errorf("snapshot: clear stale final dir: %w", err)
	}
	if err := os.Rename(tmpDir, finalDir); err != nil {
		return "", fmt.Errorf("snapshot: rename into place: %w", err)
	}
	return finalDir, nil
}

func writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: sync %s: %w", path, err)
	}
	return f.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("snapshot: open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("snapshot: copy %s to %s: %w", src, dst, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("snapshot: sync %s: %w", dst, err)
	}
	return out.Close()
}

// Loaded is the decoded contents of one snapshot directory, ready for
// the collection manager to rehydrate a store and graph from.
type Loaded struct {
	Manifest    Manifest
	IndexBytes  []byte
	VectorsPath string
	RawPath     string // empty if the snapshot has no raw.bin
	MetaPath    string
}

// Load reads a complete snapshot directory (as returned by Locate) back
// into memory, save for the large vector files, which callers mmap/copy
// directly from VectorsPath/RawPath/MetaPath.
func Load(dir string) (Loaded, error) {
	var out Loaded
	manifestBytes, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return out, fmt.Errorf("snapshot: read manifest: %w", err)
	}
	if err := json.Unmarshal(manifestBytes, &out.Manifest); err != nil {
		return out, fmt.Errorf("snapshot: unmarshal manifest: %w", err)
	}
	if out.IndexBytes, err = os.ReadFile(filepath.Join(dir, indexFile)); err != nil {
		return out, fmt.Errorf("snapshot: read index: %w", err)
	}
	out.VectorsPath = filepath.Join(dir, vectorsFile)
	out.MetaPath = filepath.Join(dir, metaFile)
	if rawPath := filepath.Join(dir, rawFileName); fileExists(rawPath) {
		out.RawPath = rawPath
	}
	return out, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Locate finds the most recent complete snapshot under root — the
// "snap-*" directory (never a ".tmp" one) with the highest LSN that
// carries a COMMIT marker — and returns its path. found is false if no
// complete snapshot exists yet, which is the normal state for a brand
// new collection.
func Locate(root string) (dir string, found bool, err error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("snapshot: list %s: %w", root, err)
	}

	var candidates []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "snap-") || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		full := filepath.Join(root, e.Name())
		if fileExists(filepath.Join(full, commitMarker)) {
			candidates = append(candidates, e.Name())
		}
	}
	if len(candidates) == 0 {
		return "", false, nil
	}
	sort.Strings(candidates) // zero-padded lsn in the name sorts lexically == numerically
	return filepath.Join(root, candidates[len(candidates)-1]), true, nil
}

// PruneExcept removes every complete or in-progress snapshot directory
// under root other than keepDir, reclaiming space once a newer
// snapshot has been committed and the WAL has been truncated past it.
func PruneExcept(root, keepDir string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("snapshot: list %s: %w", root, err)
	}
	keepName := filepath.Base(keepDir)
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "snap-") {
			continue
		}
		if e.Name() == keepName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			return fmt.Errorf("snapshot: prune %s: %w", e.Name(), err)
		}
	}
	return nil
}
