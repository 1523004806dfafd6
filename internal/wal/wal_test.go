package wal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendAndReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	w, err := Open(path, DefaultConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	payloads := []VectorMutation{
		{Collection: "c1", ExternalID: "a", Vector: []float32{1, 2, 3}, Metadata: []byte(`{"k":1}`)},
		{Collection: "c1", ExternalID: "b", Vector: []float32{4, 5, 6}, Metadata: nil},
	}
	var lsns []uint64
	for _, p := range payloads {
		lsn, err := w.Append(OpInsert, EncodeVectorMutation(p))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		lsns = append(lsns, lsn)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	records, err := Replay(path)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(records) != len(payloads) {
		t.Fatalf("Replay returned %d records, want %d", len(records), len(payloads))
	}
	for i, r := range records {
		if r.LSN != lsns[i] {
			t.Errorf("record %d: LSN = %d, want %d", i, r.LSN, lsns[i])
		}
		if r.Op != OpInsert {
			t.Errorf("record %d: Op = %v, want OpInsert", i, r.Op)
		}
		m, err := DecodeVectorMutation(r.Payload)
		if err != nil {
			t.Fatalf("DecodeVectorMutation: %v", err)
		}
		if m.Collection != payloads[i].Collection || m.ExternalID != payloads[i].ExternalID {
			t.Errorf("record %d: decoded %+v, want %+v", i, m, payloads[i])
		}
		if len(m.Vector) != len(payloads[i].Vector) {
			t.Errorf("record %d: vector length = %d, want %d", i, len(m.Vector), len(payloads[i].Vector))
		}
	}
}

func TestLSNsAreMonotonicAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	w, err := Open(path, DefaultConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := w.Append(OpDelete, EncodeDeleteMutation(DeleteMutation{Collection: "c", ExternalID: "x"})); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	w2, err := Open(path, DefaultConfig())
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	defer w2.Close()
	lsn, err := w2.Append(OpDelete, EncodeDeleteMutation(DeleteMutation{Collection: "c", ExternalID: "y"}))
	if err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if lsn != 3 {
		t.Errorf("LSN after reopen = %d, want 3 (continuing from 3 prior records)", lsn)
	}
}

func TestReplayStopsAtTornTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	w, err := Open(path, DefaultConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := w.Append(OpDelete, EncodeDeleteMutation(DeleteMutation{Collection: "c", ExternalID: "z"})); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	full, err := Replay(path)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(full) != 5 {
		t.Fatalf("expected 5 full records, got %d", len(full))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	// Simulate a crash mid-write by chopping off the last few bytes of
	// the file, landing inside the final record's payload or header.
	if err := os.Truncate(path, info.Size()-3); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	partial, err := Replay(path)
	if err != nil {
		t.Fatalf("Replay after truncation: %v", err)
	}
	if len(partial) != 4 {
		t.Fatalf("expected the torn final record to be dropped, got %d records", len(partial))
	}

	if err := Truncate(path); err != nil {
		t.Fatalf("Truncate (repair): %v", err)
	}
	repaired, err := Replay(path)
	if err != nil {
		t.Fatalf("Replay after repair: %v", err)
	}
	if len(repaired) != 4 {
		t.Fatalf("expected repair to keep the 4 well-formed records, got %d", len(repaired))
	}
}

func TestReplayMissingFileIsEmptyLog(t *testing.T) {
	records, err := Replay(filepath.Join(t.TempDir(), "missing.log"))
	if err != nil {
		t.Fatalf("Replay on missing file: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestCheckpointMarkerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	w, err := Open(path, DefaultConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	lsn, err := w.Append(OpCheckpoint, EncodeCheckpointMarker(CheckpointMarker{SnapshotLSN: 42}))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	records, err := Replay(path)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(records) != 1 || records[0].LSN != lsn || records[0].Op != OpCheckpoint {
		t.Fatalf("unexpected records: %+v", records)
	}
	marker, err := DecodeCheckpointMarker(records[0].Payload)
	if err != nil {
		t.Fatalf("DecodeCheckpointMarker: %v", err)
	}
	if marker.SnapshotLSN != 42 {
		t.Errorf("SnapshotLSN = %d, want 42", marker.SnapshotLSN)
	}
}

func TestGroupCommitAllowsConcurrentAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	cfg := DefaultConfig()
	w, err := Open(path, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := w.Append(OpDelete, EncodeDeleteMutation(DeleteMutation{Collection: "c", ExternalID: "concurrent"}))
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Errorf("Append: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	records, err := Replay(path)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(records) != n {
		t.Errorf("expected %d records, got %d", n, len(records))
	}
	seen := make(map[uint64]bool)
	for _, r := range records {
		if seen[r.LSN] {
			t.Errorf("duplicate LSN %d", r.LSN)
		}
		seen[r.LSN] = true
	}
}
