package collection

import (
	"strconv"
	"testing"

	"github.com/vectorlite/vectorlite/internal/kernel"
)

func randomVector(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i)*0.1
	}
	return v
}

func TestCreateInsertGetSearch(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(8, kernel.L2)

	c, err := Create(dir, "docs", cfg)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer c.Close()

	for i := 0; i < 20; i++ {
		vec := randomVector(8, float32(i))
		if err := c.Insert(idFor(i), vec, []byte(`{"i":`+strconv.Itoa(i)+`}`)); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	rec, err := c.Get(idFor(5))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.ExternalID != idFor(5) {
		t.Errorf("ExternalID = %q, want %q", rec.ExternalID, idFor(5))
	}

	query := randomVector(8, 5)
	hits, err := c.Search(query, 3, SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("Search returned no hits")
	}
	if hits[0].ExternalID != idFor(5) {
		t.Errorf("top hit = %q, want %q", hits[0].ExternalID, idFor(5))
	}
}

func TestInsertDuplicateRejected(t *testing.T) {
	dir := t.TempDir()
	c, err := Create(dir, "docs", DefaultConfig(4, kernel.L2))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer c.Close()

	vec := randomVector(4, 1)
	if err := c.Insert("a", vec, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := c.Insert("a", vec, nil); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
}

func TestUpsertOverwrites(t *testing.T) {
	dir := t.TempDir()
	c, err := Create(dir, "docs", DefaultConfig(4, kernel.L2))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer c.Close()

	if err := c.Upsert("a", randomVector(4, 1), []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Upsert insert: %v", err)
	}
	if err := c.Upsert("a", randomVector(4, 9), []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Upsert overwrite: %v", err)
	}

	rec, err := c.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Vector[0] != 9 {
		t.Errorf("Vector[0] = %v, want 9 (after overwrite)", rec.Vector[0])
	}
}

func TestDeleteThenGetNotFound(t *testing.T) {
	dir := t.TempDir()
	c, err := Create(dir, "docs", DefaultConfig(4, kernel.L2))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer c.Close()

	if err := c.Insert("a", randomVector(4, 1), nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	ok, err := c.Delete("a")
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	if _, err := c.Get("a"); err == nil {
		t.Fatal("expected Get after Delete to fail")
	}

	ok, err = c.Delete("never-existed")
	if err != nil {
		t.Fatalf("Delete of unknown id errored: %v", err)
	}
	if ok {
		t.Fatal("Delete of unknown id should report false, not true")
	}
}

func TestDimMismatchRejected(t *testing.T) {
	dir := t.TempDir()
	c, err := Create(dir, "docs", DefaultConfig(4, kernel.L2))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer c.Close()

	if err := c.Insert("a", randomVector(5, 1), nil); err == nil {
		t.Fatal("expected dim mismatch to fail")
	}
}

func TestFlushThenReopenRecoversState(t *testing.T) {
	dir := t.TempDir()
	c, err := Create(dir, "docs", DefaultConfig(4, kernel.L2))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := c.Insert(idFor(i), randomVector(4, float32(i)), nil); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	// A write after the snapshot exercises WAL-suffix replay on reopen.
	if err := c.Insert(idFor(10), randomVector(4, 10), nil); err != nil {
		t.Fatalf("Insert after flush: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir, "docs")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	for i := 0; i <= 10; i++ {
		if _, err := reopened.Get(idFor(i)); err != nil {
			t.Errorf("Get(%s) after reopen: %v", idFor(i), err)
		}
	}
}

func TestCosineMetricNormalizesVectors(t *testing.T) {
	dir := t.TempDir()
	c, err := Create(dir, "docs", DefaultConfig(4, kernel.Cosine))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer c.Close()

	if err := c.Insert("a", []float32{3, 4, 0, 0}, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	rec, err := c.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var normSq float32
	for _, v := range rec.Vector {
		normSq += v * v
	}
	if normSq < 0.999 || normSq > 1.001 {
		t.Errorf("stored vector norm^2 = %v, want ~1", normSq)
	}
}

func idFor(i int) string { return "doc-" + strconv.Itoa(i) }
