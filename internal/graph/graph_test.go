package graph

import (
	"math/rand"
	"testing"
)

// memorySource is a VectorSource backed by a map of f32 vectors keyed
// by internal id, standing in for store+codec in these graph-only tests —
// it scores with squared Euclidean distance directly, with no
// encoding step at all.
type memorySource struct {
	vectors map[uint32][]float32
}

func newMemorySource() *memorySource {
	return &memorySource{vectors: make(map[uint32][]float32)}
}

func (s *memorySource) put(id uint32, vec []float32) {
	s.vectors[id] = vec
}

func l2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func (s *memorySource) QueryDistance(query []float32, id uint32) (float32, error) {
	return l2(query, s.vectors[id]), nil
}

func (s *memorySource) PairDistance(a, b uint32) (float32, error) {
	return l2(s.vectors[a], s.vectors[b]), nil
}

func newTestIndex(t *testing.T) (*Index, *memorySource) {
	t.Helper()
	src := newMemorySource()
	cfg := DefaultConfig()
	cfg.Rand = rand.New(rand.NewSource(42))
	idx, err := New(cfg, src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return idx, src
}

func randomVector(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = r.Float32()
	}
	return v
}

func TestInsertAndSearchFindsSelf(t *testing.T) {
	idx, src := newTestIndex(t)
	r := rand.New(rand.NewSource(7))

	const n, dim = 200, 16
	for i := uint32(0); i < n; i++ {
		vec := randomVector(r, dim)
		src.put(i, vec)
		if err := idx.Insert(i, vec); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	for i := uint32(0); i < n; i += 20 {
		results, err := idx.Search(src.vectors[i], 5, 64)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(results) == 0 {
			t.Fatalf("Search returned no results")
		}
		if results[0].ID != i {
			t.Errorf("nearest neighbor of its own vector should be itself: query %d, got %d (dist %v)", i, results[0].ID, results[0].Distance)
		}
		if results[0].Distance > 1e-6 {
			t.Errorf("self-distance should be ~0, got %v", results[0].Distance)
		}
	}
}

func TestSearchReturnsKResults(t *testing.T) {
	idx, src := newTestIndex(t)
	r := rand.New(rand.NewSource(1))

	const n, dim = 100, 8
	for i := uint32(0); i < n; i++ {
		vec := randomVector(r, dim)
		src.put(i, vec)
		if err := idx.Insert(i, vec); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	results, err := idx.Search(randomVector(r, dim), 10, 64)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 10 {
		t.Errorf("expected 10 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("results not sorted: %v before %v", results[i-1], results[i])
		}
	}
}

func TestDeletePromotesNewEntryPoint(t *testing.T) {
	idx, src := newTestIndex(t)
	r := rand.New(rand.NewSource(3))

	const n, dim = 50, 8
	for i := uint32(0); i < n; i++ {
		vec := randomVector(r, dim)
		src.put(i, vec)
		if err := idx.Insert(i, vec); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	entryID := idx.entryPoint.id
	if err := idx.Delete(entryID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if idx.Contains(entryID) {
		t.Errorf("deleted id should no longer be Contains()")
	}
	if idx.entryPoint == nil {
		t.Fatalf("expected a promoted entry point after deleting the old one")
	}
	if idx.entryPoint.id == entryID {
		t.Errorf("entry point should have been promoted away from the deleted id")
	}
	if idx.Size() != n-1 {
		t.Errorf("Size() = %d, expected %d", idx.Size(), n-1)
	}
}

func TestSearchSkipsTombstonedNodes(t *testing.T) {
	idx, src := newTestIndex(t)
	r := rand.New(rand.NewSource(9))

	const n, dim = 60, 8
	for i := uint32(0); i < n; i++ {
		vec := randomVector(r, dim)
		src.put(i, vec)
		if err := idx.Insert(i, vec); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	target := uint32(5)
	if err := idx.Delete(target); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	results, err := idx.Search(src.vectors[target], n, n)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.ID == target {
			t.Errorf("Search returned tombstoned id %d", target)
		}
	}
}

func TestEmptyIndexSearchReturnsNoResults(t *testing.T) {
	idx, _ := newTestIndex(t)
	results, err := idx.Search([]float32{1, 2, 3}, 5, 64)
	if err != nil {
		t.Fatalf("Search on empty index should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results from an empty index, got %d", len(results))
	}
}
