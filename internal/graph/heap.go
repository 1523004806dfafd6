package graph

// heapItem is one entry in a search priority queue: an internal id
// and its distance to the active query. Grounded on
// pkg/hnsw/insert.go's heapItem, extended with the deterministic
// tie-break spec.md §4.4 requires: on equal distance, the smaller
// internal id wins.
type heapItem struct {
	id       uint32
	distance float32
}

func less(a, b heapItem) bool {
	if a.distance != b.distance {
		return a.distance < b.distance
	}
	return a.id < b.id
}

// minHeap pops the closest item first (smallest distance, tie-broken
// by smaller id).
type minHeap []heapItem

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return less(h[i], h[j]) }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// maxHeap pops the farthest item first (largest distance, tie-broken
// by *larger* id so Peek/Pop evicts the least-preferred of two equally
// distant candidates first, keeping the smaller id in the result set).
type maxHeap []heapItem

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return less(h[j], h[i]) }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) {
	*h = append(*h, x.(heapItem))
}
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h minHeap) Peek() heapItem {
	if len(h) == 0 {
		return heapItem{distance: maxDistance}
	}
	return h[0]
}

func (h maxHeap) Peek() heapItem {
	if len(h) == 0 {
		return heapItem{distance: maxDistance}
	}
	return h[0]
}

const maxDistance = float32(3.4e38) // near math.MaxFloat32, kept local to avoid an import just for a sentinel
