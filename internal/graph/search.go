package graph

import "fmt"

// Result is one scored hit from Search, closest first.
type Result struct {
	ID       uint32
	Distance float32
}

// Search returns the top-k nearest neighbors of query, expanding the
// candidate beam to at least max(k, efSearch). Mirrors
// pkg/hnsw/search.go's two-phase descent (greedy above layer 0, beam
// search at layer 0) with the graph's own tombstone-skip and
// tie-break rules.
func (idx *Index) Search(query []float32, k int, efSearch int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("graph: k must be positive")
	}
	if efSearch < k {
		efSearch = k
	}

	idx.mu.RLock()
	entry := idx.entryPoint
	maxLayer := idx.maxLayer
	idx.mu.RUnlock()

	if entry == nil {
		return nil, nil
	}

	ep := entry
	currentDist, err := idx.source.QueryDistance(query, ep.id)
	if err != nil {
		return nil, err
	}

	for lc := maxLayer; lc > 0; lc-- {
		changed := true
		for changed {
			changed = false
			for _, neighborID := range ep.getNeighbors(lc) {
				neighborNode := idx.getNode(neighborID)
				if neighborNode == nil || neighborNode.tombstone {
					continue
				}
				dist, err := idx.source.QueryDistance(query, neighborID)
				if err != nil {
					return nil, err
				}
				if dist < currentDist {
					currentDist = dist
					ep = neighborNode
					changed = true
				}
			}
		}
	}

	candidates, err := idx.searchLayerFromQuery(query, ep, efSearch, 0)
	if err != nil {
		return nil, err
	}

	n := k
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]Result, n)
	for i := 0; i < n; i++ {
		out[i] = Result{ID: candidates[i].id, Distance: candidates[i].distance}
	}
	return out, nil
}

// Delete tombstones id, excises it from every neighbor list it
// appears in, and promotes a new entry point if id was the current
// one. Matches pkg/hnsw/search.go's Delete, minus vector bookkeeping
// (the store owns that) and plus the tombstone bit, which a concurrent
// search already holding the node sees; the node is then dropped from
// the index, and the store hands the id out again from its free-list.
func (idx *Index) Delete(id uint32) error {
	idx.mu.Lock()
	n, ok := idx.nodes[id]
	if !ok {
		idx.mu.Unlock()
		return fmt.Errorf("graph: id %d not found", id)
	}
	others := make([]*node, 0, len(idx.nodes))
	for _, other := range idx.nodes {
		others = append(others, other)
	}
	idx.mu.Unlock()

	// Pruning can leave one-way edges, so every node's lists are
	// checked, not only those of id's own neighbors.
	for _, other := range others {
		for layer := 0; layer <= other.level; layer++ {
			other.removeNeighbor(layer, id)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	n.tombstone = true
	idx.size--

	if idx.entryPoint != nil && idx.entryPoint.id == id {
		var newEntry *node
		maxLevel := -1
		for _, candidate := range idx.nodes {
			if candidate.id == id || candidate.tombstone {
				continue
			}
			if candidate.level > maxLevel {
				maxLevel = candidate.level
				newEntry = candidate
			}
		}
		idx.entryPoint = newEntry
		idx.maxLayer = maxLevel
	}
	delete(idx.nodes, id)
	return nil
}
