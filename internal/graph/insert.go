package graph

import "container/heap"

// Insert adds id (already allocated and persisted by the store) to
// the graph, scoring against vec via the VectorSource. Mirrors
// pkg/hnsw/insert.go's two-phase descent, with the neighbor-selection
// heuristic upgraded to the diversity-aware rule from spec.md §4.4.
func (idx *Index) Insert(id uint32, vec []float32) error {
	level := idx.randomLevel()
	newNode := newNode(id, level)

	idx.mu.Lock()
	if idx.entryPoint == nil {
		idx.nodes[id] = newNode
		idx.entryPoint = newNode
		idx.maxLayer = level
		idx.size++
		idx.mu.Unlock()
		return nil
	}
	entryPoint := idx.entryPoint
	currentMaxLayer := idx.maxLayer
	idx.mu.Unlock()

	ep := entryPoint
	currentDist, err := idx.source.QueryDistance(vec, ep.id)
	if err != nil {
		return err
	}

	for lc := currentMaxLayer; lc > level; lc-- {
		changed := true
		for changed {
			changed = false
			for _, neighborID := range ep.getNeighbors(lc) {
				neighborNode := idx.getNode(neighborID)
				if neighborNode == nil || neighborNode.tombstone {
					continue
				}
				dist, err := idx.source.QueryDistance(vec, neighborID)
				if err != nil {
					return err
				}
				if dist < currentDist {
					currentDist = dist
					ep = neighborNode
					changed = true
				}
			}
		}
	}

	for lc := minInt(level, currentMaxLayer); lc >= 0; lc-- {
		candidates, err := idx.searchLayerFromQuery(vec, ep, idx.efc, lc)
		if err != nil {
			return err
		}

		m := idx.m
		if lc == 0 {
			m = idx.m0
		}
		selected, err := idx.selectNeighborsHeuristic(candidates, m)
		if err != nil {
			return err
		}

		for _, neighborID := range selected {
			neighborNode := idx.getNode(neighborID)
			if neighborNode == nil {
				continue
			}
			newNode.addNeighbor(lc, neighborID)
			neighborNode.addNeighbor(lc, id)
			if err := idx.pruneNeighbors(neighborNode, lc); err != nil {
				return err
			}
		}

		if len(candidates) > 0 {
			if n := idx.getNode(candidates[0].id); n != nil {
				ep = n
			}
		}
	}

	idx.mu.Lock()
	idx.nodes[id] = newNode
	if level > idx.maxLayer {
		idx.maxLayer = level
		idx.entryPoint = newNode
	}
	idx.size++
	idx.mu.Unlock()
	return nil
}

// searchLayerFromQuery is searchLayer scored against a raw f32 query
// (used during insert, before the new node exists in the graph).
func (idx *Index) searchLayerFromQuery(query []float32, entry *node, ef, layer int) ([]heapItem, error) {
	visited := make(map[uint32]bool)
	candidates := &minHeap{}
	results := &maxHeap{}

	dist, err := idx.source.QueryDistance(query, entry.id)
	if err != nil {
		return nil, err
	}
	heap.Push(candidates, heapItem{id: entry.id, distance: dist})
	heap.Push(results, heapItem{id: entry.id, distance: dist})
	visited[entry.id] = true

	for candidates.Len() > 0 {
		current := heap.Pop(candidates).(heapItem)
		if current.distance > results.Peek().distance {
			break
		}

		currentNode := idx.getNode(current.id)
		if currentNode == nil {
			continue
		}
		for _, neighborID := range currentNode.getNeighbors(layer) {
			if visited[neighborID] {
				continue
			}
			visited[neighborID] = true
			neighborNode := idx.getNode(neighborID)
			if neighborNode == nil || neighborNode.tombstone {
				continue
			}
			neighborDist, err := idx.source.QueryDistance(query, neighborID)
			if err != nil {
				return nil, err
			}
			if neighborDist < results.Peek().distance || results.Len() < ef {
				heap.Push(candidates, heapItem{id: neighborID, distance: neighborDist})
				heap.Push(results, heapItem{id: neighborID, distance: neighborDist})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]heapItem, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(heapItem)
	}
	return out, nil
}

// selectNeighborsHeuristic implements spec.md §4.4's diversity rule:
// a candidate is kept iff no already-kept neighbor is closer to it
// than it is to the query. candidates must arrive sorted closest-first
// (searchLayerFromQuery/searchLayer already produce that order).
// Replaces pkg/hnsw/insert.go's selectNeighbors, which just truncated
// to the M closest.
func (idx *Index) selectNeighborsHeuristic(candidates []heapItem, m int) ([]uint32, error) {
	if len(candidates) <= m {
		out := make([]uint32, len(candidates))
		for i, c := range candidates {
			out[i] = c.id
		}
		return out, nil
	}

	selected := make([]heapItem, 0, m)
	for _, cand := range candidates {
		if len(selected) >= m {
			break
		}
		keep := true
		for _, kept := range selected {
			d, err := idx.source.PairDistance(cand.id, kept.id)
			if err != nil {
				return nil, err
			}
			if d < cand.distance {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, cand)
		}
	}

	// The heuristic can reject more candidates than it keeps; top up
	// with the closest remaining candidates so a node never ends up
	// under-connected purely because its neighborhood was too uniform.
	if len(selected) < m {
		keptSet := make(map[uint32]bool, len(selected))
		for _, s := range selected {
			keptSet[s.id] = true
		}
		for _, cand := range candidates {
			if len(selected) >= m {
				break
			}
			if !keptSet[cand.id] {
				selected = append(selected, cand)
			}
		}
	}

	out := make([]uint32, len(selected))
	for i, s := range selected {
		out[i] = s.id
	}
	return out, nil
}

// pruneNeighbors re-applies the heuristic to a node whose degree may
// have exceeded its cap after a new bidirectional edge was added.
func (idx *Index) pruneNeighbors(n *node, layer int) error {
	m := idx.m
	if layer == 0 {
		m = idx.m0
	}

	neighbors := n.getNeighbors(layer)
	if len(neighbors) <= m {
		return nil
	}

	items := make([]heapItem, 0, len(neighbors))
	for _, neighborID := range neighbors {
		d, err := idx.source.PairDistance(n.id, neighborID)
		if err != nil {
			return err
		}
		items = append(items, heapItem{id: neighborID, distance: d})
	}
	sortByDistance(items)

	selected, err := idx.selectNeighborsHeuristic(items, m)
	if err != nil {
		return err
	}
	n.setNeighbors(layer, selected)
	return nil
}

func sortByDistance(items []heapItem) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && less(items[j], items[j-1]); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
