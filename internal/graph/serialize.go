package graph

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Serialize writes the graph topology in the format spec.md §4.4
// names for snapshots: node_count, then per node its id, level,
// tombstone bit, and neighbor lists for every layer 0..level. No
// vectors are written here — the store's own encoded/raw files own
// that — so this is purely the adjacency structure plus enough
// bookkeeping (entry point, max layer) to resume search immediately
// after loading.
func (idx *Index) Serialize(w io.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var entryID int64 = -1
	if idx.entryPoint != nil {
		entryID = int64(idx.entryPoint.id)
	}

	header := make([]byte, 4+8+4)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(idx.nodes)))
	binary.LittleEndian.PutUint64(header[4:12], uint64(entryID))
	binary.LittleEndian.PutUint32(header[12:16], uint32(int32(idx.maxLayer)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("graph: serialize header: %w", err)
	}

	for _, n := range idx.nodes {
		n.mu.RLock()
		err := writeNode(w, n)
		n.mu.RUnlock()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeNode(w io.Writer, n *node) error {
	buf := make([]byte, 4+4+1)
	binary.LittleEndian.PutUint32(buf[0:4], n.id)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(n.level))
	if n.tombstone {
		buf[8] = 1
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("graph: serialize node %d: %w", n.id, err)
	}
	for layer := 0; layer <= n.level; layer++ {
		neighbors := n.neighbors[layer]
		countBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(countBuf, uint32(len(neighbors)))
		if _, err := w.Write(countBuf); err != nil {
			return fmt.Errorf("graph: serialize node %d layer %d: %w", n.id, layer, err)
		}
		idBuf := make([]byte, 4*len(neighbors))
		for i, nid := range neighbors {
			binary.LittleEndian.PutUint32(idBuf[i*4:], nid)
		}
		if _, err := w.Write(idBuf); err != nil {
			return fmt.Errorf("graph: serialize node %d layer %d: %w", n.id, layer, err)
		}
	}
	return nil
}

// Deserialize rebuilds an Index from the format Serialize writes.
// cfg and source are the same construction-time parameters New takes;
// only the adjacency structure is replayed from r.
func Deserialize(r io.Reader, cfg Config, source VectorSource) (*Index, error) {
	idx, err := New(cfg, source)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 4+8+4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("graph: deserialize header: %w", err)
	}
	nodeCount := binary.LittleEndian.Uint32(header[0:4])
	entryID := int64(binary.LittleEndian.Uint64(header[4:12]))
	maxLayer := int32(binary.LittleEndian.Uint32(header[12:16]))

	for i := uint32(0); i < nodeCount; i++ {
		n, err := readNode(r)
		if err != nil {
			return nil, err
		}
		idx.nodes[n.id] = n
		if !n.tombstone {
			idx.size++
		}
	}
	idx.maxLayer = int(maxLayer)
	if entryID >= 0 {
		idx.entryPoint = idx.nodes[uint32(entryID)]
	}
	return idx, nil
}

func readNode(r io.Reader) (*node, error) {
	buf := make([]byte, 4+4+1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("graph: deserialize node: %w", err)
	}
	id := binary.LittleEndian.Uint32(buf[0:4])
	level := int(binary.LittleEndian.Uint32(buf[4:8]))
	tombstone := buf[8] != 0

	n := newNode(id, level)
	n.tombstone = tombstone
	for layer := 0; layer <= level; layer++ {
		countBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, countBuf); err != nil {
			return nil, fmt.Errorf("graph: deserialize node %d layer %d: %w", id, layer, err)
		}
		count := binary.LittleEndian.Uint32(countBuf)
		neighbors := make([]uint32, count)
		if count > 0 {
			idBuf := make([]byte, 4*count)
			if _, err := io.ReadFull(r, idBuf); err != nil {
				return nil, fmt.Errorf("graph: deserialize node %d layer %d: %w", id, layer, err)
			}
			for i := range neighbors {
				neighbors[i] = binary.LittleEndian.Uint32(idBuf[i*4:])
			}
		}
		n.neighbors[layer] = neighbors
	}
	return n, nil
}
