// Package graph implements the HNSW proximity graph from spec.md
// §4.4, grounded directly on pkg/hnsw/{index,node,insert,search,batch}.go.
// Unlike the teacher, a node never holds its own vector: the index
// resolves every distance through a VectorSource, keeping storage and
// quantization entirely in internal/store and internal/codec.
package graph

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// VectorSource is everything the graph needs from the store+codec
// layer to compute distances. QueryDistance scores a raw f32 query
// (the vector being inserted, or a search query) against a stored
// id's encoded payload. PairDistance scores two already-stored ids
// against each other, used by the neighbor-selection heuristic when
// neither side is the live query.
type VectorSource interface {
	QueryDistance(query []float32, id uint32) (float32, error)
	PairDistance(a, b uint32) (float32, error)
}

// Config holds the tunable HNSW parameters from spec.md §4.4.
// Defaults match the spec's parameter-defaults paragraph.
type Config struct {
	M              int
	EfConstruction int
	EfSearch       int
	Rand           *rand.Rand // injected per spec.md §9's sandboxed-entropy requirement
}

// DefaultConfig returns M=16, ef_construction=200, ef_search=64 and no
// RNG, matching spec.md §4.4's parameter defaults; New then uses a
// fixed seed of 1 unless Config.Rand is set.
func DefaultConfig() Config {
	return Config{
		M:              16,
		EfConstruction: 200,
		EfSearch:       64,
	}
}

// Index is the in-memory HNSW proximity graph for one collection.
type Index struct {
	m      int
	m0     int // 2*M, base-layer degree cap
	efc    int
	efs    int
	mL     float64 // 1/ln(M)
	source VectorSource

	mu         sync.RWMutex
	nodes      map[uint32]*node
	entryPoint *node
	maxLayer   int
	size       int

	rand *rand.Rand
}

// New constructs an empty index. source must not be nil; the index
// never stores vectors itself.
func New(cfg Config, source VectorSource) (*Index, error) {
	if source == nil {
		return nil, fmt.Errorf("graph: VectorSource must not be nil")
	}
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = 200
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = 64
	}
	r := cfg.Rand
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}
	return &Index{
		m:        cfg.M,
		m0:       cfg.M * 2,
		efc:      cfg.EfConstruction,
		efs:      cfg.EfSearch,
		mL:       1.0 / math.Log(float64(cfg.M)),
		source:   source,
		nodes:    make(map[uint32]*node),
		maxLayer: -1,
		rand:     r,
	}, nil
}

// randomLevel draws level = floor(-ln(r) * m_L) for r in (0,1],
// exactly spec.md §4.4's level-sampling formula.
func (idx *Index) randomLevel() int {
	r := idx.rand.Float64()
	if r <= 0 {
		r = 1e-12 // rand.Float64 is [0,1); guard against the zero edge case
	}
	return int(math.Floor(-math.Log(r) * idx.mL))
}

func (idx *Index) getNode(id uint32) *node {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.nodes[id]
}

// Size returns the number of non-tombstoned nodes.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.size
}

// Contains reports whether id is present and not tombstoned.
func (idx *Index) Contains(id uint32) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n, ok := idx.nodes[id]
	return ok && !n.tombstone
}
