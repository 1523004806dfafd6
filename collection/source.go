package collection

import (
	"fmt"

	"github.com/vectorlite/vectorlite/internal/codec"
	"github.com/vectorlite/vectorlite/internal/store"
)

// vectorSource implements graph.VectorSource by composing a
// store.Store (for encoded-payload lookup by internal id) with a
// codec.Codec/codec.PairScorer (for distance computation) — the one
// adapter that closes spec.md §9's one-way dependency from the graph
// down to store+codec, without the graph package importing either.
type vectorSource struct {
	store  *store.Store
	codec  codec.Codec
	scorer codec.PairScorer
}

func newVectorSource(s *store.Store, c codec.Codec) (*vectorSource, error) {
	scorer, ok := c.(codec.PairScorer)
	if !ok {
		return nil, fmt.Errorf("collection: codec %s does not implement PairScorer", c.Kind())
	}
	return &vectorSource{store: s, codec: c, scorer: scorer}, nil
}

func (v *vectorSource) QueryDistance(query []float32, id uint32) (float32, error) {
	encoded, err := v.store.Encoded(id)
	if err != nil {
		return 0, fmt.Errorf("collection: query distance: %w", err)
	}
	return v.codec.AsymmetricDistance(query, encoded)
}

func (v *vectorSource) PairDistance(a, b uint32) (float32, error) {
	ea, err := v.store.Encoded(a)
	if err != nil {
		return 0, fmt.Errorf("collection: pair distance: %w", err)
	}
	eb, err := v.store.Encoded(b)
	if err != nil {
		return 0, fmt.Errorf("collection: pair distance: %w", err)
	}
	return v.scorer.PairDistance(ea, eb)
}
