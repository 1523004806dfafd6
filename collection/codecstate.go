package collection

import (
	"encoding/json"
	"fmt"

	"github.com/vectorlite/vectorlite/internal/codec"
)

// codecState is the opaque-to-everyone-else-but-us envelope persisted
// in a snapshot manifest for codecs with a fit step (PerDimension SQ8,
// PQ): without it, a recovered collection could decode nothing it
// encoded before the crash. None/Binary/PerVector-SQ8 need nothing
// here since they carry no collection-wide trained state.
type codecState struct {
	SQ8Min        []float32   `json:"sq8_min,omitempty"`
	SQ8Max        []float32   `json:"sq8_max,omitempty"`
	PQCodebooks   [][][]float32 `json:"pq_codebooks,omitempty"`
}

// marshalCodecState captures whatever trained state c carries, or nil
// if c has none worth persisting.
func marshalCodecState(c codec.Codec) ([]byte, error) {
	var s codecState
	switch tc := c.(type) {
	case *codec.SQ8Codec:
		if min, max, ok := tc.Codebook(); ok {
			s.SQ8Min, s.SQ8Max = min, max
		}
	case *codec.PQCodec:
		if books, ok := tc.Codebook(); ok {
			s.PQCodebooks = books
		}
	}
	if s.SQ8Min == nil && s.PQCodebooks == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("collection: marshal codec state: %w", err)
	}
	return b, nil
}

// applyCodecState restores trained state captured by marshalCodecState
// into a freshly-constructed codec of the same kind.
func applyCodecState(c codec.Codec, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var s codecState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("collection: unmarshal codec state: %w", err)
	}
	switch tc := c.(type) {
	case *codec.SQ8Codec:
		if s.SQ8Min != nil {
			tc.LoadCodebook(s.SQ8Min, s.SQ8Max)
		}
	case *codec.PQCodec:
		if s.PQCodebooks != nil {
			tc.LoadCodebook(s.PQCodebooks)
		}
	}
	return nil
}
