// Package codec implements the quantization variants from spec.md
// §4.2: None (passthrough), SQ8 (scalar, per-vector or per-dimension),
// Binary (sign-bit), and an optional fourth PQ (product quantization)
// variant adapted from the teacher's ProductQuantizer.
package codec

import (
	"fmt"
	"math"

	"github.com/vectorlite/vectorlite/internal/kernel"
)

// Kind identifies a codec variant for config and manifest serialization.
type Kind int

const (
	None Kind = iota
	SQ8
	Binary
	PQ
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case SQ8:
		return "sq8"
	case Binary:
		return "binary"
	case PQ:
		return "pq"
	default:
		return "unknown"
	}
}

// SQ8Mode selects between per-vector (no fit step) and per-dimension
// (collection-wide codebook, trained from the first N inserts)
// scalar quantization, per spec.md §4.2.
type SQ8Mode int

const (
	PerVector SQ8Mode = iota
	PerDimension
)

// Codec is the common interface every quantization variant satisfies.
// Encode compresses a raw f32 vector; AsymmetricDistance scores a raw
// f32 query against an already-encoded candidate without
// materializing a decoded f32 vector; BytesPerVector reports the
// storage footprint for a given dimension (used for the store's
// fixed-stride file layout and for Stats().memory_bytes).
type Codec interface {
	Kind() Kind
	Encode(vec []float32) ([]byte, error)
	AsymmetricDistance(query []float32, encoded []byte) (float32, error)
	BytesPerVector(dim int) int
	// Trained reports whether the codec is ready to encode/snapshot.
	// Always true except for the trainable codecs (PerDimension SQ8,
	// PQ) before Train has run (spec.md §9).
	Trained() bool
}

// Trainable is implemented by codecs with a fit step (PerDimension
// SQ8 and PQ). Train is called once the buffering threshold is met.
type Trainable interface {
	Train(vectors [][]float32) error
}

// PairScorer is implemented by every codec variant to score two
// already-encoded candidates against each other, without needing a
// raw f32 query on either side. internal/graph uses this for the
// neighbor-selection heuristic's candidate-vs-candidate comparisons,
// where neither side is the live query.
type PairScorer interface {
	PairDistance(a, b []byte) (float32, error)
}

// New constructs a codec for the given kind/metric/dimension. sq8Mode
// is ignored for non-SQ8 kinds.
func New(kind Kind, metric kernel.Metric, dim int, sq8Mode SQ8Mode) (Codec, error) {
	switch kind {
	case None:
		return &NoneCodec{metric: metric}, nil
	case SQ8:
		return newSQ8Codec(metric, dim, sq8Mode), nil
	case Binary:
		return &BinaryCodec{dim: dim}, nil
	case PQ:
		return newPQCodec(dim), nil
	default:
		return nil, fmt.Errorf("codec: unknown kind %d", kind)
	}
}

// NoneCodec is the f32 passthrough: Encode round-trips the bytes of
// the vector itself, distance is the plain kernel.
type NoneCodec struct {
	metric kernel.Metric
}

func (c *NoneCodec) Kind() Kind { return None }

func (c *NoneCodec) Encode(vec []float32) ([]byte, error) {
	return f32ToBytes(vec), nil
}

func (c *NoneCodec) AsymmetricDistance(query []float32, encoded []byte) (float32, error) {
	vec, err := bytesToF32(encoded, len(query))
	if err != nil {
		return 0, err
	}
	return kernel.Of(c.metric)(query, vec), nil
}

func (c *NoneCodec) BytesPerVector(dim int) int { return dim * 4 }
func (c *NoneCodec) Trained() bool              { return true }

func (c *NoneCodec) PairDistance(a, b []byte) (float32, error) {
	dim := len(a) / 4
	va, err := bytesToF32(a, dim)
	if err != nil {
		return 0, err
	}
	vb, err := bytesToF32(b, dim)
	if err != nil {
		return 0, err
	}
	return kernel.Of(c.metric)(va, vb), nil
}

func f32ToBytes(vec []float32) []byte {
	out := make([]byte, len(vec)*4)
	for i, v := range vec {
		bits := math.Float32bits(v)
		out[i*4+0] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

func bytesToF32(b []byte, dim int) ([]float32, error) {
	if len(b) != dim*4 {
		return nil, fmt.Errorf("codec: encoded length %d does not match dim %d", len(b), dim)
	}
	out := make([]float32, dim)
	for i := 0; i < dim; i++ {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}
