package codec

import (
	"fmt"
	"math"
	"sync"

	"github.com/vectorlite/vectorlite/internal/kernel"
)

// SQ8Codec maps each float32 component into [0,255], adapted from the
// teacher's ScalarQuantizer (internal/quantization/scalar.go), which
// mapped to [-127,127]; spec.md §4.2 specifies [0,255] explicitly, so
// the clamp/scale formula is shifted accordingly.
type SQ8Codec struct {
	metric kernel.Metric
	dim    int
	mode   SQ8Mode

	mu      sync.RWMutex
	trained bool // always true for PerVector; gates PerDimension until Train

	// PerDimension state: collection-wide min/max per component.
	min []float32
	max []float32
}

func newSQ8Codec(metric kernel.Metric, dim int, mode SQ8Mode) *SQ8Codec {
	c := &SQ8Codec{metric: metric, dim: dim, mode: mode}
	if mode == PerVector {
		c.trained = true
	}
	return c
}

func (c *SQ8Codec) Kind() Kind { return SQ8 }

func (c *SQ8Codec) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.trained
}

// Train computes per-dimension min/max from the buffered training
// population, per spec.md §9's fit-step policy. Only valid for
// PerDimension mode.
func (c *SQ8Codec) Train(vectors [][]float32) error {
	if c.mode != PerDimension {
		return fmt.Errorf("codec: Train called on non-PerDimension SQ8 codec")
	}
	if len(vectors) == 0 {
		return fmt.Errorf("codec: no training vectors provided")
	}

	min := make([]float32, c.dim)
	max := make([]float32, c.dim)
	for d := 0; d < c.dim; d++ {
		min[d] = float32(math.MaxFloat32)
		max[d] = float32(-math.MaxFloat32)
	}
	for _, vec := range vectors {
		for d, v := range vec {
			if v < min[d] {
				min[d] = v
			}
			if v > max[d] {
				max[d] = v
			}
		}
	}

	c.mu.Lock()
	c.min, c.max = min, max
	c.trained = true
	c.mu.Unlock()
	return nil
}

// Encode quantizes vec into D bytes plus an 8-byte (min,max) trailer
// for PerVector mode, or D bytes alone for PerDimension mode (whose
// min/max live in the collection-wide codebook, persisted separately
// in the manifest).
func (c *SQ8Codec) Encode(vec []float32) ([]byte, error) {
	if len(vec) != c.dim {
		return nil, fmt.Errorf("codec: vector length %d does not match dim %d", len(vec), c.dim)
	}

	switch c.mode {
	case PerVector:
		return c.encodePerVector(vec), nil
	default:
		c.mu.RLock()
		defer c.mu.RUnlock()
		if !c.trained {
			return nil, fmt.Errorf("codec: per-dimension SQ8 codebook not yet trained")
		}
		return c.encodePerDimension(vec), nil
	}
}

func quantizeComponent(v, min, scale float32) byte {
	scaled := (v - min) * scale
	if scaled < 0 {
		scaled = 0
	} else if scaled > 255 {
		scaled = 255
	}
	return byte(math.Round(float64(scaled)))
}

func dequantizeComponent(q byte, min, invScale float32) float32 {
	return min + float32(q)*invScale
}

func (c *SQ8Codec) encodePerVector(vec []float32) []byte {
	min, max := vec[0], vec[0]
	for _, v := range vec {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	valueRange := max - min
	if valueRange == 0 {
		valueRange = 1
	}
	scale := 255.0 / valueRange

	out := make([]byte, c.dim+8)
	for i, v := range vec {
		out[i] = quantizeComponent(v, min, scale)
	}
	putFloat32(out[c.dim:], min)
	putFloat32(out[c.dim+4:], max)
	return out
}

func (c *SQ8Codec) encodePerDimension(vec []float32) []byte {
	out := make([]byte, c.dim)
	for i, v := range vec {
		valueRange := c.max[i] - c.min[i]
		if valueRange == 0 {
			valueRange = 1
		}
		out[i] = quantizeComponent(v, c.min[i], 255.0/valueRange)
	}
	return out
}

// AsymmetricDistance dequantizes the candidate lazily against the raw
// f32 query inside the kernel loop, per spec.md §4.1's asymmetric
// distance contract.
func (c *SQ8Codec) AsymmetricDistance(query []float32, encoded []byte) (float32, error) {
	switch c.mode {
	case PerVector:
		if len(encoded) != c.dim+8 {
			return 0, fmt.Errorf("codec: encoded length %d does not match dim+8 (%d)", len(encoded), c.dim+8)
		}
		min := readFloat32(encoded[c.dim:])
		max := readFloat32(encoded[c.dim+4:])
		valueRange := max - min
		if valueRange == 0 {
			valueRange = 1
		}
		return c.scoreBytes(query, encoded[:c.dim], min, valueRange/255.0), nil
	default:
		c.mu.RLock()
		defer c.mu.RUnlock()
		if !c.trained {
			return 0, fmt.Errorf("codec: per-dimension SQ8 codebook not yet trained")
		}
		if len(encoded) != c.dim {
			return 0, fmt.Errorf("codec: encoded length %d does not match dim %d", len(encoded), c.dim)
		}
		return c.scoreBytesPerDim(query, encoded), nil
	}
}

func (c *SQ8Codec) scoreBytes(query []float32, code []byte, min, invScale float32) float32 {
	switch c.metric {
	case kernel.Cosine:
		var dot, normC float32
		for i, q := range query {
			v := dequantizeComponent(code[i], min, invScale)
			dot += q * v
			normC += v * v
		}
		if normC == 0 {
			return 1
		}
		return 1 - dot/float32(math.Sqrt(float64(normC)))
	case kernel.Dot:
		var sum float32
		for i, q := range query {
			sum += q * dequantizeComponent(code[i], min, invScale)
		}
		return -sum
	default:
		var sum float32
		for i, q := range query {
			d := q - dequantizeComponent(code[i], min, invScale)
			sum += d * d
		}
		return sum
	}
}

func (c *SQ8Codec) scoreBytesPerDim(query []float32, code []byte) float32 {
	switch c.metric {
	case kernel.Cosine:
		var dot, normC float32
		for i, q := range query {
			valueRange := c.max[i] - c.min[i]
			if valueRange == 0 {
				valueRange = 1
			}
			v := dequantizeComponent(code[i], c.min[i], valueRange/255.0)
			dot += q * v
			normC += v * v
		}
		if normC == 0 {
			return 1
		}
		return 1 - dot/float32(math.Sqrt(float64(normC)))
	case kernel.Dot:
		var sum float32
		for i, q := range query {
			valueRange := c.max[i] - c.min[i]
			if valueRange == 0 {
				valueRange = 1
			}
			sum += q * dequantizeComponent(code[i], c.min[i], valueRange/255.0)
		}
		return -sum
	default:
		var sum float32
		for i, q := range query {
			valueRange := c.max[i] - c.min[i]
			if valueRange == 0 {
				valueRange = 1
			}
			d := q - dequantizeComponent(code[i], c.min[i], valueRange/255.0)
			sum += d * d
		}
		return sum
	}
}

// PairDistance dequantizes both sides and scores in f32 space, since
// SQ8 codes alone (without dequantizing) aren't directly comparable
// across two independently-scaled PerVector trailers.
func (c *SQ8Codec) PairDistance(a, b []byte) (float32, error) {
	va, err := c.decode(a)
	if err != nil {
		return 0, err
	}
	vb, err := c.decode(b)
	if err != nil {
		return 0, err
	}
	return kernel.Of(c.metric)(va, vb), nil
}

func (c *SQ8Codec) decode(encoded []byte) ([]float32, error) {
	switch c.mode {
	case PerVector:
		if len(encoded) != c.dim+8 {
			return nil, fmt.Errorf("codec: encoded length %d does not match dim+8 (%d)", len(encoded), c.dim+8)
		}
		min := readFloat32(encoded[c.dim:])
		max := readFloat32(encoded[c.dim+4:])
		valueRange := max - min
		if valueRange == 0 {
			valueRange = 1
		}
		invScale := valueRange / 255.0
		out := make([]float32, c.dim)
		for i := 0; i < c.dim; i++ {
			out[i] = dequantizeComponent(encoded[i], min, invScale)
		}
		return out, nil
	default:
		c.mu.RLock()
		defer c.mu.RUnlock()
		if !c.trained {
			return nil, fmt.Errorf("codec: per-dimension SQ8 codebook not yet trained")
		}
		if len(encoded) != c.dim {
			return nil, fmt.Errorf("codec: encoded length %d does not match dim %d", len(encoded), c.dim)
		}
		out := make([]float32, c.dim)
		for i := 0; i < c.dim; i++ {
			valueRange := c.max[i] - c.min[i]
			if valueRange == 0 {
				valueRange = 1
			}
			out[i] = dequantizeComponent(encoded[i], c.min[i], valueRange/255.0)
		}
		return out, nil
	}
}

func (c *SQ8Codec) BytesPerVector(dim int) int {
	if c.mode == PerVector {
		return dim + 8
	}
	return dim
}

// Codebook returns the trained per-dimension min/max arrays, used by
// the manifest to persist the codebook before the first encoded
// vector is written (spec.md §9's codebook-persistence requirement).
func (c *SQ8Codec) Codebook() (min, max []float32, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.trained {
		return nil, nil, false
	}
	minCopy := append([]float32(nil), c.min...)
	maxCopy := append([]float32(nil), c.max...)
	return minCopy, maxCopy, true
}

// LoadCodebook restores a previously trained codebook from a manifest.
func (c *SQ8Codec) LoadCodebook(min, max []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.min = min
	c.max = max
	c.trained = true
}

func putFloat32(b []byte, v float32) {
	bits := math.Float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}

func readFloat32(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}
