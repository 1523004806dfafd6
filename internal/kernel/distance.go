// Package kernel implements the pure distance functions the rest of
// vectorlite builds on. All three metrics follow the lower-is-closer
// convention from spec.md §4.1 so ranking code never special-cases a
// metric.
package kernel

import (
	"math"
	"math/bits"
)

// Metric identifies which distance formula a collection uses.
type Metric int

const (
	Cosine Metric = iota
	L2
	Dot
)

func (m Metric) String() string {
	switch m {
	case Cosine:
		return "cosine"
	case L2:
		return "l2"
	case Dot:
		return "dot"
	default:
		return "unknown"
	}
}

// CosineF32 returns 1 - a·b for two L2-normalized vectors. Callers
// must normalize both sides beforehand; this function does not check
// norms, matching the "both inputs L2-normalized" precondition.
func CosineF32(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return 1 - dot
}

// L2F32 returns the squared Euclidean distance between a and b.
// Squared, not rooted: monotonic with true distance and cheaper.
func L2F32(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// DotF32 returns the negated dot product so lower is better, like the
// other two metrics.
func DotF32(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return -sum
}

// Of returns the kernel function for m.
func Of(m Metric) func(a, b []float32) float32 {
	switch m {
	case Cosine:
		return CosineF32
	case Dot:
		return DotF32
	default:
		return L2F32
	}
}

// BatchF32 scores query against every candidate and writes into out,
// which must have len(candidates) capacity. Kept as a single loop over
// candidates (rather than N separate calls from the caller) so a
// vectorizing compiler/future SIMD kernel can amortize the query load
// across the batch, per spec.md §4.1.
func BatchF32(query []float32, candidates [][]float32, m Metric, out []float32) {
	fn := Of(m)
	for i, c := range candidates {
		out[i] = fn(query, c)
	}
}

// L2F32Int8 computes the asymmetric squared-L2 distance between a
// raw f32 query and an SQ8-encoded candidate, dequantizing lazily
// inside the loop rather than materializing a temporary float32
// vector.
func L2F32Int8(query []float32, code []int8, scale, offset float32) float32 {
	var sum float32
	for i, q := range query {
		v := (float32(code[i]) - offset) / scale
		d := q - v
		sum += d * d
	}
	return sum
}

// DotF32Int8 is the asymmetric negated-dot-product distance for SQ8.
func DotF32Int8(query []float32, code []int8, scale, offset float32) float32 {
	var sum float32
	for i, q := range query {
		v := (float32(code[i]) - offset) / scale
		sum += q * v
	}
	return -sum
}

// CosineF32Int8 is the asymmetric cosine distance for SQ8, assuming
// the query is pre-normalized. The candidate norm is computed on the
// fly since SQ8 doesn't store it.
func CosineF32Int8(query []float32, code []int8, scale, offset float32) float32 {
	var dot, normC float32
	for i, q := range query {
		v := (float32(code[i]) - offset) / scale
		dot += q * v
		normC += v * v
	}
	if normC == 0 {
		return 1
	}
	normC = float32(math.Sqrt(float64(normC)))
	return 1 - dot/normC
}

// HammingBits computes an L2/Hamming surrogate between a raw f32
// query and a sign-bit-packed candidate: the query is sign-encoded on
// the fly into the same 64-bit-lane layout, then popcount(XOR) gives
// the Hamming distance, used as the ranking distance directly (lower
// = more bits agree).
func HammingBits(query []float32, packed []uint64) float32 {
	var dist uint32
	lane := uint64(0)
	bitIdx := 0
	laneIdx := 0
	flush := func() {
		dist += uint32(bits.OnesCount64(lane ^ packed[laneIdx]))
		lane = 0
		bitIdx = 0
		laneIdx++
	}
	for _, q := range query {
		if q >= 0 {
			lane |= 1 << uint(bitIdx)
		}
		bitIdx++
		if bitIdx == 64 {
			flush()
		}
	}
	if bitIdx > 0 {
		flush()
	}
	return float32(dist)
}
