package codec

import (
	"fmt"
	"math/bits"

	"github.com/vectorlite/vectorlite/internal/kernel"
)

// BinaryCodec packs one sign bit per dimension into 64-bit lanes and
// scores with the Hamming-popcount surrogate from internal/kernel.
// Offered "for extreme compression and coarse recall", per spec.md
// §4.2 — recall degrades sharply relative to SQ8.
type BinaryCodec struct {
	dim int
}

func (c *BinaryCodec) Kind() Kind  { return Binary }
func (c *BinaryCodec) Trained() bool { return true }

func (c *BinaryCodec) Encode(vec []float32) ([]byte, error) {
	if len(vec) != c.dim {
		return nil, fmt.Errorf("codec: vector length %d does not match dim %d", len(vec), c.dim)
	}
	nLanes := (c.dim + 63) / 64
	lanes := make([]uint64, nLanes)
	for i, v := range vec {
		if v >= 0 {
			lanes[i/64] |= 1 << uint(i%64)
		}
	}
	out := make([]byte, nLanes*8)
	for i, lane := range lanes {
		for b := 0; b < 8; b++ {
			out[i*8+b] = byte(lane >> uint(b*8))
		}
	}
	return out, nil
}

func (c *BinaryCodec) AsymmetricDistance(query []float32, encoded []byte) (float32, error) {
	nLanes := (c.dim + 63) / 64
	if len(encoded) != nLanes*8 {
		return 0, fmt.Errorf("codec: encoded length %d does not match expected %d", len(encoded), nLanes*8)
	}
	lanes := make([]uint64, nLanes)
	for i := range lanes {
		var lane uint64
		for b := 0; b < 8; b++ {
			lane |= uint64(encoded[i*8+b]) << uint(b*8)
		}
		lanes[i] = lane
	}
	return kernel.HammingBits(query, lanes), nil
}

// PairDistance XORs the two packed lane arrays directly and counts
// set bits, never decoding back to float32 at all — the cheapest of
// the four codecs' pairwise paths.
func (c *BinaryCodec) PairDistance(a, b []byte) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("codec: mismatched encoded lengths %d vs %d", len(a), len(b))
	}
	nLanes := len(a) / 8
	var dist uint32
	for i := 0; i < nLanes; i++ {
		var la, lb uint64
		for k := 0; k < 8; k++ {
			la |= uint64(a[i*8+k]) << uint(k*8)
			lb |= uint64(b[i*8+k]) << uint(k*8)
		}
		dist += uint32(bits.OnesCount64(la ^ lb))
	}
	return float32(dist), nil
}

func (c *BinaryCodec) BytesPerVector(dim int) int {
	return ((dim + 63) / 64) * 8
}
