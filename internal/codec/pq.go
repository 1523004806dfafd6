package codec

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/vectorlite/vectorlite/internal/kernel"
)

// PQCodec divides each vector into numSubvectors equal chunks and
// quantizes each chunk independently against an 8-bit (256-centroid)
// codebook trained with k-means++, adapted from the teacher's
// ProductQuantizer/KMeansPlusPlus (internal/quantization/product.go,
// internal/quantization/utils.go). Not named in spec.md §4.2's three
// codec kinds, but offered alongside them as a fourth, deeper
// compression tier in the same asymmetric-distance spirit.
type PQCodec struct {
	metric        kernel.Metric
	dim           int
	numSubvectors int
	subvectorDim  int

	mu        sync.RWMutex
	trained   bool
	codebooks [][][]float32 // codebooks[subvector][code] = centroid
}

const pqCodesPerSubvector = 256 // one byte per subvector code

func newPQCodec(dim int) *PQCodec {
	return &PQCodec{
		metric:        kernel.L2,
		dim:           dim,
		numSubvectors: pqSubvectorCount(dim),
	}
}

// pqSubvectorCount picks the largest divisor of dim that is at most 16,
// falling back to 1 for dimensions with no convenient divisor so Train
// never fails on an oddly-shaped collection.
func pqSubvectorCount(dim int) int {
	for m := 16; m >= 1; m-- {
		if dim%m == 0 {
			return m
		}
	}
	return 1
}

func (c *PQCodec) Kind() Kind { return PQ }

func (c *PQCodec) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.trained
}

// Train runs k-means++ independently on each subvector slice of the
// training population, mirroring ProductQuantizer.Train.
func (c *PQCodec) Train(vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("codec: no training vectors provided")
	}
	if len(vectors) < pqCodesPerSubvector {
		return fmt.Errorf("codec: need at least %d training vectors for PQ, got %d", pqCodesPerSubvector, len(vectors))
	}

	c.subvectorDim = c.dim / c.numSubvectors
	codebooks := make([][][]float32, c.numSubvectors)

	for sv := 0; sv < c.numSubvectors; sv++ {
		start := sv * c.subvectorDim
		end := start + c.subvectorDim

		subvectors := make([][]float32, len(vectors))
		for i, vec := range vectors {
			chunk := make([]float32, c.subvectorDim)
			copy(chunk, vec[start:end])
			subvectors[i] = chunk
		}

		centroids, err := kMeansPlusPlus(subvectors, pqCodesPerSubvector, c.metric, int64(sv))
		if err != nil {
			return fmt.Errorf("codec: k-means failed for subvector %d: %w", sv, err)
		}
		codebooks[sv] = centroids
	}

	c.mu.Lock()
	c.codebooks = codebooks
	c.trained = true
	c.mu.Unlock()
	return nil
}

func (c *PQCodec) Encode(vec []float32) ([]byte, error) {
	if len(vec) != c.dim {
		return nil, fmt.Errorf("codec: vector length %d does not match dim %d", len(vec), c.dim)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.trained {
		return nil, fmt.Errorf("codec: PQ codebook not yet trained")
	}

	fn := kernel.Of(c.metric)
	codes := make([]byte, c.numSubvectors)
	for sv := 0; sv < c.numSubvectors; sv++ {
		start := sv * c.subvectorDim
		end := start + c.subvectorDim
		sub := vec[start:end]

		best := float32(math.MaxFloat32)
		bestCode := 0
		for code, centroid := range c.codebooks[sv] {
			d := fn(sub, centroid)
			if d < best {
				best = d
				bestCode = code
			}
		}
		codes[sv] = byte(bestCode)
	}
	return codes, nil
}

// AsymmetricDistance precomputes a per-subvector distance table from
// the raw query once, then sums table lookups against the candidate's
// codes — ComputeDistanceTable + AsymmetricDistance collapsed into one
// call, since vectorlite's Codec interface scores one candidate at a
// time rather than exposing the table to the caller.
func (c *PQCodec) AsymmetricDistance(query []float32, encoded []byte) (float32, error) {
	if len(query) != c.dim {
		return 0, fmt.Errorf("codec: query length %d does not match dim %d", len(query), c.dim)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.trained {
		return 0, fmt.Errorf("codec: PQ codebook not yet trained")
	}
	if len(encoded) != c.numSubvectors {
		return 0, fmt.Errorf("codec: encoded length %d does not match numSubvectors %d", len(encoded), c.numSubvectors)
	}

	fn := kernel.Of(c.metric)
	var total float32
	for sv := 0; sv < c.numSubvectors; sv++ {
		start := sv * c.subvectorDim
		end := start + c.subvectorDim
		querySub := query[start:end]

		code := encoded[sv]
		if int(code) >= len(c.codebooks[sv]) {
			return 0, fmt.Errorf("codec: code %d out of range for subvector %d", code, sv)
		}
		total += fn(querySub, c.codebooks[sv][code])
	}
	return total, nil
}

// PairDistance sums centroid-to-centroid distances per subvector,
// adapted from ProductQuantizer.SymmetricDistance in product.go —
// slower than the asymmetric path but avoids decoding either side
// back to a full f32 vector.
func (c *PQCodec) PairDistance(a, b []byte) (float32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.trained {
		return 0, fmt.Errorf("codec: PQ codebook not yet trained")
	}
	if len(a) != c.numSubvectors || len(b) != c.numSubvectors {
		return 0, fmt.Errorf("codec: encoded length mismatch for PQ pair distance")
	}

	fn := kernel.Of(c.metric)
	var total float32
	for sv := 0; sv < c.numSubvectors; sv++ {
		codeA, codeB := a[sv], b[sv]
		book := c.codebooks[sv]
		if int(codeA) >= len(book) || int(codeB) >= len(book) {
			return 0, fmt.Errorf("codec: code out of range for subvector %d", sv)
		}
		total += fn(book[codeA], book[codeB])
	}
	return total, nil
}

func (c *PQCodec) BytesPerVector(dim int) int {
	return pqSubvectorCount(dim)
}

// Codebook returns the trained per-subvector centroids for manifest
// persistence, mirroring SQ8Codec.Codebook.
func (c *PQCodec) Codebook() ([][][]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.trained {
		return nil, false
	}
	out := make([][][]float32, len(c.codebooks))
	for sv, book := range c.codebooks {
		centroids := make([][]float32, len(book))
		for i, centroid := range book {
			centroids[i] = append([]float32(nil), centroid...)
		}
		out[sv] = centroids
	}
	return out, true
}

// LoadCodebook restores a previously trained codebook from a manifest.
func (c *PQCodec) LoadCodebook(codebooks [][][]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codebooks = codebooks
	if c.numSubvectors > 0 {
		c.subvectorDim = c.dim / c.numSubvectors
	}
	c.trained = true
}

// kMeansPlusPlus adapts quantization.KMeansPlusPlus: k-means++
// seeding followed by fixed-iteration Lloyd refinement. seed derives a
// per-subvector RNG so training is deterministic given the same
// vectors and subvector index.
func kMeansPlusPlus(vectors [][]float32, k int, metric kernel.Metric, seed int64) ([][]float32, error) {
	if len(vectors) < k {
		return nil, fmt.Errorf("not enough vectors (%d) for %d clusters", len(vectors), k)
	}
	dim := len(vectors[0])
	fn := kernel.Of(metric)
	r := rand.New(rand.NewSource(seed))

	centroids := make([][]float32, k)
	first := r.Intn(len(vectors))
	centroids[0] = append([]float32(nil), vectors[first]...)

	for cIdx := 1; cIdx < k; cIdx++ {
		distances := make([]float32, len(vectors))
		var totalDist float32
		for i, vec := range vectors {
			minDist := float32(math.MaxFloat32)
			for j := 0; j < cIdx; j++ {
				if d := fn(vec, centroids[j]); d < minDist {
					minDist = d
				}
			}
			distances[i] = minDist * minDist
			totalDist += distances[i]
		}

		if totalDist > 0 {
			target := r.Float32() * totalDist
			var cumulative float32
			chosen := len(vectors) - 1
			for i, d := range distances {
				cumulative += d
				if cumulative >= target {
					chosen = i
					break
				}
			}
			centroids[cIdx] = append([]float32(nil), vectors[chosen]...)
		} else {
			idx := r.Intn(len(vectors))
			centroids[cIdx] = append([]float32(nil), vectors[idx]...)
		}
	}

	const iterations = 10
	for iter := 0; iter < iterations; iter++ {
		clusters := make([][][]float32, k)
		for _, vec := range vectors {
			minDist := float32(math.MaxFloat32)
			minCluster := 0
			for c, centroid := range centroids {
				if d := fn(vec, centroid); d < minDist {
					minDist = d
					minCluster = c
				}
			}
			clusters[minCluster] = append(clusters[minCluster], vec)
		}

		converged := true
		for c := range centroids {
			if len(clusters[c]) == 0 {
				continue
			}
			newCentroid := make([]float32, dim)
			for _, vec := range clusters[c] {
				for d := 0; d < dim; d++ {
					newCentroid[d] += vec[d]
				}
			}
			for d := 0; d < dim; d++ {
				newCentroid[d] /= float32(len(clusters[c]))
			}
			if kernel.L2F32(centroids[c], newCentroid) > 1e-6 {
				converged = false
			}
			centroids[c] = newCentroid
		}
		if converged {
			break
		}
	}

	return centroids, nil
}
