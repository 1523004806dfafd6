package codec

import (
	"math/rand"
	"testing"

	"github.com/vectorlite/vectorlite/internal/kernel"
)

func generateRandomVectors(n, dim int) [][]float32 {
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		vectors[i] = make([]float32, dim)
		for j := 0; j < dim; j++ {
			vectors[i][j] = rand.Float32()
		}
	}
	return vectors
}

func TestNoneCodecRoundTrip(t *testing.T) {
	c, err := New(None, kernel.L2, 8, PerVector)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vec := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	encoded, err := c.Encode(vec)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got, want := len(encoded), c.BytesPerVector(8); got != want {
		t.Fatalf("BytesPerVector mismatch: got %d want %d", got, want)
	}
	dist, err := c.AsymmetricDistance(vec, encoded)
	if err != nil {
		t.Fatalf("AsymmetricDistance: %v", err)
	}
	if dist != 0 {
		t.Errorf("self-distance = %v, expected 0", dist)
	}
}

func TestSQ8PerVectorRoundTrip(t *testing.T) {
	c, err := New(SQ8, kernel.L2, 16, PerVector)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !c.Trained() {
		t.Fatalf("PerVector SQ8 should be trained without a fit step")
	}

	vec := make([]float32, 16)
	for i := range vec {
		vec[i] = float32(i) - 8
	}
	encoded, err := c.Encode(vec)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got, want := len(encoded), c.BytesPerVector(16); got != want {
		t.Fatalf("BytesPerVector mismatch: got %d want %d", got, want)
	}

	dist, err := c.AsymmetricDistance(vec, encoded)
	if err != nil {
		t.Fatalf("AsymmetricDistance: %v", err)
	}
	if dist > 0.01 {
		t.Errorf("self-distance too large after quantization: %v", dist)
	}
}

func TestSQ8PerDimensionRequiresTraining(t *testing.T) {
	c, err := New(SQ8, kernel.Cosine, 8, PerDimension)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Trained() {
		t.Fatalf("PerDimension SQ8 should not be trained before a fit step")
	}

	vec := make([]float32, 8)
	if _, err := c.Encode(vec); err == nil {
		t.Fatalf("Encode before Train should fail")
	}

	trainable, ok := c.(Trainable)
	if !ok {
		t.Fatalf("SQ8 PerDimension codec should implement Trainable")
	}
	if err := trainable.Train(generateRandomVectors(50, 8)); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if !c.Trained() {
		t.Fatalf("expected Trained() true after Train")
	}
	if _, err := c.Encode(vec); err != nil {
		t.Fatalf("Encode after Train: %v", err)
	}
}

func TestSQ8CodebookRoundTrip(t *testing.T) {
	c, err := New(SQ8, kernel.L2, 4, PerDimension)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sq8 := c.(*SQ8Codec)
	if err := sq8.Train(generateRandomVectors(20, 4)); err != nil {
		t.Fatalf("Train: %v", err)
	}
	min, max, ok := sq8.Codebook()
	if !ok {
		t.Fatalf("expected codebook after Train")
	}

	restored := newSQ8Codec(kernel.L2, 4, PerDimension)
	restored.LoadCodebook(min, max)
	if !restored.Trained() {
		t.Fatalf("restored codec should report trained")
	}

	vec := []float32{0.1, 0.2, 0.3, 0.4}
	a, err := sq8.Encode(vec)
	if err != nil {
		t.Fatalf("Encode original: %v", err)
	}
	b, err := restored.Encode(vec)
	if err != nil {
		t.Fatalf("Encode restored: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("restored codebook produced different code at %d: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestBinaryCodecHammingSelfZero(t *testing.T) {
	c, err := New(Binary, kernel.L2, 128, PerVector)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vec := generateRandomVectors(1, 128)[0]
	encoded, err := c.Encode(vec)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got, want := len(encoded), c.BytesPerVector(128); got != want {
		t.Fatalf("BytesPerVector mismatch: got %d want %d", got, want)
	}
	dist, err := c.AsymmetricDistance(vec, encoded)
	if err != nil {
		t.Fatalf("AsymmetricDistance: %v", err)
	}
	if dist != 0 {
		t.Errorf("self Hamming distance = %v, expected 0", dist)
	}
}

func TestBinaryCodecOppositeVectorsDisagree(t *testing.T) {
	c, err := New(Binary, kernel.L2, 64, PerVector)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vec := make([]float32, 64)
	for i := range vec {
		vec[i] = 1
	}
	neg := make([]float32, 64)
	for i := range neg {
		neg[i] = -1
	}
	encoded, err := c.Encode(neg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dist, err := c.AsymmetricDistance(vec, encoded)
	if err != nil {
		t.Fatalf("AsymmetricDistance: %v", err)
	}
	if dist != 64 {
		t.Errorf("opposite-vector Hamming distance = %v, expected 64", dist)
	}
}

func TestPQCodecTrainAndEncode(t *testing.T) {
	c, err := New(PQ, kernel.L2, 32, PerVector)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Trained() {
		t.Fatalf("PQ codec should not be trained before Train")
	}

	trainable, ok := c.(Trainable)
	if !ok {
		t.Fatalf("PQ codec should implement Trainable")
	}
	vectors := generateRandomVectors(300, 32)
	if err := trainable.Train(vectors); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if !c.Trained() {
		t.Fatalf("expected Trained() true after Train")
	}

	testVector := vectors[0]
	encoded, err := c.Encode(testVector)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got, want := len(encoded), c.BytesPerVector(32); got != want {
		t.Fatalf("BytesPerVector mismatch: got %d want %d", got, want)
	}

	// Distance from a trained vector to its own encoding should rank
	// closer than to an unrelated vector's encoding.
	other := vectors[1]
	otherEncoded, err := c.Encode(other)
	if err != nil {
		t.Fatalf("Encode other: %v", err)
	}
	distSelf, err := c.AsymmetricDistance(testVector, encoded)
	if err != nil {
		t.Fatalf("AsymmetricDistance self: %v", err)
	}
	distOther, err := c.AsymmetricDistance(testVector, otherEncoded)
	if err != nil {
		t.Fatalf("AsymmetricDistance other: %v", err)
	}
	if distSelf > distOther {
		t.Errorf("self-encoded distance %v should not exceed cross distance %v", distSelf, distOther)
	}
}

func TestPairDistanceSelfIsZero(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		dim  int
	}{
		{"none", None, 8},
		{"sq8-per-vector", SQ8, 16},
		{"binary", Binary, 64},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(tc.kind, kernel.L2, tc.dim, PerVector)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			scorer, ok := c.(PairScorer)
			if !ok {
				t.Fatalf("%v codec should implement PairDistance", tc.kind)
			}
			vec := generateRandomVectors(1, tc.dim)[0]
			encoded, err := c.Encode(vec)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			dist, err := scorer.PairDistance(encoded, encoded)
			if err != nil {
				t.Fatalf("PairDistance: %v", err)
			}
			if dist > 1e-3 {
				t.Errorf("self PairDistance = %v, expected ~0", dist)
			}
		})
	}
}

func TestPQCodecRejectsUntrainedEncode(t *testing.T) {
	c, err := New(PQ, kernel.L2, 16, PerVector)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Encode(make([]float32, 16)); err == nil {
		t.Fatalf("Encode before Train should fail")
	}
}
