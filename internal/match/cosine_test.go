package match

import (
	"math"
	"testing"
)

func TestCosineSimilarity_Identical(t *testing.T) {
	a := []float32{0.5, 0.3, 0.2}
	sim := CosineSimilarity(a, a)
	if math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("expected similarity 1.0 for identical vectors, got %f", sim)
	}
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	sim := CosineSimilarity(a, b)
	if math.Abs(sim) > 1e-9 {
		t.Errorf("expected similarity 0 for orthogonal vectors, got %f", sim)
	}
}

func TestCosineSimilarity_Opposite(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	sim := CosineSimilarity(a, b)
	if math.Abs(sim+1.0) > 1e-9 {
		t.Errorf("expected similarity -1 for opposite vectors, got %f", sim)
	}
}

func TestCosineSimilarity_Symmetric(t *testing.T) {
	vectors := [][]float32{
		{0.1, 0.9, 0.3},
		{-0.4, 0.2, 0.8},
		{1, 1, 1},
		{0.001, 0, 0.999},
	}

	for i, a := range vectors {
		for j, b := range vectors {
			ab := CosineSimilarity(a, b)
			ba := CosineSimilarity(b, a)
			if ab != ba {
				t.Errorf("similarity not symmetric for vectors %d and %d: %f vs %f", i, j, ab, ba)
			}
		}
	}
}

func TestCosineSimilarity_ZeroNorm(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}

	if sim := CosineSimilarity(a, b); sim != 0 {
		t.Errorf("expected 0 for zero-norm first vector, got %f", sim)
	}
	if sim := CosineSimilarity(b, a); sim != 0 {
		t.Errorf("expected 0 for zero-norm second vector, got %f", sim)
	}
	if sim := CosineSimilarity(a, a); sim != 0 {
		t.Errorf("expected 0 for two zero-norm vectors, got %f", sim)
	}
}

func TestCosineSimilarity_MismatchedLengths(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{1, 2, 3}

	if sim := CosineSimilarity(a, b); sim != 0 {
		t.Errorf("expected 0 for mismatched lengths, got %f", sim)
	}
}

func TestCosineSimilarity_EmptyVectors(t *testing.T) {
	if sim := CosineSimilarity(nil, nil); sim != 0 {
		t.Errorf("expected 0 for empty vectors, got %f", sim)
	}
}

func TestCosineSimilarity_Clamped(t *testing.T) {
	// Scaled copies of the same vector can drift past 1.0 in floating
	// point; the result must stay clamped.
	a := []float32{0.1234567, 0.7654321, 0.3141592}
	b := []float32{1.234567, 7.654321, 3.141592}

	sim := CosineSimilarity(a, b)
	if sim > 1.0 {
		t.Errorf("similarity exceeded 1.0: %f", sim)
	}
	if sim < 0.999 {
		t.Errorf("expected near-1 similarity for scaled vectors, got %f", sim)
	}
}
