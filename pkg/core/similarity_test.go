package core

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		vectorA  []float32
		vectorB  []float32
		expected float64
		epsilon  float64
	}{
		{
			name:     "identical vectors",
			vectorA:  []float32{1.0, 0.0, 0.0},
			vectorB:  []float32{1.0, 0.0, 0.0},
			expected: 1.0,
			epsilon:  1e-9,
		},
		{
			name:     "orthogonal vectors",
			vectorA:  []float32{1.0, 0.0},
			vectorB:  []float32{0.0, 1.0},
			expected: 0.0,
			epsilon:  1e-9,
		},
		{
			name:     "opposite vectors",
			vectorA:  []float32{1.0, 0.0},
			vectorB:  []float32{-1.0, 0.0},
			expected: -1.0,
			epsilon:  1e-9,
		},
		{
			name:     "zero vector yields zero",
			vectorA:  []float32{0.0, 0.0},
			vectorB:  []float32{1.0, 2.0},
			expected: 0.0,
			epsilon:  1e-9,
		},
		{
			name:     "length mismatch yields sentinel",
			vectorA:  []float32{1.0, 2.0, 3.0},
			vectorB:  []float32{1.0, 2.0},
			expected: ScoreMismatch,
			epsilon:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.vectorA, tt.vectorB)
			if math.Abs(got-tt.expected) > tt.epsilon {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float32{0.3, -1.2, 4.5, 0.01}
	b := []float32{2.4, 0.9, -0.5, 1.1}

	ab := CosineSimilarity(a, b)
	ba := CosineSimilarity(b, a)
	if math.Abs(ab-ba) > 1e-12 {
		t.Errorf("cosine not symmetric: %v vs %v", ab, ba)
	}
}

func TestCosineSimilaritySelf(t *testing.T) {
	a := []float32{0.5, 0.25, -0.75}
	if got := CosineSimilarity(a, a); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("CosineSimilarity(a, a) = %v, want 1.0", got)
	}
}

func TestCosineSimilarityNeverPanicsOnMismatch(t *testing.T) {
	if got := CosineSimilarity([]float32{}, []float32{1}); got != ScoreMismatch {
		t.Errorf("CosineSimilarity() = %v, want sentinel %v", got, ScoreMismatch)
	}
}

func TestDotProduct(t *testing.T) {
	if got := DotProduct([]float32{1, 2, 3}, []float32{4, 5, 6}); got != 32 {
		t.Errorf("DotProduct() = %v, want 32", got)
	}
	if got := DotProduct([]float32{1}, []float32{1, 2}); got != ScoreMismatch {
		t.Errorf("DotProduct() mismatch = %v, want sentinel", got)
	}
}

func TestNorm(t *testing.T) {
	if got := Norm([]float32{3, 4}); math.Abs(got-5.0) > 1e-9 {
		t.Errorf("Norm() = %v, want 5", got)
	}
	if got := Norm(nil); got != 0 {
		t.Errorf("Norm(nil) = %v, want 0", got)
	}
}
