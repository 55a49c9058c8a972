package core

import "math"

// ScoreMismatch is the sentinel returned by CosineSimilarity when the two
// vectors have different lengths. It is a signal, not a ranking value:
// callers must not trust a score of exactly -1 from mismatched dimensions.
const ScoreMismatch = -1.0

// SimilarityFunc defines a function that calculates similarity between two vectors
type SimilarityFunc func(a, b []float32) float64

// CosineSimilarity calculates cosine similarity between two vectors.
// Returns a value between -1 and 1 where 1 means identical direction.
// Mismatched lengths return ScoreMismatch; a zero-norm vector yields 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return ScoreMismatch
	}

	var dotProduct, normA, normB float64

	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	// Handle zero vectors
	if normA == 0.0 || normB == 0.0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// DotProduct calculates the dot product between two vectors. Mismatched
// lengths return ScoreMismatch.
func DotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return ScoreMismatch
	}

	var result float64
	for i := 0; i < len(a); i++ {
		result += float64(a[i]) * float64(b[i])
	}

	return result
}

// Norm calculates the Euclidean norm of a vector.
func Norm(a []float32) float64 {
	var sum float64
	for i := 0; i < len(a); i++ {
		sum += float64(a[i]) * float64(a[i])
	}
	return math.Sqrt(sum)
}
