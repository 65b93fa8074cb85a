// Package embeddings provides utilities for embedding vectors (e.g. L2 normalization).
package embeddings

import (
	"math"
)

// NormalizeL2 scales a raw embedding vector to unit length in-place.
// Cosine distance over unit vectors is what the similarity index assumes,
// so every vector is normalized once before it is stored or used as a query.
func NormalizeL2(vector []float32) {
	var sumSquares float64

	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	// A real embedding is never all zeros, but avoid dividing by zero anyway.
	if sumSquares == 0 {
		return
	}

	magnitude := math.Sqrt(sumSquares)

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}

// CosineSimilarity returns the cosine similarity of two vectors of equal
// length. Used by tests; the production index computes this inside Postgres
// via the <=> operator.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
