// Package embeddings provides utilities for embedding vectors (L2 normalization, cosine similarity).
package embeddings

import (
	"math"
)

// NormalizeL2 scales a vector to unit length in place.
// A zero vector is left unchanged.
func NormalizeL2(vector []float64) {
	magnitude := Norm(vector)
	if magnitude == 0 {
		return
	}

	for i := range vector {
		vector[i] /= magnitude
	}
}

// Norm returns the Euclidean length of the vector.
func Norm(vector []float64) float64 {
	var sumSquares float64

	for _, v := range vector {
		sumSquares += v * v
	}

	return math.Sqrt(sumSquares)
}

// ToFloat32 narrows a vector for stores that only hold single precision (pgvector).
func ToFloat32(vector []float64) []float32 {
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(v)
	}

	return out
}

// ToFloat64 widens a single-precision vector returned by a model SDK.
func ToFloat64(vector []float32) []float64 {
	out := make([]float64, len(vector))
	for i, v := range vector {
		out[i] = float64(v)
	}

	return out
}
