package embeddings

import "math"

// NoSimilarity is returned by CosineSimilarity when either vector is empty or has zero norm.
const NoSimilarity = -1.0

// CosineSimilarity returns dot(a,b) / (|a| |b|) over the first min(len(a), len(b)) elements.
func CosineSimilarity(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return NoSimilarity
	}

	var dot, normA, normB float64

	for i := range n {
		x, y := a[i], b[i]
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return NoSimilarity
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// IsFinite reports whether score is neither NaN nor infinite.
func IsFinite(score float64) bool {
	return !math.IsNaN(score) && !math.IsInf(score, 0)
}
