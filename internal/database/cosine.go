package database

import "math"

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 (opposite) and 1 (identical), clamped to
// handle floating point errors. Mismatched lengths and zero vectors
// yield -1, the worst possible score.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return -1.0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return similarity
}

// CosineDistance computes the cosine distance between two vectors,
// defined as 1 - cosine similarity. Range [0, 2], lower = closer.
// The service matches on similarity end-to-end; this helper exists for
// interoperating with distance-based components (pgvector's <=> operator,
// the HNSW index).
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}
