package vector

import "math"

// CosineSimilarity returns the cosine of the angle between a and b.
//
// Vectors that cannot be compared score 0 instead of failing: mismatched
// lengths, empty vectors and zero-magnitude vectors all return 0, as does any
// arithmetic that produces NaN or an infinity.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

// ScoreBlob decodes a stored blob and scores it against query. A blob that
// fails to decode scores 0 and the decode error is returned alongside so the
// caller can report it.
func ScoreBlob(query []float64, blob []byte) (float64, error) {
	stored, err := Decode(blob)
	if err != nil {
		return 0, err
	}
	return CosineSimilarity(query, stored), nil
}
