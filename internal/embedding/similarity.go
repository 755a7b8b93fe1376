package embedding

import "math"

// Cosine returns the cosine similarity of a and b in [-1, 1].
//
// Zero, empty or mismatched-length vectors score 0 rather than failing; a
// phrase that survived CheckInput never embeds to a zero vector in practice.
// Identical non-zero vectors score exactly 1.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
		}
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 || math.IsNaN(denom) {
		return 0
	}

	if same {
		return 1
	}

	return clamp(dot / denom)
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}
