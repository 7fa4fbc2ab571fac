// Package scoring implements the numeric primitives of hybrid ranking:
// cosine similarity, per-strategy score normalization and weighted fusion.
//
// All functions are pure and safe for concurrent use.
package scoring

import (
	"fmt"
	"math"

	"github.com/fulvian/devstream/pkg/types"
)

// Weights holds the per-strategy fusion weights
type Weights struct {
	Semantic float64
	Keyword  float64
	FullText float64
}

// Sum returns the total of the three weights
func (w Weights) Sum() float64 {
	return w.Semantic + w.Keyword + w.FullText
}

// WeightsFromQuery extracts fusion weights from a search query
func WeightsFromQuery(q types.SearchQuery) Weights {
	return Weights{
		Semantic: q.SemanticWeight,
		Keyword:  q.KeywordWeight,
		FullText: q.FullTextWeight,
	}
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 when either vector has zero magnitude.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", types.ErrDimensionMismatch, len(a), len(b))
	}

	var dotProduct, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dotProduct += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// NormalizeScores scales raw scores into [0, 1] by dividing by the maximum.
// Negative scores are clamped to 0 first; an all-zero input stays all zero,
// so a single positive score always normalizes to 1.
func NormalizeScores(scores []float64) []float64 {
	normalized := make([]float64, len(scores))
	if len(scores) == 0 {
		return normalized
	}

	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	if maxScore == 0 {
		return normalized
	}

	for i, s := range scores {
		if s <= 0 {
			continue
		}
		normalized[i] = s / maxScore
	}
	return normalized
}

// CombineScores fuses three aligned, already normalized score lists into one.
// Each output value is the weighted sum divided by the weight sum, so it stays
// in [0, 1] for any non-negative weights.
func CombineScores(semantic, keyword, fullText []float64, w Weights) ([]float64, error) {
	if len(semantic) != len(keyword) || len(keyword) != len(fullText) {
		return nil, fmt.Errorf("%w: semantic=%d keyword=%d full_text=%d",
			types.ErrScoreLengthMismatch, len(semantic), len(keyword), len(fullText))
	}

	combined := make([]float64, len(semantic))
	total := w.Sum()
	if total <= 0 {
		return combined, nil
	}

	for i := range combined {
		sum := semantic[i]*w.Semantic + keyword[i]*w.Keyword + fullText[i]*w.FullText
		combined[i] = clamp01(sum / total)
	}
	return combined, nil
}

// clamp01 guards against floating point drift just outside [0, 1]
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
