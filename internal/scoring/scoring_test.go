package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulvian/devstream/pkg/types"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors", func(t *testing.T) {
		vectors := [][]float32{
			{1, 0, 0},
			{0.3, -0.2, 0.9, 4},
			{-5, -5},
		}
		for _, v := range vectors {
			sim, err := CosineSimilarity(v, v)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, sim, 1e-6)
		}
	})

	t.Run("orthogonal vectors", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{1, 0, 0}, []float32{0, 1, 0})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, sim, 1e-9)
	})

	t.Run("opposite vectors", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{1, 2}, []float32{-1, -2})
		require.NoError(t, err)
		assert.InDelta(t, -1.0, sim, 1e-6)
	})

	t.Run("zero magnitude returns zero", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, 0.0, sim)
	})

	t.Run("empty vectors", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{}, []float32{})
		require.NoError(t, err)
		assert.Equal(t, 0.0, sim)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrDimensionMismatch)
	})
}

func TestNormalizeScores(t *testing.T) {
	tests := []struct {
		name     string
		input    []float64
		expected []float64
	}{
		{name: "empty", input: []float64{}, expected: []float64{}},
		{name: "nil", input: nil, expected: []float64{}},
		{name: "single", input: []float64{5}, expected: []float64{1.0}},
		{name: "all zero", input: []float64{0, 0, 0}, expected: []float64{0, 0, 0}},
		{name: "divides by max", input: []float64{2, 4, 1}, expected: []float64{0.5, 1, 0.25}},
		{name: "negative clamped", input: []float64{-1, 2}, expected: []float64{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeScores(tt.input)
			require.Len(t, got, len(tt.expected))
			for i := range got {
				assert.InDelta(t, tt.expected[i], got[i], 1e-9)
			}
		})
	}

	t.Run("output always in unit interval", func(t *testing.T) {
		inputs := [][]float64{
			{0.1, 12.5, 3, 7},
			{-3, -2, -1},
			{math.SmallestNonzeroFloat64, 1},
			{1e9, 1e-9},
		}
		for _, in := range inputs {
			for _, v := range NormalizeScores(in) {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		}
	})
}

func TestCombineScores(t *testing.T) {
	t.Run("weighted average", func(t *testing.T) {
		w := Weights{Semantic: 1.0, Keyword: 0.8, FullText: 0.6}
		got, err := CombineScores([]float64{1, 0}, []float64{0.5, 0}, []float64{0.25, 1}, w)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.InDelta(t, (1.0+0.4+0.15)/2.4, got[0], 1e-9)
		assert.InDelta(t, 0.6/2.4, got[1], 1e-9)
	})

	t.Run("zero weight strategy contributes nothing", func(t *testing.T) {
		w := Weights{Semantic: 1.0}
		got, err := CombineScores([]float64{0}, []float64{1}, []float64{1}, w)
		require.NoError(t, err)
		assert.Equal(t, []float64{0}, got)
	})

	t.Run("weights need not sum to one", func(t *testing.T) {
		w := Weights{Semantic: 5, Keyword: 5, FullText: 5}
		got, err := CombineScores([]float64{1}, []float64{1}, []float64{1}, w)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, got[0], 1e-9)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := CombineScores([]float64{1, 2}, []float64{1}, []float64{1, 2}, Weights{Semantic: 1})
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrScoreLengthMismatch)
	})

	t.Run("all zero weights yield zeros", func(t *testing.T) {
		got, err := CombineScores([]float64{1}, []float64{1}, []float64{1}, Weights{})
		require.NoError(t, err)
		assert.Equal(t, []float64{0}, got)
	})
}
