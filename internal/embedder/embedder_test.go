package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulvian/devstream/pkg/types"
)

func TestComputeHash(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "empty string",
			text: "",
			want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name: "simple text",
			text: "hello world",
			want: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeHash(tt.text))
		})
	}

	t.Run("whitespace is significant", func(t *testing.T) {
		assert.NotEqual(t, ComputeHash("auth flow"), ComputeHash("auth flow "))
		assert.NotEqual(t, ComputeHash("Auth flow"), ComputeHash("auth flow"))
	})
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "test text"}))
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "test", Model: "custom-model"}))
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
}

func TestValidateBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     BatchEmbeddingRequest
		wantErr error
	}{
		{name: "valid", req: BatchEmbeddingRequest{Texts: []string{"a", "b"}}},
		{name: "empty batch", req: BatchEmbeddingRequest{}, wantErr: ErrInvalidInput},
		{name: "empty text in batch", req: BatchEmbeddingRequest{Texts: []string{"a", ""}}, wantErr: ErrInvalidInput},
		{name: "too large", req: BatchEmbeddingRequest{Texts: make([]string, MaxBatchSize+1)}, wantErr: ErrBatchTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(tt.req)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNormalizeVector(t *testing.T) {
	t.Run("unit length", func(t *testing.T) {
		got := NormalizeVector([]float32{3, 4})
		assert.InDelta(t, 0.6, got[0], 1e-6)
		assert.InDelta(t, 0.8, got[1], 1e-6)
	})

	t.Run("zero vector unchanged", func(t *testing.T) {
		v := []float32{0, 0, 0}
		assert.Equal(t, v, NormalizeVector(v))
	})
}

func TestCache(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		cache := NewCache(10)
		_, ok := cache.Get("missing")
		assert.False(t, ok)

		cache.Put("auth flow", []float32{0.1, 0.2, 0.3})
		got, ok := cache.Get("auth flow")
		require.True(t, ok)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, got)

		stats := cache.Stats()
		assert.Equal(t, uint64(1), stats.Hits)
		assert.Equal(t, uint64(1), stats.Misses)
		assert.Equal(t, 1, stats.Size)
		assert.Equal(t, 10, stats.Capacity)
		assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		cache := NewCache(3)
		for i := 0; i < 5; i++ {
			cache.Put(fmt.Sprintf("text-%d", i), []float32{float32(i)})
		}

		assert.Equal(t, 3, cache.Len())
		assert.Equal(t, uint64(2), cache.Stats().Evictions)
		assert.False(t, cache.Contains("text-0"))
		assert.False(t, cache.Contains("text-1"))
		for i := 2; i < 5; i++ {
			assert.True(t, cache.Contains(fmt.Sprintf("text-%d", i)))
		}
	})

	t.Run("get promotes recency", func(t *testing.T) {
		cache := NewCache(2)
		cache.Put("a", []float32{1})
		cache.Put("b", []float32{2})
		_, ok := cache.Get("a")
		require.True(t, ok)
		cache.Put("c", []float32{3})

		assert.True(t, cache.Contains("a"))
		assert.False(t, cache.Contains("b"))
	})

	t.Run("values are copied", func(t *testing.T) {
		cache := NewCache(2)
		in := []float32{1, 2}
		cache.Put("x", in)
		in[0] = 99

		out, ok := cache.Get("x")
		require.True(t, ok)
		assert.Equal(t, float32(1), out[0])

		out[1] = 42
		again, _ := cache.Get("x")
		assert.Equal(t, float32(2), again[1])
	})

	t.Run("overwrite same text", func(t *testing.T) {
		cache := NewCache(2)
		cache.Put("x", []float32{1})
		cache.Put("x", []float32{2})
		got, _ := cache.Get("x")
		assert.Equal(t, []float32{2}, got)
		assert.Equal(t, 1, cache.Len())
		assert.Equal(t, uint64(0), cache.Stats().Evictions)
	})

	t.Run("non-positive capacity uses default", func(t *testing.T) {
		assert.Equal(t, DefaultCacheSize, NewCache(0).Stats().Capacity)
	})

	t.Run("purge", func(t *testing.T) {
		cache := NewCache(4)
		cache.Put("a", []float32{1})
		cache.Purge()
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := NewCache(50)
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					key := fmt.Sprintf("k-%d", (g*i)%80)
					cache.Put(key, []float32{float32(i)})
					_, _ = cache.Get(key)
				}
			}(g)
		}
		wg.Wait()

		stats := cache.Stats()
		assert.LessOrEqual(t, stats.Size, 50)
		assert.Equal(t, uint64(8*200), stats.Hits+stats.Misses)
	})
}

func TestLocalProvider(t *testing.T) {
	provider, err := NewLocalProvider(0)
	require.NoError(t, err)
	defer provider.Close()

	assert.Equal(t, ProviderLocal, provider.Provider())
	assert.Equal(t, LocalDimension, provider.Dimension())

	ctx := context.Background()

	t.Run("deterministic unit vectors", func(t *testing.T) {
		a, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "database migration"})
		require.NoError(t, err)
		b, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "database migration"})
		require.NoError(t, err)

		assert.Equal(t, a.Vector, b.Vector)
		assert.Len(t, a.Vector, LocalDimension)
		assert.Equal(t, ComputeHash("database migration"), a.Hash)

		var sum float64
		for _, v := range a.Vector {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4)
	})

	t.Run("different texts differ", func(t *testing.T) {
		a, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "alpha"})
		require.NoError(t, err)
		b, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "beta"})
		require.NoError(t, err)
		assert.NotEqual(t, a.Vector, b.Vector)
	})

	t.Run("batch preserves order", func(t *testing.T) {
		resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"one", "two"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 2)
		assert.Equal(t, ComputeHash("one"), resp.Embeddings[0].Hash)
		assert.Equal(t, ComputeHash("two"), resp.Embeddings[1].Hash)
	})

	t.Run("empty text rejected", func(t *testing.T) {
		_, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{})
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := provider.GenerateEmbedding(cctx, EmbeddingRequest{Text: "x"})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("custom dimension", func(t *testing.T) {
		p, err := NewLocalProvider(70)
		require.NoError(t, err)
		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.NoError(t, err)
		assert.Len(t, emb.Vector, 70)
	})
}

func TestWrapProviderError(t *testing.T) {
	assert.NoError(t, wrapProviderError(ProviderJina, nil))

	err := wrapProviderError(ProviderJina, context.DeadlineExceeded)
	var embErr *types.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, ProviderJina, embErr.Provider)
	assert.True(t, embErr.Timeout)
	assert.ErrorIs(t, err, ErrProviderFailed)

	// Already wrapped errors pass through unchanged
	assert.Same(t, err, wrapProviderError(ProviderOpenAI, err))
}
