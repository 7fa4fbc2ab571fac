package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulvian/devstream/internal/retry"
	"github.com/fulvian/devstream/pkg/types"
)

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Multiplier:  2,
	}
}

func jinaHandler(t *testing.T, calls *int32, failFirst int32, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if n <= failFirst {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"detail":"nope"}`))
			return
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Return data out of order to check index handling
		data := make([]map[string]interface{}, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]interface{}{
				"index":     i,
				"embedding": []float32{float32(i), 1},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": req.Model,
			"data":  data,
		})
	}
}

func TestJinaProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("batch embedding", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(jinaHandler(t, &calls, 0, 0))
		defer server.Close()

		provider, err := NewJinaProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry()})
		require.NoError(t, err)
		defer provider.Close()

		resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "b", "c"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 3)
		for i, emb := range resp.Embeddings {
			assert.Equal(t, float32(i), emb.Vector[0])
		}
		assert.Equal(t, ComputeHash("b"), resp.Embeddings[1].Hash)
		assert.Equal(t, ProviderJina, resp.Provider)
		assert.Equal(t, DefaultJinaModel, resp.Model)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(jinaHandler(t, &calls, 2, http.StatusServiceUnavailable))
		defer server.Close()

		provider, err := NewJinaProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry()})
		require.NoError(t, err)

		emb, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		require.NoError(t, err)
		assert.Len(t, emb.Vector, 2)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("retries rate limiting", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(jinaHandler(t, &calls, 1, http.StatusTooManyRequests))
		defer server.Close()

		provider, err := NewJinaProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry()})
		require.NoError(t, err)

		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(jinaHandler(t, &calls, 10, http.StatusUnauthorized))
		defer server.Close()

		provider, err := NewJinaProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry()})
		require.NoError(t, err)

		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

		var embErr *types.EmbeddingError
		require.True(t, errors.As(err, &embErr))
		assert.Equal(t, ProviderJina, embErr.Provider)
		assert.False(t, embErr.Timeout)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(jinaHandler(t, &calls, 10, http.StatusInternalServerError))
		defer server.Close()

		provider, err := NewJinaProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry()})
		require.NoError(t, err)

		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("timeout is flagged", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
		}))
		defer server.Close()

		provider, err := NewJinaProvider(ProviderOptions{
			APIKey:  "test-key",
			BaseURL: server.URL,
			Timeout: 10 * time.Millisecond,
			Retry:   retry.Config{MaxAttempts: 1},
		})
		require.NoError(t, err)

		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "slow"})
		var embErr *types.EmbeddingError
		require.True(t, errors.As(err, &embErr))
		assert.True(t, embErr.Timeout)
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv(EnvJinaAPIKey, "")
		_, err := NewJinaProvider(ProviderOptions{})
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("provider metadata", func(t *testing.T) {
		provider, err := NewJinaProvider(ProviderOptions{APIKey: "test-key"})
		require.NoError(t, err)
		assert.Equal(t, ProviderJina, provider.Provider())
		assert.Equal(t, DefaultJinaModel, provider.Model())
		assert.Equal(t, JinaDimension, provider.Dimension())
	})
}

func TestOllamaProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("embeds through api/embed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/embed", r.URL.Path)
			assert.Empty(t, r.Header.Get("Authorization"))

			var req struct {
				Model string   `json:"model"`
				Input []string `json:"input"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, DefaultOllamaModel, req.Model)

			out := make([][]float32, len(req.Input))
			for i := range out {
				out[i] = []float32{0.5, float32(i)}
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"model":      req.Model,
				"embeddings": out,
			})
		}))
		defer server.Close()

		provider, err := NewOllamaProvider(ProviderOptions{BaseURL: server.URL + "/", Retry: fastRetry()})
		require.NoError(t, err)

		resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"x", "y"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 2)
		assert.Equal(t, []float32{0.5, 1}, resp.Embeddings[1].Vector)
		assert.Equal(t, ProviderOllama, resp.Provider)
	})

	t.Run("count mismatch is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": [][]float32{}})
		}))
		defer server.Close()

		provider, err := NewOllamaProvider(ProviderOptions{BaseURL: server.URL, Retry: retry.Config{MaxAttempts: 1}})
		require.NoError(t, err)

		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected 1 embeddings")
	})
}

func TestOpenAIProvider(t *testing.T) {
	t.Run("embeds via sdk", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/embeddings", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"object": "list",
				"model": "text-embedding-3-small",
				"data": [{"object": "embedding", "index": 0, "embedding": [0.25, -0.5]}],
				"usage": {"prompt_tokens": 1, "total_tokens": 1}
			}`))
		}))
		defer server.Close()

		provider, err := NewOpenAIProvider(ProviderOptions{APIKey: "sk-test", BaseURL: server.URL, Retry: fastRetry()})
		require.NoError(t, err)

		emb, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
		require.NoError(t, err)
		assert.Equal(t, []float32{0.25, -0.5}, emb.Vector)
		assert.Equal(t, ProviderOpenAI, emb.Provider)
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv(EnvOpenAIAPIKey, "")
		_, err := NewOpenAIProvider(ProviderOptions{})
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})
}
