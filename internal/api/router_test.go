package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulvian/devstream/internal/app"
	"github.com/fulvian/devstream/internal/config"
)

const testAPIKey = "secret"

func setupTestRouter(t *testing.T, apiKey string) http.Handler {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "database:\n  path: \":memory:\"\nembedding:\n  provider: local\n  dimension: 32\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	a, err := app.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return NewRouter(Deps{
		Store:     a.Store,
		Searcher:  a.Searcher,
		Assembler: a.Assembler,
		Memory:    a.Memory,
		Config:    a.Config,
		Provider:  a.Embedder.Provider(),
	}, apiKey, zerolog.Nop())
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func storeMemory(t *testing.T, h http.Handler, content, contentType string) Memory {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/memories", StoreRequest{Content: content, ContentType: contentType})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[Memory](t, rec)
}

func TestHealth(t *testing.T) {
	h := setupTestRouter(t, testAPIKey)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "local", resp.Embedder.Message)
}

func TestBearerAuth(t *testing.T) {
	h := setupTestRouter(t, testAPIKey)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	open := setupTestRouter(t, "")
	req = httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := setupTestRouter(t, testAPIKey)

	req := httptest.NewRequest(http.MethodOptions, "/search", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMemoriesLifecycle(t *testing.T) {
	h := setupTestRouter(t, testAPIKey)

	created := storeMemory(t, h, "Retry webhooks with exponential backoff", "decision")
	assert.Equal(t, "decision", created.ContentType)
	assert.True(t, created.Embedded)
	storeMemory(t, h, "panic: nil map write in handler", "error")

	rec := do(t, h, http.MethodGet, "/memories/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.Content, decode[Memory](t, rec).Content)

	rec = do(t, h, http.MethodGet, "/memories?content_type=error", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListResponse](t, rec)
	require.Len(t, list.Memories, 1)
	assert.Equal(t, "error", list.Memories[0].ContentType)

	rec = do(t, h, http.MethodPost, "/memories/"+created.ID+"/archive", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/memories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ListResponse](t, rec).Memories, 1)

	rec = do(t, h, http.MethodGet, "/memories?include_archived=true", nil)
	assert.Len(t, decode[ListResponse](t, rec).Memories, 2)

	rec = do(t, h, http.MethodGet, "/memories/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/memories/missing/archive", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStoreValidation(t *testing.T) {
	h := setupTestRouter(t, testAPIKey)

	tests := []struct {
		name string
		body interface{}
	}{
		{"empty content", StoreRequest{Content: " ", ContentType: "code"}},
		{"bad type", StoreRequest{Content: "x", ContentType: "rumor"}},
		{"unknown field", map[string]string{"content": "x", "content_type": "code", "extra": "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/memories", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/memories", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch(t *testing.T) {
	h := setupTestRouter(t, testAPIKey)

	want := storeMemory(t, h, "Webhook retries use exponential backoff", "decision")
	storeMemory(t, h, "Frontend uses tailwind for styling", "context")

	rec := do(t, h, http.MethodPost, "/search", SearchRequest{Query: "webhook retries backoff"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[SearchResponse](t, rec)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, want.ID, resp.Results[0].Memory.ID)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, resp.Total, len(resp.Results))
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
	}

	t.Run("invalid weights", func(t *testing.T) {
		zero := 0.0
		rec := do(t, h, http.MethodPost, "/search", SearchRequest{
			Query:          "webhook",
			SemanticWeight: &zero,
			KeywordWeight:  &zero,
			FullTextWeight: &zero,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing query", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/search", SearchRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestContext(t *testing.T) {
	h := setupTestRouter(t, testAPIKey)

	storeMemory(t, h, "Webhook retries use exponential backoff", "decision")
	storeMemory(t, h, "Webhook signatures use HMAC SHA256", "code")

	budget := 30
	rec := do(t, h, http.MethodPost, "/context", ContextRequest{
		Query:       "webhook",
		TokenBudget: &budget,
		Strategy:    "relevance",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[ContextResponse](t, rec)
	assert.Equal(t, 30, resp.TokenBudget)
	assert.LessOrEqual(t, resp.TokensUsed, 30)
	assert.Equal(t, 30-resp.TokensUsed, resp.TokensRemaining)
	assert.Equal(t, 1, resp.MemoryCount)
	assert.True(t, resp.Truncated)
	assert.Equal(t, "relevance", resp.Strategy)

	negative := -1
	rec = do(t, h, http.MethodPost, "/context", ContextRequest{Query: "webhook", TokenBudget: &negative})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/context", ContextRequest{Query: "webhook", Strategy: "random"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	h := setupTestRouter(t, testAPIKey)

	storeMemory(t, h, "Stats are cheap", "learning")
	do(t, h, http.MethodPost, "/search", SearchRequest{Query: "stats"})

	rec := do(t, h, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[StatsResponse](t, rec)
	assert.Equal(t, 1, resp.TotalEntries)
	assert.Equal(t, 1, resp.EntriesByType["learning"])
	assert.EqualValues(t, 1, resp.Searches)
	assert.Positive(t, resp.CacheSize)
}
