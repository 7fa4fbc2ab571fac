package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulvian/devstream/internal/embedder"
	"github.com/fulvian/devstream/internal/searcher"
	"github.com/fulvian/devstream/internal/storage"
	"github.com/fulvian/devstream/pkg/types"
)

type stubVectors struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubVectors) QueryEmbedding(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	return s.vector, s.err
}

func setupTestService(t *testing.T, vectors VectorSource, opts Options) (*Service, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store, vectors, nil, opts), store
}

func TestRemember(t *testing.T) {
	vectors := &stubVectors{vector: []float32{0.6, 0.8, 0}}
	svc, store := setupTestService(t, vectors, Options{})
	fixed := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	entry, err := svc.Remember(ctx, RememberRequest{
		Content:     "  The ConnPool deadlock was fixed by ordering locks  ",
		ContentType: types.ContentLearning,
		Keywords:    []string{"Concurrency", "deadlock"},
		TaskID:      "task-7",
	})
	require.NoError(t, err)

	_, err = uuid.Parse(entry.ID)
	assert.NoError(t, err)
	assert.Equal(t, "The ConnPool deadlock was fixed by ordering locks", entry.Content)
	assert.Equal(t, "text", entry.ContentFormat)
	assert.Contains(t, entry.Keywords, "deadlock")
	assert.Contains(t, entry.Keywords, "concurrency")
	assert.Contains(t, entry.Entities, "ConnPool")
	assert.Equal(t, 3, entry.EmbeddingDimension)
	assert.Equal(t, fixed, entry.CreatedAt)
	assert.Equal(t, 1, vectors.calls)

	stored, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Content, stored.Content)
	assert.Equal(t, "task-7", stored.TaskID)
	assert.Equal(t, []float32{0.6, 0.8, 0}, stored.Embedding)
	assert.True(t, stored.CreatedAt.Equal(fixed))
}

func TestRemember_Validation(t *testing.T) {
	svc, _ := setupTestService(t, nil, Options{})
	ctx := context.Background()

	_, err := svc.Remember(ctx, RememberRequest{Content: "  ", ContentType: types.ContentCode})
	assert.ErrorIs(t, err, types.ErrEmptyContent)

	_, err = svc.Remember(ctx, RememberRequest{Content: "x", ContentType: "memo"})
	assert.ErrorIs(t, err, types.ErrInvalidContentType)
}

func TestRemember_EmbeddingFailure(t *testing.T) {
	embErr := &types.EmbeddingError{Provider: "stub", Err: errors.New("unavailable")}

	t.Run("stored without vector", func(t *testing.T) {
		svc, store := setupTestService(t, &stubVectors{err: embErr}, Options{})
		entry, err := svc.Remember(context.Background(), RememberRequest{Content: "notes", ContentType: types.ContentContext})
		require.NoError(t, err)
		assert.False(t, entry.HasEmbedding())

		status, err := store.GetStatus(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, status.TotalEntries)
		assert.Equal(t, 0, status.EmbeddedEntries)
	})

	t.Run("required", func(t *testing.T) {
		svc, _ := setupTestService(t, &stubVectors{err: embErr}, Options{RequireEmbedding: true})
		_, err := svc.Remember(context.Background(), RememberRequest{Content: "notes", ContentType: types.ContentContext})
		var got *types.EmbeddingError
		assert.ErrorAs(t, err, &got)
	})

	t.Run("skip embedding", func(t *testing.T) {
		vectors := &stubVectors{vector: []float32{1}}
		svc, _ := setupTestService(t, vectors, Options{})
		entry, err := svc.Remember(context.Background(), RememberRequest{
			Content: "notes", ContentType: types.ContentContext, SkipEmbedding: true,
		})
		require.NoError(t, err)
		assert.False(t, entry.HasEmbedding())
		assert.Zero(t, vectors.calls)
	})
}

func TestArchiveAndGet(t *testing.T) {
	svc, _ := setupTestService(t, nil, Options{})
	ctx := context.Background()

	entry, err := svc.Remember(ctx, RememberRequest{Content: "# Runbook\n- restart", ContentType: types.ContentDocumentation})
	require.NoError(t, err)
	assert.Equal(t, "markdown", entry.ContentFormat)

	require.NoError(t, svc.Archive(ctx, entry.ID))

	got, err := svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)

	err = svc.Archive(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.Get(ctx, "")
	assert.ErrorIs(t, err, types.ErrInvalidEntryID)
}

func TestList(t *testing.T) {
	svc, _ := setupTestService(t, nil, Options{})
	ctx := context.Background()

	for _, ct := range []types.ContentType{types.ContentCode, types.ContentError, types.ContentCode} {
		_, err := svc.Remember(ctx, RememberRequest{Content: "entry for " + string(ct), ContentType: ct})
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, storage.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	code, err := svc.List(ctx, storage.ListOptions{
		Filters: types.SearchFilters{ContentTypes: []types.ContentType{types.ContentCode}},
	})
	require.NoError(t, err)
	assert.Len(t, code, 2)
}

func TestRememberThenSearch(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewLocalProvider(32)
	require.NoError(t, err)
	s := searcher.NewSearcher(store, emb, nil, searcher.DefaultOptions())
	svc := NewService(store, s, nil, Options{})
	ctx := context.Background()

	want, err := svc.Remember(ctx, RememberRequest{
		Content:     "Use exponential backoff when the embedding provider returns 429",
		ContentType: types.ContentDecision,
	})
	require.NoError(t, err)
	_, err = svc.Remember(ctx, RememberRequest{
		Content:     "Release checklist lives in the wiki",
		ContentType: types.ContentDocumentation,
	})
	require.NoError(t, err)

	results, err := s.HybridSearch(ctx, types.DefaultSearchQuery("exponential backoff for the embedding provider"))
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, want.ID, results[0].Entry.ID)

	// Ingestion populated the shared cache
	assert.Equal(t, 3, s.Cache().Len())
}
