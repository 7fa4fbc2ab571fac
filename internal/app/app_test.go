package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulvian/devstream/internal/config"
	"github.com/fulvian/devstream/internal/memory"
	"github.com/fulvian/devstream/pkg/types"
)

func loadConfig(t *testing.T, dbPath string, extra ...string) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "database:\n  path: \"" + dbPath + "\"\nembedding:\n  provider: local\n  dimension: 32\n" +
		strings.Join(extra, "")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestNew(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "memory.db")
	cfg := loadConfig(t, dbPath)

	a, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	_, err = os.Stat(filepath.Dir(dbPath))
	assert.NoError(t, err, "database directory should be created")
	assert.Equal(t, "local", a.Embedder.Provider())
	assert.Equal(t, 32, a.Embedder.Dimension())
}

func TestEndToEnd(t *testing.T) {
	a, err := New(loadConfig(t, ":memory:"), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	stored, err := a.Memory.Remember(ctx, memory.RememberRequest{
		Content:     "Refresh tokens are rotated on every use",
		ContentType: types.ContentDecision,
	})
	require.NoError(t, err)
	_, err = a.Memory.Remember(ctx, memory.RememberRequest{
		Content:     "The build pipeline caches go modules",
		ContentType: types.ContentContext,
	})
	require.NoError(t, err)

	result, err := a.Assembler.AssembleContext(ctx, a.Config.DefaultQuery("refresh tokens rotated"), types.PrioritizeRelevance, 500)
	require.NoError(t, err)
	require.NotEmpty(t, result.Entries)
	assert.Equal(t, stored.ID, result.Entries[0].ID)
	assert.LessOrEqual(t, result.TotalTokens, 500)
	assert.Contains(t, result.Context, "Refresh tokens are rotated")

	status, err := a.Store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalEntries)
	assert.Equal(t, 2, status.EmbeddedEntries)
}

func TestTaskContextUsesConfiguredSearch(t *testing.T) {
	a, err := New(loadConfig(t, ":memory:", "search:\n  min_relevance: 0.99\n  keyword_weight: 0\n"), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	for _, content := range []string{
		"Deploy checklist for the payments service",
		"Rollback steps when a deploy fails",
		"Unrelated note about office hours",
	} {
		_, err := a.Memory.Remember(ctx, memory.RememberRequest{
			Content:     content,
			ContentType: types.ContentContext,
			TaskID:      "t1",
		})
		require.NoError(t, err)
	}

	query := a.Config.DefaultQuery("deploy checklist")
	query.Filters.TaskID = "t1"
	direct, err := a.Assembler.AssembleContext(ctx, query, types.PrioritizeRelevance, 500)
	require.NoError(t, err)

	forTask, err := a.Assembler.AssembleContextForTask(ctx, "t1", "deploy checklist", types.PrioritizeRelevance, 500)
	require.NoError(t, err)
	assert.Equal(t, direct.Candidates, forTask.Candidates)
	assert.Less(t, forTask.Candidates, 3, "min_relevance should drop weak matches")

	byType, err := a.Assembler.AssembleContextByType(ctx, types.ContentContext, "deploy checklist", types.PrioritizeRelevance, 500)
	require.NoError(t, err)
	assert.Equal(t, direct.Candidates, byType.Candidates)
}
