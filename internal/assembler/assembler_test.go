package assembler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulvian/devstream/pkg/types"
)

type mockSearcher struct {
	results []types.SearchResult
	err     error
	calls   int
	last    types.SearchQuery
}

func (m *mockSearcher) HybridSearch(ctx context.Context, query types.SearchQuery) ([]types.SearchResult, error) {
	m.calls++
	m.last = query
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	id         string
	score      float64
	age        time.Duration
	complexity int
	content    string
}

func results(fixtures ...fixture) []types.SearchResult {
	out := make([]types.SearchResult, len(fixtures))
	for i, f := range fixtures {
		content := f.content
		if content == "" {
			content = "memory " + f.id
		}
		complexity := f.complexity
		if complexity == 0 {
			complexity = 5
		}
		out[i] = types.SearchResult{
			Entry: &types.MemoryEntry{
				ID:              f.id,
				Content:         content,
				ContentType:     types.ContentDecision,
				ComplexityScore: complexity,
				CreatedAt:       baseTime.Add(-f.age),
			},
			Rank:  i + 1,
			Score: f.score,
		}
	}
	return out
}

// costEstimator prices entries by ID
func costEstimator(costs map[string]int) TokenEstimator {
	return func(entry *types.MemoryEntry) int {
		return costs[entry.ID]
	}
}

func entryIDs(entries []types.MemoryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestAssembleContext_GreedyFirstFit(t *testing.T) {
	searcher := &mockSearcher{results: results(
		fixture{id: "m1", score: 0.9},
		fixture{id: "m2", score: 0.8},
		fixture{id: "m3", score: 0.7},
		fixture{id: "m4", score: 0.6},
		fixture{id: "m5", score: 0.5},
	)}
	opts := DefaultOptions()
	opts.Estimator = costEstimator(map[string]int{"m1": 30, "m2": 40, "m3": 50, "m4": 10, "m5": 20})
	a := New(searcher, opts)

	res, err := a.AssembleContext(context.Background(), types.DefaultSearchQuery("q"), types.PrioritizeRelevance, 100)
	require.NoError(t, err)

	assert.Equal(t, []string{"m1", "m2", "m4", "m5"}, entryIDs(res.Entries))
	assert.Equal(t, 100, res.TotalTokens)
	assert.Equal(t, 0, res.TokensRemaining)
	assert.Equal(t, 4, res.MemoryCount)
	assert.Equal(t, 5, res.Candidates)
	assert.Equal(t, 1, res.Skipped)
	assert.True(t, res.Truncated)
	assert.Equal(t, types.PrioritizeRelevance, res.Strategy)
	assert.Equal(t, 100, res.TokenBudget)
}

func TestAssembleContext_BudgetBound(t *testing.T) {
	searcher := &mockSearcher{results: results(
		fixture{id: "a", score: 0.9, content: strings.Repeat("x", 400)},
		fixture{id: "b", score: 0.8, content: strings.Repeat("y", 37)},
		fixture{id: "c", score: 0.7, content: strings.Repeat("z", 1000)},
		fixture{id: "d", score: 0.6, content: "short"},
	)}
	a := New(searcher, DefaultOptions())

	for _, budget := range []int{1, 21, 50, 90, 130, 150, 500, 10000} {
		res, err := a.AssembleContext(context.Background(), types.DefaultSearchQuery("q"), types.PrioritizeRelevance, budget)
		require.NoError(t, err)

		used := 0
		for i := range res.Entries {
			used += DefaultEstimator(&res.Entries[i])
		}
		assert.Equal(t, used, res.TotalTokens)
		assert.LessOrEqual(t, res.TotalTokens, budget)
		assert.Equal(t, budget-res.TotalTokens, res.TokensRemaining)
		assert.Equal(t, res.Skipped > 0, res.Truncated)
		assert.Equal(t, res.Candidates, res.MemoryCount+res.Skipped)
	}

	t.Run("everything fits", func(t *testing.T) {
		res, err := a.AssembleContext(context.Background(), types.DefaultSearchQuery("q"), types.PrioritizeRelevance, 10000)
		require.NoError(t, err)
		assert.Equal(t, 4, res.MemoryCount)
		assert.False(t, res.Truncated)
	})
}

func TestAssembleContext_ZeroBudget(t *testing.T) {
	searcher := &mockSearcher{results: results(fixture{id: "a", score: 1})}
	a := New(searcher, DefaultOptions())

	res, err := a.AssembleContext(context.Background(), types.DefaultSearchQuery("q"), types.PrioritizeMixed, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.Equal(t, 0, res.MemoryCount)
	assert.Equal(t, 0, res.TokensRemaining)
	assert.Equal(t, 0, res.TotalTokens)
	assert.Empty(t, res.Context)
	assert.False(t, res.Truncated)
	assert.Zero(t, searcher.calls)
}

func TestAssembleContext_Validation(t *testing.T) {
	searcher := &mockSearcher{}
	a := New(searcher, DefaultOptions())
	ctx := context.Background()

	t.Run("negative budget", func(t *testing.T) {
		_, err := a.AssembleContext(ctx, types.DefaultSearchQuery("q"), types.PrioritizeRelevance, -1)
		var ctxErr *types.ContextError
		require.ErrorAs(t, err, &ctxErr)
		assert.ErrorIs(t, err, types.ErrInvalidTokenBudget)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := a.AssembleContext(ctx, types.DefaultSearchQuery("q"), types.PrioritizationStrategy("random"), 100)
		var ctxErr *types.ContextError
		require.ErrorAs(t, err, &ctxErr)
		assert.ErrorIs(t, err, types.ErrInvalidStrategy)
	})

	t.Run("invalid query", func(t *testing.T) {
		q := types.DefaultSearchQuery("q")
		q.MaxResults = 0
		_, err := a.AssembleContext(ctx, q, types.PrioritizeRelevance, 100)
		var ctxErr *types.ContextError
		require.ErrorAs(t, err, &ctxErr)
		assert.Equal(t, "validate", ctxErr.Op)
		assert.ErrorIs(t, err, types.ErrInvalidQuery)
	})

	t.Run("unknown content type", func(t *testing.T) {
		_, err := a.AssembleContextByType(ctx, types.ContentType("memo"), "q", types.PrioritizeRelevance, 100)
		assert.ErrorIs(t, err, types.ErrInvalidContentType)
	})

	assert.Zero(t, searcher.calls)
}

func TestAssembleContext_SearchFailure(t *testing.T) {
	searchErr := &types.SearchError{Strategy: types.StrategyKeyword, Err: errors.New("database is locked")}
	a := New(&mockSearcher{err: searchErr}, DefaultOptions())

	res, err := a.AssembleContext(context.Background(), types.DefaultSearchQuery("q"), types.PrioritizeRelevance, 100)
	require.Error(t, err)
	assert.Nil(t, res)

	var ctxErr *types.ContextError
	require.ErrorAs(t, err, &ctxErr)
	assert.Equal(t, "search", ctxErr.Op)

	var got *types.SearchError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, types.StrategyKeyword, got.Strategy)
}

func TestPrioritization(t *testing.T) {
	fixtures := results(
		fixture{id: "old-relevant", score: 0.9, age: 72 * time.Hour, complexity: 8},
		fixture{id: "new", score: 0.8, age: time.Hour, complexity: 2},
		fixture{id: "middle", score: 0.7, age: 24 * time.Hour, complexity: 5},
	)
	budget := 10000

	tests := []struct {
		name     string
		strategy types.PrioritizationStrategy
		opts     func(*Options)
		want     []string
	}{
		{
			name:     "relevance",
			strategy: types.PrioritizeRelevance,
			want:     []string{"old-relevant", "new", "middle"},
		},
		{
			name:     "recency",
			strategy: types.PrioritizeRecency,
			want:     []string{"new", "middle", "old-relevant"},
		},
		{
			name:     "complexity ascending",
			strategy: types.PrioritizeComplexity,
			want:     []string{"new", "middle", "old-relevant"},
		},
		{
			// keys: 0.7*1+0.3*3=1.6, 0.7*2+0.3*1=1.7, 0.7*3+0.3*2=2.7
			name:     "mixed default blend",
			strategy: types.PrioritizeMixed,
			want:     []string{"old-relevant", "new", "middle"},
		},
		{
			// keys: 0.3*1+0.7*3=2.4, 0.3*2+0.7*1=1.3, 0.3*3+0.7*2=2.3
			name:     "mixed recency heavy",
			strategy: types.PrioritizeMixed,
			opts: func(o *Options) {
				o.MixedRelevanceWeight = 0.3
				o.MixedRecencyWeight = 0.7
			},
			want: []string{"new", "middle", "old-relevant"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			a := New(&mockSearcher{results: fixtures}, opts)

			res, err := a.AssembleContext(context.Background(), types.DefaultSearchQuery("q"), tt.strategy, budget)
			require.NoError(t, err)
			assert.Equal(t, tt.want, entryIDs(res.Entries))
			assert.Equal(t, tt.strategy, res.Strategy)
		})
	}

	t.Run("ties keep search order", func(t *testing.T) {
		tied := results(
			fixture{id: "first", score: 0.5, complexity: 3},
			fixture{id: "second", score: 0.5, complexity: 3},
			fixture{id: "third", score: 0.5, complexity: 3},
		)
		a := New(&mockSearcher{results: tied}, DefaultOptions())

		for _, s := range []types.PrioritizationStrategy{types.PrioritizeRelevance, types.PrioritizeRecency, types.PrioritizeComplexity} {
			res, err := a.AssembleContext(context.Background(), types.DefaultSearchQuery("q"), s, budget)
			require.NoError(t, err)
			assert.Equal(t, []string{"first", "second", "third"}, entryIDs(res.Entries), string(s))
		}
	})

	t.Run("does not reorder the search results", func(t *testing.T) {
		a := New(&mockSearcher{results: fixtures}, DefaultOptions())
		_, err := a.AssembleContext(context.Background(), types.DefaultSearchQuery("q"), types.PrioritizeRecency, budget)
		require.NoError(t, err)
		assert.Equal(t, "old-relevant", fixtures[0].Entry.ID)
	})
}

func TestRenderOrder(t *testing.T) {
	searcher := &mockSearcher{results: results(
		fixture{id: "a", score: 0.9, age: 48 * time.Hour, content: "alpha notes"},
		fixture{id: "b", score: 0.5, age: time.Hour, content: "beta notes"},
	)}
	a := New(searcher, DefaultOptions())

	res, err := a.AssembleContext(context.Background(), types.DefaultSearchQuery("q"), types.PrioritizeRecency, 1000)
	require.NoError(t, err)

	assert.Less(t, strings.Index(res.Context, "beta notes"), strings.Index(res.Context, "alpha notes"))
	assert.Contains(t, res.Context, "[decision] b (2025-03-01)")
}

func TestAssembleContextForTask(t *testing.T) {
	searcher := &mockSearcher{results: results(fixture{id: "a", score: 1})}
	a := New(searcher, DefaultOptions())

	res, err := a.AssembleContextForTask(context.Background(), "task-42", "deploy plan", types.PrioritizeRelevance, 500)
	require.NoError(t, err)
	assert.Equal(t, 1, res.MemoryCount)

	assert.Equal(t, "task-42", searcher.last.Filters.TaskID)
	assert.Equal(t, "deploy plan", searcher.last.Text)
	assert.Equal(t, types.DefaultMaxResults, searcher.last.MaxResults)
	assert.Equal(t, types.DefaultSemanticWeight, searcher.last.SemanticWeight)
}

func TestHelpersUseBaseQuery(t *testing.T) {
	base := types.SearchQuery{
		Text:              "ignored",
		MaxResults:        25,
		SemanticWeight:    0.2,
		KeywordWeight:     0,
		FullTextWeight:    0.9,
		MinRelevanceScore: 0.99,
		Filters:           types.SearchFilters{TaskID: "other", IncludeArchived: true},
	}
	opts := DefaultOptions()
	opts.BaseQuery = base

	tests := []struct {
		name   string
		call   func(a *Assembler) error
		filter types.SearchFilters
	}{
		{
			name: "for task",
			call: func(a *Assembler) error {
				_, err := a.AssembleContextForTask(context.Background(), "task-42", "deploy plan", types.PrioritizeRelevance, 500)
				return err
			},
			filter: types.SearchFilters{TaskID: "task-42"},
		},
		{
			name: "by type",
			call: func(a *Assembler) error {
				_, err := a.AssembleContextByType(context.Background(), types.ContentError, "deploy plan", types.PrioritizeRelevance, 500)
				return err
			},
			filter: types.SearchFilters{ContentTypes: []types.ContentType{types.ContentError}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &mockSearcher{}
			require.NoError(t, tt.call(New(searcher, opts)))

			want := base
			want.Text = "deploy plan"
			want.Filters = tt.filter
			assert.Equal(t, want, searcher.last)
		})
	}
}

func TestAssembleContextByType(t *testing.T) {
	searcher := &mockSearcher{results: results(fixture{id: "a", score: 1})}
	a := New(searcher, DefaultOptions())

	_, err := a.AssembleContextByType(context.Background(), types.ContentError, "panic", types.PrioritizeRecency, 500)
	require.NoError(t, err)
	assert.Equal(t, []types.ContentType{types.ContentError}, searcher.last.Filters.ContentTypes)
}

func TestEstimator(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{content: "", want: 20},
		{content: "abcd", want: 21},
		{content: "abcde", want: 22},
		{content: strings.Repeat("a", 40), want: 30},
		{content: strings.Repeat("a", 41), want: 31},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultEstimator(&types.MemoryEntry{Content: tt.content}), "len %d", len(tt.content))
	}

	custom := NewEstimator(2, 0)
	assert.Equal(t, 3, custom(&types.MemoryEntry{Content: "hello"}))
}
