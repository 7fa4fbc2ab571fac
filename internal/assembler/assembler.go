// Package assembler turns hybrid search results into a token budgeted
// context block.
//
// Assembly runs in four steps: search, prioritize by the requested
// strategy, greedily select entries that still fit the remaining budget,
// and render the selection in prioritized order. Selection is first-fit:
// an entry that does not fit is skipped and later, smaller entries are
// still considered.
//
// Token counts are estimates (see TokenEstimator), not tokenizer output.
package assembler

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fulvian/devstream/pkg/types"
)

// Estimator and prioritization defaults
const (
	CharsPerToken               = 4
	MetadataOverheadTokens      = 20
	DefaultMixedRelevanceWeight = 0.7
	DefaultMixedRecencyWeight   = 0.3
)

// Searcher runs the hybrid search feeding assembly
type Searcher interface {
	HybridSearch(ctx context.Context, query types.SearchQuery) ([]types.SearchResult, error)
}

// TokenEstimator returns the token cost of including an entry
type TokenEstimator func(entry *types.MemoryEntry) int

// NewEstimator returns ceil(len(content)/charsPerToken) + overhead
func NewEstimator(charsPerToken, overhead int) TokenEstimator {
	if charsPerToken <= 0 {
		charsPerToken = CharsPerToken
	}
	if overhead < 0 {
		overhead = 0
	}
	return func(entry *types.MemoryEntry) int {
		chars := len(entry.Content)
		return (chars+charsPerToken-1)/charsPerToken + overhead
	}
}

// DefaultEstimator uses CharsPerToken and MetadataOverheadTokens
var DefaultEstimator = NewEstimator(CharsPerToken, MetadataOverheadTokens)

// Options configures an Assembler
type Options struct {
	Estimator TokenEstimator

	// Blend of relevance rank and recency rank for the mixed strategy
	MixedRelevanceWeight float64
	MixedRecencyWeight   float64

	// BaseQuery supplies limits, weights and threshold for the task and
	// type helpers; its text and filters are ignored
	BaseQuery types.SearchQuery

	Logger *zerolog.Logger
}

// DefaultOptions returns the default assembler options
func DefaultOptions() Options {
	return Options{
		Estimator:            DefaultEstimator,
		MixedRelevanceWeight: DefaultMixedRelevanceWeight,
		MixedRecencyWeight:   DefaultMixedRecencyWeight,
		BaseQuery:            types.DefaultSearchQuery(""),
	}
}

// Assembler builds context blocks from search results
type Assembler struct {
	searcher Searcher
	opts     Options
	logger   zerolog.Logger
}

// New creates an assembler. Zero valued options take their defaults.
func New(searcher Searcher, opts Options) *Assembler {
	defaults := DefaultOptions()
	if opts.Estimator == nil {
		opts.Estimator = defaults.Estimator
	}
	if opts.MixedRelevanceWeight == 0 && opts.MixedRecencyWeight == 0 {
		opts.MixedRelevanceWeight = defaults.MixedRelevanceWeight
		opts.MixedRecencyWeight = defaults.MixedRecencyWeight
	}
	if opts.BaseQuery.MaxResults <= 0 {
		opts.BaseQuery.MaxResults = defaults.BaseQuery.MaxResults
	}
	if opts.BaseQuery.WeightSum() == 0 {
		opts.BaseQuery.SemanticWeight = defaults.BaseQuery.SemanticWeight
		opts.BaseQuery.KeywordWeight = defaults.BaseQuery.KeywordWeight
		opts.BaseQuery.FullTextWeight = defaults.BaseQuery.FullTextWeight
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Assembler{
		searcher: searcher,
		opts:     opts,
		logger:   logger.With().Str("component", "assembler").Logger(),
	}
}

// AssembleContext searches for query and packs the prioritized results
// into tokenBudget. A zero budget returns an empty result without
// searching.
func (a *Assembler) AssembleContext(ctx context.Context, query types.SearchQuery, strategy types.PrioritizationStrategy, tokenBudget int) (*types.ContextAssemblyResult, error) {
	if tokenBudget < 0 {
		return nil, &types.ContextError{
			Op:  "validate",
			Err: fmt.Errorf("%w: got %d", types.ErrInvalidTokenBudget, tokenBudget),
		}
	}
	if !strategy.IsValid() {
		return nil, &types.ContextError{
			Op:  "validate",
			Err: fmt.Errorf("%w: %q", types.ErrInvalidStrategy, strategy),
		}
	}
	if err := query.Validate(); err != nil {
		return nil, &types.ContextError{Op: "validate", Err: err}
	}

	result := &types.ContextAssemblyResult{
		Entries:     []types.MemoryEntry{},
		TokenBudget: tokenBudget,
		Strategy:    strategy,
	}
	if tokenBudget == 0 {
		return result, nil
	}

	results, err := a.searcher.HybridSearch(ctx, query)
	if err != nil {
		return nil, &types.ContextError{Op: "search", Err: err}
	}
	result.Candidates = len(results)

	ordered := a.prioritize(results, strategy)

	remaining := tokenBudget
	for _, r := range ordered {
		cost := a.opts.Estimator(r.Entry)
		if cost > remaining {
			result.Skipped++
			continue
		}
		remaining -= cost
		result.Entries = append(result.Entries, *r.Entry)
		result.TotalTokens += cost
	}

	result.TokensRemaining = remaining
	result.MemoryCount = len(result.Entries)
	result.Truncated = result.Skipped > 0
	result.Context = render(result.Entries)

	a.logger.Debug().
		Str("strategy", string(strategy)).
		Int("budget", tokenBudget).
		Int("candidates", result.Candidates).
		Int("selected", result.MemoryCount).
		Int("tokens", result.TotalTokens).
		Msg("context assembled")

	return result, nil
}

// AssembleContextForTask assembles context restricted to one task
func (a *Assembler) AssembleContextForTask(ctx context.Context, taskID, queryText string, strategy types.PrioritizationStrategy, tokenBudget int) (*types.ContextAssemblyResult, error) {
	query := a.defaultQuery(queryText)
	query.Filters.TaskID = taskID
	return a.AssembleContext(ctx, query, strategy, tokenBudget)
}

// AssembleContextByType assembles context restricted to one content type
func (a *Assembler) AssembleContextByType(ctx context.Context, contentType types.ContentType, queryText string, strategy types.PrioritizationStrategy, tokenBudget int) (*types.ContextAssemblyResult, error) {
	if !contentType.IsValid() {
		return nil, &types.ContextError{
			Op:  "validate",
			Err: fmt.Errorf("%w: %q", types.ErrInvalidContentType, contentType),
		}
	}
	query := a.defaultQuery(queryText)
	query.Filters.ContentTypes = []types.ContentType{contentType}
	return a.AssembleContext(ctx, query, strategy, tokenBudget)
}

func (a *Assembler) defaultQuery(text string) types.SearchQuery {
	query := a.opts.BaseQuery
	query.Text = text
	query.Filters = types.SearchFilters{}
	return query
}

// prioritize returns a reordered copy of results
func (a *Assembler) prioritize(results []types.SearchResult, strategy types.PrioritizationStrategy) []types.SearchResult {
	ordered := make([]types.SearchResult, len(results))
	copy(ordered, results)

	switch strategy {
	case types.PrioritizeRelevance:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Score > ordered[j].Score
		})
	case types.PrioritizeRecency:
		sortByRecency(ordered)
	case types.PrioritizeComplexity:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Entry.ComplexityScore < ordered[j].Entry.ComplexityScore
		})
	case types.PrioritizeMixed:
		a.sortMixed(ordered)
	}
	return ordered
}

func sortByRecency(results []types.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Entry.CreatedAt.After(results[j].Entry.CreatedAt)
	})
}

// sortMixed orders by a blend of relevance rank and recency rank; a lower
// key is better
func (a *Assembler) sortMixed(results []types.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	byRecency := make([]types.SearchResult, len(results))
	copy(byRecency, results)
	sortByRecency(byRecency)

	recencyRank := make(map[string]int, len(results))
	for i, r := range byRecency {
		recencyRank[r.Entry.ID] = i + 1
	}

	keys := make(map[string]float64, len(results))
	for i, r := range results {
		keys[r.Entry.ID] = a.opts.MixedRelevanceWeight*float64(i+1) +
			a.opts.MixedRecencyWeight*float64(recencyRank[r.Entry.ID])
	}

	sort.SliceStable(results, func(i, j int) bool {
		ki, kj := keys[results[i].Entry.ID], keys[results[j].Entry.ID]
		if math.Abs(ki-kj) < 1e-9 {
			return false
		}
		return ki < kj
	})
}

// render formats entries in selection order
func render(entries []types.MemoryEntry) string {
	if len(entries) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s] %s", e.ContentType, e.ID)
		if !e.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, " (%s)", e.CreatedAt.UTC().Format("2006-01-02"))
		}
		sb.WriteString("\n")
		sb.WriteString(e.Content)
	}
	return sb.String()
}
