package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fulvian/devstream/internal/embedder"
	"github.com/fulvian/devstream/internal/features"
	"github.com/fulvian/devstream/internal/retry"
	"github.com/fulvian/devstream/internal/scoring"
	"github.com/fulvian/devstream/internal/storage"
	"github.com/fulvian/devstream/pkg/types"
)

// DefaultCandidateMultiplier is how many candidates each strategy fetches
// per requested result
const DefaultCandidateMultiplier = 3

// Options configures a Searcher
type Options struct {
	// CacheSize is the embedding cache capacity
	CacheSize int

	// CandidateMultiplier scales MaxResults into the per-strategy limit
	CandidateMultiplier int

	// Retry applies to every storage call
	Retry retry.Config

	// TrackAccess increments access counts of returned entries
	TrackAccess bool

	Logger *zerolog.Logger
}

// DefaultOptions returns the default searcher options
func DefaultOptions() Options {
	return Options{
		CacheSize:           embedder.DefaultCacheSize,
		CandidateMultiplier: DefaultCandidateMultiplier,
		Retry:               retry.DefaultConfig(),
	}
}

// Stats reports searcher activity
type Stats struct {
	Searches       uint64
	FailedSearches uint64
	Cache          embedder.CacheStats
}

// Searcher runs hybrid searches over the memory store
type Searcher struct {
	storage  storage.Storage
	embedder embedder.Embedder
	keywords features.KeywordExtractor
	cache    *embedder.Cache
	opts     Options
	logger   zerolog.Logger

	searches atomic.Uint64
	failures atomic.Uint64
}

// NewSearcher creates a searcher with its own embedding cache.
// A nil keyword extractor falls back to features.NewExtractor.
func NewSearcher(store storage.Storage, emb embedder.Embedder, kw features.KeywordExtractor, opts Options) *Searcher {
	if opts.CandidateMultiplier <= 0 {
		opts.CandidateMultiplier = DefaultCandidateMultiplier
	}
	if kw == nil {
		kw = features.NewExtractor()
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Searcher{
		storage:  store,
		embedder: emb,
		keywords: kw,
		cache:    embedder.NewCache(opts.CacheSize),
		opts:     opts,
		logger:   logger.With().Str("component", "searcher").Logger(),
	}
}

// Cache returns the embedding cache owned by this searcher
func (s *Searcher) Cache() *embedder.Cache {
	return s.cache
}

// Stats returns a snapshot of search and cache counters
func (s *Searcher) Stats() Stats {
	return Stats{
		Searches:       s.searches.Load(),
		FailedSearches: s.failures.Load(),
		Cache:          s.cache.Stats(),
	}
}

// HybridSearch fuses semantic, keyword and full-text retrieval into one
// ranking. Results are unique by entry ID, scored in [0, 1], filtered by
// MinRelevanceScore and ranked from 1.
func (s *Searcher) HybridSearch(ctx context.Context, query types.SearchQuery) ([]types.SearchResult, error) {
	if strings.TrimSpace(query.Text) == "" {
		return []types.SearchResult{}, nil
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	s.searches.Add(1)

	results, err := s.search(ctx, query)
	if err != nil {
		s.failures.Add(1)
		s.logger.Debug().Err(err).Str("query", query.Text).Msg("hybrid search failed")
		return nil, err
	}

	if s.opts.TrackAccess && len(results) > 0 {
		s.trackAccess(ctx, results)
	}

	s.logger.Debug().
		Str("query", query.Text).
		Int("results", len(results)).
		Dur("duration", time.Since(start)).
		Msg("hybrid search completed")

	return results, nil
}

func (s *Searcher) search(ctx context.Context, query types.SearchQuery) ([]types.SearchResult, error) {
	limit := query.MaxResults * s.opts.CandidateMultiplier
	filters := query.Filters
	keywords := s.keywords.ExtractKeywords(query.Text)

	var semantic, keyword, fullText []storage.ScoredEntry

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vector, err := s.QueryEmbedding(gctx, query.Text)
		if err != nil {
			return &types.SearchError{Strategy: types.StrategySemantic, Err: err}
		}
		hits, err := retry.Do(gctx, s.opts.Retry, func(ctx context.Context) ([]storage.ScoredEntry, error) {
			return s.storage.SearchByEmbedding(ctx, vector, limit, filters)
		})
		if err != nil {
			return &types.SearchError{Strategy: types.StrategySemantic, Err: err}
		}
		semantic = withEmbeddings(hits)
		return nil
	})

	g.Go(func() error {
		hits, err := retry.Do(gctx, s.opts.Retry, func(ctx context.Context) ([]storage.ScoredEntry, error) {
			return s.storage.SearchByKeywords(ctx, keywords, limit, filters)
		})
		if err != nil {
			return &types.SearchError{Strategy: types.StrategyKeyword, Err: err}
		}
		keyword = hits
		return nil
	})

	g.Go(func() error {
		hits, err := retry.Do(gctx, s.opts.Retry, func(ctx context.Context) ([]storage.ScoredEntry, error) {
			return s.storage.SearchFullText(ctx, query.Text, limit, filters)
		})
		if err != nil {
			return &types.SearchError{Strategy: types.StrategyFullText, Err: err}
		}
		fullText = hits
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused, err := fuse(semantic, keyword, fullText, scoring.WeightsFromQuery(query))
	if err != nil {
		return nil, err
	}

	fused = dedupe(fused)
	fused = filterByScore(fused, query.MinRelevanceScore)
	sortResults(fused)

	if len(fused) > query.MaxResults {
		fused = fused[:query.MaxResults]
	}
	for i := range fused {
		fused[i].Rank = i + 1
	}
	return fused, nil
}

// QueryEmbedding returns the embedding of text, consulting the cache
// first. Vectors computed for a cancelled request are not cached.
func (s *Searcher) QueryEmbedding(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := s.cache.Get(text); ok {
		return vector, nil
	}

	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var embErr *types.EmbeddingError
		if errors.As(err, &embErr) {
			return nil, err
		}
		return nil, &types.EmbeddingError{
			Provider: s.embedder.Provider(),
			Timeout:  errors.Is(err, context.DeadlineExceeded),
			Err:      err,
		}
	}
	if emb == nil || len(emb.Vector) == 0 {
		return nil, &types.EmbeddingError{
			Provider: s.embedder.Provider(),
			Err:      fmt.Errorf("%w: empty vector", embedder.ErrProviderFailed),
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.cache.Put(text, emb.Vector)
	return emb.Vector, nil
}

// trackAccess bumps access counts; failures are logged only
func (s *Searcher) trackAccess(ctx context.Context, results []types.SearchResult) {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Entry.ID
	}
	if err := s.storage.IncrementAccessCount(ctx, ids); err != nil {
		s.logger.Warn().Err(err).Int("entries", len(ids)).Msg("failed to update access counts")
	}
}

// withEmbeddings drops semantic hits for entries that carry no vector
func withEmbeddings(hits []storage.ScoredEntry) []storage.ScoredEntry {
	out := hits[:0:0]
	for _, h := range hits {
		if h.Entry != nil && h.Entry.HasEmbedding() {
			out = append(out, h)
		}
	}
	return out
}
