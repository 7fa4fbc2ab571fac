package types

import "fmt"

// Default search parameters
const (
	DefaultMaxResults     = 10
	MaxAllowedResults     = 100
	DefaultSemanticWeight = 1.0
	DefaultKeywordWeight  = 0.8
	DefaultFullTextWeight = 0.6
)

// SearchFilters narrows the candidate set of every retrieval strategy
type SearchFilters struct {
	ContentTypes    []ContentType // Empty means all types
	TaskID          string        // Empty means any task
	IncludeArchived bool
}

// SearchQuery is the caller supplied hybrid search request.
// The three weights are independent dials; fusion divides by their sum.
type SearchQuery struct {
	Text              string
	MaxResults        int
	SemanticWeight    float64
	KeywordWeight     float64
	FullTextWeight    float64
	MinRelevanceScore float64
	Filters           SearchFilters
}

// DefaultSearchQuery returns a query with default weights and limits
func DefaultSearchQuery(text string) SearchQuery {
	return SearchQuery{
		Text:           text,
		MaxResults:     DefaultMaxResults,
		SemanticWeight: DefaultSemanticWeight,
		KeywordWeight:  DefaultKeywordWeight,
		FullTextWeight: DefaultFullTextWeight,
	}
}

// WeightSum returns the sum of the three strategy weights
func (q *SearchQuery) WeightSum() float64 {
	return q.SemanticWeight + q.KeywordWeight + q.FullTextWeight
}

// Validate checks query parameters. Empty text is not a validation error:
// it yields an empty result set.
func (q *SearchQuery) Validate() error {
	if q.MaxResults < 1 {
		return fmt.Errorf("%w: max results must be >= 1, got %d", ErrInvalidQuery, q.MaxResults)
	}

	if q.MaxResults > MaxAllowedResults {
		return fmt.Errorf("%w: max results must be <= %d, got %d", ErrInvalidQuery, MaxAllowedResults, q.MaxResults)
	}

	if q.SemanticWeight < 0 || q.KeywordWeight < 0 || q.FullTextWeight < 0 {
		return fmt.Errorf("%w: weights must be non-negative", ErrInvalidQuery)
	}

	if q.WeightSum() == 0 {
		return fmt.Errorf("%w: at least one weight must be positive", ErrInvalidQuery)
	}

	if q.MinRelevanceScore < 0 || q.MinRelevanceScore > 1 {
		return fmt.Errorf("%w: min relevance score must be in [0, 1], got %.3f", ErrInvalidQuery, q.MinRelevanceScore)
	}

	for _, ct := range q.Filters.ContentTypes {
		if !ct.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidContentType, ct)
		}
	}

	return nil
}
