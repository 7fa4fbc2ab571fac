package types

// Strategy identifies one retrieval strategy of the hybrid search
type Strategy string

const (
	StrategySemantic Strategy = "semantic"
	StrategyKeyword  Strategy = "keyword"
	StrategyFullText Strategy = "full_text"
)

// AllStrategies lists the retrieval strategies in fusion order
var AllStrategies = []Strategy{StrategySemantic, StrategyKeyword, StrategyFullText}

// StrategyScore records how one strategy scored a result
type StrategyScore struct {
	Strategy        Strategy
	RawScore        float64
	NormalizedScore float64
}

// SearchResult represents a single fused search result
type SearchResult struct {
	Entry *MemoryEntry
	Rank  int // Position in result set (1-based)

	// Fused score in [0, 1]
	Score float64

	// Strategies that found this entry, in fusion order
	Contributions []StrategyScore
}

// FoundBy reports whether the given strategy contributed to this result
func (sr *SearchResult) FoundBy(s Strategy) bool {
	for _, c := range sr.Contributions {
		if c.Strategy == s {
			return true
		}
	}
	return false
}

// Contribution returns the score recorded for the given strategy
func (sr *SearchResult) Contribution(s Strategy) (StrategyScore, bool) {
	for _, c := range sr.Contributions {
		if c.Strategy == s {
			return c, true
		}
	}
	return StrategyScore{}, false
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Entry == nil || sr.Entry.ID == "" {
		return ErrInvalidEntryID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.Score < 0 || sr.Score > 1 {
		return ErrInvalidRelevanceScore
	}

	return nil
}
