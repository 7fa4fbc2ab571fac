package types

import "fmt"

// PrioritizationStrategy orders search results before budget selection
type PrioritizationStrategy string

const (
	PrioritizeRelevance  PrioritizationStrategy = "relevance"
	PrioritizeRecency    PrioritizationStrategy = "recency"
	PrioritizeComplexity PrioritizationStrategy = "complexity"
	PrioritizeMixed      PrioritizationStrategy = "mixed"
)

// IsValid reports whether p is a known prioritization strategy
func (p PrioritizationStrategy) IsValid() bool {
	switch p {
	case PrioritizeRelevance, PrioritizeRecency, PrioritizeComplexity, PrioritizeMixed:
		return true
	default:
		return false
	}
}

// ParsePrioritizationStrategy converts a user supplied string into a strategy
func ParsePrioritizationStrategy(s string) (PrioritizationStrategy, error) {
	p := PrioritizationStrategy(s)
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
	}
	return p, nil
}

// ContextAssemblyResult is the budgeted context produced for a query
type ContextAssemblyResult struct {
	// Selected entries in render order
	Entries []MemoryEntry
	Context string

	// Token accounting
	TokenBudget     int
	TotalTokens     int
	TokensRemaining int

	MemoryCount int
	Strategy    PrioritizationStrategy

	// Truncated is set when at least one candidate was skipped for budget
	Truncated  bool
	Candidates int
	Skipped    int
}
