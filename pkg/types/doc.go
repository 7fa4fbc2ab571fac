// Package types provides shared type definitions for the DevStream memory engine.
//
// This package defines the domain types used across the search and context
// assembly components: memory entries, search queries, fused search results,
// and context assembly results, together with the error taxonomy shared by
// every layer.
//
// # Core Types
//
// MemoryEntry is one captured piece of knowledge persisted by the storage layer:
//
//	entry := &types.MemoryEntry{
//	    ID:              "6f1c...",
//	    Content:         "Use WAL mode for concurrent readers",
//	    ContentType:     types.ContentDecision,
//	    Keywords:        []string{"sqlite", "wal"},
//	    ComplexityScore: 3,
//	}
//
// SearchQuery carries the caller's query text together with three independent
// strategy weights. The weights are not required to sum to 1; fusion divides
// by their sum:
//
//	q := types.DefaultSearchQuery("sqlite concurrency")
//	q.KeywordWeight = 0
//
// # Search Results
//
// SearchResult pairs an entry with its fused relevance score in [0, 1] and a
// typed list of the strategies that found it:
//
//	for _, c := range result.Contributions {
//	    fmt.Printf("%s raw=%.3f norm=%.3f\n", c.Strategy, c.RawScore, c.NormalizedScore)
//	}
//
// # Errors
//
// Sentinel errors (ErrDimensionMismatch, ErrScoreLengthMismatch,
// ErrInvalidTokenBudget, ...) are wrapped by the typed errors StorageError,
// EmbeddingError, SearchError and ContextError so callers can use errors.Is and
// errors.As to find both the failing component and the root cause.
package types
