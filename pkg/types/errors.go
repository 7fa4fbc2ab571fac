package types

import (
	"errors"
	"fmt"
)

// Domain errors for type validation
var (
	// Search result errors
	ErrInvalidEntryID        = errors.New("invalid memory entry ID")
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
	ErrEmptyContent          = errors.New("content cannot be empty")
	ErrInvalidContentType    = errors.New("invalid content type")

	// Scoring errors; both indicate a caller or logic bug and are never retried
	ErrDimensionMismatch   = errors.New("vector dimension mismatch")
	ErrScoreLengthMismatch = errors.New("score list length mismatch")

	// Request validation errors
	ErrInvalidQuery       = errors.New("invalid search query")
	ErrInvalidTokenBudget = errors.New("token budget must be >= 0")
	ErrInvalidStrategy    = errors.New("invalid prioritization strategy")
)

// StorageError reports a failure of the storage collaborator
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// EmbeddingError reports a failure of the embedding inference collaborator
type EmbeddingError struct {
	Provider string
	Timeout  bool
	Err      error
}

func (e *EmbeddingError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("embedding provider %s timed out: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// SearchError reports which retrieval strategy failed a hybrid search
type SearchError struct {
	Strategy Strategy
	Err      error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("%s search failed: %v", e.Strategy, e.Err)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// ContextError reports a failure while assembling context
type ContextError struct {
	Op  string
	Err error
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("context assembly %s: %v", e.Op, e.Err)
}

func (e *ContextError) Unwrap() error {
	return e.Err
}
