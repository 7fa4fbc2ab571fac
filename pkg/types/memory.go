package types

import (
	"errors"
	"fmt"
	"time"
)

// ContentType classifies what kind of knowledge a memory entry holds
type ContentType string

const (
	ContentCode          ContentType = "code"
	ContentDocumentation ContentType = "documentation"
	ContentContext       ContentType = "context"
	ContentOutput        ContentType = "output"
	ContentError         ContentType = "error"
	ContentDecision      ContentType = "decision"
	ContentLearning      ContentType = "learning"
)

// AllContentTypes lists the closed set of content types in a stable order
var AllContentTypes = []ContentType{
	ContentCode,
	ContentDocumentation,
	ContentContext,
	ContentOutput,
	ContentError,
	ContentDecision,
	ContentLearning,
}

// IsValid reports whether t belongs to the closed content type set
func (t ContentType) IsValid() bool {
	switch t {
	case ContentCode, ContentDocumentation, ContentContext, ContentOutput,
		ContentError, ContentDecision, ContentLearning:
		return true
	default:
		return false
	}
}

// ParseContentType converts a user supplied string into a ContentType
func ParseContentType(s string) (ContentType, error) {
	t := ContentType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidContentType, s)
	}
	return t, nil
}

// Bounds for derived entry metrics
const (
	MinComplexity = 1
	MaxComplexity = 10
	MinSentiment  = -1.0
	MaxSentiment  = 1.0
)

// MemoryEntry is one captured piece of knowledge.
// Entries are immutable by convention: after ingestion only the access
// counter and the archived flag change.
type MemoryEntry struct {
	// Identification
	ID string

	// Content
	Content       string
	ContentType   ContentType
	ContentFormat string

	// Extracted features
	Keywords        []string
	Entities        []string
	Sentiment       float64 // [-1, 1]
	ComplexityScore int     // [1, 10]

	// Embedding is optional; when present len(Embedding) == EmbeddingDimension
	Embedding          []float32
	EmbeddingDimension int

	// Back-references only, the entry does not own the task/phase/plan
	TaskID  string
	PhaseID string
	PlanID  string

	// Bookkeeping
	AccessCount    int
	RelevanceScore float64
	Archived       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasEmbedding reports whether the entry carries a vector
func (m *MemoryEntry) HasEmbedding() bool {
	return len(m.Embedding) > 0
}

// Validate checks the entry invariants
func (m *MemoryEntry) Validate() error {
	if m.Content == "" {
		return ErrEmptyContent
	}

	if !m.ContentType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidContentType, m.ContentType)
	}

	if m.Sentiment < MinSentiment || m.Sentiment > MaxSentiment {
		return fmt.Errorf("sentiment %.3f out of range [-1, 1]", m.Sentiment)
	}

	if m.ComplexityScore < MinComplexity || m.ComplexityScore > MaxComplexity {
		return fmt.Errorf("complexity score %d out of range [1, 10]", m.ComplexityScore)
	}

	if m.HasEmbedding() && m.EmbeddingDimension != 0 && len(m.Embedding) != m.EmbeddingDimension {
		return fmt.Errorf("%w: embedding has %d values, declared dimension %d",
			ErrDimensionMismatch, len(m.Embedding), m.EmbeddingDimension)
	}

	if !m.HasEmbedding() && m.EmbeddingDimension != 0 {
		return errors.New("embedding dimension declared without embedding")
	}

	return nil
}

// Clone returns a deep copy of the entry
func (m *MemoryEntry) Clone() *MemoryEntry {
	c := *m
	if m.Keywords != nil {
		c.Keywords = append([]string(nil), m.Keywords...)
	}
	if m.Entities != nil {
		c.Entities = append([]string(nil), m.Entities...)
	}
	if m.Embedding != nil {
		c.Embedding = append([]float32(nil), m.Embedding...)
	}
	return &c
}
