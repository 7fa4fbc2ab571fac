// Package memory is the ingestion facade: it turns raw text into stored
// memory entries and exposes the lifecycle operations the rest of the
// system needs.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fulvian/devstream/internal/features"
	"github.com/fulvian/devstream/internal/storage"
	"github.com/fulvian/devstream/pkg/types"
)

// Store is the subset of storage.Storage used by the service
type Store interface {
	CreateEntry(ctx context.Context, entry *types.MemoryEntry) error
	GetEntry(ctx context.Context, id string) (*types.MemoryEntry, error)
	ListEntries(ctx context.Context, opts storage.ListOptions) ([]*types.MemoryEntry, error)
	ArchiveEntry(ctx context.Context, id string) error
}

// VectorSource produces embeddings for new entries. The searcher
// implements it so ingestion shares the query embedding cache.
type VectorSource interface {
	QueryEmbedding(ctx context.Context, text string) ([]float32, error)
}

// RememberRequest describes a new memory
type RememberRequest struct {
	Content       string
	ContentType   types.ContentType
	ContentFormat string

	// Extra keywords merged with the extracted ones
	Keywords []string

	TaskID  string
	PhaseID string
	PlanID  string

	// SkipEmbedding stores the entry without a vector
	SkipEmbedding bool
}

// Options configures a Service
type Options struct {
	// RequireEmbedding fails Remember when the embedder fails instead of
	// storing the entry without a vector
	RequireEmbedding bool

	Logger *zerolog.Logger
}

// Service stores and manages memory entries
type Service struct {
	store     Store
	vectors   VectorSource
	extractor *features.Extractor
	opts      Options
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a memory service. vectors may be nil, in which case
// entries are stored without embeddings.
func NewService(store Store, vectors VectorSource, extractor *features.Extractor, opts Options) *Service {
	if extractor == nil {
		extractor = features.NewExtractor()
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Service{
		store:     store,
		vectors:   vectors,
		extractor: extractor,
		opts:      opts,
		logger:    logger.With().Str("component", "memory").Logger(),
		now:       time.Now,
	}
}

// Remember extracts features, embeds and persists a new entry
func (s *Service) Remember(ctx context.Context, req RememberRequest) (*types.MemoryEntry, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, types.ErrEmptyContent
	}
	if !req.ContentType.IsValid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidContentType, req.ContentType)
	}

	f := s.extractor.Extract(content)

	format := req.ContentFormat
	if format == "" {
		format = detectFormat(req.ContentType, content)
	}

	now := s.now().UTC()
	entry := &types.MemoryEntry{
		ID:              uuid.New().String(),
		Content:         content,
		ContentType:     req.ContentType,
		ContentFormat:   format,
		Keywords:        mergeKeywords(f.Keywords, req.Keywords),
		Entities:        f.Entities,
		Sentiment:       f.Sentiment,
		ComplexityScore: f.ComplexityScore,
		TaskID:          req.TaskID,
		PhaseID:         req.PhaseID,
		PlanID:          req.PlanID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if s.vectors != nil && !req.SkipEmbedding {
		vector, err := s.vectors.QueryEmbedding(ctx, content)
		switch {
		case err == nil:
			entry.Embedding = vector
			entry.EmbeddingDimension = len(vector)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case s.opts.RequireEmbedding:
			return nil, fmt.Errorf("embed content: %w", err)
		default:
			s.logger.Warn().Err(err).Str("id", entry.ID).Msg("storing memory without embedding")
		}
	}

	if err := s.store.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("store memory: %w", err)
	}

	s.logger.Debug().
		Str("id", entry.ID).
		Str("content_type", string(entry.ContentType)).
		Int("keywords", len(entry.Keywords)).
		Bool("embedded", entry.HasEmbedding()).
		Msg("memory stored")

	return entry, nil
}

// Get returns an entry by ID
func (s *Service) Get(ctx context.Context, id string) (*types.MemoryEntry, error) {
	if id == "" {
		return nil, types.ErrInvalidEntryID
	}
	return s.store.GetEntry(ctx, id)
}

// List returns entries newest first
func (s *Service) List(ctx context.Context, opts storage.ListOptions) ([]*types.MemoryEntry, error) {
	return s.store.ListEntries(ctx, opts)
}

// Archive hides an entry from search without deleting it
func (s *Service) Archive(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidEntryID
	}
	if err := s.store.ArchiveEntry(ctx, id); err != nil {
		return fmt.Errorf("archive memory %s: %w", id, err)
	}
	s.logger.Debug().Str("id", id).Msg("memory archived")
	return nil
}

// mergeKeywords appends lowercased extras not already present
func mergeKeywords(extracted, extra []string) []string {
	seen := make(map[string]struct{}, len(extracted)+len(extra))
	out := make([]string, 0, len(extracted)+len(extra))
	for _, list := range [][]string{extracted, extra} {
		for _, k := range list {
			k = strings.ToLower(strings.TrimSpace(k))
			if k == "" {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// detectFormat guesses the content format when the caller gives none
func detectFormat(ct types.ContentType, content string) string {
	switch {
	case ct == types.ContentCode:
		return "code"
	case strings.Contains(content, "```") || strings.HasPrefix(content, "#") || strings.Contains(content, "\n- "):
		return "markdown"
	default:
		return "text"
	}
}
