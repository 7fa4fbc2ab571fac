package storage

import (
	"context"
	"time"

	"github.com/fulvian/devstream/pkg/types"
)

// Storage defines the interface for persisting and querying memory entries
type Storage interface {
	// Entry operations
	CreateEntry(ctx context.Context, entry *types.MemoryEntry) error
	GetEntry(ctx context.Context, id string) (*types.MemoryEntry, error)
	ListEntries(ctx context.Context, opts ListOptions) ([]*types.MemoryEntry, error)
	IncrementAccessCount(ctx context.Context, ids []string) error
	ArchiveEntry(ctx context.Context, id string) error

	// Search operations. Each returns at most limit entries, best first.
	SearchByEmbedding(ctx context.Context, vector []float32, limit int, filters types.SearchFilters) ([]ScoredEntry, error)
	SearchByKeywords(ctx context.Context, keywords []string, limit int, filters types.SearchFilters) ([]ScoredEntry, error)
	SearchFullText(ctx context.Context, text string, limit int, filters types.SearchFilters) ([]ScoredEntry, error)

	// Source file tracking for directory imports
	GetSourceFile(ctx context.Context, path string) (*SourceFile, error)
	UpsertSourceFile(ctx context.Context, file *SourceFile) error

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// ScoredEntry is a candidate returned by one retrieval strategy.
// Score is the strategy's raw score, higher is better.
type ScoredEntry struct {
	Entry *types.MemoryEntry
	Score float64
}

// SourceFile records an imported file and the memories created from it
type SourceFile struct {
	Path        string
	ContentHash string
	MemoryIDs   []string
	SizeBytes   int64
	ImportedAt  time.Time
}

// ListOptions controls ListEntries paging and filtering
type ListOptions struct {
	Filters types.SearchFilters
	Limit   int // 0 means no limit
	Offset  int
}

// Status contains statistics about the memory store
type Status struct {
	SchemaVersion   string
	BuildMode       string
	TotalEntries    int
	EmbeddedEntries int
	ArchivedEntries int
	EntriesByType   map[types.ContentType]int
	LastEntryAt     time.Time
	Health          HealthStatus
}

// HealthStatus represents the health of the store
type HealthStatus struct {
	DatabaseAccessible bool
	VectorExtension    bool
	FTSIndexBuilt      bool
}
