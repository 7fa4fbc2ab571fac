// Package app wires storage, embedding, search, assembly and ingestion
// into one set of components shared by the MCP server, the HTTP API and
// the CLI.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/fulvian/devstream/internal/assembler"
	"github.com/fulvian/devstream/internal/config"
	"github.com/fulvian/devstream/internal/embedder"
	"github.com/fulvian/devstream/internal/features"
	"github.com/fulvian/devstream/internal/indexer"
	"github.com/fulvian/devstream/internal/memory"
	"github.com/fulvian/devstream/internal/searcher"
	"github.com/fulvian/devstream/internal/storage"
)

// App holds the wired components
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Store     *storage.SQLiteStorage
	Embedder  embedder.Embedder
	Searcher  *searcher.Searcher
	Assembler *assembler.Assembler
	Memory    *memory.Service
	Indexer   *indexer.Indexer
}

// New opens the database and builds the embedder named in cfg
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	a, err := NewWithEmbedder(cfg, logger, emb)
	if err != nil {
		_ = emb.Close()
		return nil, err
	}
	return a, nil
}

// NewWithEmbedder is New with a caller supplied embedder
func NewWithEmbedder(cfg *config.Config, logger zerolog.Logger, emb embedder.Embedder) (*App, error) {
	if err := ensureDir(cfg.Database.Path); err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	extractor := features.NewExtractor()
	srch := searcher.NewSearcher(store, emb, extractor, cfg.SearcherOptions(&logger))
	asm := assembler.New(srch, cfg.AssemblerOptions(&logger))
	svc := memory.NewService(store, srch, extractor, memory.Options{Logger: &logger})
	idx := indexer.New(store, svc, &logger)

	logger.Info().
		Str("db", cfg.Database.Path).
		Str("build_mode", storage.BuildMode).
		Str("provider", emb.Provider()).
		Str("model", emb.Model()).
		Int("dimension", emb.Dimension()).
		Msg("memory engine ready")

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Embedder:  emb,
		Searcher:  srch,
		Assembler: asm,
		Memory:    svc,
		Indexer:   idx,
	}, nil
}

// Close releases the embedder and the database
func (a *App) Close() error {
	return errors.Join(a.Embedder.Close(), a.Store.Close())
}

func ensureDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}
