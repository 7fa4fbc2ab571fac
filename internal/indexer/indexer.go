package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fulvian/devstream/internal/memory"
	"github.com/fulvian/devstream/internal/storage"
	"github.com/fulvian/devstream/pkg/types"
)

// ErrImportInProgress is returned when another import holds the lock
var ErrImportInProgress = errors.New("import already in progress")

// Rememberer stores and archives memories
type Rememberer interface {
	Remember(ctx context.Context, req memory.RememberRequest) (*types.MemoryEntry, error)
	Archive(ctx context.Context, id string) error
}

// Sources tracks imported files
type Sources interface {
	GetSourceFile(ctx context.Context, path string) (*storage.SourceFile, error)
	UpsertSourceFile(ctx context.Context, file *storage.SourceFile) error
}

// Indexer imports a directory of notes and source files as memories
type Indexer struct {
	sources Sources
	memory  Rememberer
	lock    IndexLock
	logger  zerolog.Logger
}

// Config contains configuration for an import
type Config struct {
	Workers        int               // Number of concurrent workers (default: runtime.NumCPU())
	Extensions     []string          // File extensions to import (default: DefaultExtensions)
	ContentType    types.ContentType // Overrides the per-extension content type when set
	TaskID         string            // Attached to every imported memory
	MaxChunkTokens int               // Chunk size (default: DefaultMaxChunkTokens)
	ForceReimport  bool              // Re-import files whose content hash is unchanged
}

// Statistics contains statistics about the import operation
type Statistics struct {
	FilesScanned     int
	FilesImported    int
	FilesSkipped     int
	FilesFailed      int
	MemoriesCreated  int
	MemoriesArchived int
	Duration         time.Duration
	ErrorMessages    []string
}

// documentExtensions map to documentation, everything else imported is code
var documentExtensions = map[string]bool{
	".md": true, ".markdown": true, ".txt": true, ".rst": true,
}

// DefaultExtensions are imported when Config.Extensions is empty
var DefaultExtensions = []string{
	".md", ".markdown", ".txt", ".rst",
	".go", ".py", ".ts", ".tsx", ".js", ".rs", ".java", ".sql", ".sh",
}

// skipDirs are never descended into
var skipDirs = map[string]bool{
	"vendor": true, "node_modules": true, "_examples": true,
}

// New creates a new Indexer instance
func New(sources Sources, mem Rememberer, logger *zerolog.Logger) *Indexer {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Indexer{
		sources: sources,
		memory:  mem,
		logger:  l.With().Str("component", "indexer").Logger(),
	}
}

// Import walks rootPath and stores every matching file as one or more
// memories. Unchanged files are skipped; changed files have their previous
// memories archived.
func (idx *Indexer) Import(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrImportInProgress
	}
	defer idx.lock.Release()

	if config == nil {
		config = &Config{}
	}
	cfg := *config
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.MaxChunkTokens <= 0 {
		cfg.MaxChunkTokens = DefaultMaxChunkTokens
	}
	if cfg.ContentType != "" && !cfg.ContentType.IsValid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidContentType, cfg.ContentType)
	}

	root, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	startTime := time.Now()
	files, err := discoverFiles(root, cfg.Extensions)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	stats := &Statistics{
		FilesScanned:  len(files),
		ErrorMessages: make([]string, 0),
	}
	if err := idx.importFiles(ctx, files, &cfg, stats); err != nil {
		return nil, err
	}
	stats.Duration = time.Since(startTime)

	idx.logger.Info().
		Str("root", root).
		Int("scanned", stats.FilesScanned).
		Int("imported", stats.FilesImported).
		Int("skipped", stats.FilesSkipped).
		Int("failed", stats.FilesFailed).
		Int("memories", stats.MemoriesCreated).
		Dur("duration", stats.Duration).
		Msg("import completed")

	return stats, nil
}

// discoverFiles finds all files with a matching extension, sorted by path
func discoverFiles(root string, extensions []string) ([]string, error) {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || skipDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		if allowed[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// importFiles runs importFile over a bounded worker pool. Per-file failures
// are recorded and do not stop the import; cancellation does.
func (idx *Indexer) importFiles(ctx context.Context, files []string, cfg *Config, stats *Statistics) error {
	var (
		imported atomic.Int32
		skipped  atomic.Int32
		failed   atomic.Int32
		created  atomic.Int32
		archived atomic.Int32
		mu       sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := idx.importFile(gctx, path, cfg)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed.Add(1)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", path, err))
				mu.Unlock()
				idx.logger.Warn().Err(err).Str("file", path).Msg("import failed")
				return nil
			}
			if result.skipped {
				skipped.Add(1)
				return nil
			}
			imported.Add(1)
			created.Add(int32(result.created))
			archived.Add(int32(result.archived))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	stats.FilesImported = int(imported.Load())
	stats.FilesSkipped = int(skipped.Load())
	stats.FilesFailed = int(failed.Load())
	stats.MemoriesCreated = int(created.Load())
	stats.MemoriesArchived = int(archived.Load())
	sort.Strings(stats.ErrorMessages)
	return nil
}

type fileResult struct {
	skipped  bool
	created  int
	archived int
}

// importFile stores one file's chunks and replaces its previous memories.
// Files are tracked by absolute path.
func (idx *Indexer) importFile(ctx context.Context, path string, cfg *Config) (fileResult, error) {
	key := filepath.ToSlash(path)

	content, err := os.ReadFile(path)
	if err != nil {
		return fileResult{}, err
	}
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	var previous []string
	existing, err := idx.sources.GetSourceFile(ctx, key)
	switch {
	case err == nil:
		if existing.ContentHash == hash && !cfg.ForceReimport {
			return fileResult{skipped: true}, nil
		}
		previous = existing.MemoryIDs
	case !errors.Is(err, storage.ErrNotFound):
		return fileResult{}, err
	}

	contentType := cfg.ContentType
	if contentType == "" {
		contentType = contentTypeFor(path)
	}
	keyword := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

	var ids []string
	for _, chunk := range splitChunks(string(content), cfg.MaxChunkTokens) {
		entry, err := idx.memory.Remember(ctx, memory.RememberRequest{
			Content:     chunk,
			ContentType: contentType,
			Keywords:    []string{keyword},
			TaskID:      cfg.TaskID,
		})
		if err != nil {
			return fileResult{}, fmt.Errorf("chunk %d: %w", len(ids)+1, err)
		}
		ids = append(ids, entry.ID)
	}

	result := fileResult{created: len(ids)}
	for _, id := range previous {
		if err := idx.memory.Archive(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return result, fmt.Errorf("archive previous memory %s: %w", id, err)
		}
		result.archived++
	}

	err = idx.sources.UpsertSourceFile(ctx, &storage.SourceFile{
		Path:        key,
		ContentHash: hash,
		MemoryIDs:   ids,
		SizeBytes:   int64(len(content)),
	})
	return result, err
}

func contentTypeFor(path string) types.ContentType {
	if documentExtensions[strings.ToLower(filepath.Ext(path))] {
		return types.ContentDocumentation
	}
	return types.ContentCode
}
