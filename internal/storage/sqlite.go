package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulvian/devstream/internal/retry"
	"github.com/fulvian/devstream/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
	// ErrNestedTx is returned when BeginTx is called on a transaction
	ErrNestedTx = errors.New("nested transactions not supported")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapErr("begin_tx", err)
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// wrapErr attaches the failing operation to a storage error
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var storageErr *types.StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	return &types.StorageError{Op: op, Err: err}
}

// queryError wraps a failed search query. Only lock contention can succeed
// on a later attempt; schema, syntax and missing function errors are marked
// permanent so the searcher does not retry them.
func queryError(msg string, err error) error {
	wrapped := fmt.Errorf("%s: %w", msg, err)
	if isBusy(err) || errors.Is(err, context.DeadlineExceeded) {
		return wrapped
	}
	return retry.Permanent(wrapped)
}

// isBusy matches SQLITE_BUSY and SQLITE_LOCKED from either driver
func isBusy(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}

// memoryColumns is the column list read by scanEntry, in order
const memoryColumns = `m.id, m.content, m.content_type, m.content_format, m.keywords, m.entities,
	m.sentiment, m.complexity_score, m.embedding, m.embedding_dimension,
	m.task_id, m.phase_id, m.plan_id, m.access_count, m.relevance_score, m.archived,
	m.created_at, m.updated_at`

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanEntry scans memoryColumns followed by any extra destinations
func scanEntry(row rowScanner, extra ...interface{}) (*types.MemoryEntry, error) {
	var entry types.MemoryEntry
	var contentType, keywords, entities string
	var embedding []byte

	dest := []interface{}{
		&entry.ID, &entry.Content, &contentType, &entry.ContentFormat, &keywords, &entities,
		&entry.Sentiment, &entry.ComplexityScore, &embedding, &entry.EmbeddingDimension,
		&entry.TaskID, &entry.PhaseID, &entry.PlanID, &entry.AccessCount, &entry.RelevanceScore, &entry.Archived,
		&entry.CreatedAt, &entry.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	entry.ContentType = types.ContentType(contentType)
	if err := json.Unmarshal([]byte(keywords), &entry.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords of %s: %w", entry.ID, err)
	}
	if err := json.Unmarshal([]byte(entities), &entry.Entities); err != nil {
		return nil, fmt.Errorf("decode entities of %s: %w", entry.ID, err)
	}
	if len(embedding) > 0 {
		entry.Embedding = deserializeVector(embedding)
	}

	return &entry, nil
}

// normalizeKeywords lowercases, trims and deduplicates keywords
func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// Entry operations

// createEntryWithQuerier is the internal implementation that uses a querier
func createEntryWithQuerier(ctx context.Context, q querier, entry *types.MemoryEntry) error {
	if entry.ID == "" {
		return types.ErrInvalidEntryID
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	if entry.ContentFormat == "" {
		entry.ContentFormat = "text"
	}
	if entry.HasEmbedding() && entry.EmbeddingDimension == 0 {
		entry.EmbeddingDimension = len(entry.Embedding)
	}

	keywords := entry.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	entities := entry.Entities
	if entities == nil {
		entities = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}

	var embedding interface{}
	if entry.HasEmbedding() {
		embedding = serializeVector(entry.Embedding)
	}

	query := `
		INSERT INTO memories (
			id, content, content_type, content_format, keywords, entities,
			sentiment, complexity_score, embedding, embedding_dimension,
			task_id, phase_id, plan_id, access_count, relevance_score, archived,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query,
		entry.ID, entry.Content, string(entry.ContentType), entry.ContentFormat,
		string(keywordsJSON), string(entitiesJSON),
		entry.Sentiment, entry.ComplexityScore, embedding, entry.EmbeddingDimension,
		entry.TaskID, entry.PhaseID, entry.PlanID, entry.AccessCount, entry.RelevanceScore, entry.Archived,
		entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: memory %s", ErrAlreadyExists, entry.ID)
		}
		return fmt.Errorf("failed to insert memory: %w", err)
	}

	for _, kw := range normalizeKeywords(entry.Keywords) {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO memory_keywords (memory_id, keyword) VALUES (?, ?)", entry.ID, kw); err != nil {
			return fmt.Errorf("failed to index keyword %q: %w", kw, err)
		}
	}

	return nil
}

// CreateEntry persists a new entry and its keyword index atomically
func (s *SQLiteStorage) CreateEntry(ctx context.Context, entry *types.MemoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("create_entry", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := createEntryWithQuerier(ctx, tx, entry); err != nil {
		return wrapErr("create_entry", err)
	}
	return wrapErr("create_entry", tx.Commit())
}

// getEntryWithQuerier is the internal implementation that uses a querier
func getEntryWithQuerier(ctx context.Context, q querier, id string) (*types.MemoryEntry, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories m WHERE m.id = ?`
	entry, err := scanEntry(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: memory %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *SQLiteStorage) GetEntry(ctx context.Context, id string) (*types.MemoryEntry, error) {
	entry, err := getEntryWithQuerier(ctx, s.db, id)
	return entry, wrapErr("get_entry", err)
}

// listEntriesWithQuerier is the internal implementation that uses a querier
func listEntriesWithQuerier(ctx context.Context, q querier, opts ListOptions) ([]*types.MemoryEntry, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories m WHERE 1=1`
	query, args := applyFilters(query, nil, opts.Filters)
	query += " ORDER BY m.created_at DESC, m.id ASC"

	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*types.MemoryEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteStorage) ListEntries(ctx context.Context, opts ListOptions) ([]*types.MemoryEntry, error) {
	entries, err := listEntriesWithQuerier(ctx, s.db, opts)
	return entries, wrapErr("list_entries", err)
}

// incrementAccessCountWithQuerier is the internal implementation that uses a querier
func incrementAccessCountWithQuerier(ctx context.Context, q querier, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := "UPDATE memories SET access_count = access_count + 1, updated_at = ? WHERE id IN (" +
		placeholders(len(ids)) + ")"
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update access counts: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) IncrementAccessCount(ctx context.Context, ids []string) error {
	return wrapErr("increment_access", incrementAccessCountWithQuerier(ctx, s.db, ids))
}

// archiveEntryWithQuerier is the internal implementation that uses a querier
func archiveEntryWithQuerier(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx,
		"UPDATE memories SET archived = 1, updated_at = ? WHERE id = ?", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to archive memory: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: memory %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStorage) ArchiveEntry(ctx context.Context, id string) error {
	return wrapErr("archive_entry", archiveEntryWithQuerier(ctx, s.db, id))
}

// Search operations

func (s *SQLiteStorage) SearchByEmbedding(ctx context.Context, vector []float32, limit int, filters types.SearchFilters) ([]ScoredEntry, error) {
	results, err := searchByEmbedding(ctx, s.db, vector, limit, filters)
	return results, wrapErr("search_embedding", err)
}

func (s *SQLiteStorage) SearchByKeywords(ctx context.Context, keywords []string, limit int, filters types.SearchFilters) ([]ScoredEntry, error) {
	results, err := searchByKeywords(ctx, s.db, keywords, limit, filters)
	return results, wrapErr("search_keywords", err)
}

func (s *SQLiteStorage) SearchFullText(ctx context.Context, text string, limit int, filters types.SearchFilters) ([]ScoredEntry, error) {
	results, err := searchFullText(ctx, s.db, text, limit, filters)
	return results, wrapErr("search_full_text", err)
}

// Status operations

// GetStatus returns statistics about the memory store
func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status, err := getStatusWithQuerier(ctx, s.db)
	if err != nil {
		return nil, wrapErr("get_status", err)
	}

	version, err := SchemaVersion(ctx, s.db)
	if err != nil {
		return nil, wrapErr("get_status", err)
	}
	status.SchemaVersion = version
	return status, nil
}

func getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{
		BuildMode:     BuildMode,
		EntriesByType: make(map[types.ContentType]int),
		Health: HealthStatus{
			DatabaseAccessible: true,
			VectorExtension:    VectorExtensionAvailable,
		},
	}

	err := q.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN embedding IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN archived = 1 THEN 1 ELSE 0 END), 0)
		FROM memories
	`).Scan(&status.TotalEntries, &status.EmbeddedEntries, &status.ArchivedEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to count memories: %w", err)
	}

	rows, err := q.QueryContext(ctx, "SELECT content_type, COUNT(*) FROM memories GROUP BY content_type")
	if err != nil {
		return nil, fmt.Errorf("failed to count by type: %w", err)
	}
	for rows.Next() {
		var contentType string
		var count int
		if err := rows.Scan(&contentType, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		status.EntriesByType[types.ContentType(contentType)] = count
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	// Read the column directly so the driver keeps its TIMESTAMP type
	var lastEntryAt time.Time
	err = q.QueryRowContext(ctx, "SELECT created_at FROM memories ORDER BY created_at DESC LIMIT 1").Scan(&lastEntryAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read last entry time: %w", err)
	}
	status.LastEntryAt = lastEntryAt

	var ftsName string
	err = q.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='memories_fts'").Scan(&ftsName)
	status.Health.FTSIndexBuilt = err == nil

	return status, nil
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return wrapErr("commit", t.tx.Commit())
}

func (t *sqliteTx) Rollback() error {
	return wrapErr("rollback", t.tx.Rollback())
}

func (t *sqliteTx) CreateEntry(ctx context.Context, entry *types.MemoryEntry) error {
	return wrapErr("create_entry", createEntryWithQuerier(ctx, t.tx, entry))
}

func (t *sqliteTx) GetEntry(ctx context.Context, id string) (*types.MemoryEntry, error) {
	entry, err := getEntryWithQuerier(ctx, t.tx, id)
	return entry, wrapErr("get_entry", err)
}

func (t *sqliteTx) ListEntries(ctx context.Context, opts ListOptions) ([]*types.MemoryEntry, error) {
	entries, err := listEntriesWithQuerier(ctx, t.tx, opts)
	return entries, wrapErr("list_entries", err)
}

func (t *sqliteTx) IncrementAccessCount(ctx context.Context, ids []string) error {
	return wrapErr("increment_access", incrementAccessCountWithQuerier(ctx, t.tx, ids))
}

func (t *sqliteTx) ArchiveEntry(ctx context.Context, id string) error {
	return wrapErr("archive_entry", archiveEntryWithQuerier(ctx, t.tx, id))
}

func (t *sqliteTx) SearchByEmbedding(ctx context.Context, vector []float32, limit int, filters types.SearchFilters) ([]ScoredEntry, error) {
	results, err := searchByEmbedding(ctx, t.tx, vector, limit, filters)
	return results, wrapErr("search_embedding", err)
}

func (t *sqliteTx) SearchByKeywords(ctx context.Context, keywords []string, limit int, filters types.SearchFilters) ([]ScoredEntry, error) {
	results, err := searchByKeywords(ctx, t.tx, keywords, limit, filters)
	return results, wrapErr("search_keywords", err)
}

func (t *sqliteTx) SearchFullText(ctx context.Context, text string, limit int, filters types.SearchFilters) ([]ScoredEntry, error) {
	results, err := searchFullText(ctx, t.tx, text, limit, filters)
	return results, wrapErr("search_full_text", err)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	status, err := getStatusWithQuerier(ctx, t.tx)
	if err != nil {
		return nil, wrapErr("get_status", err)
	}
	return status, nil
}

// Close is a no-op; the transaction ends with Commit or Rollback
func (t *sqliteTx) Close() error {
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, wrapErr("begin_tx", ErrNestedTx)
}
