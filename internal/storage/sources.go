package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// getSourceFileWithQuerier is the internal implementation that uses a querier
func getSourceFileWithQuerier(ctx context.Context, q querier, path string) (*SourceFile, error) {
	var file SourceFile
	var memoryIDs string
	err := q.QueryRowContext(ctx,
		"SELECT path, content_hash, memory_ids, size_bytes, imported_at FROM source_files WHERE path = ?", path,
	).Scan(&file.Path, &file.ContentHash, &memoryIDs, &file.SizeBytes, &file.ImportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: source file %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(memoryIDs), &file.MemoryIDs); err != nil {
		return nil, fmt.Errorf("failed to decode memory ids of %s: %w", path, err)
	}
	return &file, nil
}

// upsertSourceFileWithQuerier is the internal implementation that uses a querier
func upsertSourceFileWithQuerier(ctx context.Context, q querier, file *SourceFile) error {
	if file.Path == "" {
		return errors.New("source file path is required")
	}
	if file.ImportedAt.IsZero() {
		file.ImportedAt = time.Now().UTC()
	}
	ids := file.MemoryIDs
	if ids == nil {
		ids = []string{}
	}
	memoryIDs, err := json.Marshal(ids)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO source_files (path, content_hash, memory_ids, size_bytes, imported_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			memory_ids = excluded.memory_ids,
			size_bytes = excluded.size_bytes,
			imported_at = excluded.imported_at
	`, file.Path, file.ContentHash, string(memoryIDs), file.SizeBytes, file.ImportedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert source file: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetSourceFile(ctx context.Context, path string) (*SourceFile, error) {
	file, err := getSourceFileWithQuerier(ctx, s.db, path)
	return file, wrapErr("get_source_file", err)
}

func (s *SQLiteStorage) UpsertSourceFile(ctx context.Context, file *SourceFile) error {
	return wrapErr("upsert_source_file", upsertSourceFileWithQuerier(ctx, s.db, file))
}

func (t *sqliteTx) GetSourceFile(ctx context.Context, path string) (*SourceFile, error) {
	file, err := getSourceFileWithQuerier(ctx, t.tx, path)
	return file, wrapErr("get_source_file", err)
}

func (t *sqliteTx) UpsertSourceFile(ctx context.Context, file *SourceFile) error {
	return wrapErr("upsert_source_file", upsertSourceFileWithQuerier(ctx, t.tx, file))
}
