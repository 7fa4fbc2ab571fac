package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/fulvian/devstream/internal/scoring"
	"github.com/fulvian/devstream/pkg/types"
)

// searchByEmbedding ranks embedded entries by cosine similarity to vector
func searchByEmbedding(ctx context.Context, q querier, vector []float32, limit int, filters types.SearchFilters) ([]ScoredEntry, error) {
	if limit <= 0 || len(vector) == 0 {
		return []ScoredEntry{}, nil
	}

	// Use optimized SQL-based search when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchByEmbeddingOptimized(ctx, q, vector, limit, filters)
	}
	// Fall back to Go-based computation for purego builds
	return searchByEmbeddingFallback(ctx, q, vector, limit, filters)
}

// searchByEmbeddingOptimized computes similarity in SQL with sqlite-vec
func searchByEmbeddingOptimized(ctx context.Context, q querier, vector []float32, limit int, filters types.SearchFilters) ([]ScoredEntry, error) {
	// vec_distance_cosine returns a distance (lower is better); convert to
	// similarity. Only same-dimension vectors are compared.
	query := `
		SELECT ` + memoryColumns + `,
			1.0 - vec_distance_cosine(m.embedding, ?) AS similarity
		FROM memories m
		WHERE m.embedding IS NOT NULL
		AND m.embedding_dimension = ?
	`
	args := []interface{}{serializeVector(vector), len(vector)}
	query, args = applyFilters(query, args, filters)

	query += " ORDER BY similarity DESC LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryError("failed to execute vector search", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]ScoredEntry, 0, limit)
	for rows.Next() {
		var score float64
		entry, err := scanEntry(rows, &score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, ScoredEntry{Entry: entry, Score: score})
	}

	return results, rows.Err()
}

// searchByEmbeddingFallback loads candidate vectors and ranks them in Go
func searchByEmbeddingFallback(ctx context.Context, q querier, vector []float32, limit int, filters types.SearchFilters) ([]ScoredEntry, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories m WHERE m.embedding IS NOT NULL`
	query, args := applyFilters(query, nil, filters)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryError("failed to query embeddings", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]ScoredEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		similarity, err := scoring.CosineSimilarity(vector, entry.Embedding)
		if err != nil {
			continue // Dimension mismatch, skip
		}
		candidates = append(candidates, ScoredEntry{Entry: entry, Score: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortScored(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// searchByKeywords scores entries by the fraction of query keywords they carry
func searchByKeywords(ctx context.Context, q querier, keywords []string, limit int, filters types.SearchFilters) ([]ScoredEntry, error) {
	keywords = normalizeKeywords(keywords)
	if limit <= 0 || len(keywords) == 0 {
		return []ScoredEntry{}, nil
	}

	query := `
		SELECT ` + memoryColumns + `,
			CAST(COUNT(k.keyword) AS REAL) / ? AS overlap
		FROM memories m
		INNER JOIN memory_keywords k ON k.memory_id = m.id
		WHERE k.keyword IN (` + placeholders(len(keywords)) + `)
	`
	args := make([]interface{}, 0, len(keywords)+4)
	args = append(args, float64(len(keywords)))
	for _, kw := range keywords {
		args = append(args, kw)
	}
	query, args = applyFilters(query, args, filters)

	query += " GROUP BY m.id ORDER BY overlap DESC, m.created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryError("failed to execute keyword search", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]ScoredEntry, 0, limit)
	for rows.Next() {
		var score float64
		entry, err := scanEntry(rows, &score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, ScoredEntry{Entry: entry, Score: score})
	}

	return results, rows.Err()
}

// searchFullText performs BM25 full-text search using FTS5
func searchFullText(ctx context.Context, q querier, text string, limit int, filters types.SearchFilters) ([]ScoredEntry, error) {
	match := buildFTSQuery(text)
	if limit <= 0 || match == "" {
		return []ScoredEntry{}, nil
	}

	// bm25() is negative with lower meaning better; negate it so that
	// higher is better like the other strategies.
	query := `
		SELECT ` + memoryColumns + `,
			-bm25(memories_fts) AS score
		FROM memories_fts
		INNER JOIN memories m ON m.rowid = memories_fts.rowid
		WHERE memories_fts MATCH ?
	`
	args := []interface{}{match}
	query, args = applyFilters(query, args, filters)

	query += " ORDER BY score DESC LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryError("failed to execute FTS search", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]ScoredEntry, 0, limit)
	for rows.Next() {
		var score float64
		entry, err := scanEntry(rows, &score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, ScoredEntry{Entry: entry, Score: math.Max(score, 0)})
	}

	return results, rows.Err()
}

// Helper functions

// applyFilters adds WHERE clause filters on the memories alias m
func applyFilters(query string, args []interface{}, filters types.SearchFilters) (string, []interface{}) {
	if !filters.IncludeArchived {
		query += " AND m.archived = 0"
	}

	if len(filters.ContentTypes) > 0 {
		query += " AND m.content_type IN (" + placeholders(len(filters.ContentTypes)) + ")"
		for _, ct := range filters.ContentTypes {
			args = append(args, string(ct))
		}
	}

	if filters.TaskID != "" {
		query += " AND m.task_id = ?"
		args = append(args, filters.TaskID)
	}

	return query, args
}

// placeholders returns n comma separated bind parameters
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// sortScored orders by score desc, then newest first, then ID
func sortScored(entries []ScoredEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].Entry.CreatedAt.Equal(entries[j].Entry.CreatedAt) {
			return entries[i].Entry.CreatedAt.After(entries[j].Entry.CreatedAt)
		}
		return entries[i].Entry.ID < entries[j].Entry.ID
	})
}

// buildFTSQuery turns free text into an FTS5 OR query of quoted terms.
// Only letters and digits survive, so FTS5 operators and syntax
// characters in the input can never reach the MATCH expression.
func buildFTSQuery(text string) string {
	terms := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		quoted = append(quoted, `"`+term+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// serializeVector converts a float32 slice to a byte blob (little-endian).
// This is also the layout sqlite-vec expects for float32 vectors.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// SerializeVector is the exported form of serializeVector
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is the exported form of deserializeVector
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}
