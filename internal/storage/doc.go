// Package storage persists memory entries in SQLite and serves the three
// retrieval strategies of hybrid search.
//
// # Schema
//
// The memories table holds one row per entry, including its embedding as
// a little-endian float32 blob. Two secondary structures back the search
// strategies:
//
//   - memory_keywords: lowercased (memory_id, keyword) pairs for the
//     keyword strategy
//   - memories_fts: an FTS5 external-content index over content and
//     keywords, kept in sync by triggers
//
// Schema changes are versioned migrations ordered by semantic version
// (see ApplyMigrations).
//
// # Retrieval strategies
//
//	SearchByEmbedding  cosine similarity, in [-1, 1]
//	SearchByKeywords   matched query keywords / distinct query keywords, in [0, 1]
//	SearchFullText     negated FTS5 bm25, >= 0
//
// Scores are raw per strategy; callers normalize before fusing. All three
// exclude archived entries unless SearchFilters.IncludeArchived is set.
// Entries without an embedding, or with a different dimension than the
// query vector, never appear in SearchByEmbedding results.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go) and ranks vectors
// in Go. Building with the sqlite_vec tag switches to mattn/go-sqlite3
// and loads sqlite-vec so similarity is computed in SQL with
// vec_distance_cosine:
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./...
//
// # Errors
//
// Every failure is returned as *types.StorageError naming the operation.
// ErrNotFound and ErrAlreadyExists can be matched with errors.Is.
package storage
