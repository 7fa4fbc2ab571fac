// Package searcher implements hybrid memory search combining semantic,
// keyword and full-text retrieval.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, emb, features.NewExtractor(), searcher.DefaultOptions())
//
//	results, err := s.HybridSearch(ctx, types.DefaultSearchQuery("refresh token rotation"))
//
//	for _, r := range results {
//	    fmt.Printf("[%d] %s (score: %.2f)\n", r.Rank, r.Entry.ID, r.Score)
//	}
//
// # Fusion
//
// The three strategies run concurrently, each fetching
// MaxResults * CandidateMultiplier candidates:
//
//   - semantic: cosine similarity between the query embedding and entry
//     embeddings (entries without a vector never contribute)
//   - keyword: overlap between query keywords and entry keywords
//   - full_text: FTS5 bm25 over entry content
//
// Each strategy's raw scores are divided by that strategy's maximum, then
// combined per entry as
//
//	(ws*semantic + wk*keyword + wf*full_text) / (ws + wk + wf)
//
// with 0 for strategies that did not find the entry. The weights are
// independent dials and need not sum to 1. A zero weight strategy still
// runs and is reported in SearchResult.Contributions.
//
// Results are unique by entry ID, filtered by MinRelevanceScore and sorted
// by score, newest first on ties, then by ID.
//
// # Embedding Cache
//
// Query embeddings are cached per Searcher in an LRU keyed by the SHA-256 of
// the exact query text. A repeated query never calls the embedder again.
// Vectors computed for a cancelled request are discarded.
//
// # Errors
//
// Any strategy failure fails the whole search with *types.SearchError naming
// the strategy. Storage calls are retried with the configured policy;
// validation errors and cancellation are not. An embedding failure is a
// semantic SearchError wrapping *types.EmbeddingError.
//
// # Thread Safety
//
// Searcher is safe for concurrent use. The embedding cache is the only
// shared mutable state.
package searcher
