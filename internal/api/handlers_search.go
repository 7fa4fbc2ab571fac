package api

import (
	"net/http"
	"strings"

	"github.com/fulvian/devstream/internal/assembler"
	"github.com/fulvian/devstream/internal/config"
	"github.com/fulvian/devstream/internal/searcher"
	"github.com/fulvian/devstream/internal/storage"
	"github.com/fulvian/devstream/pkg/types"
)

type SearchHandler struct {
	searcher  *searcher.Searcher
	assembler *assembler.Assembler
	store     storage.Storage
	cfg       *config.Config
}

func NewSearchHandler(s *searcher.Searcher, a *assembler.Assembler, store storage.Storage, cfg *config.Config) *SearchHandler {
	return &SearchHandler{searcher: s, assembler: a, store: store, cfg: cfg}
}

// Search handles POST /search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	query := h.cfg.DefaultQuery(req.Query)
	if req.MaxResults != nil {
		query.MaxResults = *req.MaxResults
	}
	if req.SemanticWeight != nil {
		query.SemanticWeight = *req.SemanticWeight
	}
	if req.KeywordWeight != nil {
		query.KeywordWeight = *req.KeywordWeight
	}
	if req.FullTextWeight != nil {
		query.FullTextWeight = *req.FullTextWeight
	}
	if req.MinRelevance != nil {
		query.MinRelevanceScore = *req.MinRelevance
	}
	query.Filters.TaskID = req.TaskID
	query.Filters.IncludeArchived = req.IncludeArchived
	for _, name := range req.ContentTypes {
		query.Filters.ContentTypes = append(query.Filters.ContentTypes, types.ContentType(name))
	}

	results, err := h.searcher.HybridSearch(r.Context(), query)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := SearchResponse{Query: req.Query, Results: make([]SearchHit, len(results)), Total: len(results)}
	for i, res := range results {
		resp.Results[i] = toSearchHit(res)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Context handles POST /context
func (h *SearchHandler) Context(w http.ResponseWriter, r *http.Request) {
	var req ContextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	budget := h.cfg.Context.TokenBudget
	if req.TokenBudget != nil {
		budget = *req.TokenBudget
	}
	strategy := h.cfg.DefaultStrategy()
	if req.Strategy != "" {
		strategy = types.PrioritizationStrategy(req.Strategy)
	}

	var (
		result *types.ContextAssemblyResult
		err    error
	)
	switch {
	case req.TaskID != "":
		result, err = h.assembler.AssembleContextForTask(r.Context(), req.TaskID, req.Query, strategy, budget)
	case req.ContentType != "":
		result, err = h.assembler.AssembleContextByType(r.Context(), types.ContentType(req.ContentType), req.Query, strategy, budget)
	default:
		result, err = h.assembler.AssembleContext(r.Context(), h.cfg.DefaultQuery(req.Query), strategy, budget)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ids := make([]string, len(result.Entries))
	for i, e := range result.Entries {
		ids[i] = e.ID
	}
	writeJSON(w, http.StatusOK, ContextResponse{
		Context:         result.Context,
		MemoryIDs:       ids,
		MemoryCount:     result.MemoryCount,
		Strategy:        string(result.Strategy),
		TokenBudget:     result.TokenBudget,
		TokensUsed:      result.TotalTokens,
		TokensRemaining: result.TokensRemaining,
		Truncated:       result.Truncated,
		Candidates:      result.Candidates,
		Skipped:         result.Skipped,
	})
}

// Stats handles GET /stats
func (h *SearchHandler) Stats(w http.ResponseWriter, r *http.Request) {
	status, err := h.store.GetStatus(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	stats := h.searcher.Stats()

	byType := make(map[string]int, len(status.EntriesByType))
	for ct, n := range status.EntriesByType {
		byType[string(ct)] = n
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		SchemaVersion:   status.SchemaVersion,
		BuildMode:       status.BuildMode,
		TotalEntries:    status.TotalEntries,
		EmbeddedEntries: status.EmbeddedEntries,
		ArchivedEntries: status.ArchivedEntries,
		EntriesByType:   byType,
		Searches:        stats.Searches,
		FailedSearches:  stats.FailedSearches,
		CacheHits:       stats.Cache.Hits,
		CacheMisses:     stats.Cache.Misses,
		CacheSize:       stats.Cache.Size,
		CacheHitRate:    stats.Cache.HitRate(),
	})
}
