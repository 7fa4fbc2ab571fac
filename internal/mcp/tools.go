package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fulvian/devstream/internal/indexer"
	"github.com/fulvian/devstream/internal/memory"
	"github.com/fulvian/devstream/internal/storage"
	"github.com/fulvian/devstream/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeMemoryNotFound = -32001 // No memory with the given ID
	ErrorCodeImportBusy     = -32002 // Import already in progress
	ErrorCodeEmptyQuery     = -32004 // Query parameter is empty
)

// contentPreviewLength bounds memory content in search responses
const contentPreviewLength = 500

// handleSearchMemory handles the search_memory tool invocation
func (s *Server) handleSearchMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	queryText, _ := args["query"].(string)
	if strings.TrimSpace(queryText) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	query := s.config.DefaultQuery(queryText)
	query.MaxResults = getIntDefault(args, "max_results", query.MaxResults)
	query.SemanticWeight = getFloatDefault(args, "semantic_weight", query.SemanticWeight)
	query.KeywordWeight = getFloatDefault(args, "keyword_weight", query.KeywordWeight)
	query.FullTextWeight = getFloatDefault(args, "full_text_weight", query.FullTextWeight)
	query.MinRelevanceScore = getFloatDefault(args, "min_relevance", query.MinRelevanceScore)
	query.Filters.TaskID = getStringDefault(args, "task_id", "")
	query.Filters.IncludeArchived = getBoolDefault(args, "include_archived", false)

	contentTypes, err := getContentTypes(args, "content_types")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
			"param":   "content_types",
			"allowed": contentTypeNames(),
		})
	}
	query.Filters.ContentTypes = contentTypes

	start := time.Now()
	results, err := s.searcher.HybridSearch(ctx, query)
	if err != nil {
		return nil, s.toolError("search failed", err)
	}

	items := make([]map[string]interface{}, len(results))
	for i, r := range results {
		contributions := make(map[string]interface{}, len(r.Contributions))
		for _, c := range r.Contributions {
			contributions[string(c.Strategy)] = map[string]interface{}{
				"raw":        c.RawScore,
				"normalized": c.NormalizedScore,
			}
		}
		items[i] = map[string]interface{}{
			"rank":          r.Rank,
			"score":         roundScore(r.Score),
			"id":            r.Entry.ID,
			"content_type":  r.Entry.ContentType,
			"content":       truncate(r.Entry.Content, contentPreviewLength),
			"keywords":      r.Entry.Keywords,
			"created_at":    r.Entry.CreatedAt.Format(time.RFC3339),
			"contributions": contributions,
		}
		if r.Entry.TaskID != "" {
			items[i]["task_id"] = r.Entry.TaskID
		}
	}

	response := map[string]interface{}{
		"query":       queryText,
		"results":     items,
		"total":       len(items),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAssembleContext handles the assemble_context tool invocation
func (s *Server) handleAssembleContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	queryText, _ := args["query"].(string)
	if strings.TrimSpace(queryText) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	budget := getIntDefault(args, "token_budget", s.config.Context.TokenBudget)
	strategy := types.PrioritizationStrategy(getStringDefault(args, "strategy", string(s.config.DefaultStrategy())))
	taskID := getStringDefault(args, "task_id", "")
	contentType := getStringDefault(args, "content_type", "")

	var (
		result *types.ContextAssemblyResult
		err    error
	)
	switch {
	case taskID != "":
		result, err = s.assembler.AssembleContextForTask(ctx, taskID, queryText, strategy, budget)
	case contentType != "":
		result, err = s.assembler.AssembleContextByType(ctx, types.ContentType(contentType), queryText, strategy, budget)
	default:
		result, err = s.assembler.AssembleContext(ctx, s.config.DefaultQuery(queryText), strategy, budget)
	}
	if err != nil {
		return nil, s.toolError("context assembly failed", err)
	}

	ids := make([]string, len(result.Entries))
	for i, e := range result.Entries {
		ids[i] = e.ID
	}

	response := map[string]interface{}{
		"context":          result.Context,
		"memory_ids":       ids,
		"memory_count":     result.MemoryCount,
		"strategy":         result.Strategy,
		"token_budget":     result.TokenBudget,
		"tokens_used":      result.TotalTokens,
		"tokens_remaining": result.TokensRemaining,
		"truncated":        result.Truncated,
		"candidates":       result.Candidates,
		"skipped":          result.Skipped,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleStoreMemory handles the store_memory tool invocation
func (s *Server) handleStoreMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	content, _ := args["content"].(string)
	if strings.TrimSpace(content) == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "content parameter is required", map[string]interface{}{
			"param":  "content",
			"reason": "missing or empty",
		})
	}

	contentType, err := types.ParseContentType(getStringDefault(args, "content_type", ""))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid content_type", map[string]interface{}{
			"param":   "content_type",
			"allowed": contentTypeNames(),
		})
	}

	entry, err := s.memory.Remember(ctx, memory.RememberRequest{
		Content:       content,
		ContentType:   contentType,
		ContentFormat: getStringDefault(args, "content_format", ""),
		Keywords:      getStringSlice(args, "keywords"),
		TaskID:        getStringDefault(args, "task_id", ""),
		PhaseID:       getStringDefault(args, "phase_id", ""),
		PlanID:        getStringDefault(args, "plan_id", ""),
	})
	if err != nil {
		return nil, s.toolError("store failed", err)
	}

	response := map[string]interface{}{
		"id":               entry.ID,
		"content_type":     entry.ContentType,
		"content_format":   entry.ContentFormat,
		"keywords":         entry.Keywords,
		"entities":         entry.Entities,
		"complexity_score": entry.ComplexityScore,
		"sentiment":        roundScore(entry.Sentiment),
		"embedded":         entry.HasEmbedding(),
		"created_at":       entry.CreatedAt.Format(time.RFC3339),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleArchiveMemory handles the archive_memory tool invocation
func (s *Server) handleArchiveMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id := getStringDefault(args, "id", "")
	if id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "id parameter is required", map[string]interface{}{
			"param":  "id",
			"reason": "missing or empty",
		})
	}

	if err := s.memory.Archive(ctx, id); err != nil {
		return nil, s.toolError("archive failed", err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"id":       id,
		"archived": true,
	})), nil
}

// handleGetStats handles the get_stats tool invocation
func (s *Server) handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, s.toolError("failed to get status", err)
	}
	stats := s.searcher.Stats()

	byType := make(map[string]int, len(status.EntriesByType))
	for ct, n := range status.EntriesByType {
		byType[string(ct)] = n
	}

	store := map[string]interface{}{
		"schema_version":   status.SchemaVersion,
		"build_mode":       status.BuildMode,
		"total_entries":    status.TotalEntries,
		"embedded_entries": status.EmbeddedEntries,
		"archived_entries": status.ArchivedEntries,
		"entries_by_type":  byType,
	}
	if !status.LastEntryAt.IsZero() {
		store["last_entry_at"] = status.LastEntryAt.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"store": store,
		"search": map[string]interface{}{
			"searches":        stats.Searches,
			"failed_searches": stats.FailedSearches,
		},
		"embedding_cache": map[string]interface{}{
			"hits":      stats.Cache.Hits,
			"misses":    stats.Cache.Misses,
			"evictions": stats.Cache.Evictions,
			"size":      stats.Cache.Size,
			"capacity":  stats.Cache.Capacity,
			"hit_rate":  roundScore(stats.Cache.HitRate()),
		},
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"vector_extension":    status.Health.VectorExtension,
			"fts_index_built":     status.Health.FTSIndexBuilt,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleImportDirectory handles the import_directory tool invocation
func (s *Server) handleImportDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, _ := args["path"].(string)
	if err := validateDirectory(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
			"param": "path",
			"value": path,
		})
	}

	cfg := &indexer.Config{
		Extensions:    getStringSlice(args, "extensions"),
		TaskID:        getStringDefault(args, "task_id", ""),
		ForceReimport: getBoolDefault(args, "force_reimport", false),
	}
	if name := getStringDefault(args, "content_type", ""); name != "" {
		ct, err := types.ParseContentType(name)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid content_type", map[string]interface{}{
				"param":   "content_type",
				"allowed": contentTypeNames(),
			})
		}
		cfg.ContentType = ct
	}

	stats, err := s.indexer.Import(ctx, path, cfg)
	if errors.Is(err, indexer.ErrImportInProgress) {
		return nil, newMCPError(ErrorCodeImportBusy, "an import is already running", nil)
	}
	if err != nil {
		return nil, s.toolError("import failed", err)
	}

	response := map[string]interface{}{
		"path":              path,
		"files_scanned":     stats.FilesScanned,
		"files_imported":    stats.FilesImported,
		"files_skipped":     stats.FilesSkipped,
		"files_failed":      stats.FilesFailed,
		"memories_created":  stats.MemoriesCreated,
		"memories_archived": stats.MemoriesArchived,
		"duration_seconds":  stats.Duration.Seconds(),
	}
	if len(stats.ErrorMessages) > 0 {
		response["errors"] = stats.ErrorMessages
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// validateDirectory requires an absolute path to an existing directory
func validateDirectory(path string) error {
	if path == "" {
		return errors.New("path parameter is required")
	}
	if !filepath.IsAbs(path) {
		return errors.New("path must be absolute")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path not accessible: %w", err)
	}
	if !info.IsDir() {
		return errors.New("path must be a directory")
	}
	return nil
}

// toolError maps domain errors onto MCP error codes
func (s *Server) toolError(message string, err error) error {
	switch {
	case isInvalidParams(err):
		return newMCPError(ErrorCodeInvalidParams, message, map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, storage.ErrNotFound):
		return newMCPError(ErrorCodeMemoryNotFound, "memory not found", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		s.logger.Error().Err(err).Msg(message)
		return newMCPError(ErrorCodeInternalError, message, map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func isInvalidParams(err error) bool {
	for _, target := range []error{
		types.ErrInvalidQuery,
		types.ErrInvalidTokenBudget,
		types.ErrInvalidStrategy,
		types.ErrInvalidContentType,
		types.ErrEmptyContent,
		types.ErrInvalidEntryID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

func roundScore(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	if val, ok := args[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, skipping non-strings
func getStringSlice(args map[string]interface{}, key string) []string {
	switch raw := args[key].(type) {
	case []string:
		return raw
	case []interface{}:
		out := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func getContentTypes(args map[string]interface{}, key string) ([]types.ContentType, error) {
	names := getStringSlice(args, key)
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]types.ContentType, len(names))
	for i, name := range names {
		ct, err := types.ParseContentType(name)
		if err != nil {
			return nil, err
		}
		out[i] = ct
	}
	return out, nil
}
