package api

import (
	"time"

	"github.com/fulvian/devstream/pkg/types"
)

// SearchRequest is the body of POST /search. Nil fields take the
// configured defaults.
type SearchRequest struct {
	Query           string   `json:"query"`
	MaxResults      *int     `json:"max_results,omitempty"`
	SemanticWeight  *float64 `json:"semantic_weight,omitempty"`
	KeywordWeight   *float64 `json:"keyword_weight,omitempty"`
	FullTextWeight  *float64 `json:"full_text_weight,omitempty"`
	MinRelevance    *float64 `json:"min_relevance,omitempty"`
	ContentTypes    []string `json:"content_types,omitempty"`
	TaskID          string   `json:"task_id,omitempty"`
	IncludeArchived bool     `json:"include_archived,omitempty"`
}

// ContextRequest is the body of POST /context
type ContextRequest struct {
	Query       string `json:"query"`
	TokenBudget *int   `json:"token_budget,omitempty"`
	Strategy    string `json:"strategy,omitempty"`
	TaskID      string `json:"task_id,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// StoreRequest is the body of POST /memories
type StoreRequest struct {
	Content       string   `json:"content"`
	ContentType   string   `json:"content_type"`
	ContentFormat string   `json:"content_format,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	TaskID        string   `json:"task_id,omitempty"`
	PhaseID       string   `json:"phase_id,omitempty"`
	PlanID        string   `json:"plan_id,omitempty"`
}

// Memory is the wire form of a memory entry. Embeddings are not exposed.
type Memory struct {
	ID              string    `json:"id"`
	Content         string    `json:"content"`
	ContentType     string    `json:"content_type"`
	ContentFormat   string    `json:"content_format"`
	Keywords        []string  `json:"keywords"`
	Entities        []string  `json:"entities"`
	Sentiment       float64   `json:"sentiment"`
	ComplexityScore int       `json:"complexity_score"`
	Embedded        bool      `json:"embedded"`
	TaskID          string    `json:"task_id,omitempty"`
	PhaseID         string    `json:"phase_id,omitempty"`
	PlanID          string    `json:"plan_id,omitempty"`
	AccessCount     int       `json:"access_count"`
	Archived        bool      `json:"archived"`
	CreatedAt       time.Time `json:"created_at"`
}

// Contribution is one strategy's share of a fused score
type Contribution struct {
	Strategy   string  `json:"strategy"`
	Raw        float64 `json:"raw"`
	Normalized float64 `json:"normalized"`
}

// SearchHit is one ranked search result
type SearchHit struct {
	Rank          int            `json:"rank"`
	Score         float64        `json:"score"`
	Memory        Memory         `json:"memory"`
	Contributions []Contribution `json:"contributions"`
}

// SearchResponse is the body returned by POST /search
type SearchResponse struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
	Total   int         `json:"total"`
}

// ContextResponse is the body returned by POST /context
type ContextResponse struct {
	Context         string   `json:"context"`
	MemoryIDs       []string `json:"memory_ids"`
	MemoryCount     int      `json:"memory_count"`
	Strategy        string   `json:"strategy"`
	TokenBudget     int      `json:"token_budget"`
	TokensUsed      int      `json:"tokens_used"`
	TokensRemaining int      `json:"tokens_remaining"`
	Truncated       bool     `json:"truncated"`
	Candidates      int      `json:"candidates"`
	Skipped         int      `json:"skipped"`
}

// ListResponse is the body returned by GET /memories
type ListResponse struct {
	Memories []Memory `json:"memories"`
	Limit    int      `json:"limit"`
	Offset   int      `json:"offset"`
}

// HealthResponse is the body returned by GET /health
type HealthResponse struct {
	Status   string       `json:"status"`
	Database ServiceCheck `json:"database"`
	Embedder ServiceCheck `json:"embedder"`
	Entries  int          `json:"entries"`
}

// ServiceCheck reports one dependency
type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// StatsResponse is the body returned by GET /stats
type StatsResponse struct {
	SchemaVersion   string         `json:"schema_version"`
	BuildMode       string         `json:"build_mode"`
	TotalEntries    int            `json:"total_entries"`
	EmbeddedEntries int            `json:"embedded_entries"`
	ArchivedEntries int            `json:"archived_entries"`
	EntriesByType   map[string]int `json:"entries_by_type"`
	Searches        uint64         `json:"searches"`
	FailedSearches  uint64         `json:"failed_searches"`
	CacheHits       uint64         `json:"cache_hits"`
	CacheMisses     uint64         `json:"cache_misses"`
	CacheSize       int            `json:"cache_size"`
	CacheHitRate    float64        `json:"cache_hit_rate"`
}

func toMemory(e *types.MemoryEntry) Memory {
	return Memory{
		ID:              e.ID,
		Content:         e.Content,
		ContentType:     string(e.ContentType),
		ContentFormat:   e.ContentFormat,
		Keywords:        nonNil(e.Keywords),
		Entities:        nonNil(e.Entities),
		Sentiment:       e.Sentiment,
		ComplexityScore: e.ComplexityScore,
		Embedded:        e.HasEmbedding(),
		TaskID:          e.TaskID,
		PhaseID:         e.PhaseID,
		PlanID:          e.PlanID,
		AccessCount:     e.AccessCount,
		Archived:        e.Archived,
		CreatedAt:       e.CreatedAt,
	}
}

func toSearchHit(r types.SearchResult) SearchHit {
	contributions := make([]Contribution, len(r.Contributions))
	for i, c := range r.Contributions {
		contributions[i] = Contribution{
			Strategy:   string(c.Strategy),
			Raw:        c.RawScore,
			Normalized: c.NormalizedScore,
		}
	}
	return SearchHit{
		Rank:          r.Rank,
		Score:         r.Score,
		Memory:        toMemory(r.Entry),
		Contributions: contributions,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
