package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fulvian/devstream/pkg/types"
)

func contentTypeNames() []string {
	names := make([]string, len(types.AllContentTypes))
	for i, ct := range types.AllContentTypes {
		names[i] = string(ct)
	}
	return names
}

var strategyNames = []string{
	string(types.PrioritizeRelevance),
	string(types.PrioritizeRecency),
	string(types.PrioritizeComplexity),
	string(types.PrioritizeMixed),
}

// searchMemoryTool returns the tool definition for search_memory
func searchMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_memory",
		Description: "Hybrid search over stored memories combining semantic, keyword and full-text retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     types.DefaultMaxResults,
					"minimum":     1,
					"maximum":     types.MaxAllowedResults,
				},
				"semantic_weight": map[string]interface{}{
					"type":        "number",
					"description": "Weight of vector similarity",
					"minimum":     0,
				},
				"keyword_weight": map[string]interface{}{
					"type":        "number",
					"description": "Weight of keyword overlap",
					"minimum":     0,
				},
				"full_text_weight": map[string]interface{}{
					"type":        "number",
					"description": "Weight of full-text match",
					"minimum":     0,
				},
				"min_relevance": map[string]interface{}{
					"type":        "number",
					"description": "Minimum fused score threshold (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"content_types": map[string]interface{}{
					"type":        "array",
					"description": "Restrict results to these content types",
					"items": map[string]interface{}{
						"type": "string",
						"enum": contentTypeNames(),
					},
				},
				"task_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one task",
				},
				"include_archived": map[string]interface{}{
					"type":        "boolean",
					"description": "Include archived memories",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// assembleContextTool returns the tool definition for assemble_context
func assembleContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "assemble_context",
		Description: "Build a token-budgeted context block from the memories most relevant to a query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What the context is for",
				},
				"token_budget": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum estimated tokens in the assembled context",
					"minimum":     0,
				},
				"strategy": map[string]interface{}{
					"type":        "string",
					"description": "Prioritization before budget selection",
					"enum":        strategyNames,
				},
				"task_id": map[string]interface{}{
					"type":        "string",
					"description": "Only use memories of this task",
				},
				"content_type": map[string]interface{}{
					"type":        "string",
					"description": "Only use memories of this content type",
					"enum":        contentTypeNames(),
				},
			},
			Required: []string{"query"},
		},
	}
}

// storeMemoryTool returns the tool definition for store_memory
func storeMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "store_memory",
		Description: "Store a new memory; keywords, entities, complexity and embedding are derived automatically",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Memory content",
				},
				"content_type": map[string]interface{}{
					"type":        "string",
					"description": "Kind of knowledge",
					"enum":        contentTypeNames(),
				},
				"content_format": map[string]interface{}{
					"type":        "string",
					"description": "text, markdown or code (detected when omitted)",
				},
				"keywords": map[string]interface{}{
					"type":        "array",
					"description": "Extra keywords merged with the extracted ones",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"task_id": map[string]interface{}{
					"type": "string",
				},
				"phase_id": map[string]interface{}{
					"type": "string",
				},
				"plan_id": map[string]interface{}{
					"type": "string",
				},
			},
			Required: []string{"content", "content_type"},
		},
	}
}

// archiveMemoryTool returns the tool definition for archive_memory
func archiveMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "archive_memory",
		Description: "Hide a memory from search without deleting it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Memory ID",
				},
			},
			Required: []string{"id"},
		},
	}
}

// getStatsTool returns the tool definition for get_stats
func getStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_stats",
		Description: "Memory store statistics and embedding cache counters",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// importDirectoryTool returns the tool definition for import_directory
func importDirectoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "import_directory",
		Description: "Import notes and source files under a directory as memories; unchanged files are skipped",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory",
				},
				"content_type": map[string]interface{}{
					"type":        "string",
					"description": "Content type for every file (detected from the extension when omitted)",
					"enum":        contentTypeNames(),
				},
				"task_id": map[string]interface{}{
					"type": "string",
				},
				"extensions": map[string]interface{}{
					"type":        "array",
					"description": "File extensions to import, e.g. [\".md\", \".go\"]",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"force_reimport": map[string]interface{}{
					"type":        "boolean",
					"description": "Re-import files whose content is unchanged",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}
