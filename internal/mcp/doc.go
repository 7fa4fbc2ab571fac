// Package mcp implements the Model Context Protocol (MCP) server for the
// DevStream memory engine.
//
// The MCP server exposes these tools to AI coding assistants:
//   - search_memory: Hybrid search over stored memories
//   - assemble_context: Token-budgeted context block for a query
//   - store_memory: Capture a new memory with derived features and embedding
//   - archive_memory: Hide a memory from search
//   - get_stats: Store statistics and embedding cache counters
//   - import_directory: Bulk import of notes and source files (when an
//     indexer is configured)
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout belongs to the protocol.
//
// # Basic Usage
//
//	devstream serve
//
// # Tool: search_memory
//
//	Request:
//	{
//	  "name": "search_memory",
//	  "arguments": {
//	    "query": "jwt signing key rotation",
//	    "max_results": 5,
//	    "content_types": ["decision", "code"]
//	  }
//	}
//
//	Response:
//	{
//	  "results": [
//	    {
//	      "rank": 1,
//	      "score": 0.9412,
//	      "id": "7f3c...",
//	      "content_type": "decision",
//	      "content": "Rotate signing keys every 24h ...",
//	      "contributions": {
//	        "semantic": {"raw": 0.83, "normalized": 1},
//	        "keyword": {"raw": 2, "normalized": 1}
//	      }
//	    }
//	  ],
//	  "total": 1,
//	  "duration_ms": 12
//	}
//
// Omitted weights and limits come from the search section of the config.
//
// # Tool: assemble_context
//
//	Request:
//	{
//	  "name": "assemble_context",
//	  "arguments": {
//	    "query": "implement token refresh",
//	    "token_budget": 1500,
//	    "strategy": "mixed"
//	  }
//	}
//
// The response carries the rendered context, the selected memory IDs and
// token accounting (tokens_used, tokens_remaining, truncated). Passing
// task_id or content_type narrows the candidate set.
//
// # Tool: import_directory
//
// Walks an absolute directory path and stores each matching file as one or
// more memories. Files whose content hash is unchanged since the last
// import are skipped unless force_reimport is set; changed files have their
// previous memories archived.
//
// # Error Handling
//
// Errors follow MCP conventions:
//   - -32602: Invalid parameters (empty query, bad weights, unknown type)
//   - -32603: Internal error (storage or embedding failure)
//   - -32001: Memory not found
//   - -32002: Import already in progress
//   - -32004: Empty query
package mcp
