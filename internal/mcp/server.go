package mcp

import (
	"context"
	"errors"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/fulvian/devstream/internal/assembler"
	"github.com/fulvian/devstream/internal/config"
	"github.com/fulvian/devstream/internal/indexer"
	"github.com/fulvian/devstream/internal/memory"
	"github.com/fulvian/devstream/internal/searcher"
	"github.com/fulvian/devstream/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "devstream-memory"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Deps are the components served over MCP
type Deps struct {
	Store     storage.Storage
	Searcher  *searcher.Searcher
	Assembler *assembler.Assembler
	Memory    *memory.Service
	Indexer   *indexer.Indexer // optional, enables import_directory
	Config    *config.Config
	Logger    *zerolog.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	storage   storage.Storage
	searcher  *searcher.Searcher
	assembler *assembler.Assembler
	memory    *memory.Service
	indexer   *indexer.Indexer
	config    *config.Config
	logger    zerolog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(deps Deps) (*Server, error) {
	if deps.Store == nil || deps.Searcher == nil || deps.Assembler == nil || deps.Memory == nil || deps.Config == nil {
		return nil, errors.New("mcp server requires store, searcher, assembler, memory service and config")
	}

	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = *deps.Logger
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		mcp:       mcpServer,
		storage:   deps.Store,
		searcher:  deps.Searcher,
		assembler: deps.Assembler,
		memory:    deps.Memory,
		indexer:   deps.Indexer,
		config:    deps.Config,
		logger:    logger.With().Str("component", "mcp").Logger(),
	}

	s.registerTools()
	return s, nil
}

// Serve runs the MCP server on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info().Str("name", ServerName).Str("version", ServerVersion).Msg("mcp server listening on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchMemoryTool(), s.handleSearchMemory)
	s.mcp.AddTool(assembleContextTool(), s.handleAssembleContext)
	s.mcp.AddTool(storeMemoryTool(), s.handleStoreMemory)
	s.mcp.AddTool(archiveMemoryTool(), s.handleArchiveMemory)
	s.mcp.AddTool(getStatsTool(), s.handleGetStats)
	if s.indexer != nil {
		s.mcp.AddTool(importDirectoryTool(), s.handleImportDirectory)
	}
}
