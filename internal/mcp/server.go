package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/donovan0902/project-hunt/internal/indexer"
	"github.com/donovan0902/project-hunt/internal/submission"
)

const (
	// ServerName is the MCP server name
	ServerName = "projecthunt"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	coord   *submission.Coordinator
	indexer *indexer.Indexer
	logger  *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(coord *submission.Coordinator, idx *indexer.Indexer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		coord:   coord,
		indexer: idx,
		logger:  logger,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(submitProjectTool(), s.handleSubmitProject)
	s.mcp.AddTool(confirmProjectTool(), s.handleConfirmProject)
	s.mcp.AddTool(cancelProjectTool(), s.handleCancelProject)
	s.mcp.AddTool(editProjectTool(), s.handleEditProject)
	s.mcp.AddTool(backfillEmbeddingTool(), s.handleBackfillEmbedding)
	s.mcp.AddTool(findSimilarProjectsTool(), s.handleFindSimilarProjects)
	s.mcp.AddTool(searchProjectsTool(), s.handleSearchProjects)
	s.mcp.AddTool(listFocusAreasTool(), s.handleListFocusAreas)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
