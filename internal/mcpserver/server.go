// Package mcpserver exposes the triage engine as MCP tools so agent
// clients can score patients and manage the model over stdio.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/telemed-priority-engine/internal/domain"
	"github.com/telemed-priority-engine/internal/service"
)

// Version is the MCP server version
const Version = "1.0.0"

// Deps bundles the collaborators the MCP tools call into
type Deps struct {
	Engine     *service.Engine
	Synthesize func(n int) []domain.TrainingExample
	Samples    int
}

// Server is the MCP server for the triage engine
type Server struct {
	deps   Deps
	logger *logrus.Logger
	server *mcp.Server
}

// NewServer creates the MCP server and registers its tools
func NewServer(deps Deps, logger *logrus.Logger) *Server {
	impl := &mcp.Implementation{
		Name:    "triage-engine",
		Version: Version,
	}

	s := &Server{
		deps:   deps,
		logger: logger,
		server: mcp.NewServer(impl, nil),
	}

	s.registerTools()

	return s
}

// Run starts the MCP server over stdio. It blocks until the context is
// cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	s.logger.WithField("version", Version).Info("MCP server starting on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
