package mcp

import (
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/scout/internal/mcp/handlers"
	"github.com/btouchard/scout/internal/notify"
)

// Deps holds shared dependencies injected into MCP handlers.
type Deps struct {
	Engine handlers.Searcher
	// Drive is nil when the drive integration is disabled.
	Drive         handlers.DriveClient
	Notifier      notify.Notifier
	SearchTimeout time.Duration
	Version       string
}

// NewServer creates and configures the MCP server with all tools registered.
func NewServer(deps *Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"Scout",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
		server.WithRecovery(),
	)

	registerTools(s, deps)

	return s
}
