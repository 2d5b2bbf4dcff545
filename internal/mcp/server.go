// Package mcp exposes the playbook engine's reflection and tag-inference
// calls as MCP tools, so a host assistant that speaks MCP can drive
// reflection directly rather than shelling out to playbookctl.
package mcp

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/playbookhq/engine/internal/llm"
	"github.com/playbookhq/engine/internal/triggers"
)

// Server wraps the MCP SDK server with the handlers a host needs: tag
// inference for candidate selection, and full session-end-style reflection
// against the live playbook.
type Server struct {
	server   *sdk.Server
	client   llm.Client
	handlers *triggers.Handlers
}

// Config names the server identity advertised during MCP initialization.
type Config struct {
	Name    string
	Version string
}

// NewServer creates an MCP server backed by client (for direct tag
// inference) and handlers (for the full reflect-and-store pipeline) — the
// same components a hook dispatcher would use, so tool calls and hook
// invocations observe identical behavior.
func NewServer(cfg *Config, client llm.Client, handlers *triggers.Handlers) (*Server, error) {
	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:   mcpServer,
		client:   client,
		handlers: handlers,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering mcp tools: %w", err)
	}

	return s, nil
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	return s.server.Run(ctx, &sdk.StdioTransport{})
}
