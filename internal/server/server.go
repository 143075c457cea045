// Package server publishes the call registry to agents over the Model
// Context Protocol. Tools and resources are generated from the registry's
// descriptors and every call is routed through the invoker.
package server

// file: internal/server/server.go

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dkoosis/unitybridge/internal/invoker"
	"github.com/dkoosis/unitybridge/internal/logging"
)

// Options configures the agent-facing server.
type Options struct {
	Name    string
	Version string
	Logger  logging.Logger
}

// Server wraps an MCP server whose tools and resources mirror the registry.
type Server struct {
	mcp     *mcp.Server
	invoker *invoker.Invoker
	logger  logging.Logger

	tools     []string
	resources []string
}

// New builds the MCP surface for every descriptor in the invoker's registry.
func New(inv *invoker.Invoker, opts Options) (*Server, error) {
	if inv == nil {
		return nil, errors.New("server requires an invoker")
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetNoopLogger()
	}
	if opts.Name == "" {
		opts.Name = "unitybridge"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    opts.Name,
			Version: opts.Version,
		}, nil),
		invoker: inv,
		logger:  opts.Logger.WithField("component", "mcp_server"),
	}
	if err := s.registerCalls(); err != nil {
		return nil, err
	}
	s.logger.Info("MCP surface ready.", "tools", len(s.tools), "resources", len(s.resources))
	return s, nil
}

func (s *Server) registerCalls() error {
	for _, desc := range s.invoker.Registry().Descriptors() {
		if desc.Tool {
			if err := s.addTool(desc); err != nil {
				return err
			}
		}
		if desc.Resource != nil {
			s.addResource(desc)
		}
	}
	return nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// Tools lists the published tool names.
func (s *Server) Tools() []string { return append([]string(nil), s.tools...) }

// Resources lists the published resource URIs.
func (s *Server) Resources() []string { return append([]string(nil), s.resources...) }

// RunStdio serves a single agent over stdin/stdout until ctx ends or the
// agent disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("Serving MCP over stdio.")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "mcp server stopped")
	}
	return nil
}

// Connect serves one agent session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	session, err := s.mcp.Connect(ctx, t, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start mcp session")
	}
	return session, nil
}
