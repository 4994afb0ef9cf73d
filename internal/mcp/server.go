package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/deploykit/manager/internal/config"
	"github.com/deploykit/manager/internal/model"
	"github.com/deploykit/manager/internal/query"
	"github.com/deploykit/manager/internal/security"
	"github.com/deploykit/manager/internal/server/middleware"
)

// MCPPath is the endpoint of the Streamable HTTP transport.
const MCPPath = "/mcp"

// MCPServer wraps the mcp-go server with the manager's read-only tools and
// resources. Tool calls are authorized with the same provider as the HTTP
// API. Over HTTP each request authenticates with its own headers; over stdio
// the startup credentials are re-checked on every call.
type MCPServer struct {
	store       *config.Store
	sec         *security.Service
	engine      *query.Engine
	credentials http.Header
	page        query.ParseOptions
	logger      *slog.Logger
	server      *server.MCPServer
}

// Options configures an MCPServer.
type Options struct {
	Version string
	Page    query.ParseOptions

	// Credentials are the headers stdio tool calls authenticate with.
	Credentials http.Header
}

// NewMCPServer creates an MCPServer pre-loaded with all manager tools and
// resources. The returned server is ready to serve over stdio or HTTP.
func NewMCPServer(store *config.Store, sec *security.Service, engine *query.Engine, opts Options, logger *slog.Logger) *MCPServer {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &MCPServer{
		store:       store,
		sec:         sec,
		engine:      engine,
		credentials: opts.Credentials.Clone(),
		page:        opts.Page,
		logger:      logger,
	}

	mcpServer := server.NewMCPServer(
		"Deployment Manager",
		opts.Version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, for clients that launch
// the server as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// HTTPHandler returns the Streamable HTTP endpoint. Requests that fail the
// authentication chain get a 401 before reaching the MCP session.
func (s *MCPServer) HTTPHandler() http.Handler {
	streamable := server.NewStreamableHTTPServer(s.server,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return middleware.WithIdentity(ctx, middleware.GetIdentity(r.Context()))
		}),
	)
	return middleware.RequestID(middleware.Authenticate(s.sec, s.logger)(streamable))
}

// ServeHTTP starts the MCP server in Streamable HTTP mode, listening on
// the given address (e.g. ":3001").
func (s *MCPServer) ServeHTTP(addr string) error {
	mux := http.NewServeMux()
	mux.Handle(MCPPath, s.HTTPHandler())
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("MCP HTTP server starting", "addr", addr, "path", MCPPath, "security", s.sec.Enabled())
	return httpServer.ListenAndServe()
}

// callerIdentity returns the identity a tool call runs as: the one the HTTP
// transport authenticated, or else the startup credentials checked again so
// that an expired token stops working.
func (s *MCPServer) callerIdentity(ctx context.Context) (*model.Identity, error) {
	if id := middleware.GetIdentity(ctx); id != nil {
		return id, nil
	}
	id, err := s.sec.Authenticate(ctx, s.credentials)
	if err != nil {
		return nil, fmt.Errorf("mcp: %w", err)
	}
	return id, nil
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
