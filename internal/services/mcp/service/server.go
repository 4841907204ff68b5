package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"pkt.systems/pslog"

	"github.com/louisbranch/widgetmcp/internal/services/mcp/conformance"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/dispatch"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/domain"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "widgetmcp"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio serves one persistent session over standard input/output.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves stateless JSON-RPC over HTTP POST.
	TransportHTTP TransportKind = "http"
)

// ParseTransportKind validates a transport name.
func ParseTransportKind(value string) (TransportKind, error) {
	switch kind := TransportKind(strings.ToLower(strings.TrimSpace(value))); kind {
	case "":
		return TransportStdio, nil
	case TransportStdio, TransportHTTP:
		return kind, nil
	default:
		return "", fmt.Errorf("transport %q is not supported", value)
	}
}

// Server builds MCP endpoints that route every tool call through one
// dispatcher. It keeps no per-session state, so the same Server can back one
// persistent session or any number of per-request endpoints.
type Server struct {
	dispatcher *dispatch.Dispatcher[domain.Deps]
	deps       domain.Deps
	logger     pslog.Logger
	name       string
	version    string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger pslog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithImplementation overrides the name and version reported to clients.
func WithImplementation(name, version string) Option {
	return func(s *Server) {
		if name = strings.TrimSpace(name); name != "" {
			s.name = name
		}
		if version = strings.TrimSpace(version); version != "" {
			s.version = version
		}
	}
}

// New creates a server over dispatcher. deps is handed to every tool call.
func New(dispatcher *dispatch.Dispatcher[domain.Deps], deps domain.Deps, opts ...Option) (*Server, error) {
	if dispatcher == nil || dispatcher.Registry() == nil {
		return nil, errors.New("dispatcher is required")
	}
	s := &Server{
		dispatcher: dispatcher,
		deps:       deps,
		logger:     pslog.NoopLogger(),
		name:       serverName,
		version:    serverVersion,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// NewEndpoint builds a fresh MCP endpoint with every registered tool. Nothing
// is shared between endpoints except the dispatcher and its collaborators.
func (s *Server) NewEndpoint() (*mcp.Server, error) {
	if s == nil || s.dispatcher == nil {
		return nil, errors.New("MCP server is not configured")
	}
	endpoint := mcp.NewServer(&mcp.Implementation{Name: s.name, Version: s.version}, &mcp.ServerOptions{})
	if err := registerTools(endpoint, s.dispatcher.Registry(), s.callTool); err != nil {
		return nil, err
	}
	conformance.Register(endpoint)
	endpoint.AddReceivingMiddleware(s.unknownToolMiddleware)
	return endpoint, nil
}

// callTool dispatches one tool call and converts the envelope for the SDK.
func (s *Server) callTool(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var name string
	var raw []byte
	if req != nil && req.Params != nil {
		name = req.Params.Name
		raw = req.Params.Arguments
	}
	env := s.dispatcher.Dispatch(ctx, name, raw, s.deps)
	return toCallToolResult(env), nil
}

// unknownToolMiddleware answers calls to unregistered tools with a tool
// error envelope instead of the SDK's protocol error.
func (s *Server) unknownToolMiddleware(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		if method != "tools/call" {
			return next(ctx, method, req)
		}
		call, ok := req.(*mcp.CallToolRequest)
		if !ok || call.Params == nil {
			return next(ctx, method, req)
		}
		if _, known := s.dispatcher.Registry().Lookup(call.Params.Name); known {
			return next(ctx, method, req)
		}
		return s.callTool(ctx, call)
	}
}

// serializeToolCalls runs tools/call requests one at a time. The JSON-RPC id
// of each request is its correlation id; no multiplexing happens per session.
func serializeToolCalls() mcp.Middleware {
	var mu sync.Mutex
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != "tools/call" {
				return next(ctx, method, req)
			}
			mu.Lock()
			defer mu.Unlock()
			return next(ctx, method, req)
		}
	}
}
