package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
	"pkt.systems/pslog"

	"github.com/louisbranch/widgetmcp/internal/platform/ratelimit"
	"github.com/louisbranch/widgetmcp/internal/platform/telemetry/metrics"
	"github.com/louisbranch/widgetmcp/internal/platform/timeouts"
)

var listenTCP = net.Listen

const (
	// defaultHTTPAddr keeps the default footprint on loopback.
	defaultHTTPAddr = "localhost:8081"
	// defaultMaxBodyBytes caps one JSON-RPC message.
	defaultMaxBodyBytes = 1 << 20
	// rateLimitIdleTTL is how long an idle client keeps its bucket.
	rateLimitIdleTTL = 10 * time.Minute
)

// Routes served by the HTTP transport.
const (
	routeMCP     = "/mcp"
	routeHealth  = "/mcp/health"
	routeMetrics = "/metrics"
)

// HTTPConfig configures the stateless HTTP transport.
type HTTPConfig struct {
	// Addr is the listen address. Defaults to localhost:8081.
	Addr string
	// AllowedHosts extends the loopback-only Host/Origin allowlist. Entries
	// starting with a dot match any subdomain.
	AllowedHosts []string
	// MaxConns caps concurrent connections; zero means unlimited.
	MaxConns int
	// RateLimit is the per-client request rate; zero disables limiting.
	RateLimit float64
	RateBurst int
	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
	// Gatherer, when set, is exposed on /metrics.
	Gatherer prometheus.Gatherer
	// Metrics records per-route request counts.
	Metrics *metrics.HTTPMetrics
}

// HTTPTransport serves MCP over stateless HTTP POST. Every request gets a
// fresh endpoint and channel built by the Server; nothing survives between
// requests.
type HTTPTransport struct {
	addr         string
	server       *Server
	newEndpoint  func() (*mcp.Server, error)
	closeChannel func(*requestConnection) error
	guard        hostGuard
	limiter      *ratelimit.KeyLimiter
	maxConns     int
	maxBodyBytes int64
	gatherer     prometheus.Gatherer
	metrics      *metrics.HTTPMetrics
	logger       pslog.Logger
	now          func() time.Time
}

// NewHTTPTransport creates an HTTP transport backed by server's endpoint
// factory.
func NewHTTPTransport(server *Server, cfg HTTPConfig) *HTTPTransport {
	addr := cfg.Addr
	if addr == "" {
		addr = defaultHTTPAddr
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	logger := pslog.NoopLogger()
	if server != nil && server.logger != nil {
		logger = server.logger.With("transport", string(TransportHTTP))
	}
	t := &HTTPTransport{
		addr:         addr,
		server:       server,
		guard:        newHostGuard(cfg.AllowedHosts),
		limiter:      ratelimit.New(cfg.RateLimit, cfg.RateBurst, rateLimitIdleTTL),
		maxConns:     cfg.MaxConns,
		maxBodyBytes: maxBody,
		gatherer:     cfg.Gatherer,
		metrics:      cfg.Metrics,
		logger:       logger,
		now:          time.Now,
	}
	t.newEndpoint = server.NewEndpoint
	t.closeChannel = (*requestConnection).Close
	return t
}

// Handler returns the transport's routes.
func (t *HTTPTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(routeMCP, t.observe(routeMCP, http.HandlerFunc(t.handleMCP)))
	mux.Handle(routeHealth, t.observe(routeHealth, http.HandlerFunc(t.handleHealth)))
	if t.gatherer != nil {
		mux.Handle(routeMetrics, t.observe(routeMetrics, metrics.Handler(t.gatherer)))
	}
	return mux
}

// Start listens on the configured address and serves until ctx is cancelled.
// The listener is acquired through owner so stopping the owner closes it.
func (t *HTTPTransport) Start(ctx context.Context, owner Owner) error {
	if t == nil || t.server == nil {
		return errors.New("MCP server is not configured")
	}
	if owner == nil {
		return errors.New("lifecycle owner is required")
	}
	listener, err := listenTCP("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", t.addr, err)
	}
	if t.maxConns > 0 {
		listener = netutil.LimitListener(listener, t.maxConns)
	}
	if err := owner.Acquire("listener", closeListener(listener)); err != nil {
		return err
	}
	return t.serve(ctx, listener)
}

// closeListener tolerates the listener having already been closed by
// http.Server.Shutdown.
func closeListener(listener net.Listener) func() error {
	return func() error {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	}
}

func (t *HTTPTransport) serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	t.logger.Info("mcp.http.listening", "addr", listener.Addr().String())

	// A listener closed by its owner ends the server like a cancelled ctx.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer cancel()
		err := httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		t.logger.Info("mcp.http.stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(data)
}

func (t *HTTPTransport) observe(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)
		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		t.metrics.ObserveRequest(route, methodLabel(r.Method), status)
	})
}

// methodLabel bounds the method label to the verbs the routes answer.
func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodHead:
		return method
	default:
		return "other"
	}
}
