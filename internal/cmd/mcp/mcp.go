// Package mcp parses MCP command configuration and runs the widget tool
// server on the selected transport.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
	"pkt.systems/pslog"

	platformcmd "github.com/louisbranch/widgetmcp/internal/platform/cmd"
	"github.com/louisbranch/widgetmcp/internal/platform/lifecycle"
	"github.com/louisbranch/widgetmcp/internal/platform/telemetry/metrics"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/conformance"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/dispatch"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/domain"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/registry"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/service"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/workspace/seed"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/workspace/sqlite"
)

// Config holds MCP command configuration.
type Config struct {
	Transport     string   `env:"WIDGETMCP_TRANSPORT"        envDefault:"stdio"`
	HTTPAddr      string   `env:"WIDGETMCP_HTTP_ADDR"        envDefault:"localhost:8081"`
	DBPath        string   `env:"WIDGETMCP_DB_PATH"          envDefault:"widgets.db"`
	SeedPath      string   `env:"WIDGETMCP_SEED_PATH"`
	WorkspaceName string   `env:"WIDGETMCP_WORKSPACE_NAME"   envDefault:"default"`
	AllowedHosts  []string `env:"WIDGETMCP_ALLOWED_HOSTS"    envSeparator:","`
	MaxConns      int      `env:"WIDGETMCP_HTTP_MAX_CONNS"   envDefault:"256"`
	RateLimit     float64  `env:"WIDGETMCP_HTTP_RATE_LIMIT"  envDefault:"20"`
	RateBurst     int      `env:"WIDGETMCP_HTTP_RATE_BURST"  envDefault:"40"`
	LogLevel      string   `env:"WIDGETMCP_LOG_LEVEL"        envDefault:"info"`

	// ListTools prints the discovery document and exits.
	ListTools bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the SQLite workspace database")
	fs.StringVar(&cfg.SeedPath, "seed", cfg.SeedPath, "YAML fixture applied to the workspace at startup")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: trace, debug, info, warn or error")
	fs.BoolVar(&cfg.ListTools, "list-tools", false, "print the tool discovery document as YAML and exit")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Runner carries the process handles a run needs. The zero value writes
// nowhere and installs no signal handlers.
type Runner struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Signals []os.Signal
}

// Run starts the MCP server on process stdio, stopping on SIGINT or SIGTERM.
func Run(ctx context.Context, cfg Config) error {
	return Runner{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}.Run(ctx, cfg)
}

// Run builds the tool registry and either prints the discovery document or
// serves until ctx is cancelled, a signal arrives, or the channel closes.
func (r Runner) Run(ctx context.Context, cfg Config) error {
	logger, err := platformcmd.NewLogger(writerOrDiscard(r.Stderr), cfg.LogLevel)
	if err != nil {
		return err
	}
	reg, err := registry.New(operations()...)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}
	if cfg.ListTools {
		return writeToolList(writerOrDiscard(r.Stdout), reg)
	}
	transport, err := service.ParseTransportKind(cfg.Transport)
	if err != nil {
		return err
	}

	return platformcmd.RunWithTelemetryAndOptions(ctx, platformcmd.ServiceMCP, platformcmd.RunOptions{Logger: logger}, func(ctx context.Context) error {
		return r.serve(ctx, cfg, transport, reg, logger)
	})
}

func (r Runner) serve(ctx context.Context, cfg Config, transport service.TransportKind, reg *registry.Registry[domain.Deps], logger pslog.Logger) (err error) {
	ctrl := lifecycle.New(
		lifecycle.WithSignals(r.Signals...),
		lifecycle.WithLogger(logger.With("subsystem", "lifecycle")),
	)
	runCtx, err := ctrl.Start(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := ctrl.Stop(); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
	}()

	store, err := sqlite.Open(runCtx, cfg.DBPath, sqlite.WithName(cfg.WorkspaceName))
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}
	if err := ctrl.Acquire("workspace", store.Close); err != nil {
		return err
	}

	if cfg.SeedPath != "" {
		file, err := seed.LoadFile(cfg.SeedPath)
		if err != nil {
			return err
		}
		result, err := seed.Apply(runCtx, store, file)
		if err != nil {
			return err
		}
		logger.Info("workspace.seeded", "path", cfg.SeedPath, "created", result.Created, "skipped", result.Skipped, "comments", result.Comments)
	}

	promRegistry := prometheus.NewRegistry()
	toolMetrics, err := metrics.NewToolMetrics(promRegistry)
	if err != nil {
		return err
	}
	httpMetrics, err := metrics.NewHTTPMetrics(promRegistry)
	if err != nil {
		return err
	}

	dispatcher := dispatch.New(reg,
		dispatch.WithLogger(logger.With("subsystem", "dispatch")),
		dispatch.WithRecorder(toolMetrics),
	)
	server, err := service.New(dispatcher, domain.Deps{Workspace: store}, service.WithLogger(logger.With("subsystem", "mcp")))
	if err != nil {
		return err
	}

	logger.Info("mcp.starting", "transport", string(transport), "tools", reg.Len(), "db", cfg.DBPath)
	return server.Run(runCtx, ctrl, service.Config{
		Transport: transport,
		HTTP: service.HTTPConfig{
			Addr:         cfg.HTTPAddr,
			AllowedHosts: cfg.AllowedHosts,
			MaxConns:     cfg.MaxConns,
			RateLimit:    cfg.RateLimit,
			RateBurst:    cfg.RateBurst,
			Gatherer:     promRegistry,
			Metrics:      httpMetrics,
		},
	})
}

// operations lists every tool the server exposes. Conformance fixtures are
// appended only in conformance builds.
func operations() []registry.Operation[domain.Deps] {
	return append(domain.Operations(), conformance.Operations[domain.Deps]()...)
}

// toolDocument is one entry of the -list-tools output.
type toolDocument struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	InputSchema any    `yaml:"inputSchema"`
}

// writeToolList prints the same tool descriptions tools/list returns.
func writeToolList(w io.Writer, reg *registry.Registry[domain.Deps]) error {
	tools := service.Tools(reg)
	docs := make([]toolDocument, 0, len(tools))
	for _, tool := range tools {
		// Round-trip through JSON so the YAML keys match the wire schema.
		data, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return fmt.Errorf("encode %s schema: %w", tool.Name, err)
		}
		var schemaDoc any
		if err := json.Unmarshal(data, &schemaDoc); err != nil {
			return fmt.Errorf("decode %s schema: %w", tool.Name, err)
		}
		docs = append(docs, toolDocument{Name: tool.Name, Description: tool.Description, InputSchema: schemaDoc})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(map[string]any{"tools": docs}); err != nil {
		return fmt.Errorf("write tool list: %w", err)
	}
	return encoder.Close()
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
