package main

import (
	"context"
	"flag"
	"os"

	mcpcmd "github.com/louisbranch/widgetmcp/internal/cmd/mcp"
	"github.com/louisbranch/widgetmcp/internal/platform/config"
)

// main starts the widget MCP server on stdio or HTTP.
func main() {
	cfg, err := mcpcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := mcpcmd.Run(context.Background(), cfg); err != nil {
		config.Exitf("failed to serve MCP: %v", err)
	}
}
