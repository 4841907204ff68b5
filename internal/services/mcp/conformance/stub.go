//go:build !conformance

package conformance

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/widgetmcp/internal/services/mcp/registry"
)

// Enabled reports whether the fixtures were compiled in.
const Enabled = false

// Operations returns nothing unless the conformance build tag is enabled.
func Operations[C any]() []registry.Operation[C] { return nil }

// Register is a no-op unless the conformance build tag is enabled.
func Register(_ *mcp.Server) {}
