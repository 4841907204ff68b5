package service

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/widgetmcp/internal/services/mcp/domain"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/envelope"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/registry"
)

// errorCodeMetaKey carries the taxonomy code on failed tool results.
const errorCodeMetaKey = "error_code"

// Tools describes every registered operation for tools/list and the
// discovery document.
func Tools(reg *registry.Registry[domain.Deps]) []*mcp.Tool {
	defs := reg.List()
	tools := make([]*mcp.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, &mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.Schema.Document(),
		})
	}
	return tools
}

// registerTools adds one SDK tool per registry entry, all served by handler.
func registerTools(endpoint *mcp.Server, reg *registry.Registry[domain.Deps], handler mcp.ToolHandler) error {
	if endpoint == nil {
		return fmt.Errorf("endpoint is required")
	}
	if reg == nil || reg.Len() == 0 {
		return fmt.Errorf("no tools registered")
	}
	for _, tool := range Tools(reg) {
		endpoint.AddTool(tool, handler)
	}
	return nil
}

// toCallToolResult converts a dispatch envelope into the SDK result shape.
// Failures carry their taxonomy code in _meta.
func toCallToolResult(env envelope.Envelope) *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(env.Content))
	for _, block := range env.Content {
		content = append(content, &mcp.TextContent{Text: block.Text})
	}
	result := &mcp.CallToolResult{Content: content, IsError: env.IsError}
	if env.IsError {
		result.Meta = mcp.Meta{errorCodeMetaKey: int(env.Code)}
		return result
	}
	if env.Result != nil {
		result.StructuredContent = env.Result
	}
	return result
}
