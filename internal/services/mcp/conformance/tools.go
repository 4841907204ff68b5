//go:build conformance

package conformance

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/widgetmcp/internal/services/mcp/registry"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/schema"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/toolerr"
)

// Enabled reports whether the fixtures were compiled in.
const Enabled = true

const (
	ToolSimpleText    = "test_simple_text"
	ToolEcho          = "test_echo"
	ToolErrorContent  = "test_error_content"
	ToolErrorHandling = "test_error_handling"

	simpleTextResponse        = "This is a simple text response for testing."
	errorContentReason        = "this tool always rejects its input"
	staticTextResourceContent = "This is the content of the static text resource."
	staticTextResourceName    = "test_static_text"
	staticTextResourceURI     = "test://static-text"
)

// TextResult is the output of the text fixtures.
type TextResult struct {
	Text string `json:"text"`
}

// EchoInput is the test_echo argument set.
type EchoInput struct {
	Message string `json:"message"`
	Repeat  int    `json:"repeat"`
}

// Operations returns the conformance tools. They run through the same
// dispatcher as the product tools, so every bucket of the error taxonomy is
// reachable with a fixed input.
func Operations[C any]() []registry.Operation[C] {
	return []registry.Operation[C]{
		registry.Bind(registry.Definition{
			Name:        ToolSimpleText,
			Description: "Conformance tool that returns a simple text response.",
			Schema:      schema.Object(),
		}, func(context.Context, C, struct{}) (TextResult, error) {
			return TextResult{Text: simpleTextResponse}, nil
		}),
		registry.Bind(registry.Definition{
			Name:        ToolEcho,
			Description: "Conformance tool that echoes its validated input.",
			Schema: schema.Object(
				schema.String("message", "text to echo").Required().Trimmed().NonEmpty().MaxLength(200),
				schema.Integer("repeat", "times to repeat the message").Coercible().Min(1).Max(5).Default(1),
			),
		}, func(_ context.Context, _ C, in EchoInput) (TextResult, error) {
			text := in.Message
			for i := 1; i < in.Repeat; i++ {
				text += " " + in.Message
			}
			return TextResult{Text: text}, nil
		}),
		registry.Bind(registry.Definition{
			Name:        ToolErrorContent,
			Description: "Conformance tool that returns an invalid-input error.",
			Schema:      schema.Object(),
		}, func(context.Context, C, struct{}) (TextResult, error) {
			return TextResult{}, toolerr.Rejected{Tool: ToolErrorContent, Reason: errorContentReason}
		}),
		registry.Bind(registry.Definition{
			Name:        ToolErrorHandling,
			Description: "Conformance tool that always fails internally.",
			Schema:      schema.Object(),
		}, func(context.Context, C, struct{}) (TextResult, error) {
			return TextResult{}, errors.New("conformance fixture failure")
		}),
	}
}

// Register adds the conformance prompt and resource to endpoint.
func Register(endpoint *mcp.Server) {
	if endpoint == nil {
		return
	}
	endpoint.AddPrompt(simplePrompt(), simplePromptHandler())
	endpoint.AddResource(staticTextResource(), staticTextResourceHandler())
}

func simplePrompt() *mcp.Prompt {
	return &mcp.Prompt{
		Name:        "test_simple_prompt",
		Description: "Conformance prompt that returns a simple text message.",
	}
}

func simplePromptHandler() mcp.PromptHandler {
	return func(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Messages: []*mcp.PromptMessage{
				{
					Role:    "user",
					Content: &mcp.TextContent{Text: "This is a simple prompt for testing."},
				},
			},
		}, nil
	}
}

func staticTextResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        staticTextResourceName,
		Description: "Conformance resource that returns fixed text content.",
		MIMEType:    "text/plain",
		URI:         staticTextResourceURI,
	}
}

func staticTextResourceHandler() mcp.ResourceHandler {
	return func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      staticTextResourceURI,
					MIMEType: "text/plain",
					Text:     staticTextResourceContent,
				},
			},
		}, nil
	}
}
