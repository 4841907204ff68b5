package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/louisbranch/widgetmcp/internal/platform/timeouts"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/toolerr"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/workspace"
)

// widgetKind names widgets in caller-facing messages.
const widgetKind = "Widget"

// Deps carries the collaborators injected into every tool call.
type Deps struct {
	Workspace workspace.Client
}

var errWorkspaceMissing = errors.New("workspace client is not configured")

func (d Deps) workspace() (workspace.Client, error) {
	if d.Workspace == nil {
		return nil, toolerr.Internal{Cause: errWorkspaceMissing}
	}
	return d.Workspace, nil
}

// withCallTimeout bounds one workspace call.
func withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeouts.WorkspaceCall)
}

// translate converts a workspace failure into the tool error taxonomy. Context
// errors pass through so the mapper can report cancellation.
func translate(tool, ref string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, workspace.ErrNotFound):
		return toolerr.NotFound{Kind: widgetKind, Ref: ref}
	case errors.Is(err, workspace.ErrAlreadyExists):
		return toolerr.Rejected{Tool: tool, Reason: "a widget with that id already exists"}
	case errors.Is(err, workspace.ErrInvalidPageToken):
		return toolerr.Rejected{Tool: tool, Reason: "cursor was not issued by this workspace"}
	case errors.Is(err, workspace.ErrUnauthenticated):
		return toolerr.Unauthenticated{Cause: err}
	default:
		return toolerr.Unavailable{Cause: err}
	}
}

// resolveWidget finds a widget by id, falling back to a case-insensitive
// name match. A name shared by several widgets is ambiguous.
func resolveWidget(ctx context.Context, client workspace.Client, tool, ref string) (workspace.Widget, error) {
	ref = strings.TrimSpace(ref)

	callCtx, cancel := withCallTimeout(ctx)
	widget, err := client.GetWidget(callCtx, ref)
	cancel()
	if err == nil {
		return widget, nil
	}
	if !errors.Is(err, workspace.ErrNotFound) {
		return workspace.Widget{}, translate(tool, ref, err)
	}

	callCtx, cancel = withCallTimeout(ctx)
	matches, err := client.FindWidgetsByName(callCtx, ref)
	cancel()
	if err != nil {
		return workspace.Widget{}, translate(tool, ref, err)
	}
	switch len(matches) {
	case 0:
		return workspace.Widget{}, toolerr.NotFound{Kind: widgetKind, Ref: ref}
	case 1:
		return matches[0], nil
	default:
		return workspace.Widget{}, toolerr.Ambiguous{Kind: widgetKind, Ref: ref, Matches: len(matches)}
	}
}
