package domain

import (
	"context"
	"strings"

	"github.com/louisbranch/widgetmcp/internal/services/mcp/registry"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/schema"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/toolerr"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/workspace"
)

// Tool names.
const (
	ToolListWidgets        = "list_widgets"
	ToolGetWidget          = "get_widget"
	ToolSearchWidgets      = "search_widgets"
	ToolCreateWidget       = "create_widget"
	ToolUpdateWidget       = "update_widget"
	ToolTransitionWidget   = "transition_widget"
	ToolDeleteWidget       = "delete_widget"
	ToolAddWidgetComment   = "add_widget_comment"
	ToolListWidgetComments = "list_widget_comments"
	ToolWorkspaceSummary   = "get_workspace_summary"
)

const (
	maxNameLength    = 200
	maxBodyLength    = 5000
	maxLabels        = 20
	maxLabelLength   = 50
	defaultListLimit = 25
	maxListLimit     = 100
	defaultFindLimit = 10
	maxFindLimit     = 50
)

// Operations returns every widget tool in listing order.
func Operations() []registry.Operation[Deps] {
	return []registry.Operation[Deps]{
		registry.Bind(listWidgetsDefinition(), listWidgets),
		registry.Bind(getWidgetDefinition(), getWidget),
		registry.Bind(searchWidgetsDefinition(), searchWidgets),
		registry.Bind(createWidgetDefinition(), createWidget),
		registry.Bind(updateWidgetDefinition(), updateWidget),
		registry.Bind(transitionWidgetDefinition(), transitionWidget),
		registry.Bind(deleteWidgetDefinition(), deleteWidget),
		registry.Bind(addCommentDefinition(), addComment),
		registry.Bind(listCommentsDefinition(), listComments),
		registry.Bind(summaryDefinition(), workspaceSummary),
	}
}

func statusNames() []string {
	statuses := workspace.Statuses()
	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		names = append(names, string(status))
	}
	return names
}

func widgetRefField() schema.Field {
	return schema.String("id", "widget id or exact widget name").Required().Trimmed().NonEmpty()
}

func labelsField() schema.Field {
	return schema.StringList("labels", "labels attached to the widget").Trimmed().NonEmpty().MaxLength(maxLabelLength).MaxItems(maxLabels)
}

func priorityField() schema.Field {
	return schema.Integer("priority", "priority from 0 (none) to 4 (urgent)").Coercible().Min(workspace.MinPriority).Max(workspace.MaxPriority)
}

// ListWidgetsInput is the list_widgets argument set.
type ListWidgetsInput struct {
	Status string `json:"status"`
	Owner  string `json:"owner"`
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor"`
}

func listWidgetsDefinition() registry.Definition {
	return registry.Definition{
		Name:        ToolListWidgets,
		Description: "Lists widgets in creation order, optionally filtered by status or owner",
		Schema: schema.Object(
			schema.String("status", "only widgets in this status").Enum(statusNames()...),
			schema.String("owner", "only widgets owned by this person").Trimmed(),
			schema.Integer("limit", "maximum widgets to return").Coercible().Min(1).Max(maxListLimit).Default(defaultListLimit),
			schema.String("cursor", "next_cursor from a previous page").Trimmed(),
		),
	}
}

func listWidgets(ctx context.Context, deps Deps, in ListWidgetsInput) (WidgetListResult, error) {
	client, err := deps.workspace()
	if err != nil {
		return WidgetListResult{}, err
	}
	callCtx, cancel := withCallTimeout(ctx)
	defer cancel()

	page, err := client.ListWidgets(callCtx, workspace.WidgetFilter{
		Status:    workspace.Status(in.Status),
		Owner:     in.Owner,
		PageSize:  in.Limit,
		PageToken: in.Cursor,
	})
	if err != nil {
		return WidgetListResult{}, translate(ToolListWidgets, "", err)
	}
	return WidgetListResult{Widgets: widgetResults(page.Widgets), NextCursor: page.NextPageToken}, nil
}

// GetWidgetInput is the get_widget argument set.
type GetWidgetInput struct {
	ID string `json:"id"`
}

func getWidgetDefinition() registry.Definition {
	return registry.Definition{
		Name:        ToolGetWidget,
		Description: "Returns one widget by id or exact name",
		Schema:      schema.Object(widgetRefField()),
	}
}

func getWidget(ctx context.Context, deps Deps, in GetWidgetInput) (WidgetResult, error) {
	client, err := deps.workspace()
	if err != nil {
		return WidgetResult{}, err
	}
	widget, err := resolveWidget(ctx, client, ToolGetWidget, in.ID)
	if err != nil {
		return WidgetResult{}, err
	}
	return widgetResult(widget), nil
}

// SearchWidgetsInput is the search_widgets argument set.
type SearchWidgetsInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func searchWidgetsDefinition() registry.Definition {
	return registry.Definition{
		Name:        ToolSearchWidgets,
		Description: "Finds widgets whose name or description contains the query, ignoring case",
		Schema: schema.Object(
			schema.String("query", "text to look for").Required().Trimmed().NonEmpty().MaxLength(maxNameLength),
			schema.Integer("limit", "maximum widgets to return").Coercible().Min(1).Max(maxFindLimit).Default(defaultFindLimit),
		),
	}
}

func searchWidgets(ctx context.Context, deps Deps, in SearchWidgetsInput) (WidgetSearchResult, error) {
	client, err := deps.workspace()
	if err != nil {
		return WidgetSearchResult{}, err
	}
	callCtx, cancel := withCallTimeout(ctx)
	defer cancel()

	page, err := client.ListWidgets(callCtx, workspace.WidgetFilter{Query: in.Query, PageSize: in.Limit})
	if err != nil {
		return WidgetSearchResult{}, translate(ToolSearchWidgets, "", err)
	}
	return WidgetSearchResult{Query: in.Query, Widgets: widgetResults(page.Widgets)}, nil
}

// CreateWidgetInput is the create_widget argument set.
type CreateWidgetInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Owner       string   `json:"owner"`
	Priority    int      `json:"priority"`
	Labels      []string `json:"labels"`
}

func createWidgetDefinition() registry.Definition {
	return registry.Definition{
		Name:        ToolCreateWidget,
		Description: "Creates a widget in the backlog",
		Schema: schema.Object(
			schema.String("name", "widget name").Required().Trimmed().NonEmpty().MaxLength(maxNameLength),
			schema.String("description", "longer description").Trimmed().MaxLength(maxBodyLength),
			schema.String("owner", "person responsible for the widget").Trimmed().MaxLength(maxNameLength),
			priorityField().Default(0),
			labelsField(),
		),
	}
}

func createWidget(ctx context.Context, deps Deps, in CreateWidgetInput) (WidgetResult, error) {
	client, err := deps.workspace()
	if err != nil {
		return WidgetResult{}, err
	}
	callCtx, cancel := withCallTimeout(ctx)
	defer cancel()

	widget, err := client.CreateWidget(callCtx, workspace.Widget{
		Name:        in.Name,
		Description: in.Description,
		Owner:       in.Owner,
		Status:      workspace.StatusBacklog,
		Priority:    in.Priority,
		Labels:      in.Labels,
	})
	if err != nil {
		return WidgetResult{}, translate(ToolCreateWidget, in.Name, err)
	}
	return widgetResult(widget), nil
}

// UpdateWidgetInput is the update_widget argument set. Absent fields are left
// unchanged.
type UpdateWidgetInput struct {
	ID          string    `json:"id"`
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Owner       *string   `json:"owner"`
	Priority    *int      `json:"priority"`
	Labels      *[]string `json:"labels"`
}

func updateWidgetDefinition() registry.Definition {
	return registry.Definition{
		Name:        ToolUpdateWidget,
		Description: "Changes a widget's name, description, owner, priority or labels",
		Schema: schema.Object(
			widgetRefField(),
			schema.String("name", "new widget name").Trimmed().NonEmpty().MaxLength(maxNameLength),
			schema.String("description", "new description").Trimmed().MaxLength(maxBodyLength),
			schema.String("owner", "new owner").Trimmed().MaxLength(maxNameLength),
			priorityField(),
			labelsField(),
		),
	}
}

func updateWidget(ctx context.Context, deps Deps, in UpdateWidgetInput) (WidgetResult, error) {
	patch := workspace.WidgetPatch{
		Name:        in.Name,
		Description: in.Description,
		Owner:       in.Owner,
		Priority:    in.Priority,
		Labels:      in.Labels,
	}
	if patch.Empty() {
		return WidgetResult{}, toolerr.Rejected{Tool: ToolUpdateWidget, Reason: "at least one field to change is required"}
	}
	client, err := deps.workspace()
	if err != nil {
		return WidgetResult{}, err
	}
	widget, err := resolveWidget(ctx, client, ToolUpdateWidget, in.ID)
	if err != nil {
		return WidgetResult{}, err
	}

	callCtx, cancel := withCallTimeout(ctx)
	defer cancel()
	updated, err := client.UpdateWidget(callCtx, widget.ID, patch)
	if err != nil {
		return WidgetResult{}, translate(ToolUpdateWidget, in.ID, err)
	}
	return widgetResult(updated), nil
}

// TransitionWidgetInput is the transition_widget argument set.
type TransitionWidgetInput struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func transitionWidgetDefinition() registry.Definition {
	return registry.Definition{
		Name:        ToolTransitionWidget,
		Description: "Moves a widget to another status along the allowed workflow",
		Schema: schema.Object(
			widgetRefField(),
			schema.String("status", "target status").Required().Trimmed().Enum(statusNames()...),
		),
	}
}

func transitionWidget(ctx context.Context, deps Deps, in TransitionWidgetInput) (WidgetResult, error) {
	client, err := deps.workspace()
	if err != nil {
		return WidgetResult{}, err
	}
	widget, err := resolveWidget(ctx, client, ToolTransitionWidget, in.ID)
	if err != nil {
		return WidgetResult{}, err
	}
	target := workspace.Status(in.Status)
	if !CanTransition(widget.Status, target) {
		return WidgetResult{}, toolerr.InvalidTransition{
			Kind: widgetKind,
			Ref:  in.ID,
			From: string(widget.Status),
			To:   string(target),
		}
	}

	callCtx, cancel := withCallTimeout(ctx)
	defer cancel()
	updated, err := client.UpdateWidget(callCtx, widget.ID, workspace.WidgetPatch{Status: &target})
	if err != nil {
		return WidgetResult{}, translate(ToolTransitionWidget, in.ID, err)
	}
	return widgetResult(updated), nil
}

// DeleteWidgetInput is the delete_widget argument set.
type DeleteWidgetInput struct {
	ID string `json:"id"`
}

func deleteWidgetDefinition() registry.Definition {
	return registry.Definition{
		Name:        ToolDeleteWidget,
		Description: "Deletes a widget and its comments",
		Schema:      schema.Object(widgetRefField()),
	}
}

func deleteWidget(ctx context.Context, deps Deps, in DeleteWidgetInput) (WidgetDeleteResult, error) {
	client, err := deps.workspace()
	if err != nil {
		return WidgetDeleteResult{}, err
	}
	widget, err := resolveWidget(ctx, client, ToolDeleteWidget, in.ID)
	if err != nil {
		return WidgetDeleteResult{}, err
	}

	callCtx, cancel := withCallTimeout(ctx)
	defer cancel()
	if err := client.DeleteWidget(callCtx, widget.ID); err != nil {
		return WidgetDeleteResult{}, translate(ToolDeleteWidget, in.ID, err)
	}
	return WidgetDeleteResult{ID: widget.ID, Deleted: true}, nil
}

// AddCommentInput is the add_widget_comment argument set.
type AddCommentInput struct {
	ID     string `json:"id"`
	Body   string `json:"body"`
	Author string `json:"author"`
}

func addCommentDefinition() registry.Definition {
	return registry.Definition{
		Name:        ToolAddWidgetComment,
		Description: "Adds a comment to a widget",
		Schema: schema.Object(
			widgetRefField(),
			schema.String("body", "comment text").Required().Trimmed().NonEmpty().MaxLength(maxBodyLength),
			schema.String("author", "who wrote the comment").Trimmed().MaxLength(maxNameLength),
		),
	}
}

func addComment(ctx context.Context, deps Deps, in AddCommentInput) (CommentResult, error) {
	client, err := deps.workspace()
	if err != nil {
		return CommentResult{}, err
	}
	widget, err := resolveWidget(ctx, client, ToolAddWidgetComment, in.ID)
	if err != nil {
		return CommentResult{}, err
	}

	callCtx, cancel := withCallTimeout(ctx)
	defer cancel()
	comment, err := client.AddComment(callCtx, workspace.Comment{
		WidgetID: widget.ID,
		Author:   strings.TrimSpace(in.Author),
		Body:     in.Body,
	})
	if err != nil {
		return CommentResult{}, translate(ToolAddWidgetComment, in.ID, err)
	}
	return commentResult(comment), nil
}

// ListCommentsInput is the list_widget_comments argument set.
type ListCommentsInput struct {
	ID    string `json:"id"`
	Limit int    `json:"limit"`
}

func listCommentsDefinition() registry.Definition {
	return registry.Definition{
		Name:        ToolListWidgetComments,
		Description: "Lists a widget's comments, oldest first",
		Schema: schema.Object(
			widgetRefField(),
			schema.Integer("limit", "maximum comments to return").Coercible().Min(1).Max(maxListLimit).Default(defaultListLimit),
		),
	}
}

func listComments(ctx context.Context, deps Deps, in ListCommentsInput) (CommentListResult, error) {
	client, err := deps.workspace()
	if err != nil {
		return CommentListResult{}, err
	}
	widget, err := resolveWidget(ctx, client, ToolListWidgetComments, in.ID)
	if err != nil {
		return CommentListResult{}, err
	}

	callCtx, cancel := withCallTimeout(ctx)
	defer cancel()
	comments, err := client.ListComments(callCtx, widget.ID, in.Limit)
	if err != nil {
		return CommentListResult{}, translate(ToolListWidgetComments, in.ID, err)
	}
	result := CommentListResult{WidgetID: widget.ID, Comments: make([]CommentResult, 0, len(comments))}
	for _, comment := range comments {
		result.Comments = append(result.Comments, commentResult(comment))
	}
	return result, nil
}

// SummaryInput is the get_workspace_summary argument set. It takes no
// arguments.
type SummaryInput struct{}

func summaryDefinition() registry.Definition {
	return registry.Definition{
		Name:        ToolWorkspaceSummary,
		Description: "Counts widgets by status",
		Schema:      schema.Object(),
	}
}

func workspaceSummary(ctx context.Context, deps Deps, _ SummaryInput) (SummaryResult, error) {
	client, err := deps.workspace()
	if err != nil {
		return SummaryResult{}, err
	}
	callCtx, cancel := withCallTimeout(ctx)
	defer cancel()

	summary, err := client.Summary(callCtx)
	if err != nil {
		return SummaryResult{}, translate(ToolWorkspaceSummary, "", err)
	}
	return summaryResult(summary), nil
}
