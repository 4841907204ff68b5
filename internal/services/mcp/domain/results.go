package domain

import (
	"time"

	"github.com/louisbranch/widgetmcp/internal/services/mcp/workspace"
)

// WidgetResult is the tool output for a single widget.
type WidgetResult struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	Status      string   `json:"status"`
	Priority    int      `json:"priority"`
	Labels      []string `json:"labels"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// WidgetListResult is the tool output for widget listings.
type WidgetListResult struct {
	Widgets    []WidgetResult `json:"widgets"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// WidgetSearchResult is the tool output for widget searches.
type WidgetSearchResult struct {
	Query   string         `json:"query"`
	Widgets []WidgetResult `json:"widgets"`
}

// WidgetDeleteResult confirms a deletion.
type WidgetDeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// CommentResult is the tool output for a single comment.
type CommentResult struct {
	ID        string `json:"id"`
	WidgetID  string `json:"widget_id"`
	Author    string `json:"author,omitempty"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

// CommentListResult is the tool output for comment listings.
type CommentListResult struct {
	WidgetID string          `json:"widget_id"`
	Comments []CommentResult `json:"comments"`
}

// StatusCount is one row of the workspace summary.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// SummaryResult is the tool output for the workspace summary.
type SummaryResult struct {
	Workspace string        `json:"workspace"`
	Total     int           `json:"total"`
	ByStatus  []StatusCount `json:"by_status"`
}

func widgetResult(widget workspace.Widget) WidgetResult {
	labels := widget.Labels
	if labels == nil {
		labels = []string{}
	}
	return WidgetResult{
		ID:          widget.ID,
		Name:        widget.Name,
		Description: widget.Description,
		Owner:       widget.Owner,
		Status:      string(widget.Status),
		Priority:    widget.Priority,
		Labels:      labels,
		CreatedAt:   formatTimestamp(widget.CreatedAt),
		UpdatedAt:   formatTimestamp(widget.UpdatedAt),
	}
}

func widgetResults(widgets []workspace.Widget) []WidgetResult {
	out := make([]WidgetResult, 0, len(widgets))
	for _, widget := range widgets {
		out = append(out, widgetResult(widget))
	}
	return out
}

func commentResult(comment workspace.Comment) CommentResult {
	return CommentResult{
		ID:        comment.ID,
		WidgetID:  comment.WidgetID,
		Author:    comment.Author,
		Body:      comment.Body,
		CreatedAt: formatTimestamp(comment.CreatedAt),
	}
}

func summaryResult(summary workspace.Summary) SummaryResult {
	result := SummaryResult{
		Workspace: summary.Name,
		Total:     summary.Total,
		ByStatus:  make([]StatusCount, 0, len(workspace.Statuses())),
	}
	for _, status := range workspace.Statuses() {
		result.ByStatus = append(result.ByStatus, StatusCount{Status: string(status), Count: summary.ByStatus[status]})
	}
	return result
}

// formatTimestamp renders t as RFC3339 in UTC, or empty for the zero time.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
