// Package workspace defines the contract between widget tools and the
// workspace that stores widgets.
//
// Tool handlers depend only on Client. The process wires a concrete backend
// (see workspace/sqlite) and injects it per call, so tests can substitute a
// fake without touching the dispatcher.
package workspace

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested widget or comment is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrUnauthenticated indicates the workspace rejected our credentials.
	ErrUnauthenticated = errors.New("workspace rejected credentials")
	// ErrUnavailable indicates the workspace could not be reached.
	ErrUnavailable = errors.New("workspace unavailable")
	// ErrInvalidPageToken indicates a page token that was not issued by the workspace.
	ErrInvalidPageToken = errors.New("invalid page token")
)

// Status is the lifecycle state of a widget.
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCanceled   Status = "canceled"
)

// Statuses lists every status in workflow order.
func Statuses() []Status {
	return []Status{StatusBacklog, StatusTodo, StatusInProgress, StatusDone, StatusCanceled}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}
	return false
}

// Priority bounds.
const (
	MinPriority = 0
	MaxPriority = 4
)

// Widget is one tracked unit of work.
type Widget struct {
	ID          string
	Name        string
	Description string
	Owner       string
	Status      Status
	Priority    int
	Labels      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Comment is a note attached to a widget.
type Comment struct {
	ID        string
	WidgetID  string
	Author    string
	Body      string
	CreatedAt time.Time
}

// WidgetFilter narrows widget listings. Zero values mean "any".
type WidgetFilter struct {
	Status    Status
	Owner     string
	Query     string
	PageSize  int
	PageToken string
}

// WidgetPage is one page of widgets.
type WidgetPage struct {
	Widgets       []Widget
	NextPageToken string
}

// WidgetPatch lists the fields to change; nil fields are left untouched.
type WidgetPatch struct {
	Name        *string
	Description *string
	Owner       *string
	Priority    *int
	Labels      *[]string
	Status      *Status
}

// Empty reports whether the patch changes nothing.
func (p WidgetPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Owner == nil &&
		p.Priority == nil && p.Labels == nil && p.Status == nil
}

// Summary counts widgets by status.
type Summary struct {
	Name     string
	Total    int
	ByStatus map[Status]int
}

// Client is the workspace API used by widget tools.
type Client interface {
	ListWidgets(ctx context.Context, filter WidgetFilter) (WidgetPage, error)
	GetWidget(ctx context.Context, id string) (Widget, error)
	// FindWidgetsByName matches names case-insensitively.
	FindWidgetsByName(ctx context.Context, name string) ([]Widget, error)
	CreateWidget(ctx context.Context, widget Widget) (Widget, error)
	UpdateWidget(ctx context.Context, id string, patch WidgetPatch) (Widget, error)
	DeleteWidget(ctx context.Context, id string) error
	AddComment(ctx context.Context, comment Comment) (Comment, error)
	ListComments(ctx context.Context, widgetID string, limit int) ([]Comment, error)
	Summary(ctx context.Context) (Summary, error)
}

// Importer loads fixture widgets. ImportWidget stores a widget and its
// comments together or not at all.
type Importer interface {
	FindWidgetsByName(ctx context.Context, name string) ([]Widget, error)
	ImportWidget(ctx context.Context, widget Widget, comments []Comment) (Widget, error)
}
