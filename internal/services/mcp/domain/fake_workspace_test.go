package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/widgetmcp/internal/services/mcp/workspace"
)

// fakeWorkspace is an in-memory workspace.Client. Setting err makes every
// call fail with it.
type fakeWorkspace struct {
	mu       sync.Mutex
	widgets  map[string]workspace.Widget
	comments map[string][]workspace.Comment
	nextID   int
	now      time.Time
	err      error

	lastFilter workspace.WidgetFilter
	lastLimit  int
	calls      int
}

func newFakeWorkspace(widgets ...workspace.Widget) *fakeWorkspace {
	f := &fakeWorkspace{
		widgets:  make(map[string]workspace.Widget),
		comments: make(map[string][]workspace.Comment),
		now:      time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC),
	}
	for _, widget := range widgets {
		if widget.Status == "" {
			widget.Status = workspace.StatusBacklog
		}
		if widget.CreatedAt.IsZero() {
			widget.CreatedAt = f.tick()
			widget.UpdatedAt = widget.CreatedAt
		}
		f.widgets[widget.ID] = widget
	}
	return f
}

func (f *fakeWorkspace) tick() time.Time {
	f.now = f.now.Add(time.Minute)
	return f.now
}

func (f *fakeWorkspace) begin() error {
	f.calls++
	return f.err
}

func (f *fakeWorkspace) sorted() []workspace.Widget {
	out := make([]workspace.Widget, 0, len(f.widgets))
	for _, widget := range f.widgets {
		out = append(out, widget)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (f *fakeWorkspace) ListWidgets(_ context.Context, filter workspace.WidgetFilter) (workspace.WidgetPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return workspace.WidgetPage{}, err
	}
	f.lastFilter = filter
	if filter.PageToken == "bogus" {
		return workspace.WidgetPage{}, workspace.ErrInvalidPageToken
	}
	var page workspace.WidgetPage
	for _, widget := range f.sorted() {
		if filter.Status != "" && widget.Status != filter.Status {
			continue
		}
		if filter.Owner != "" && !strings.EqualFold(widget.Owner, filter.Owner) {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(widget.Name+" "+widget.Description), strings.ToLower(filter.Query)) {
			continue
		}
		page.Widgets = append(page.Widgets, widget)
	}
	if filter.PageSize > 0 && len(page.Widgets) > filter.PageSize {
		page.Widgets = page.Widgets[:filter.PageSize]
		page.NextPageToken = "next"
	}
	return page, nil
}

func (f *fakeWorkspace) GetWidget(_ context.Context, id string) (workspace.Widget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return workspace.Widget{}, err
	}
	widget, ok := f.widgets[id]
	if !ok {
		return workspace.Widget{}, workspace.ErrNotFound
	}
	return widget, nil
}

func (f *fakeWorkspace) FindWidgetsByName(_ context.Context, name string) ([]workspace.Widget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return nil, err
	}
	var matches []workspace.Widget
	for _, widget := range f.sorted() {
		if strings.EqualFold(widget.Name, strings.TrimSpace(name)) {
			matches = append(matches, widget)
		}
	}
	return matches, nil
}

func (f *fakeWorkspace) CreateWidget(_ context.Context, widget workspace.Widget) (workspace.Widget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return workspace.Widget{}, err
	}
	if widget.ID == "" {
		f.nextID++
		widget.ID = fmt.Sprintf("w-%d", f.nextID)
	}
	if _, exists := f.widgets[widget.ID]; exists {
		return workspace.Widget{}, workspace.ErrAlreadyExists
	}
	widget.CreatedAt = f.tick()
	widget.UpdatedAt = widget.CreatedAt
	f.widgets[widget.ID] = widget
	return widget, nil
}

func (f *fakeWorkspace) UpdateWidget(_ context.Context, id string, patch workspace.WidgetPatch) (workspace.Widget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return workspace.Widget{}, err
	}
	widget, ok := f.widgets[id]
	if !ok {
		return workspace.Widget{}, workspace.ErrNotFound
	}
	if patch.Name != nil {
		widget.Name = *patch.Name
	}
	if patch.Description != nil {
		widget.Description = *patch.Description
	}
	if patch.Owner != nil {
		widget.Owner = *patch.Owner
	}
	if patch.Priority != nil {
		widget.Priority = *patch.Priority
	}
	if patch.Labels != nil {
		widget.Labels = *patch.Labels
	}
	if patch.Status != nil {
		widget.Status = *patch.Status
	}
	widget.UpdatedAt = f.tick()
	f.widgets[id] = widget
	return widget, nil
}

func (f *fakeWorkspace) DeleteWidget(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return err
	}
	if _, ok := f.widgets[id]; !ok {
		return workspace.ErrNotFound
	}
	delete(f.widgets, id)
	delete(f.comments, id)
	return nil
}

func (f *fakeWorkspace) AddComment(_ context.Context, comment workspace.Comment) (workspace.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return workspace.Comment{}, err
	}
	if _, ok := f.widgets[comment.WidgetID]; !ok {
		return workspace.Comment{}, workspace.ErrNotFound
	}
	f.nextID++
	comment.ID = fmt.Sprintf("c-%d", f.nextID)
	comment.CreatedAt = f.tick()
	f.comments[comment.WidgetID] = append(f.comments[comment.WidgetID], comment)
	return comment, nil
}

func (f *fakeWorkspace) ListComments(_ context.Context, widgetID string, limit int) ([]workspace.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return nil, err
	}
	f.lastLimit = limit
	comments := f.comments[widgetID]
	if limit > 0 && len(comments) > limit {
		comments = comments[:limit]
	}
	return append([]workspace.Comment(nil), comments...), nil
}

func (f *fakeWorkspace) Summary(_ context.Context) (workspace.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return workspace.Summary{}, err
	}
	summary := workspace.Summary{Name: "Test", ByStatus: map[workspace.Status]int{}}
	for _, widget := range f.widgets {
		summary.ByStatus[widget.Status]++
		summary.Total++
	}
	return summary, nil
}
