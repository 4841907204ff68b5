package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/widgetmcp/internal/services/mcp/workspace"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestCreateGetWidgetRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.February, 22, 16, 40, 0, 0, time.UTC)
	store := openTempStore(t, WithClock(fixedClock(now)), WithIDGenerator(sequentialIDs("w")))

	created, err := store.CreateWidget(context.Background(), workspace.Widget{
		Name:        "  Gear Box ",
		Description: "Reduces speed",
		Owner:       "ada",
		Priority:    2,
		Labels:      []string{"mech", "drive"},
	})
	if err != nil {
		t.Fatalf("create widget: %v", err)
	}
	if created.ID != "w-1" {
		t.Fatalf("id = %q, want %q", created.ID, "w-1")
	}
	if created.Status != workspace.StatusBacklog {
		t.Fatalf("status = %q, want %q", created.Status, workspace.StatusBacklog)
	}

	got, err := store.GetWidget(context.Background(), "w-1")
	if err != nil {
		t.Fatalf("get widget: %v", err)
	}
	if got.Name != "Gear Box" {
		t.Fatalf("name = %q, want %q", got.Name, "Gear Box")
	}
	if got.Owner != "ada" || got.Priority != 2 {
		t.Fatalf("owner/priority = %q/%d, want ada/2", got.Owner, got.Priority)
	}
	if len(got.Labels) != 2 || got.Labels[0] != "mech" || got.Labels[1] != "drive" {
		t.Fatalf("labels = %v, want [mech drive]", got.Labels)
	}
	if !got.CreatedAt.Equal(now) || !got.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps = %v/%v, want %v", got.CreatedAt, got.UpdatedAt, now)
	}
}

func TestCreateWidgetReturnsAlreadyExistsOnDuplicateID(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	input := workspace.Widget{ID: "dup", Name: "Sprocket"}
	if _, err := store.CreateWidget(context.Background(), input); err != nil {
		t.Fatalf("create initial widget: %v", err)
	}
	_, err := store.CreateWidget(context.Background(), input)
	if !errors.Is(err, workspace.ErrAlreadyExists) {
		t.Fatalf("duplicate create error = %v, want %v", err, workspace.ErrAlreadyExists)
	}
}

func TestCreateWidgetRejectsInvalidFields(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	tests := []struct {
		name   string
		widget workspace.Widget
	}{
		{name: "blank name", widget: workspace.Widget{Name: "   "}},
		{name: "unknown status", widget: workspace.Widget{Name: "x", Status: "paused"}},
		{name: "priority too high", widget: workspace.Widget{Name: "x", Priority: 9}},
	}
	for _, tc := range tests {
		if _, err := store.CreateWidget(context.Background(), tc.widget); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestGetWidgetNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	_, err := store.GetWidget(context.Background(), "missing")
	if !errors.Is(err, workspace.ErrNotFound) {
		t.Fatalf("get missing error = %v, want %v", err, workspace.ErrNotFound)
	}
}

func TestFindWidgetsByNameIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	store := openTempStore(t, WithClock(steppingClock()))
	for _, name := range []string{"Flux Valve", "FLUX VALVE", "Other"} {
		if _, err := store.CreateWidget(context.Background(), workspace.Widget{Name: name}); err != nil {
			t.Fatalf("create %q: %v", name, err)
		}
	}

	matches, err := store.FindWidgetsByName(context.Background(), " flux valve ")
	if err != nil {
		t.Fatalf("find widgets: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	if matches[0].Name != "Flux Valve" {
		t.Fatalf("first match = %q, want oldest first", matches[0].Name)
	}

	none, err := store.FindWidgetsByName(context.Background(), "absent")
	if err != nil {
		t.Fatalf("find absent: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("absent matches = %d, want 0", len(none))
	}
}

func TestListWidgetsPaginatesInCreationOrder(t *testing.T) {
	t.Parallel()

	store := openTempStore(t, WithClock(steppingClock()))
	for i := 1; i <= 5; i++ {
		if _, err := store.CreateWidget(context.Background(), workspace.Widget{Name: fmt.Sprintf("widget %d", i)}); err != nil {
			t.Fatalf("create widget %d: %v", i, err)
		}
	}

	first, err := store.ListWidgets(context.Background(), workspace.WidgetFilter{PageSize: 2})
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(first.Widgets) != 2 || first.NextPageToken == "" {
		t.Fatalf("first page = %d widgets token %q, want 2 with token", len(first.Widgets), first.NextPageToken)
	}
	if first.Widgets[0].Name != "widget 1" {
		t.Fatalf("first widget = %q, want %q", first.Widgets[0].Name, "widget 1")
	}

	seen := len(first.Widgets)
	token := first.NextPageToken
	for token != "" {
		page, err := store.ListWidgets(context.Background(), workspace.WidgetFilter{PageSize: 2, PageToken: token})
		if err != nil {
			t.Fatalf("list page: %v", err)
		}
		seen += len(page.Widgets)
		token = page.NextPageToken
	}
	if seen != 5 {
		t.Fatalf("seen = %d, want 5", seen)
	}
}

func TestListWidgetsFilters(t *testing.T) {
	t.Parallel()

	store := openTempStore(t, WithClock(steppingClock()))
	inputs := []workspace.Widget{
		{Name: "Alpha", Owner: "ada", Status: workspace.StatusTodo, Description: "100% reliable"},
		{Name: "Beta", Owner: "grace", Status: workspace.StatusTodo},
		{Name: "Gamma", Owner: "Ada", Status: workspace.StatusDone},
	}
	for _, input := range inputs {
		if _, err := store.CreateWidget(context.Background(), input); err != nil {
			t.Fatalf("create %q: %v", input.Name, err)
		}
	}

	tests := []struct {
		name   string
		filter workspace.WidgetFilter
		want   int
	}{
		{name: "status", filter: workspace.WidgetFilter{Status: workspace.StatusTodo}, want: 2},
		{name: "owner ignores case", filter: workspace.WidgetFilter{Owner: "ADA"}, want: 2},
		{name: "status and owner", filter: workspace.WidgetFilter{Status: workspace.StatusDone, Owner: "ada"}, want: 1},
		{name: "query", filter: workspace.WidgetFilter{Query: "gAm"}, want: 1},
		{name: "query escapes wildcards", filter: workspace.WidgetFilter{Query: "100%"}, want: 1},
		{name: "wildcard alone matches literally", filter: workspace.WidgetFilter{Query: "%"}, want: 1},
	}
	for _, tc := range tests {
		page, err := store.ListWidgets(context.Background(), tc.filter)
		if err != nil {
			t.Fatalf("%s: list widgets: %v", tc.name, err)
		}
		if len(page.Widgets) != tc.want {
			t.Fatalf("%s: widgets = %d, want %d", tc.name, len(page.Widgets), tc.want)
		}
	}
}

func TestListWidgetsRejectsInvalidPageToken(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	_, err := store.ListWidgets(context.Background(), workspace.WidgetFilter{PageToken: "not-a-token"})
	if !errors.Is(err, workspace.ErrInvalidPageToken) {
		t.Fatalf("list error = %v, want %v", err, workspace.ErrInvalidPageToken)
	}
}

func TestUpdateWidgetAppliesPatch(t *testing.T) {
	t.Parallel()

	store := openTempStore(t, WithClock(steppingClock()))
	created, err := store.CreateWidget(context.Background(), workspace.Widget{Name: "Cog", Labels: []string{"a"}})
	if err != nil {
		t.Fatalf("create widget: %v", err)
	}

	name := "Big Cog"
	status := workspace.StatusTodo
	labels := []string{}
	updated, err := store.UpdateWidget(context.Background(), created.ID, workspace.WidgetPatch{
		Name:   &name,
		Status: &status,
		Labels: &labels,
	})
	if err != nil {
		t.Fatalf("update widget: %v", err)
	}
	if updated.Name != name || updated.Status != status {
		t.Fatalf("updated = %q/%q, want %q/%q", updated.Name, updated.Status, name, status)
	}
	if len(updated.Labels) != 0 {
		t.Fatalf("labels = %v, want empty", updated.Labels)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updated_at = %v, want after %v", updated.UpdatedAt, created.UpdatedAt)
	}

	matches, err := store.FindWidgetsByName(context.Background(), "big cog")
	if err != nil {
		t.Fatalf("find renamed widget: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("renamed matches = %d, want 1", len(matches))
	}
}

func TestUpdateWidgetNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	name := "x"
	_, err := store.UpdateWidget(context.Background(), "missing", workspace.WidgetPatch{Name: &name})
	if !errors.Is(err, workspace.ErrNotFound) {
		t.Fatalf("update missing error = %v, want %v", err, workspace.ErrNotFound)
	}
}

func TestCommentsLifecycle(t *testing.T) {
	t.Parallel()

	store := openTempStore(t, WithClock(steppingClock()))
	widget, err := store.CreateWidget(context.Background(), workspace.Widget{Name: "Lever"})
	if err != nil {
		t.Fatalf("create widget: %v", err)
	}
	for _, body := range []string{"first", "second"} {
		if _, err := store.AddComment(context.Background(), workspace.Comment{WidgetID: widget.ID, Author: "ada", Body: body}); err != nil {
			t.Fatalf("add comment %q: %v", body, err)
		}
	}

	comments, err := store.ListComments(context.Background(), widget.ID, 0)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 2 || comments[0].Body != "first" {
		t.Fatalf("comments = %+v, want first then second", comments)
	}

	limited, err := store.ListComments(context.Background(), widget.ID, 1)
	if err != nil {
		t.Fatalf("list limited comments: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limited comments = %d, want 1", len(limited))
	}

	if err := store.DeleteWidget(context.Background(), widget.ID); err != nil {
		t.Fatalf("delete widget: %v", err)
	}
	if _, err := store.ListComments(context.Background(), widget.ID, 0); !errors.Is(err, workspace.ErrNotFound) {
		t.Fatalf("list comments after delete error = %v, want %v", err, workspace.ErrNotFound)
	}
	if err := store.DeleteWidget(context.Background(), widget.ID); !errors.Is(err, workspace.ErrNotFound) {
		t.Fatalf("second delete error = %v, want %v", err, workspace.ErrNotFound)
	}
}

func TestAddCommentRequiresWidget(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	_, err := store.AddComment(context.Background(), workspace.Comment{WidgetID: "missing", Body: "hello"})
	if !errors.Is(err, workspace.ErrNotFound) {
		t.Fatalf("add comment error = %v, want %v", err, workspace.ErrNotFound)
	}
}

func TestImportWidgetStoresComments(t *testing.T) {
	t.Parallel()

	store := openTempStore(t, WithIDGenerator(sequentialIDs("id")))
	widget, err := store.ImportWidget(context.Background(), workspace.Widget{Name: "Gear Box"}, []workspace.Comment{
		{Author: "ada", Body: " needs oil "},
		{Body: "checked"},
	})
	if err != nil {
		t.Fatalf("import widget: %v", err)
	}
	comments, err := store.ListComments(context.Background(), widget.ID, 0)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 2 || comments[0].Body != "needs oil" || comments[0].WidgetID != widget.ID {
		t.Fatalf("comments = %+v", comments)
	}
}

func TestImportWidgetRollsBackOnCommentFailure(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	_, err := store.ImportWidget(context.Background(), workspace.Widget{ID: "w-1", Name: "Gear Box"}, []workspace.Comment{
		{Body: "first"},
		{Body: "   "},
	})
	if err == nil {
		t.Fatal("expected blank comment error")
	}
	if _, err := store.GetWidget(context.Background(), "w-1"); !errors.Is(err, workspace.ErrNotFound) {
		t.Fatalf("get widget error = %v, want %v", err, workspace.ErrNotFound)
	}

	// A duplicate comment id fails inside the transaction rather than before it.
	_, err = store.ImportWidget(context.Background(), workspace.Widget{ID: "w-2", Name: "Flux Valve"}, []workspace.Comment{
		{ID: "c-1", Body: "first"},
		{ID: "c-1", Body: "again"},
	})
	if !errors.Is(err, workspace.ErrAlreadyExists) {
		t.Fatalf("import error = %v, want %v", err, workspace.ErrAlreadyExists)
	}
	if _, err := store.ListComments(context.Background(), "w-2", 0); !errors.Is(err, workspace.ErrNotFound) {
		t.Fatalf("list comments error = %v, want %v", err, workspace.ErrNotFound)
	}
}

func TestSummaryCountsByStatus(t *testing.T) {
	t.Parallel()

	store := openTempStore(t, WithName("Factory"))
	for _, status := range []workspace.Status{workspace.StatusTodo, workspace.StatusTodo, workspace.StatusDone} {
		if _, err := store.CreateWidget(context.Background(), workspace.Widget{Name: "w", Status: status}); err != nil {
			t.Fatalf("create widget: %v", err)
		}
	}

	summary, err := store.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Name != "Factory" {
		t.Fatalf("name = %q, want %q", summary.Name, "Factory")
	}
	if summary.Total != 3 {
		t.Fatalf("total = %d, want 3", summary.Total)
	}
	if summary.ByStatus[workspace.StatusTodo] != 2 || summary.ByStatus[workspace.StatusDone] != 1 {
		t.Fatalf("by status = %v", summary.ByStatus)
	}
	if count, ok := summary.ByStatus[workspace.StatusCanceled]; !ok || count != 0 {
		t.Fatalf("canceled = %d (present %v), want 0 present", count, ok)
	}
}

func TestCancelledContextPassesThrough(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.GetWidget(ctx, "any")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("get widget error = %v, want %v", err, context.Canceled)
	}
	if errors.Is(err, workspace.ErrUnavailable) {
		t.Fatalf("cancellation must not read as unavailable: %v", err)
	}
}

func TestClosedStoreReportsUnavailable(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	_, err := store.Summary(context.Background())
	if !errors.Is(err, workspace.ErrUnavailable) {
		t.Fatalf("summary after close error = %v, want %v", err, workspace.ErrUnavailable)
	}
}

func openTempStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "widgets.db")
	store, err := Open(context.Background(), path, opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

// steppingClock advances one second per call so rows have distinct times.
func steppingClock() func() time.Time {
	next := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		next = next.Add(time.Second)
		return next
	}
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
