// Package sqlite provides a SQLite-backed workspace implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/louisbranch/widgetmcp/internal/platform/pagination"
	"github.com/louisbranch/widgetmcp/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/workspace"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/workspace/sqlite/migrations"
)

const (
	defaultWorkspaceName = "Local workspace"
	widgetColumns        = `id, name, description, owner, status, priority, labels, created_at, updated_at`
	commentColumns       = `id, widget_id, author, body, created_at`
)

var (
	widgetPageSize  = pagination.PageSizeConfig{Default: 25, Max: 100}
	commentPageSize = pagination.PageSizeConfig{Default: 50, Max: 100}
)

// Store persists workspace state in SQLite.
type Store struct {
	sqlDB *sql.DB
	name  string
	now   func() time.Time
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithName sets the workspace name reported by Summary.
func WithName(name string) Option {
	return func(s *Store) {
		if name = strings.TrimSpace(name); name != "" {
			s.name = name
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the id source for new records.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// foldKey normalizes names for case-insensitive matching.
func foldKey(value string) string {
	return cases.Fold().String(strings.TrimSpace(value))
}

// Open opens a SQLite workspace store and applies embedded migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	store := &Store{
		sqlDB: sqlDB,
		name:  defaultWorkspaceName,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured: %w", workspace.ErrUnavailable)
	}
	return nil
}

// CreateWidget inserts one widget. Missing ids, statuses and timestamps are
// filled in.
func (s *Store) CreateWidget(ctx context.Context, widget workspace.Widget) (workspace.Widget, error) {
	if err := s.ready(ctx); err != nil {
		return workspace.Widget{}, err
	}
	if err := s.prepareWidget(&widget); err != nil {
		return workspace.Widget{}, err
	}
	if err := insertWidget(ctx, s.sqlDB, widget); err != nil {
		return workspace.Widget{}, err
	}
	return widget, nil
}

// ImportWidget inserts widget and its comments in one transaction. A comment
// that fails leaves no trace of the widget.
func (s *Store) ImportWidget(ctx context.Context, widget workspace.Widget, comments []workspace.Comment) (workspace.Widget, error) {
	if err := s.ready(ctx); err != nil {
		return workspace.Widget{}, err
	}
	if err := s.prepareWidget(&widget); err != nil {
		return workspace.Widget{}, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return workspace.Widget{}, storeError("begin import widget", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertWidget(ctx, tx, widget); err != nil {
		return workspace.Widget{}, err
	}
	for i, comment := range comments {
		comment.WidgetID = widget.ID
		if err := s.prepareComment(&comment); err != nil {
			return workspace.Widget{}, fmt.Errorf("comment %d: %w", i, err)
		}
		if err := insertComment(ctx, tx, comment); err != nil {
			return workspace.Widget{}, fmt.Errorf("comment %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return workspace.Widget{}, storeError("commit import widget", err)
	}
	return widget, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) prepareWidget(widget *workspace.Widget) error {
	widget.ID = strings.TrimSpace(widget.ID)
	if widget.ID == "" {
		widget.ID = s.newID()
	}
	if widget.Status == "" {
		widget.Status = workspace.StatusBacklog
	}
	if widget.Labels == nil {
		widget.Labels = []string{}
	}
	if widget.CreatedAt.IsZero() {
		widget.CreatedAt = s.now()
	}
	if widget.UpdatedAt.IsZero() {
		widget.UpdatedAt = widget.CreatedAt
	}
	widget.CreatedAt = fromMillis(toMillis(widget.CreatedAt))
	widget.UpdatedAt = fromMillis(toMillis(widget.UpdatedAt))
	return normalizeWidget(widget)
}

func insertWidget(ctx context.Context, exec execer, widget workspace.Widget) error {
	labels, err := json.Marshal(widget.Labels)
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}
	_, err = exec.ExecContext(
		ctx,
		`INSERT INTO widgets (
		   id, name, name_key, search_text, description, owner,
		   status, priority, labels, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		widget.ID,
		widget.Name,
		foldKey(widget.Name),
		searchText(widget),
		widget.Description,
		widget.Owner,
		string(widget.Status),
		widget.Priority,
		string(labels),
		toMillis(widget.CreatedAt),
		toMillis(widget.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return workspace.ErrAlreadyExists
		}
		return storeError("create widget", err)
	}
	return nil
}

// GetWidget returns one widget by id.
func (s *Store) GetWidget(ctx context.Context, id string) (workspace.Widget, error) {
	if err := s.ready(ctx); err != nil {
		return workspace.Widget{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return workspace.Widget{}, workspace.ErrNotFound
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+widgetColumns+` FROM widgets WHERE id = ?`, id)
	widget, err := scanWidget(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workspace.Widget{}, workspace.ErrNotFound
		}
		return workspace.Widget{}, storeError("get widget", err)
	}
	return widget, nil
}

// FindWidgetsByName returns every widget whose name matches case-insensitively.
func (s *Store) FindWidgetsByName(ctx context.Context, name string) ([]workspace.Widget, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	key := foldKey(name)
	if key == "" {
		return nil, nil
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+widgetColumns+` FROM widgets WHERE name_key = ? ORDER BY created_at ASC, id ASC`,
		key,
	)
	if err != nil {
		return nil, storeError("find widgets by name", err)
	}
	defer rows.Close()

	var widgets []workspace.Widget
	for rows.Next() {
		widget, err := scanWidget(rows)
		if err != nil {
			return nil, storeError("find widgets by name", err)
		}
		widgets = append(widgets, widget)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("find widgets by name", err)
	}
	return widgets, nil
}

// ListWidgets returns one page of widgets ordered by creation time.
func (s *Store) ListWidgets(ctx context.Context, filter workspace.WidgetFilter) (workspace.WidgetPage, error) {
	if err := s.ready(ctx); err != nil {
		return workspace.WidgetPage{}, err
	}
	pageSize := pagination.ClampPageSize(filter.PageSize, widgetPageSize)

	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if owner := strings.TrimSpace(filter.Owner); owner != "" {
		conds = append(conds, "owner = ? COLLATE NOCASE")
		args = append(args, owner)
	}
	if query := foldKey(filter.Query); query != "" {
		conds = append(conds, `search_text LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(query)+"%")
	}
	if token := strings.TrimSpace(filter.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return workspace.WidgetPage{}, workspace.ErrInvalidPageToken
		}
		conds = append(conds, "(created_at, id) > (?, ?)")
		args = append(args, cursor.SortKey, cursor.ID)
	}

	query := `SELECT ` + widgetColumns + ` FROM widgets`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return workspace.WidgetPage{}, storeError("list widgets", err)
	}
	defer rows.Close()

	page := workspace.WidgetPage{Widgets: make([]workspace.Widget, 0, pageSize)}
	for rows.Next() {
		widget, err := scanWidget(rows)
		if err != nil {
			return workspace.WidgetPage{}, storeError("list widgets", err)
		}
		page.Widgets = append(page.Widgets, widget)
	}
	if err := rows.Err(); err != nil {
		return workspace.WidgetPage{}, storeError("list widgets", err)
	}
	if len(page.Widgets) > pageSize {
		last := page.Widgets[pageSize-1]
		page.NextPageToken = pagination.EncodeCursor(pagination.Cursor{SortKey: toMillis(last.CreatedAt), ID: last.ID})
		page.Widgets = page.Widgets[:pageSize]
	}
	return page, nil
}

// UpdateWidget applies patch to one widget and returns the stored result.
func (s *Store) UpdateWidget(ctx context.Context, id string, patch workspace.WidgetPatch) (workspace.Widget, error) {
	if err := s.ready(ctx); err != nil {
		return workspace.Widget{}, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return workspace.Widget{}, storeError("begin update widget", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+widgetColumns+` FROM widgets WHERE id = ?`, strings.TrimSpace(id))
	widget, err := scanWidget(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workspace.Widget{}, workspace.ErrNotFound
		}
		return workspace.Widget{}, storeError("load widget", err)
	}

	applyPatch(&widget, patch)
	if err := normalizeWidget(&widget); err != nil {
		return workspace.Widget{}, err
	}
	updatedAt := fromMillis(toMillis(s.now()))
	if updatedAt.Before(widget.CreatedAt) {
		updatedAt = widget.CreatedAt
	}
	widget.UpdatedAt = updatedAt
	labels, err := json.Marshal(widget.Labels)
	if err != nil {
		return workspace.Widget{}, fmt.Errorf("encode labels: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE widgets
		    SET name = ?, name_key = ?, search_text = ?, description = ?, owner = ?,
		        status = ?, priority = ?, labels = ?, updated_at = ?
		  WHERE id = ?`,
		widget.Name,
		foldKey(widget.Name),
		searchText(widget),
		widget.Description,
		widget.Owner,
		string(widget.Status),
		widget.Priority,
		string(labels),
		toMillis(widget.UpdatedAt),
		widget.ID,
	); err != nil {
		return workspace.Widget{}, storeError("update widget", err)
	}
	if err := tx.Commit(); err != nil {
		return workspace.Widget{}, storeError("commit update widget", err)
	}
	return widget, nil
}

// DeleteWidget removes one widget and its comments.
func (s *Store) DeleteWidget(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin delete widget", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM widget_comments WHERE widget_id = ?`, id); err != nil {
		return storeError("delete widget comments", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM widgets WHERE id = ?`, id)
	if err != nil {
		return storeError("delete widget", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storeError("delete widget", err)
	}
	if affected == 0 {
		return workspace.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return storeError("commit delete widget", err)
	}
	return nil
}

// AddComment attaches a comment to an existing widget.
func (s *Store) AddComment(ctx context.Context, comment workspace.Comment) (workspace.Comment, error) {
	if err := s.ready(ctx); err != nil {
		return workspace.Comment{}, err
	}
	if err := s.prepareComment(&comment); err != nil {
		return workspace.Comment{}, err
	}
	if err := s.widgetExists(ctx, comment.WidgetID); err != nil {
		return workspace.Comment{}, err
	}
	if err := insertComment(ctx, s.sqlDB, comment); err != nil {
		return workspace.Comment{}, err
	}
	return comment, nil
}

func (s *Store) prepareComment(comment *workspace.Comment) error {
	comment.WidgetID = strings.TrimSpace(comment.WidgetID)
	comment.Author = strings.TrimSpace(comment.Author)
	comment.Body = strings.TrimSpace(comment.Body)
	if comment.Body == "" {
		return fmt.Errorf("comment body is required")
	}
	comment.ID = strings.TrimSpace(comment.ID)
	if comment.ID == "" {
		comment.ID = s.newID()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = s.now()
	}
	comment.CreatedAt = fromMillis(toMillis(comment.CreatedAt))
	return nil
}

func insertComment(ctx context.Context, exec execer, comment workspace.Comment) error {
	if _, err := exec.ExecContext(
		ctx,
		`INSERT INTO widget_comments (`+commentColumns+`) VALUES (?, ?, ?, ?, ?)`,
		comment.ID,
		comment.WidgetID,
		comment.Author,
		comment.Body,
		toMillis(comment.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return workspace.ErrAlreadyExists
		}
		return storeError("add comment", err)
	}
	return nil
}

// ListComments returns up to limit comments for a widget, oldest first.
func (s *Store) ListComments(ctx context.Context, widgetID string, limit int) ([]workspace.Comment, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	widgetID = strings.TrimSpace(widgetID)
	if err := s.widgetExists(ctx, widgetID); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+commentColumns+` FROM widget_comments
		  WHERE widget_id = ?
		  ORDER BY created_at ASC, id ASC
		  LIMIT ?`,
		widgetID,
		pagination.ClampPageSize(limit, commentPageSize),
	)
	if err != nil {
		return nil, storeError("list comments", err)
	}
	defer rows.Close()

	comments := make([]workspace.Comment, 0)
	for rows.Next() {
		var comment workspace.Comment
		var createdAt int64
		if err := rows.Scan(&comment.ID, &comment.WidgetID, &comment.Author, &comment.Body, &createdAt); err != nil {
			return nil, storeError("list comments", err)
		}
		comment.CreatedAt = fromMillis(createdAt)
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list comments", err)
	}
	return comments, nil
}

// Summary counts widgets by status.
func (s *Store) Summary(ctx context.Context) (workspace.Summary, error) {
	if err := s.ready(ctx); err != nil {
		return workspace.Summary{}, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT status, COUNT(*) FROM widgets GROUP BY status`)
	if err != nil {
		return workspace.Summary{}, storeError("summarize widgets", err)
	}
	defer rows.Close()

	summary := workspace.Summary{Name: s.name, ByStatus: make(map[workspace.Status]int, len(workspace.Statuses()))}
	for _, status := range workspace.Statuses() {
		summary.ByStatus[status] = 0
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return workspace.Summary{}, storeError("summarize widgets", err)
		}
		summary.ByStatus[workspace.Status(status)] = count
		summary.Total += count
	}
	if err := rows.Err(); err != nil {
		return workspace.Summary{}, storeError("summarize widgets", err)
	}
	return summary, nil
}

func (s *Store) widgetExists(ctx context.Context, id string) error {
	var found int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM widgets WHERE id = ?`, id).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workspace.ErrNotFound
		}
		return storeError("check widget", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWidget(row rowScanner) (workspace.Widget, error) {
	var (
		widget    workspace.Widget
		status    string
		labels    string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&widget.ID,
		&widget.Name,
		&widget.Description,
		&widget.Owner,
		&status,
		&widget.Priority,
		&labels,
		&createdAt,
		&updatedAt,
	); err != nil {
		return workspace.Widget{}, err
	}
	widget.Status = workspace.Status(status)
	widget.Labels = []string{}
	if labels != "" {
		if err := json.Unmarshal([]byte(labels), &widget.Labels); err != nil {
			return workspace.Widget{}, fmt.Errorf("decode labels for %s: %w", widget.ID, err)
		}
	}
	widget.CreatedAt = fromMillis(createdAt)
	widget.UpdatedAt = fromMillis(updatedAt)
	return widget, nil
}

func applyPatch(widget *workspace.Widget, patch workspace.WidgetPatch) {
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
		widget.Labels = append([]string{}, (*patch.Labels)...)
	}
	if patch.Status != nil {
		widget.Status = *patch.Status
	}
}

func normalizeWidget(widget *workspace.Widget) error {
	widget.Name = strings.TrimSpace(widget.Name)
	widget.Description = strings.TrimSpace(widget.Description)
	widget.Owner = strings.TrimSpace(widget.Owner)
	if widget.Name == "" {
		return fmt.Errorf("widget name is required")
	}
	if !widget.Status.Valid() {
		return fmt.Errorf("widget status %q is not supported", widget.Status)
	}
	if widget.Priority < workspace.MinPriority || widget.Priority > workspace.MaxPriority {
		return fmt.Errorf("widget priority %d is out of range", widget.Priority)
	}
	return nil
}

func searchText(widget workspace.Widget) string {
	return foldKey(widget.Name + "\n" + widget.Description)
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

// storeError wraps driver failures as workspace unavailability while letting
// context errors through unchanged.
func storeError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, workspace.ErrUnavailable, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed")
}

var (
	_ workspace.Client   = (*Store)(nil)
	_ workspace.Importer = (*Store)(nil)
)
