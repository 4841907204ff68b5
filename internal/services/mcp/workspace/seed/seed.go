// Package seed loads YAML widget fixtures into a workspace.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/widgetmcp/internal/services/mcp/workspace"
)

// File is the on-disk fixture document.
type File struct {
	Widgets []Widget `yaml:"widgets"`
}

// Widget is one fixture widget with its comments.
type Widget struct {
	ID          string    `yaml:"id,omitempty"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Owner       string    `yaml:"owner,omitempty"`
	Status      string    `yaml:"status,omitempty"`
	Priority    int       `yaml:"priority,omitempty"`
	Labels      []string  `yaml:"labels,omitempty"`
	Comments    []Comment `yaml:"comments,omitempty"`
}

// Comment is one fixture comment.
type Comment struct {
	Author string `yaml:"author,omitempty"`
	Body   string `yaml:"body"`
}

// Result reports what Apply changed.
type Result struct {
	Created  int
	Skipped  int
	Comments int
}

// Load decodes a fixture document. Unknown keys are rejected.
func Load(r io.Reader) (File, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var file File
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("decode seed: %w", err)
	}
	if err := file.validate(); err != nil {
		return File{}, err
	}
	return file, nil
}

// LoadFile reads and decodes the fixture at path.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seed %s: %w", path, err)
	}
	return Load(bytes.NewReader(data))
}

func (f File) validate() error {
	for i, widget := range f.Widgets {
		if strings.TrimSpace(widget.Name) == "" {
			return fmt.Errorf("seed widget %d: name is required", i)
		}
		if widget.Status != "" && !workspace.Status(widget.Status).Valid() {
			return fmt.Errorf("seed widget %q: status %q is not supported", widget.Name, widget.Status)
		}
		if widget.Priority < workspace.MinPriority || widget.Priority > workspace.MaxPriority {
			return fmt.Errorf("seed widget %q: priority %d is out of range", widget.Name, widget.Priority)
		}
		for j, comment := range widget.Comments {
			if strings.TrimSpace(comment.Body) == "" {
				return fmt.Errorf("seed widget %q comment %d: body is required", widget.Name, j)
			}
		}
	}
	return nil
}

// Apply creates every fixture widget whose name is not already present.
// Each widget lands together with its comments or not at all, so a failed
// run can simply be repeated. Running it twice against the same workspace is
// a no-op the second time.
func Apply(ctx context.Context, importer workspace.Importer, file File) (Result, error) {
	var result Result
	if importer == nil {
		return result, fmt.Errorf("workspace importer is required")
	}
	for _, fixture := range file.Widgets {
		existing, err := importer.FindWidgetsByName(ctx, fixture.Name)
		if err != nil {
			return result, fmt.Errorf("look up %q: %w", fixture.Name, err)
		}
		if len(existing) > 0 {
			result.Skipped++
			continue
		}
		comments := make([]workspace.Comment, 0, len(fixture.Comments))
		for _, comment := range fixture.Comments {
			comments = append(comments, workspace.Comment{Author: comment.Author, Body: comment.Body})
		}
		if _, err := importer.ImportWidget(ctx, workspace.Widget{
			ID:          fixture.ID,
			Name:        fixture.Name,
			Description: fixture.Description,
			Owner:       fixture.Owner,
			Status:      workspace.Status(fixture.Status),
			Priority:    fixture.Priority,
			Labels:      fixture.Labels,
		}, comments); err != nil {
			return result, fmt.Errorf("import %q: %w", fixture.Name, err)
		}
		result.Created++
		result.Comments += len(comments)
	}
	return result, nil
}
