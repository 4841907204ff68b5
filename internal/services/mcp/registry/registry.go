// Package registry holds the immutable table of tool operations.
//
// The table is built once at startup from explicit Operation values. Building
// fails on any declaration mistake (empty or duplicate names, missing handlers,
// bad schemas, schemas that disagree with their input struct) so a
// misconfigured process never starts serving.
package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/louisbranch/widgetmcp/internal/services/mcp/schema"
)

// Definition is the published description of one operation.
type Definition struct {
	Name        string
	Description string
	Schema      schema.Schema
}

// Handler runs an operation with validated arguments and the collaborators C
// supplied by the caller.
type Handler[C any] func(ctx context.Context, deps C, args schema.Values) (any, error)

// Operation pairs a definition with its handler.
type Operation[C any] struct {
	Definition Definition
	handler    Handler[C]
	input      reflect.Type
}

// Bind builds an operation from a typed handler. Validated arguments are
// decoded into I before fn runs.
func Bind[C, I, O any](def Definition, fn func(context.Context, C, I) (O, error)) Operation[C] {
	input := reflect.TypeFor[I]()
	if fn == nil {
		return Operation[C]{Definition: def, input: input}
	}
	return Operation[C]{
		Definition: def,
		input:      input,
		handler: func(ctx context.Context, deps C, args schema.Values) (any, error) {
			input, err := schema.Decode[I](args)
			if err != nil {
				return nil, fmt.Errorf("decode %s input: %w", def.Name, err)
			}
			return fn(ctx, deps, input)
		},
	}
}

// Invoke runs the operation's handler.
func (o Operation[C]) Invoke(ctx context.Context, deps C, args schema.Values) (any, error) {
	return o.handler(ctx, deps, args)
}

// Registry maps operation names to operations. It is safe for concurrent use
// because it is never mutated after New returns.
type Registry[C any] struct {
	byName map[string]Operation[C]
	order  []string
}

// New builds a registry from ops, preserving their order for listing.
func New[C any](ops ...Operation[C]) (*Registry[C], error) {
	r := &Registry[C]{
		byName: make(map[string]Operation[C], len(ops)),
		order:  make([]string, 0, len(ops)),
	}
	for i, op := range ops {
		name := op.Definition.Name
		if strings.TrimSpace(name) == "" || name != strings.TrimSpace(name) {
			return nil, fmt.Errorf("operation %d: invalid name %q", i, name)
		}
		if op.handler == nil {
			return nil, fmt.Errorf("operation %q: handler is required", name)
		}
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("operation %q registered twice", name)
		}
		if err := op.Definition.Schema.Check(); err != nil {
			return nil, fmt.Errorf("operation %q schema: %w", name, err)
		}
		if err := op.Definition.Schema.CheckBinding(op.input); err != nil {
			return nil, fmt.Errorf("operation %q input: %w", name, err)
		}
		r.byName[name] = op
		r.order = append(r.order, name)
	}
	return r, nil
}

// Lookup returns the operation registered under name.
func (r *Registry[C]) Lookup(name string) (Operation[C], bool) {
	if r == nil {
		return Operation[C]{}, false
	}
	op, ok := r.byName[name]
	return op, ok
}

// List returns every definition in registration order.
func (r *Registry[C]) List() []Definition {
	if r == nil {
		return nil
	}
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.byName[name].Definition)
	}
	return defs
}

// Names returns every registered name in registration order.
func (r *Registry[C]) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Len reports the number of registered operations.
func (r *Registry[C]) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
