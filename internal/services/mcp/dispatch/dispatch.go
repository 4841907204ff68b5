// Package dispatch runs one tool call through a single pipeline:
// resolve the operation, validate arguments, invoke the handler, and map the
// outcome to exactly one envelope.
//
// The dispatcher holds no per-call state and takes no locks; the registry it
// reads is immutable and collaborators are passed in per call.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"pkt.systems/pslog"

	"github.com/louisbranch/widgetmcp/internal/services/mcp/envelope"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/registry"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/schema"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/toolerr"
)

const (
	tracerName = "github.com/louisbranch/widgetmcp/internal/services/mcp/dispatch"

	// OutcomeSuccess labels dispatches that produced a result.
	OutcomeSuccess = "success"
	// unknownToolLabel bounds metric cardinality for unregistered names.
	unknownToolLabel = "unknown"
)

// Recorder receives one observation per finished dispatch.
type Recorder interface {
	ObserveDispatch(tool, outcome string, elapsed time.Duration)
}

type options struct {
	logger   pslog.Logger
	tracer   trace.Tracer
	recorder Recorder
	observer PhaseObserver
	now      func() time.Time
}

// Option configures a Dispatcher.
type Option func(*options)

// WithLogger sets the dispatch logger.
func WithLogger(logger pslog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(o *options) { o.recorder = recorder }
}

// WithPhaseObserver reports every phase transition to observer.
func WithPhaseObserver(observer PhaseObserver) Option {
	return func(o *options) { o.observer = observer }
}

// Dispatcher routes calls to operations registered for collaborators C.
type Dispatcher[C any] struct {
	registry *registry.Registry[C]
	opts     options
}

// New creates a dispatcher over reg.
func New[C any](reg *registry.Registry[C], opts ...Option) *Dispatcher[C] {
	o := options{
		logger: pslog.NoopLogger(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Dispatcher[C]{registry: reg, opts: o}
}

// Registry returns the table the dispatcher resolves names against.
func (d *Dispatcher[C]) Registry() *registry.Registry[C] {
	return d.registry
}

// Dispatch runs the named operation with raw arguments and the collaborators
// deps. It always returns exactly one envelope and never panics.
func (d *Dispatcher[C]) Dispatch(ctx context.Context, name string, raw json.RawMessage, deps C) (env envelope.Envelope) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := d.opts.now()
	label := unknownToolLabel
	ctx, span := d.opts.tracer.Start(ctx, "tool.dispatch", trace.WithAttributes(attribute.String("tool.name", name)))
	var failure error

	defer func() {
		if rec := recover(); rec != nil {
			failure = toolerr.Internal{Cause: fmt.Errorf("dispatch panic: %v", rec)}
			env = toolerr.Map(failure)
			d.opts.logger.Error("mcp.dispatch.panic", "tool", name, "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
		}
		d.finish(span, name, label, env, failure, d.opts.now().Sub(start))
	}()

	phases := newTracker(name, d.opts.observer)
	phases.advance(PhaseValidating)

	op, ok := d.registry.Lookup(name)
	if !ok {
		phases.advance(PhaseValidationFailed)
		failure = toolerr.UnknownTool{Name: name}
		return toolerr.Map(failure)
	}
	label = name

	args, err := op.Definition.Schema.Validate(raw)
	if err != nil {
		phases.advance(PhaseValidationFailed)
		var pf *schema.ParseFailure
		if !errors.As(err, &pf) {
			pf = &schema.ParseFailure{Violation: schema.ViolationWrongType, Detail: err.Error()}
		}
		failure = toolerr.InvalidArguments{Tool: name, Failure: pf}
		return toolerr.Map(failure)
	}
	phases.advance(PhaseValidated)

	phases.advance(PhaseInvoking)
	result, err := d.invoke(ctx, name, op, deps, args)
	if err == nil {
		env, err = envelope.Success(result)
		if err != nil {
			err = toolerr.Internal{Cause: err}
		}
	}
	if err != nil {
		phases.advance(PhaseFailed)
		phases.advance(PhaseMapping)
		failure = err
		env = toolerr.Map(err)
		phases.advance(PhaseMapped)
		return env
	}
	phases.advance(PhaseSucceeded)
	return env
}

func (d *Dispatcher[C]) invoke(ctx context.Context, name string, op registry.Operation[C], deps C, args schema.Values) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			d.opts.logger.Error("mcp.dispatch.handler_panic", "tool", name, "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
			result = nil
			err = toolerr.Internal{Cause: fmt.Errorf("handler %s panicked: %v", name, rec)}
		}
	}()
	return op.Invoke(ctx, deps, args)
}

func (d *Dispatcher[C]) finish(span trace.Span, name, label string, env envelope.Envelope, failure error, elapsed time.Duration) {
	defer span.End()

	outcome := OutcomeSuccess
	if env.IsError {
		outcome = toolerr.Classify(failure).String()
	}
	span.SetAttributes(attribute.String("tool.outcome", outcome))
	if d.opts.recorder != nil {
		d.opts.recorder.ObserveDispatch(label, outcome, elapsed)
	}

	if !env.IsError {
		span.SetStatus(codes.Ok, "")
		d.opts.logger.Debug("mcp.dispatch.ok", "tool", name, "elapsed_ms", elapsed.Milliseconds())
		return
	}
	span.SetStatus(codes.Error, env.Text())
	if outcome == toolerr.BucketInvalidInput.String() {
		d.opts.logger.Debug("mcp.dispatch.rejected", "tool", name, "message", env.Text(), "elapsed_ms", elapsed.Milliseconds())
		return
	}
	span.RecordError(failure)
	d.opts.logger.Warn("mcp.dispatch.failed", "tool", name, "error", describe(failure), "elapsed_ms", elapsed.Milliseconds())
}

// describe renders an error chain for logs, including causes that typed
// failures hide from callers.
func describe(err error) string {
	if err == nil {
		return ""
	}
	text := err.Error()
	next := errors.Unwrap(err)
	if next == nil {
		return text
	}
	nested := describe(next)
	if strings.Contains(text, nested) {
		return text
	}
	return text + ": " + nested
}
