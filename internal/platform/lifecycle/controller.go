// Package lifecycle owns process start and stop.
//
// A Controller replaces ambient signal state: it installs the interrupt
// handlers when started, hands out the signal-aware context, and releases
// acquired resources in reverse order when stopped.
package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"pkt.systems/pslog"
)

// State is the controller's position in its lifecycle.
type State uint8

const (
	NotStarted State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("lifecycle already started")
	// ErrStopped is returned when starting or acquiring after Stop.
	ErrStopped = errors.New("lifecycle stopped")
	// ErrSignalsInstalled is returned when another running controller already
	// owns the process signal handlers.
	ErrSignalsInstalled = errors.New("signal handlers already installed")
)

// signalsOwned guards the process-wide signal handlers.
var signalsOwned atomic.Bool

// Option configures a Controller.
type Option func(*Controller)

// WithSignals overrides the signals that cancel the run context. Passing no
// signals disables signal handling.
func WithSignals(signals ...os.Signal) Option {
	return func(c *Controller) {
		c.signals = append([]os.Signal(nil), signals...)
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger pslog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller moves NotStarted -> Running -> Stopped exactly once.
type Controller struct {
	mu       sync.Mutex
	state    State
	signals  []os.Signal
	logger   pslog.Logger
	scope    *Scope
	cancel   context.CancelFunc
	ownsSigs bool
}

// New returns a controller that listens for SIGINT and SIGTERM once started.
func New(opts ...Option) *Controller {
	c := &Controller{
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
		logger:  pslog.NoopLogger(),
		scope:   NewScope(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// State reports the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start installs the signal handlers and returns a context cancelled by the
// first signal or by Stop.
func (c *Controller) Start(ctx context.Context) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Running:
		return nil, ErrAlreadyStarted
	case Stopped:
		return nil, ErrStopped
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var runCtx context.Context
	if len(c.signals) > 0 {
		if !signalsOwned.CompareAndSwap(false, true) {
			return nil, ErrSignalsInstalled
		}
		c.ownsSigs = true
		runCtx, c.cancel = signal.NotifyContext(ctx, c.signals...)
	} else {
		runCtx, c.cancel = context.WithCancel(ctx)
	}
	c.state = Running
	c.logger.Debug("lifecycle.start", "signals", len(c.signals))
	return runCtx, nil
}

// Acquire pairs a resource with its release. Releases run in reverse order on
// Stop. After Stop the release runs immediately and ErrStopped is returned.
func (c *Controller) Acquire(name string, release func() error) error {
	c.mu.Lock()
	stopped := c.state == Stopped
	c.mu.Unlock()
	if stopped {
		var err error
		if release != nil {
			err = releaseErr(name, release())
		}
		return errors.Join(ErrStopped, err)
	}
	return c.scope.Acquire(name, release)
}

// Stop removes the signal handlers, then releases every acquired resource.
// Calls after the first return nil.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == Stopped {
		c.mu.Unlock()
		return nil
	}
	c.state = Stopped
	cancel := c.cancel
	c.cancel = nil
	ownsSigs := c.ownsSigs
	c.ownsSigs = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ownsSigs {
		signalsOwned.Store(false)
	}
	err := c.scope.Close()
	if err != nil {
		c.logger.Warn("lifecycle.stop", "err", err)
	} else {
		c.logger.Debug("lifecycle.stop")
	}
	return err
}
