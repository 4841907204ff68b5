package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/widgetmcp/internal/platform/lifecycle"
)

// Config selects and configures the transport used by Run.
type Config struct {
	Transport TransportKind
	HTTP      HTTPConfig
}

// Owner keeps releases until the process stops. *lifecycle.Controller and
// *lifecycle.Scope both satisfy it.
type Owner interface {
	Acquire(name string, release func() error) error
}

// Run is the service entrypoint for MCP and blocks until ctx is cancelled or
// the persistent channel closes. The listener or channel is acquired through
// owner.
func (s *Server) Run(ctx context.Context, owner Owner, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	switch cfg.Transport {
	case TransportStdio:
		return s.ServePersistent(ctx, owner, &mcp.StdioTransport{})
	case TransportHTTP:
		return NewHTTPTransport(s, cfg.HTTP).Start(ctx, owner)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// ServePersistent binds one endpoint to transport and serves requests one at a
// time until the remote side closes the channel or ctx is cancelled. The
// channel and endpoint are acquired through owner and released, endpoint
// first, on return or when owner stops, whichever comes first. Only a failure
// to bind is returned; a bind is never retried.
func (s *Server) ServePersistent(ctx context.Context, owner Owner, transport mcp.Transport) error {
	if transport == nil {
		return errors.New("transport is required")
	}
	if owner == nil {
		return errors.New("lifecycle owner is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint, err := s.NewEndpoint()
	if err != nil {
		return fmt.Errorf("build endpoint: %w", err)
	}
	endpoint.AddReceivingMiddleware(serializeToolCalls())

	scope := lifecycle.NewScope()
	release := func() error {
		if err := scope.Close(); err != nil {
			s.logger.Debug("mcp.persistent.release", "err", err)
		}
		return nil
	}
	if err := owner.Acquire("persistent session", release); err != nil {
		return err
	}
	defer release()

	channel := &trackedTransport{inner: transport}
	if err := scope.Acquire("channel", channel.close); err != nil {
		return err
	}
	session, err := endpoint.Connect(ctx, channel, nil)
	if err != nil {
		return fmt.Errorf("bind persistent session: %w", err)
	}
	if err := scope.Acquire("endpoint", session.Close); err != nil {
		return err
	}
	s.logger.Info("mcp.persistent.bound", "session", session.ID())

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("mcp.persistent.stopping", "reason", "context")
	case err := <-done:
		if err != nil && !isChannelClosed(err) {
			s.logger.Warn("mcp.persistent.ended", "err", err)
		} else {
			s.logger.Info("mcp.persistent.ended")
		}
	}
	return nil
}

// trackedTransport remembers the connection it hands out so shutdown can
// close the channel after the endpoint.
type trackedTransport struct {
	inner mcp.Transport

	mu   sync.Mutex
	conn mcp.Connection
	once sync.Once
}

func (t *trackedTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	conn, err := t.inner.Connect(ctx)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return conn, nil
}

func (t *trackedTransport) close() error {
	var err error
	t.once.Do(func() {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn != nil {
			err = conn.Close()
		}
	})
	if err != nil && isChannelClosed(err) {
		return nil
	}
	return err
}

func isChannelClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled)
}
