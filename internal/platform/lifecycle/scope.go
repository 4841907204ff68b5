package lifecycle

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrScopeClosed is returned when a resource is acquired after Close.
var ErrScopeClosed = errors.New("scope already closed")

type resource struct {
	name    string
	release func() error
}

// Scope is a stack of paired releases run in reverse acquisition order.
// The zero value is ready to use.
type Scope struct {
	mu        sync.Mutex
	closed    bool
	resources []resource
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Acquire registers release to run when the scope closes. A scope that is
// already closed runs release immediately and reports ErrScopeClosed.
func (s *Scope) Acquire(name string, release func() error) error {
	if release == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.Join(ErrScopeClosed, releaseErr(name, release()))
	}
	s.resources = append(s.resources, resource{name: name, release: release})
	s.mu.Unlock()
	return nil
}

// AcquireCloser registers closer.Close.
func (s *Scope) AcquireCloser(name string, closer io.Closer) error {
	if closer == nil {
		return nil
	}
	return s.Acquire(name, closer.Close)
}

// Close runs every release in reverse order and joins their errors. Only the
// first call does any work.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	resources := s.resources
	s.resources = nil
	s.mu.Unlock()

	var errs []error
	for i := len(resources) - 1; i >= 0; i-- {
		if err := releaseErr(resources[i].name, resources[i].release()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Closed reports whether Close has been called.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func releaseErr(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("release %s: %w", name, err)
}
