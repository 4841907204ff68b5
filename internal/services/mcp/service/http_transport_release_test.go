package service

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/louisbranch/widgetmcp/internal/platform/lifecycle"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/dispatch"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/domain"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/registry"
	"github.com/louisbranch/widgetmcp/internal/services/mcp/workspace"
)

// stalledWorkspace blocks every GetWidget until the test ends.
type stalledWorkspace struct {
	workspace.Client
	entered chan struct{}
	unblock chan struct{}
}

func (w *stalledWorkspace) GetWidget(ctx context.Context, _ string) (workspace.Widget, error) {
	select {
	case w.entered <- struct{}{}:
	default:
	}
	select {
	case <-w.unblock:
	case <-ctx.Done():
	}
	return workspace.Widget{}, workspace.ErrUnavailable
}

func newStalledServer(t *testing.T) (*Server, *stalledWorkspace) {
	t.Helper()

	ws := &stalledWorkspace{entered: make(chan struct{}, 1), unblock: make(chan struct{})}
	t.Cleanup(func() { close(ws.unblock) })

	reg, err := registry.New(domain.Operations()...)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	server, err := New(dispatch.New(reg), domain.Deps{Workspace: ws})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server, ws
}

func TestHTTPPostReleasesOnceWhenClientLeaves(t *testing.T) {
	server, ws := newStalledServer(t)
	transport := NewHTTPTransport(server, HTTPConfig{})

	var closes atomic.Int32
	closeChannel := transport.closeChannel
	transport.closeChannel = func(conn *requestConnection) error {
		closes.Add(1)
		return closeChannel(conn)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	body := toolCallBody(t, 9, domain.ToolGetWidget, map[string]any{"id": "w1"})
	req := httptest.NewRequest(http.MethodPost, routeMCP, bytes.NewReader(body)).WithContext(ctx)
	setLocalhostHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		transport.Handler().ServeHTTP(w, req)
	}()

	select {
	case <-ws.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("workspace call never started")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after the client left")
	}
	if n := closes.Load(); n != 1 {
		t.Fatalf("channel closed %d times, want 1", n)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("expected no response for an abandoned request, got %q", w.Body.String())
	}
}

func TestHTTPPostReleasesOnceOnResponse(t *testing.T) {
	transport := NewHTTPTransport(newTestServer(t), HTTPConfig{})

	var closes atomic.Int32
	closeChannel := transport.closeChannel
	transport.closeChannel = func(conn *requestConnection) error {
		closes.Add(1)
		return closeChannel(conn)
	}

	w, _ := postMCP(t, transport.Handler(), toolCallBody(t, 1, domain.ToolListWidgets, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if n := closes.Load(); n != 1 {
		t.Fatalf("channel closed %d times, want 1", n)
	}
}

func TestHTTPStartReleasesListenerThroughOwner(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	previous := listenTCP
	listenTCP = func(string, string) (net.Listener, error) { return listener, nil }
	t.Cleanup(func() { listenTCP = previous })

	scope := lifecycle.NewScope()
	transport := NewHTTPTransport(newTestServer(t), HTTPConfig{})
	done := make(chan error, 1)
	go func() {
		done <- transport.Start(context.Background(), scope)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + listener.Addr().String() + routeHealth)
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("health never answered: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := scope.Close(); err != nil {
		t.Fatalf("close scope: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after the listener was released")
	}
}

func TestHTTPStartRequiresOwner(t *testing.T) {
	transport := NewHTTPTransport(newTestServer(t), HTTPConfig{})
	if err := transport.Start(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil owner")
	}
}
