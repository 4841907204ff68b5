package service

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// errConnectionClosed is returned by writes after the request channel closes.
var errConnectionClosed = errors.New("connection closed")

// requestConnection implements mcp.Connection for exactly one HTTP request.
// It hands the endpoint a single inbound message and captures the response
// that carries the same id. Everything else the endpoint writes is dropped
// because a stateless request has no stream to deliver it on.
type requestConnection struct {
	id        string
	requestID jsonrpc.ID

	incoming  chan jsonrpc.Message
	responses chan *jsonrpc.Response
	closed    chan struct{}
	closeOnce sync.Once
}

func newRequestConnection(id string, req *jsonrpc.Request) *requestConnection {
	conn := &requestConnection{
		id:        id,
		requestID: req.ID,
		incoming:  make(chan jsonrpc.Message, 1),
		responses: make(chan *jsonrpc.Response, 1),
		closed:    make(chan struct{}),
	}
	conn.incoming <- req
	return conn
}

// Read delivers the inbound message once and then blocks until the
// connection closes, so in-flight handlers are never cut short by EOF.
func (c *requestConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case msg := <-c.incoming:
		return msg, nil
	default:
	}
	select {
	case <-c.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *requestConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	select {
	case <-c.closed:
		return errConnectionClosed
	default:
	}
	resp, ok := msg.(*jsonrpc.Response)
	if !ok || resp.ID != c.requestID {
		return nil
	}
	select {
	case c.responses <- resp:
		return nil
	case <-c.closed:
		return errConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		// A second response for the same id is a protocol violation; the
		// first one has already been handed to the caller.
		return nil
	}
}

func (c *requestConnection) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

func (c *requestConnection) SessionID() string {
	return c.id
}

// response waits for the endpoint's answer or for the caller to go away.
func (c *requestConnection) response(ctx context.Context) (*jsonrpc.Response, error) {
	select {
	case resp := <-c.responses:
		return resp, nil
	case <-c.closed:
		return nil, errConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// requestTransport hands a prebuilt requestConnection to Server.Connect.
type requestTransport struct {
	conn *requestConnection
}

func (t *requestTransport) Connect(context.Context) (mcp.Connection, error) {
	if t.conn == nil {
		return nil, errConnectionClosed
	}
	return t.conn, nil
}
