package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/widgetmcp/internal/platform/lifecycle"
)

// JSON-RPC error codes written by the transport itself.
const (
	jsonrpcParseError     = -32700
	jsonrpcInvalidRequest = -32600
	jsonrpcInternalError  = -32603
	jsonrpcServerError    = -32000
)

// statelessProtocolVersion is the protocol version assumed for endpoints that
// never see an initialize handshake.
const statelessProtocolVersion = "2025-06-18"

const (
	msgStreamsUnsupported     = "server-sent event streams are not supported in stateless mode"
	msgTerminationUnsupported = "session termination is not supported in stateless mode"
	msgMethodNotAllowed       = "method not allowed"
	msgInternalServerError    = "internal server error"
)

// handleMCP routes /mcp by verb. Only POST carries messages.
func (t *HTTPTransport) handleMCP(w http.ResponseWriter, r *http.Request) {
	if err := t.guard.check(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		t.handlePost(w, r)
	case http.MethodGet:
		w.Header().Set("Allow", http.MethodPost)
		writeJSONRPCError(w, http.StatusMethodNotAllowed, nil, jsonrpcServerError, msgStreamsUnsupported)
	case http.MethodDelete:
		w.Header().Set("Allow", http.MethodPost)
		writeJSONRPCError(w, http.StatusMethodNotAllowed, nil, jsonrpcServerError, msgTerminationUnsupported)
	default:
		w.Header().Set("Allow", http.MethodPost)
		writeJSONRPCError(w, http.StatusMethodNotAllowed, nil, jsonrpcServerError, msgMethodNotAllowed)
	}
}

// handlePost serves one JSON-RPC message on a fresh endpoint and channel.
// Both are released when the response is written or the client disconnects,
// whichever happens first.
func (t *HTTPTransport) handlePost(w http.ResponseWriter, r *http.Request) {
	if !t.allowRequest(r) {
		w.Header().Set("Retry-After", "1")
		writeJSONRPCError(w, http.StatusTooManyRequests, nil, jsonrpcServerError, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, t.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONRPCError(w, http.StatusRequestEntityTooLarge, nil, jsonrpcInvalidRequest,
				"request body exceeds "+strconv.FormatInt(t.maxBodyBytes, 10)+" bytes")
			return
		}
		writeJSONRPCError(w, http.StatusBadRequest, nil, jsonrpcInvalidRequest, "failed to read request")
		return
	}

	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		t.logger.Debug("mcp.http.decode_failed", "err", err)
		writeJSONRPCError(w, http.StatusBadRequest, nil, jsonrpcParseError, "invalid JSON-RPC message")
		return
	}

	req, ok := msg.(*jsonrpc.Request)
	if !ok {
		writeJSONRPCError(w, http.StatusBadRequest, nil, jsonrpcInvalidRequest, "expected a request or notification")
		return
	}
	if req.ID == (jsonrpc.ID{}) {
		// Notifications need no endpoint; there is nothing to answer.
		w.WriteHeader(http.StatusAccepted)
		return
	}
	id := req.ID.Raw()

	endpoint, err := t.buildEndpoint()
	if err != nil {
		t.logger.Warn("mcp.http.endpoint_failed", "err", err)
		writeJSONRPCError(w, http.StatusInternalServerError, id, jsonrpcInternalError, msgInternalServerError)
		return
	}

	conn := newRequestConnection(uuid.NewString(), req)
	scope := lifecycle.NewScope()
	_ = scope.Acquire("channel", func() error { return t.closeChannel(conn) })

	ctx := r.Context()
	session, err := endpoint.Connect(ctx, &requestTransport{conn: conn}, statelessSessionOptions())
	if err != nil {
		_ = scope.Close()
		t.logger.Warn("mcp.http.bind_failed", "err", err)
		writeJSONRPCError(w, http.StatusInternalServerError, id, jsonrpcInternalError, msgInternalServerError)
		return
	}
	_ = scope.Acquire("endpoint", session.Close)

	var releaseOnce sync.Once
	release := func() {
		releaseOnce.Do(func() {
			if err := scope.Close(); err != nil {
				t.logger.Debug("mcp.http.release", "session", conn.SessionID(), "err", err)
			}
		})
	}
	stop := context.AfterFunc(ctx, release)
	defer func() {
		stop()
		release()
	}()

	resp, err := conn.response(ctx)
	if err != nil {
		// The client went away; nobody is left to read an answer.
		t.logger.Debug("mcp.http.abandoned", "session", conn.SessionID(), "method", req.Method, "err", err)
		return
	}

	data, err := jsonrpc.EncodeMessage(resp)
	if err != nil {
		t.logger.Warn("mcp.http.encode_failed", "err", err)
		writeJSONRPCError(w, http.StatusInternalServerError, id, jsonrpcInternalError, msgInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// buildEndpoint runs the endpoint factory, turning a panic into an error so
// the caller can still answer with a well-formed JSON-RPC error.
func (t *HTTPTransport) buildEndpoint() (endpoint *mcp.Server, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			endpoint = nil
			err = fmt.Errorf("endpoint construction panicked: %v", recovered)
		}
	}()
	return t.newEndpoint()
}

// statelessSessionOptions marks a fresh session as already initialized so a
// lone tools/call is served without a handshake.
func statelessSessionOptions() *mcp.ServerSessionOptions {
	return &mcp.ServerSessionOptions{
		State: &mcp.ServerSessionState{
			InitializeParams:  &mcp.InitializeParams{ProtocolVersion: statelessProtocolVersion},
			InitializedParams: &mcp.InitializedParams{},
		},
	}
}

type jsonrpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonrpcErrorResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      any              `json:"id"`
	Error   jsonrpcErrorBody `json:"error"`
}

// writeJSONRPCError writes a JSON-RPC error object with the given HTTP status.
// A nil id is encoded as null.
func writeJSONRPCError(w http.ResponseWriter, status int, id any, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonrpcErrorResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   jsonrpcErrorBody{Code: code, Message: message},
	})
}

// handleHealth reports liveness for the HTTP transport.
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := t.guard.check(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}
