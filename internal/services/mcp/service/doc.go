// Package service binds the tool dispatcher to MCP transports.
//
// A Server owns no session state. ServePersistent binds one endpoint to one
// duplex channel (stdio in production) and serves tool calls one at a time.
// Long-lived resources, the channel or the HTTP listener, are acquired
// through the caller's Owner so stopping the process releases them.
// HTTPTransport builds a fresh endpoint and channel for every POST and
// releases both when the response is written or the client goes away.
// Business meaning lives in the domain package; this package only moves
// JSON-RPC messages.
package service
