// Package timeouts holds the durations shared by tool handlers and the HTTP
// transport.
package timeouts

import "time"

const (
	// WorkspaceCall caps a single workspace read or write made by a tool
	// handler.
	WorkspaceCall = 5 * time.Second

	// ReadHeader bounds how long the HTTP transport waits for request
	// headers.
	ReadHeader = 5 * time.Second

	// Shutdown bounds graceful HTTP shutdown while in-flight POSTs finish.
	Shutdown = 5 * time.Second
)
