// Package conformance registers MCP fixtures used by protocol conformance
// runs.
//
// The fixtures are not part of the widget tool surface. They exist to check
// the dispatch pipeline and transports against a small, deterministic
// contract. Build with the "conformance" tag to enable them; otherwise every
// entry point is a no-op.
package conformance
