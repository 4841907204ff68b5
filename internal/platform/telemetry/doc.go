// Package telemetry groups the operational signals of the widget MCP server.
//
// Metrics live in telemetry/metrics and are exported through a Prometheus
// registry on the HTTP transport. Traces are configured by platform/otel and
// emitted by the dispatcher around each tool call.
package telemetry
