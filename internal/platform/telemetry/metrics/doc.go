// Package metrics provides operational metrics collection.
//
// # Metric Categories
//
//   - Latency: tool dispatch duration histograms by tool
//   - Errors: dispatch counts by tool and outcome bucket
//   - Transport: HTTP requests by route and status class
//
// # Integration
//
// Collectors register against a caller-supplied prometheus.Registerer so tests
// can use isolated registries. The HTTP transport exposes the process registry
// in Prometheus format on /metrics.
package metrics
