package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "widgetmcp"

// ToolMetrics records tool dispatch outcomes.
type ToolMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewToolMetrics registers dispatch collectors on reg. Collectors that are
// already registered are reused.
func NewToolMetrics(reg prometheus.Registerer) (*ToolMetrics, error) {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tool",
		Name:      "calls_total",
		Help:      "Tool calls by tool name and outcome.",
	}, []string{"tool", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "tool",
		Name:      "call_duration_seconds",
		Help:      "Tool call latency by tool name.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})

	var err error
	if calls, err = register(reg, calls); err != nil {
		return nil, fmt.Errorf("register tool call counter: %w", err)
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, fmt.Errorf("register tool duration histogram: %w", err)
	}
	return &ToolMetrics{calls: calls, duration: duration}, nil
}

// ObserveDispatch records one finished dispatch.
func (m *ToolMetrics) ObserveDispatch(tool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(tool, outcome).Inc()
	m.duration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// HTTPMetrics records transport request outcomes.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
}

// NewHTTPMetrics registers transport collectors on reg.
func NewHTTPMetrics(reg prometheus.Registerer) (*HTTPMetrics, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP transport requests by route, method and status code.",
	}, []string{"route", "method", "code"})
	requests, err := register(reg, requests)
	if err != nil {
		return nil, fmt.Errorf("register http request counter: %w", err)
	}
	return &HTTPMetrics{requests: requests}, nil
}

// ObserveRequest records one finished HTTP request.
func (m *HTTPMetrics) ObserveRequest(route, method string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
}

// Handler serves the registry in Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func register[T prometheus.Collector](reg prometheus.Registerer, collector T) (T, error) {
	if reg == nil {
		return collector, nil
	}
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}
