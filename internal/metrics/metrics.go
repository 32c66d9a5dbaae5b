// Package metrics holds the Prometheus collectors for the API and the
// optimizer. A dedicated registry keeps test binaries from colliding on the
// global default registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// OptimizeRuns counts optimizer runs by tenant
	OptimizeRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimize_runs_total", Help: "Optimizer runs."},
		[]string{"tenant"},
	)
	// RoutesPlanned counts routes produced by the optimizer
	RoutesPlanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routes_planned_total", Help: "Routes produced by the optimizer."},
		[]string{"tenant"},
	)
	// OrdersUnassigned counts orders no vehicle could take
	OrdersUnassigned = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_unassigned_total", Help: "Orders left unassigned after optimization."},
		[]string{"tenant"},
	)
	// OptimizeDuration records solver wall time in seconds
	OptimizeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "optimize_duration_seconds", Help: "Optimizer wall time in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10}},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "code"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(OptimizeRuns)
		Registry.MustRegister(RoutesPlanned)
		Registry.MustRegister(OrdersUnassigned)
		Registry.MustRegister(OptimizeDuration)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
