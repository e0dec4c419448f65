// Package metrics holds the Prometheus collectors for the API server and the
// board client. Each Metrics value owns a private registry.
package metrics

import (
	"net/http"
	"time"

	"flowtrack/internal/board"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics collection for HTTP requests
type Metrics struct {
	reqTotal   *prometheus.CounterVec
	reqLatency *prometheus.HistogramVec
	registry   *prometheus.Registry
}

// New creates a new Metrics instance with a private Prometheus registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	reqTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	reqLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	registry.MustRegister(reqTotal, reqLatency)

	return &Metrics{
		reqTotal:   reqTotal,
		reqLatency: reqLatency,
		registry:   registry,
	}
}

// Middleware returns a chi middleware that records request count and latency
// labelled by route pattern
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if chiCtx := chi.RouteContext(r.Context()); chiCtx != nil && len(chiCtx.RoutePatterns) > 0 {
				path = chiCtx.RoutePatterns[len(chiCtx.RoutePatterns)-1]
			}

			status := http.StatusText(rw.code)
			m.reqTotal.WithLabelValues(r.Method, path, status).Inc()
			m.reqLatency.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler returns an http.Handler that serves Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the HTTP status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}

// MutationCounter counts settled board mutations by op and outcome. It
// satisfies board.Observer.
type MutationCounter struct {
	total    *prometheus.CounterVec
	registry *prometheus.Registry
}

// NewMutationCounter creates a counter on its own registry
func NewMutationCounter() *MutationCounter {
	registry := prometheus.NewRegistry()
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_mutations_total",
			Help: "Board mutations by operation and settled state",
		},
		[]string{"op", "state"},
	)
	registry.MustRegister(total)
	return &MutationCounter{total: total, registry: registry}
}

// ObserveMutation records one settled mutation
func (c *MutationCounter) ObserveMutation(op string, state board.State) {
	c.total.WithLabelValues(op, string(state)).Inc()
}

// Count returns the current value for op and state
func (c *MutationCounter) Count(op string, state board.State) float64 {
	families, err := c.registry.Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var gotOp, gotState string
			for _, l := range m.GetLabel() {
				switch l.GetName() {
				case "op":
					gotOp = l.GetValue()
				case "state":
					gotState = l.GetValue()
				}
			}
			if gotOp == op && gotState == string(state) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

// WriteFile dumps the counters in the Prometheus text format for the node
// exporter textfile collector
func (c *MutationCounter) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
