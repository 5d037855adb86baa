// Package metrics provides Prometheus instrumentation for the fee engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ResolutionsTotal counts fee resolutions, partitioned by outcome
	// (the error kind, or "ok").
	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feeengine_resolutions_total",
		Help: "Total number of fee resolutions",
	}, []string{"country", "program", "outcome"})

	// ResolutionLatency tracks end-to-end resolution latency.
	ResolutionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feeengine_resolution_latency_seconds",
		Help:    "Fee resolution latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// ResolverLatency tracks per-resolver latency inside the aggregation
	// fan-out.
	ResolverLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feeengine_resolver_latency_seconds",
		Help:    "Individual resolver latency in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"resolver"})

	// CacheLookups counts rate-table cache lookups by table and result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feeengine_cache_lookups_total",
		Help: "Rate-table cache lookups",
	}, []string{"table", "result"})

	// AuditFeedClients tracks connected WebSocket audit-feed clients.
	AuditFeedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feeengine_audit_feed_clients",
		Help: "Number of connected audit feed clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feeengine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feeengine_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
