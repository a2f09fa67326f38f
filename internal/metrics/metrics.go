// Package metrics provides Prometheus instrumentation for the waterfall engine.
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
	// CalculationsTotal counts waterfall calculations by outcome
	// ("ok", "invalid_input", "error").
	CalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "waterfall_calculations_total",
		Help: "Total number of waterfall calculations",
	}, []string{"outcome"})

	// CalculationDuration tracks calculation latency.
	CalculationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "waterfall_calculation_duration_seconds",
		Help:    "Waterfall calculation duration in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	// UndistributedRemainders counts calculations that left money on the
	// table because every eligible position was capped.
	UndistributedRemainders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "waterfall_undistributed_remainders_total",
		Help: "Calculations that ended with an undistributed remainder",
	})

	// ValidationWarnings counts structural warnings emitted.
	ValidationWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "waterfall_validation_warnings_total",
		Help: "Structural validation warnings emitted",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "waterfall_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "waterfall_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "waterfall_http_request_duration_seconds",
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

		// Use the raw path for the label; route cardinality is low here.
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
