// Package metrics exposes Prometheus collectors for the reminder service.
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
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindbot_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remindbot_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	dispatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindbot_dispatch_runs_total",
			Help: "Dispatch runs by mode (scheduled, manual)",
		},
		[]string{"mode"},
	)

	dispatchSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindbot_dispatch_sent_total",
			Help: "Successful sends per dispatch run by mode",
		},
		[]string{"mode"},
	)

	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindbot_messages_total",
			Help: "Delivery records written by status",
		},
		[]string{"status"},
	)

	smsSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remindbot_sms_send_duration_seconds",
			Help:    "SMS gateway call latency by provider and outcome",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "outcome"},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindbot_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"key"},
	)

	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "remindbot_db_connections_active",
			Help: "Active database connections",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics.
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDispatchRun records one dispatch run and its successful-send count.
func RecordDispatchRun(mode string, sent int) {
	dispatchRunsTotal.WithLabelValues(mode).Inc()
	dispatchSentTotal.WithLabelValues(mode).Add(float64(sent))
}

// RecordMessage records a delivery record written with the given status.
func RecordMessage(status string) {
	messagesTotal.WithLabelValues(status).Inc()
}

// RecordSMSSend records one gateway call.
func RecordSMSSend(provider string, success bool, duration time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	smsSendDuration.WithLabelValues(provider, outcome).Observe(duration.Seconds())
}

// RecordRateLimitRejection records a rate limit rejection.
func RecordRateLimitRejection(key string) {
	rateLimitRejections.WithLabelValues(key).Inc()
}

// SetDBConnections sets the active database connection count.
func SetDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
