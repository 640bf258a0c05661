// Package metrics exposes Prometheus collectors for the audit service.
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)

	// sessionSource backs audit_active_sessions; nil until Init.
	sessionSource atomic.Pointer[func() int]

	auditsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_requests_total",
			Help: "Total number of audits, labeled by outcome code.",
		},
		[]string{"outcome"},
	)

	auditLoadTimeSeconds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_load_time_seconds",
			Help:    "Page load time of successful audits.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)

	activeSessions = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "audit_active_sessions",
			Help: "Number of page sessions currently open.",
		},
		func() float64 {
			if fn := sessionSource.Load(); fn != nil {
				return float64((*fn)())
			}
			return 0
		},
	)

	httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method, route and code.",
		},
		[]string{"method", "route", "code"},
	)

	httpRequestDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests, labeled by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Init sets the source of the active sessions gauge. A nil sessions
// reports zero. It may be called at any time, including while serving.
func Init(sessions func() int) {
	if sessions == nil {
		sessionSource.Store(nil)
		return
	}
	sessionSource.Store(&sessions)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RecordAudit counts one audit. loadTime is observed only for successes.
func RecordAudit(outcome string, success bool, loadTime float64) {
	auditsTotal.WithLabelValues(outcome).Inc()
	if success {
		auditLoadTimeSeconds.Observe(loadTime)
	}
}

// RecordHTTPRequest counts one served HTTP request.
func RecordHTTPRequest(method, route string, code int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}
