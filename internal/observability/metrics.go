// File: internal/observability/metrics.go
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "cartwright"

// Metrics groups the collectors for storefront workflows, browser sessions and the HTTP layer.
type Metrics struct {
	workflowTotal    *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
	sessionsOpen     prometheus.Gauge
	sessionWait      prometheus.Histogram
	httpRequests     *prometheus.CounterVec
}

// NewMetrics registers all collectors on reg. Pass prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		workflowTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "workflow_operations_total",
				Help:      "Storefront workflow operations by storefront, operation and outcome kind.",
			},
			[]string{"storefront", "operation", "outcome"},
		),
		workflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "workflow_duration_seconds",
				Help:      "Wall time of storefront workflow operations.",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"storefront", "operation"},
		),
		sessionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "browser_sessions_open",
			Help:      "Browsing contexts currently open against the shared browser.",
		}),
		sessionWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "browser_session_wait_seconds",
			Help:      "Time spent waiting for a browsing context slot.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route pattern and status code.",
			},
			[]string{"method", "route", "status"},
		),
	}
}

// ObserveWorkflow records one finished storefront operation. outcome is "ok" or an error kind.
func (m *Metrics) ObserveWorkflow(storefront, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.workflowTotal.WithLabelValues(storefront, operation, outcome).Inc()
	m.workflowDuration.WithLabelValues(storefront, operation).Observe(elapsed.Seconds())
}

// SessionOpened tracks a newly acquired browsing context and how long it waited for a slot.
func (m *Metrics) SessionOpened(waited time.Duration) {
	if m == nil {
		return
	}
	m.sessionsOpen.Inc()
	m.sessionWait.Observe(waited.Seconds())
}

// SessionClosed tracks a released browsing context.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsOpen.Dec()
}

// ObserveHTTP counts one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
