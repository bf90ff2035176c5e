package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's prometheus collectors. A nil receiver is safe
// so services can be wired without metrics in tests.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	sweepAlertsTotal *prometheus.CounterVec
}

// NewMetrics registers the collectors on a private registry rather than the
// global default so separate instances never collide.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grievance_http_requests_total",
				Help: "HTTP requests served, by path, method and status.",
			},
			[]string{"path", "method", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grievance_http_request_duration_seconds",
				Help:    "HTTP request latency.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
			},
			[]string{"path", "method"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grievance_http_errors_total",
				Help: "Requests that ended in an error envelope, by code.",
			},
			[]string{"path", "method", "code"},
		),
		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grievance_complaint_transitions_total",
				Help: "Applied complaint status transitions, by edge.",
			},
			[]string{"from", "to"},
		),
		sweepAlertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grievance_sla_sweep_alerts_total",
				Help: "Alerts raised by the SLA monitor sweep.",
			},
			[]string{"kind"},
		),
	}
}

// Registry returns the gatherer the /metrics endpoint scrapes.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest counts a served request and observes its latency.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError counts an error response by its envelope code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(path, method, code).Inc()
}

// RecordTransition counts applied status transitions by edge.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordSweepAlert counts alerts raised by the SLA monitor sweep.
func (m *Metrics) RecordSweepAlert(kind string) {
	if m == nil {
		return
	}
	m.sweepAlertsTotal.WithLabelValues(kind).Inc()
}
