// Package metrics holds the Prometheus counters exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service counters. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	discrepanciesOpened *prometheus.CounterVec
	discrepanciesSolved prometheus.Counter
	movementTransitions *prometheus.CounterVec
	auditDropped        prometheus.Counter
	auditSinkFailures   *prometheus.CounterVec
}

// New creates the counters on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assettrack_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		discrepanciesOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assettrack_discrepancies_opened_total",
			Help: "Discrepancies opened, by type.",
		}, []string{"type"}),
		discrepanciesSolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assettrack_discrepancies_resolved_total",
			Help: "Discrepancies moved into Resolved or Closed.",
		}),
		movementTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assettrack_movement_transitions_total",
			Help: "Movement status changes, by target status.",
		}, []string{"status"}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assettrack_audit_dropped_total",
			Help: "Audit entries dropped because the buffer was full.",
		}),
		auditSinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assettrack_audit_sink_failures_total",
			Help: "Audit entries a sink failed to write, by sink.",
		}, []string{"sink"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.discrepanciesOpened,
		m.discrepanciesSolved,
		m.movementTransitions,
		m.auditDropped,
		m.auditSinkFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPRequest counts a served request by method and status code.
func (m *Metrics) HTTPRequest(method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// DiscrepancyOpened counts a new discrepancy of the given type.
func (m *Metrics) DiscrepancyOpened(typ string) {
	if m == nil {
		return
	}
	m.discrepanciesOpened.WithLabelValues(typ).Inc()
}

// DiscrepancyResolved counts a discrepancy moved to Resolved or Closed.
func (m *Metrics) DiscrepancyResolved() {
	if m == nil {
		return
	}
	m.discrepanciesSolved.Inc()
}

// MovementTransition counts a movement entering status.
func (m *Metrics) MovementTransition(status string) {
	if m == nil {
		return
	}
	m.movementTransitions.WithLabelValues(status).Inc()
}

// AuditDropped counts an audit entry lost to a full buffer.
func (m *Metrics) AuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}

// AuditSinkFailed counts a failed write to the named sink.
func (m *Metrics) AuditSinkFailed(sink string) {
	if m == nil {
		return
	}
	m.auditSinkFailures.WithLabelValues(sink).Inc()
}
