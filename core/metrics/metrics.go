// Package metrics holds the Prometheus collectors for the portal.
// Pass *Metrics to components that accept an observer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "evservice"

// Metrics holds all collectors. A nil *Metrics is a valid no-op observer.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Logins          *prometheus.CounterVec
	Logouts         prometheus.Counter
	Hydrations      *prometheus.CounterVec
	GuardDecisions  *prometheus.CounterVec
	Reconciliations *prometheus.CounterVec
}

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests served",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		Logins: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Login attempts by result",
			},
			[]string{"result"}, // result=ok/invalid_credentials/network/server/persist
		),
		Logouts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logouts_total",
				Help:      "Local logouts",
			},
		),
		Hydrations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_hydrations_total",
				Help:      "Session restorations from durable storage by result",
			},
			[]string{"result"}, // result=restored/empty/discarded/error
		),
		GuardDecisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guard_decisions_total",
				Help:      "Route guard decisions",
			},
			[]string{"kind", "state"},
		),
		Reconciliations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_reconciliations_total",
				Help:      "Payment return reconciliations by terminal status",
			},
			[]string{"status"},
		),
	}
}

func (m *Metrics) ObserveRequest(method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(seconds)
}

func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveLogout() {
	if m == nil {
		return
	}
	m.Logouts.Inc()
}

func (m *Metrics) ObserveHydration(result string) {
	if m == nil {
		return
	}
	m.Hydrations.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveGuardDecision(kind, state string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(kind, state).Inc()
}

func (m *Metrics) ObserveReconciliation(status string) {
	if m == nil {
		return
	}
	m.Reconciliations.WithLabelValues(status).Inc()
}
