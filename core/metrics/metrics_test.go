package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/evservice/core/metrics"
)

func TestMetrics_Recording(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveRequest("GET", "200", 0.01)
	m.ObserveLogin("ok")
	m.ObserveLogin("ok")
	m.ObserveLogin("invalid_credentials")
	m.ObserveLogout()
	m.ObserveHydration("restored")
	m.ObserveGuardDecision("protect", "redirecting")
	m.ObserveReconciliation("succeeded")

	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "200")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Logins.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Logins.WithLabelValues("invalid_credentials")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Logouts), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Hydrations.WithLabelValues("restored")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GuardDecisions.WithLabelValues("protect", "redirecting")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Reconciliations.WithLabelValues("succeeded")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "200", 0)
		m.ObserveLogin("ok")
		m.ObserveLogout()
		m.ObserveHydration("empty")
		m.ObserveGuardDecision("protect", "loading")
		m.ObserveReconciliation("failed")
	})
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics.New(reg)
	assert.Panics(t, func() { metrics.New(reg) })
}
