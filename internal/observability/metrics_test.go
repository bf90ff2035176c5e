package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsLabeledCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("/complaints", "POST", 201, 30*time.Millisecond)
	m.RecordRequest("/complaints", "POST", 201, 10*time.Millisecond)
	m.RecordError("/complaints", "POST", "VALIDATION_FAILED")
	m.RecordTransition("NEW", "ASSIGNED")
	m.RecordSweepAlert("breached")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requestsTotal.WithLabelValues("/complaints", "POST", "201")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.errorsTotal.WithLabelValues("/complaints", "POST", "VALIDATION_FAILED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitionsTotal.WithLabelValues("NEW", "ASSIGNED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sweepAlertsTotal.WithLabelValues("breached")))

	// Both request observations land in one histogram series.
	count, err := testutil.GatherAndCount(m.Registry(), "grievance_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_InstancesKeepSeparateRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordSweepAlert("approaching")

	count, err := testutil.GatherAndCount(a.Registry(), "grievance_sla_sweep_alerts_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = testutil.GatherAndCount(b.Registry(), "grievance_sla_sweep_alerts_total")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics

	m.RecordRequest("/complaints", "GET", 200, time.Millisecond)
	m.RecordError("/complaints", "GET", "NOT_FOUND")
	m.RecordTransition("ASSIGNED", "IN_PROGRESS")
	m.RecordSweepAlert("approaching")

	assert.Nil(t, m.Registry())
}
