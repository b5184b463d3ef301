package jobmetrics_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/parkyard/parkyard/internal/jobs"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := jobmetrics.NewMetrics(reg)

	require.NoError(t, m.Track("ledger:warmup").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("ledger:warmup").End(boom), boom)
	m.SetStaleSessions(2)
	m.AddPurgedKeys(5)
	m.AddPurgedKeys(0)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[f.GetName()] += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[f.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	require.Equal(t, 2.0, values["parkyard_jobs_total"])
	require.Equal(t, 1.0, values["parkyard_jobs_failures_total"])
	require.Equal(t, 2.0, values["parkyard_stale_cash_sessions"])
	require.Equal(t, 5.0, values["parkyard_idempotency_keys_purged_total"])
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var m *jobmetrics.Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("x").End(boom), boom)
	m.SetStaleSessions(1)
}
