package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestObserveAttempt(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveAttempt("reassign", ResultRejected)
	m.ObserveAttempt("reassign", ResultRejected)
	m.ObserveAttempt("assign", ResultSuccess)

	require.Equal(t, 2.0, counterValue(t, reg, "mpcasos_fiscal_assignment_attempts_total", map[string]string{"operation": "reassign", "result": ResultRejected}))
	require.Equal(t, 1.0, counterValue(t, reg, "mpcasos_fiscal_assignment_attempts_total", map[string]string{"operation": "assign", "result": ResultSuccess}))
}

func TestObserveAuditAppendCountsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveAuditAppend(time.Millisecond, nil)
	m.ObserveAuditAppend(time.Millisecond, errors.New("disk full"))
	require.Equal(t, 1.0, counterValue(t, reg, "mpcasos_audit_append_failures_total", nil))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAttempt("reassign", ResultSuccess)
	m.ObserveAuditAppend(time.Second, nil)
}
