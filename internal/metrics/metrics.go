package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultSuccess        = "success"
	ResultRejected       = "rejected"
	ResultInfrastructure = "infrastructure_error"
	ResultAuditFailure   = "audit_write_failure"
)

// Metrics counts assignment attempts and times audit appends.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	attempts      *prometheus.CounterVec
	auditLatency  prometheus.Histogram
	auditFailures prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mpcasos",
			Name:      "fiscal_assignment_attempts_total",
			Help:      "Fiscal assign/reassign attempts by operation and result.",
		}, []string{"operation", "result"}),
		auditLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mpcasos",
			Name:      "audit_append_seconds",
			Help:      "Latency of durable appends to the failed-reassignment log.",
			Buckets: []float64{
				0.0005, 0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5, 1,
			},
		}),
		auditFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mpcasos",
			Name:      "audit_append_failures_total",
			Help:      "Appends to the failed-reassignment log that returned an error.",
		}),
	}
}

func (m *Metrics) ObserveAttempt(operation, result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) ObserveAuditAppend(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.auditLatency.Observe(d.Seconds())
	if err != nil {
		m.auditFailures.Inc()
	}
}
