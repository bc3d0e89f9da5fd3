package opf

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts package document transactions.
type Metrics struct {
	Transactions *prometheus.CounterVec
	Failures     *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opfkit",
			Name:      "transactions_total",
			Help:      "Package document transactions by operation and mode.",
		}, []string{"op", "mode"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opfkit",
			Name:      "parse_failures_total",
			Help:      "Transactions abandoned because the text did not parse.",
		}, []string{"op"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "opfkit",
			Name:      "transaction_seconds",
			Help:      "Time spent inside a package document transaction.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"mode"}),
	}
	if reg != nil {
		reg.MustRegister(m.Transactions, m.Failures, m.Duration)
	}
	return m
}

func (m *Metrics) observe(op, mode string, start time.Time) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(op, mode).Inc()
	m.Duration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

func (m *Metrics) failed(op string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(op).Inc()
}
