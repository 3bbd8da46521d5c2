package receiving

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for receiving.
type Metrics struct {
	lines          *prometheus.CounterVec
	ledgerFailures prometheus.Counter
	rejections     *prometheus.CounterVec
}

// NewMetrics registers the receiving metrics. A nil registerer uses the
// Prometheus default.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	lines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receiving_lines_total",
		Help: "Receiving lines processed partitioned by path and outcome.",
	}, []string{"path", "outcome"})
	ledgerFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "receiving_ledger_failures_total",
		Help: "Movement ledger appends that failed and were only logged.",
	})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receiving_validation_rejections_total",
		Help: "Receiving invocations aborted during validation.",
	}, []string{"path"})
	registerer.MustRegister(lines, ledgerFailures, rejections)
	return &Metrics{lines: lines, ledgerFailures: ledgerFailures, rejections: rejections}
}

func (m *Metrics) line(path Path, status LineStatus) {
	if m == nil {
		return
	}
	m.lines.WithLabelValues(string(path), string(status)).Inc()
}

func (m *Metrics) ledgerFailure() {
	if m == nil {
		return
	}
	m.ledgerFailures.Inc()
}

func (m *Metrics) rejected(path Path) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(string(path)).Inc()
}
