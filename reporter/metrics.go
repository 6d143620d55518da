package reporter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery results recorded by Metrics
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultPanic = "panic"
)

// Metrics counts reports and per-bridge delivery outcomes. A nil *Metrics
// records nothing.
type Metrics struct {
	reports    prometheus.Counter
	deliveries *prometheus.CounterVec
}

// NewMetrics registers the reporter metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reports: factory.NewCounter(prometheus.CounterOpts{
			Name: "reportit_reports_total",
			Help: "Total reports built and dispatched to bridges",
		}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reportit_bridge_deliveries_total",
			Help: "Bridge delivery attempts by bridge and result",
		}, []string{"bridge", "result"}),
	}
}

func (m *Metrics) reportBuilt() {
	if m == nil {
		return
	}
	m.reports.Inc()
}

func (m *Metrics) delivery(bridgeName, result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(bridgeName, result).Inc()
}
