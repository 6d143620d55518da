package reporter

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sthembisoo/reportit/bridge"
	"github.com/sthembisoo/reportit/bridge/bridgetest"
	"github.com/sthembisoo/reportit/config"
	"github.com/sthembisoo/reportit/hooks"
	"github.com/sthembisoo/reportit/report"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_CountsDeliveries(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	cfg := config.Default()
	cfg.Enabled = true

	r := New([]bridge.Bridge{
		bridgetest.NewRecorder("ok"),
		&bridgetest.Failing{ID: "bad"},
		&bridgetest.Panicking{ID: "worse"},
	}, cfg, WithHooks(hooks.NewManager(nil, nil)), WithMetrics(metrics))
	r.Enable()
	defer r.Disable()

	r.ReportError(&report.Occurrence{Message: "a"})
	r.ReportError(&report.Occurrence{Message: "b"})

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.reports))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.deliveries.WithLabelValues("ok", ResultOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.deliveries.WithLabelValues("bad", ResultError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.deliveries.WithLabelValues("worse", ResultPanic)))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.reportBuilt()
		m.delivery("x", ResultOK)
	})
}
