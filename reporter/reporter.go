// Package reporter turns intercepted errors into reports and fans them out to
// the configured bridges.
package reporter

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sthembisoo/reportit/bridge"
	"github.com/sthembisoo/reportit/config"
	"github.com/sthembisoo/reportit/hooks"
	"github.com/sthembisoo/reportit/report"
	"github.com/sthembisoo/reportit/utils/logger"
)

// Reporter dispatches reports to a fixed list of bridges.
//
// The bridge list and configuration never change after New, so ReportError
// may run concurrently from any number of goroutines without locking.
// Enable and Disable are serialized.
type Reporter struct {
	bridges []bridge.Bridge
	cfg     config.Config
	hooks   *hooks.Manager
	builder report.Builder
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	enabled atomic.Bool
}

// Option configures a Reporter
type Option func(*Reporter)

// WithHooks sets the hook manager used by Enable and Disable. Defaults to
// hooks.Global().
func WithHooks(m *hooks.Manager) Option {
	return func(r *Reporter) {
		if m != nil {
			r.hooks = m
		}
	}
}

// WithLogger sets the logger for delivery diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(r *Reporter) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records report and delivery counts
func WithMetrics(m *Metrics) Option {
	return func(r *Reporter) {
		r.metrics = m
	}
}

// WithBuilder overrides the payload builder, e.g. to pin clock and ids
func WithBuilder(b report.Builder) Option {
	return func(r *Reporter) {
		r.builder = b
	}
}

// New creates a disabled Reporter. Bridges are used in the given order; the
// slice is copied.
func New(bridges []bridge.Bridge, cfg config.Config, opts ...Option) *Reporter {
	r := &Reporter{
		bridges: append([]bridge.Bridge(nil), bridges...),
		cfg:     cfg,
		hooks:   hooks.Global(),
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enable turns reporting on and installs the hooks with this reporter as
// the processor. The *Reporter itself is the install owner, so ownership
// checks compare pointers. It does nothing when the configuration is
// disabled.
func (r *Reporter) Enable() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cfg.Enabled {
		r.logger.Debug("reporting disabled by configuration")
		return
	}

	r.enabled.Store(true)
	if r.hooks.Install(r, r, r) {
		r.logger.Debug("hooks installed", "bridges", len(r.bridges))
	}
}

// Disable turns reporting off and restores the original handlers if this
// reporter still owns them. It is safe to call any number of times.
func (r *Reporter) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.enabled.Store(false)
	if r.hooks.Release(r) {
		r.logger.Debug("hooks restored")
	}
}

// IsEnabled reports whether ReportError delivers reports
func (r *Reporter) IsEnabled() bool {
	return r.enabled.Load()
}

// Config returns the configuration the reporter was built with
func (r *Reporter) Config() config.Config {
	return r.cfg
}

// Bridges returns a copy of the configured bridges
func (r *Reporter) Bridges() []bridge.Bridge {
	return append([]bridge.Bridge(nil), r.bridges...)
}

// Hooks returns the hook manager used by Enable
func (r *Reporter) Hooks() *hooks.Manager {
	return r.hooks
}

// Handle implements hooks.Handler
func (r *Reporter) Handle(occ *report.Occurrence) {
	r.ReportError(occ)
}

// Report manually reports err with an optional scope label, capturing the
// stack of the caller. A nil err is ignored.
func (r *Reporter) Report(err error, scope string) {
	r.ReportSkip(err, scope, 1)
}

// ReportSkip is Report for wrappers: skip additional caller frames are left
// out of the captured stack.
func (r *Reporter) ReportSkip(err error, scope string, skip int) {
	if err == nil || !r.enabled.Load() {
		return
	}
	r.ReportError(report.CaptureSkip(err, report.CallerThread(), scope, skip+1))
}

// ReportError builds a report from occ and hands it to every bridge in
// order. A failing or panicking bridge does not stop the others. When the
// reporter is disabled it returns before doing any work. ReportError never
// panics.
func (r *Reporter) ReportError(occ *report.Occurrence) {
	if !r.enabled.Load() {
		return
	}

	defer func() {
		if v := recover(); v != nil {
			r.logger.Warn("report processing failed", "panic", v)
		}
	}()

	rep := r.builder.Build(occ)
	r.metrics.reportBuilt()

	for _, b := range r.bridges {
		r.deliver(b, rep)
	}
}

func (r *Reporter) deliver(b bridge.Bridge, rep *report.Report) {
	name := bridgeName(b)

	err := send(name, b, rep)
	switch {
	case err == nil:
		r.metrics.delivery(name, ResultOK)
	case bridge.IsPanic(err):
		r.metrics.delivery(name, ResultPanic)
		r.logger.Warn("bridge panicked", "bridge", name, "report_id", rep.ID, "error", err)
	default:
		r.metrics.delivery(name, ResultError)
		r.logger.Warn("bridge delivery failed", "bridge", name, "report_id", rep.ID, "error", err)
	}
}

func send(name string, b bridge.Bridge, rep *report.Report) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &bridge.PanicError{Bridge: name, Value: v}
		}
	}()
	return b.Send(context.Background(), rep)
}

func bridgeName(b bridge.Bridge) (name string) {
	defer func() {
		if recover() != nil {
			name = "unknown"
		}
	}()
	return b.Name()
}
