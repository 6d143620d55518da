// Package crash wires configuration, bridges and a Reporter into a single
// process-wide instance.
//
//	func main() {
//		defer crash.Guard()
//		if err := crash.Enable(config.Overrides{}); err != nil {
//			log.Fatal(err)
//		}
//		defer crash.Disable()
//		...
//	}
package crash

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sthembisoo/reportit/bridge"
	"github.com/sthembisoo/reportit/config"
	"github.com/sthembisoo/reportit/hooks"
	"github.com/sthembisoo/reportit/reporter"
	"github.com/sthembisoo/reportit/utils/logger"
)

var (
	mu      sync.Mutex
	current *reporter.Reporter
	log     = logger.Discard()
	metrics *reporter.Metrics
)

// SetLogger sets the logger handed to reporters created by Enable
func SetLogger(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = logger.Discard()
	}
	log = l
}

// SetMetrics sets the metrics handed to reporters created by Enable. Nil
// disables metrics.
func SetMetrics(m *reporter.Metrics) {
	mu.Lock()
	defer mu.Unlock()
	metrics = m
}

// Enable resolves the configuration, builds the bridges and enables a new
// global reporter. A previously enabled reporter is disabled and its
// bridges closed first. When reporting is disabled by configuration Enable
// succeeds without installing anything.
func Enable(o config.Overrides) error {
	cfg, err := config.Resolve(o)
	if err != nil {
		return fmt.Errorf("failed to resolve config: %w", err)
	}

	bridges, err := bridge.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create bridges: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if err := disableLocked(); err != nil {
		log.Warn("failed to close previous bridges", "error", err)
	}

	r := reporter.New(bridges, cfg, reporter.WithLogger(log), reporter.WithMetrics(metrics))
	r.Enable()
	current = r

	log.Info("exception reporting configured",
		"enabled", r.IsEnabled(),
		"bridge", cfg.Bridge,
		"bridges", len(bridges),
	)
	return nil
}

// Disable disables the global reporter, restores the original handlers and
// closes its bridges. It is safe to call any number of times.
func Disable() error {
	mu.Lock()
	defer mu.Unlock()
	return disableLocked()
}

func disableLocked() error {
	if current == nil {
		return nil
	}
	r := current
	current = nil

	r.Disable()
	return bridge.Close(r.Bridges())
}

// Enabled reports whether a global reporter is currently delivering reports
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return current != nil && current.IsEnabled()
}

// Current returns the global reporter, or nil
func Current() *reporter.Reporter {
	mu.Lock()
	defer mu.Unlock()
	return current
}

// Report manually reports err through the global reporter. It does nothing
// when reporting is not enabled.
func Report(err error, scope string) {
	r := Current()
	if r == nil {
		return
	}
	r.ReportSkip(err, scope, 1)
}

// Guard must be deferred directly at the top of main. See hooks.Guard.
func Guard() {
	if v := recover(); v != nil {
		hooks.Global().HandleMainPanic(v)
	}
}

// Go runs fn in a new goroutine whose panics are intercepted. See
// hooks.Manager.Go.
func Go(name string, fn func()) <-chan struct{} {
	return hooks.Global().Go(name, fn)
}
