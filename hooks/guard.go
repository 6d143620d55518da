package hooks

import (
	"runtime"
	"strings"

	"github.com/samber/lo"
	"github.com/sthembisoo/reportit/report"
)

// pkgPrefix is the function name prefix shared by this package's frames,
// e.g. "github.com/sthembisoo/reportit/hooks.".
var pkgPrefix = func() string {
	pc, _, _, _ := runtime.Caller(0)
	name := runtime.FuncForPC(pc).Name()
	slash := strings.LastIndex(name, "/")
	dot := strings.Index(name[slash+1:], ".")
	return name[:slash+1+dot+1]
}()

// Guard must be deferred directly at the top of main. It recovers a panic
// that reached the top of the main goroutine and dispatches it to the main
// handler of the global manager.
func Guard() {
	if v := recover(); v != nil {
		global.HandleMainPanic(v)
	}
}

// Go runs fn in a new goroutine on the global manager. See Manager.Go.
func Go(name string, fn func()) <-chan struct{} {
	return global.Go(name, fn)
}

// Guard is the method form of the package level Guard
func (m *Manager) Guard() {
	if v := recover(); v != nil {
		m.HandleMainPanic(v)
	}
}

// Go runs fn in a new goroutine named name. A panic escaping fn is captured
// on that goroutine and passed to the goroutine handler. The returned channel
// is closed once fn and any panic handling have returned; it stays open when
// the handler re-panics, so waiters never race the crash.
func (m *Manager) Go(name string, fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer func() {
			if v := recover(); v != nil {
				m.HandleGoroutinePanic(name, v)
			}
			close(done)
		}()
		fn()
	}()
	return done
}

// HandleMainPanic captures v on the calling goroutine as a main-path
// occurrence and dispatches it. Call it from a deferred function that has
// just recovered v.
func (m *Manager) HandleMainPanic(v any) {
	m.HandleMain(report.Capture(v, report.CurrentThread(MainThreadName, true), ""))
}

// HandleGoroutinePanic captures v on the calling goroutine and dispatches it
// to the goroutine handler.
func (m *Manager) HandleGoroutinePanic(name string, v any) {
	occ := report.Capture(v, report.CurrentThread(name, false), "")
	occ.Frames = trimOuter(occ.Frames)
	m.HandleGoroutine(occ)
}

// trimOuter drops the goroutine entry frames Go adds around fn
func trimOuter(frames []report.Frame) []report.Frame {
	return lo.DropRightWhile(frames, func(f report.Frame) bool {
		return strings.HasPrefix(f.Function, pkgPrefix)
	})
}
