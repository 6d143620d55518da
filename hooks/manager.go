// Package hooks owns the process-wide handlers that run when a panic escapes
// the main goroutine or a goroutine started through Go.
//
// Go has no runtime hook for unrecovered panics, so the slots live here and
// are reached through Guard (deferred at the top of main) and Go. Each slot
// starts out holding RuntimeHandler. Install replaces both with chained
// handlers that first run a processor and then the captured original;
// Restore puts the originals back.
//
//	func main() {
//	    defer hooks.Guard()
//	    hooks.Go("worker", work)
//	    ...
//	}
package hooks

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/sthembisoo/reportit/report"
)

// MainThreadName is the thread name recorded for panics caught by Guard
const MainThreadName = "main"

type handlerRef struct {
	h Handler
}

// slot holds the handler currently registered for one kind of interception.
// Reads are lock-free; writes happen under Manager.mu.
type slot struct {
	current  atomic.Pointer[handlerRef]
	original Handler
}

func (s *slot) load() Handler {
	if ref := s.current.Load(); ref != nil {
		return ref.h
	}
	return RuntimeHandler
}

func (s *slot) store(h Handler) Handler {
	if h == nil {
		h = RuntimeHandler
	}
	if old := s.current.Swap(&handlerRef{h: h}); old != nil {
		return old.h
	}
	return nil
}

// Manager owns the main and goroutine handler slots.
//
// State machine: Uninstalled -> Install -> Installed -> Restore ->
// Uninstalled. Install while installed keeps the captured originals and only
// swaps the processors (last installer wins); Restore while uninstalled does
// nothing. All mutation is serialized by a single mutex.
type Manager struct {
	mu        sync.Mutex
	main      slot
	goroutine slot
	installed bool
	owner     any
}

var global = NewManager(RuntimeHandler, RuntimeHandler)

// Global returns the process-wide manager used by Guard and Go
func Global() *Manager {
	return global
}

// NewManager creates a manager whose slots initially hold main and
// goroutine. Nil handlers default to RuntimeHandler.
func NewManager(main, goroutine Handler) *Manager {
	m := &Manager{}
	m.main.store(main)
	m.goroutine.store(goroutine)
	return m
}

// MainHandler returns the handler currently registered for the main goroutine
func (m *Manager) MainHandler() Handler {
	return m.main.load()
}

// GoroutineHandler returns the handler currently registered for goroutines
func (m *Manager) GoroutineHandler() Handler {
	return m.goroutine.load()
}

// SetMainHandler registers h for the main goroutine and returns the previous
// handler. It is the equivalent of another library replacing the hook and
// does not change installation state.
func (m *Manager) SetMainHandler(h Handler) Handler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.main.store(h)
}

// SetGoroutineHandler registers h for goroutines and returns the previous
// handler.
func (m *Manager) SetGoroutineHandler(h Handler) Handler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.goroutine.store(h)
}

// Install registers main and goroutine as processors in front of the
// currently registered handlers. owner identifies the installer and must be
// of a comparable type, normally a pointer. Install panics before touching
// any state when owner is not comparable (a map, slice or func).
//
// The first Install captures the registered handlers as originals and
// returns true. Repeating Install with the same owner is a no-op. Install by
// a different owner while installed replaces the processors and takes over
// ownership, but keeps the originals captured by the first Install.
func (m *Manager) Install(owner any, main, goroutine Handler) bool {
	if !isComparable(owner) {
		panic(fmt.Sprintf("hooks: Install owner of type %T is not comparable", owner))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.installed && m.owner == owner {
		return false
	}

	captured := false
	if !m.installed {
		m.main.original = m.main.load()
		m.goroutine.original = m.goroutine.load()
		m.installed = true
		captured = true
	}

	m.owner = owner
	m.main.store(&chain{process: main, next: m.main.original})
	m.goroutine.store(&chain{process: goroutine, next: m.goroutine.original})

	return captured
}

// Restore re-registers the captured originals. It returns false when nothing
// was installed.
func (m *Manager) Restore() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restoreLocked()
}

// Release restores the originals only if owner performed the most recent
// Install. A non-comparable owner can never have installed and yields false.
func (m *Manager) Release(owner any) bool {
	if !isComparable(owner) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.installed || m.owner != owner {
		return false
	}
	return m.restoreLocked()
}

func isComparable(v any) bool {
	return v == nil || reflect.TypeOf(v).Comparable()
}

func (m *Manager) restoreLocked() bool {
	if !m.installed {
		return false
	}

	m.main.store(m.main.original)
	m.goroutine.store(m.goroutine.original)
	m.main.original = nil
	m.goroutine.original = nil
	m.installed = false
	m.owner = nil

	return true
}

// Installed reports whether processors are currently installed
func (m *Manager) Installed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installed
}

// Owner returns the owner passed to the most recent Install, or nil
func (m *Manager) Owner() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// HandleMain passes occ to the registered main handler
func (m *Manager) HandleMain(occ *report.Occurrence) {
	m.main.load().Handle(occ)
}

// HandleGoroutine passes occ to the registered goroutine handler
func (m *Manager) HandleGoroutine(occ *report.Occurrence) {
	m.goroutine.load().Handle(occ)
}
