// Package bridgetest provides bridge doubles for exercising Reporter dispatch.
package bridgetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sthembisoo/reportit/report"
)

// ErrDelivery is the default error returned by Failing
var ErrDelivery = errors.New("bridgetest: delivery failed")

// Journal records the order in which bridges were called
type Journal struct {
	mu    sync.Mutex
	names []string
}

func (j *Journal) record(name string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.names = append(j.names, name)
	j.mu.Unlock()
}

// Names returns the recorded bridge names in call order
func (j *Journal) Names() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.names...)
}

// Recorder keeps every report it receives
type Recorder struct {
	ID      string
	Journal *Journal

	mu      sync.Mutex
	reports []*report.Report
}

// NewRecorder returns a Recorder named id
func NewRecorder(id string) *Recorder {
	return &Recorder{ID: id}
}

func (r *Recorder) Name() string { return r.ID }

func (r *Recorder) Send(_ context.Context, rep *report.Report) error {
	r.Journal.record(r.ID)
	r.mu.Lock()
	r.reports = append(r.reports, rep)
	r.mu.Unlock()
	return nil
}

// Reports returns a copy of the received reports
func (r *Recorder) Reports() []*report.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*report.Report(nil), r.reports...)
}

// Calls returns the number of Send calls
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

// Failing always returns Err (ErrDelivery when nil)
type Failing struct {
	ID      string
	Err     error
	Journal *Journal

	calls atomic.Int64
}

func (f *Failing) Name() string { return f.ID }

func (f *Failing) Send(context.Context, *report.Report) error {
	f.Journal.record(f.ID)
	f.calls.Add(1)
	if f.Err != nil {
		return f.Err
	}
	return ErrDelivery
}

// Calls returns the number of Send calls
func (f *Failing) Calls() int { return int(f.calls.Load()) }

// Panicking panics with Value on every Send
type Panicking struct {
	ID      string
	Value   any
	Journal *Journal

	calls atomic.Int64
}

func (p *Panicking) Name() string { return p.ID }

func (p *Panicking) Send(context.Context, *report.Report) error {
	p.Journal.record(p.ID)
	p.calls.Add(1)
	if p.Value == nil {
		panic("bridgetest: panicking bridge")
	}
	panic(p.Value)
}

// Calls returns the number of Send calls
func (p *Panicking) Calls() int { return int(p.calls.Load()) }
