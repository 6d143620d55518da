package hooks

import (
	"fmt"
	"io"
	"sync"

	"github.com/sthembisoo/reportit/report"
)

// Handler is invoked with an intercepted occurrence
type Handler interface {
	Handle(occ *report.Occurrence)
}

// HandlerFunc adapts a function to Handler. HandlerFunc values are not
// comparable; register pointer handlers when identity matters.
type HandlerFunc func(occ *report.Occurrence)

// Handle implements Handler
func (f HandlerFunc) Handle(occ *report.Occurrence) { f(occ) }

type runtimeHandler struct{}

// RuntimeHandler is the default for both slots. It re-panics with the
// original value, so Go prints the panic and exits with status 2 exactly as
// it would without any hook in place.
var RuntimeHandler Handler = &runtimeHandler{}

func (*runtimeHandler) Handle(occ *report.Occurrence) {
	panic(occ.Value)
}

// PrintHandler writes a Go style panic block to w and returns, letting the
// goroutine end without crashing the process.
func PrintHandler(w io.Writer) Handler {
	return &printHandler{w: w}
}

type printHandler struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printHandler) Handle(occ *report.Occurrence) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = fmt.Fprintf(p.w, "panic: %s [%s]\n\ngoroutine %d [%s]:\n%s\n",
		occ.Message, occ.Kind, occ.Thread.ID, occ.Thread.Name, report.RenderTrace(occ.Frames))
}

// chain is the handler registered while the manager is installed. It runs
// process with panics contained, then always hands the same occurrence to
// next.
type chain struct {
	process Handler
	next    Handler
}

func (c *chain) Handle(occ *report.Occurrence) {
	runContained(c.process, occ)
	if c.next != nil {
		c.next.Handle(occ)
	}
}

func runContained(h Handler, occ *report.Occurrence) {
	if h == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	h.Handle(occ)
}
