package report

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// maxDepth bounds the number of program counters collected per capture.
const maxDepth = 64

// Capture builds an Occurrence for value on the calling goroutine. When it
// runs inside a deferred recover, the panic machinery is trimmed so that the
// first frame is the statement that panicked.
func Capture(value any, thread Thread, scope string) *Occurrence {
	return CaptureSkip(value, thread, scope, 1)
}

// CaptureSkip is like Capture but additionally skips the given number of
// caller frames. Use it from helpers that should not appear in the trace.
func CaptureSkip(value any, thread Thread, scope string, skip int) *Occurrence {
	return &Occurrence{
		Value:   value,
		Kind:    KindOf(value),
		Message: MessageOf(value),
		Frames:  callers(skip + 2),
		Thread:  thread,
		Scope:   scope,
	}
}

// callers resolves the stack of the calling goroutine. skip follows
// runtime.Callers semantics relative to the caller of callers.
func callers(skip int) []Frame {
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return nil
	}

	resolved := runtime.CallersFrames(pcs[:n])
	var all []runtime.Frame
	for {
		fr, more := resolved.Next()
		all = append(all, fr)
		if !more {
			break
		}
	}

	// Everything up to gopanic belongs to the recovering defer chain.
	if _, idx, ok := lo.FindLastIndexOf(all, func(fr runtime.Frame) bool {
		return fr.Function == "runtime.gopanic"
	}); ok {
		all = all[idx+1:]
	}

	return lo.FilterMap(all, func(fr runtime.Frame, _ int) (Frame, bool) {
		return Frame{
			Function: fr.Function,
			File:     fr.File,
			Line:     fr.Line,
		}, !strings.HasPrefix(fr.Function, "runtime.")
	})
}

// KindOf names the dynamic type of a raised value, e.g. "runtime.boundsError"
// or "*fs.PathError".
func KindOf(v any) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", v)
}

// MessageOf renders the human-readable message of a raised value
func MessageOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// CurrentThread describes the calling goroutine. An empty name is replaced
// by "goroutine-<id>".
func CurrentThread(name string, isMain bool) Thread {
	id := goroutineID()
	if name == "" {
		name = "goroutine-" + strconv.FormatInt(id, 10)
	}
	return Thread{
		Name:   name,
		ID:     id,
		IsMain: isMain,
	}
}

// goroutineID parses the id out of the "goroutine N [status]:" stack header.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	header := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if i := strings.IndexByte(header, ' '); i > 0 {
		header = header[:i]
	}

	id, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// CallerThread describes the calling goroutine for manual reports, treating
// goroutine 1 as the main goroutine.
func CallerThread() Thread {
	if goroutineID() == 1 {
		return CurrentThread("main", true)
	}
	return CurrentThread("", false)
}
