package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the ISO-8601 UTC layout used for Report.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Builder converts occurrences into reports. The zero value uses the wall
// clock and random UUIDs; tests may pin both.
type Builder struct {
	Now   func() time.Time
	NewID func() string
}

// Build converts occ into a Report using the default Builder
func Build(occ *Occurrence) *Report {
	return Builder{}.Build(occ)
}

// Build converts occ into a Report. It never fails: missing data yields
// empty fields, a missing stack yields an empty traceback.
func (b Builder) Build(occ *Occurrence) *Report {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	newID := uuid.NewString
	if b.NewID != nil {
		newID = b.NewID
	}

	r := &Report{
		ID:        newID(),
		Timestamp: now().UTC().Format(TimestampLayout),
	}
	if occ == nil {
		return r
	}

	r.ExceptionType = occ.Kind
	r.ExceptionMessage = occ.Message
	r.Traceback = RenderTrace(occ.Frames)
	if len(occ.Frames) > 0 {
		r.Frames = append([]Frame(nil), occ.Frames...)
	}
	r.ThreadInfo = occ.Thread
	r.Scope = occ.Scope

	return r
}

// RenderTrace renders frames innermost first, in the same two-line layout Go
// uses for goroutine dumps:
//
//	main.divide
//		/src/app/main.go:12
func RenderTrace(frames []Frame) string {
	var sb strings.Builder
	for _, f := range frames {
		sb.WriteString(f.Function)
		sb.WriteString("\n\t")
		sb.WriteString(f.File)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(f.Line))
		sb.WriteByte('\n')
	}
	return sb.String()
}
