// Package report turns an intercepted error into the immutable payload that
// bridges deliver.
package report

// Frame is a single call site in a captured stack
type Frame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Thread describes the goroutine that raised an error
type Thread struct {
	Name   string `json:"thread_name"`
	ID     int64  `json:"thread_id"`
	IsMain bool   `json:"is_main_thread"`
}

// Occurrence is the raw data captured at the moment an error is intercepted.
// It is created by the handler invocation that caught the error and must not
// be modified after it has been handed to a Reporter.
type Occurrence struct {
	// Value is the recovered panic value or the manually reported error.
	Value   any
	Kind    string
	Message string
	// Frames are ordered innermost first: Frames[0] is the raise site.
	Frames []Frame
	Thread Thread
	Scope  string
}

// Report is the structured payload handed to every bridge. Bridges must
// treat it as read-only; the same pointer is shared between all of them.
type Report struct {
	ID               string  `json:"id"`
	Timestamp        string  `json:"timestamp"`
	ExceptionType    string  `json:"exception_type"`
	ExceptionMessage string  `json:"exception_message"`
	Traceback        string  `json:"traceback"`
	Frames           []Frame `json:"frames,omitempty"`
	ThreadInfo       Thread  `json:"thread_info"`
	Scope            string  `json:"scope,omitempty"`
}
