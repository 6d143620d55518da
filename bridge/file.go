package bridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sthembisoo/reportit/report"
)

// FileBridge appends the text form of each report to a local file
type FileBridge struct {
	path string
	mu   sync.Mutex
}

// NewFileBridge creates a file bridge. The parent directory is created on
// first delivery.
func NewFileBridge(path string) *FileBridge {
	return &FileBridge{path: path}
}

// Name implements Bridge
func (b *FileBridge) Name() string { return "file" }

// Path returns the log file path
func (b *FileBridge) Path() string { return b.path }

// Send implements Bridge
func (b *FileBridge) Send(_ context.Context, r *report.Report) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &DeliveryError{Bridge: b.Name(), Err: fmt.Errorf("failed to create log directory: %w", err)}
		}
	}

	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &DeliveryError{Bridge: b.Name(), Err: err}
	}

	if _, err := f.WriteString(r.Text()); err != nil {
		f.Close()
		return &DeliveryError{Bridge: b.Name(), Err: err}
	}

	if err := f.Close(); err != nil {
		return &DeliveryError{Bridge: b.Name(), Err: err}
	}
	return nil
}
