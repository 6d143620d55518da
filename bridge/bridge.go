// Package bridge defines the delivery capability used by the Reporter and the
// concrete sinks that implement it.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/samber/lo"
	"github.com/sthembisoo/reportit/config"
	"github.com/sthembisoo/reportit/report"
)

// Bridge delivers a report to one destination.
//
// Implementations must:
//   - return within a bounded time (use a timeout for anything network bound)
//   - be safe for concurrent Send calls from many goroutines
//   - treat the report as read-only; the same value is shared by all bridges
//
// A failed delivery is returned as an error. Implementations should not
// panic, but callers isolate panics anyway.
type Bridge interface {
	Name() string
	Send(ctx context.Context, r *report.Report) error
}

// DeliveryError records that a bridge could not persist or transmit a report
type DeliveryError struct {
	Bridge string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("bridge %q: delivery failed: %v", e.Bridge, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking bridge
type PanicError struct {
	Bridge string
	Value  any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("bridge %q panicked: %v", e.Bridge, e.Value)
}

// IsPanic reports whether err (or any error in its chain) is a *PanicError
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

// New constructs the bridges selected by cfg, in the fixed order file, http,
// sqlite. It is meant to be called at the outermost wiring point only.
func New(cfg config.Config) ([]Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var bridges []Bridge
	if cfg.UsesFile() {
		bridges = append(bridges, NewFileBridge(cfg.LogFile))
	}
	if cfg.UsesHTTP() {
		bridges = append(bridges, NewHTTPBridge(cfg.HTTPEndpoint, cfg.HTTPTimeout))
	}
	if cfg.UsesStore() {
		store, err := NewStoreBridge(StoreConfig{Path: cfg.StorePath})
		if err != nil {
			return nil, fmt.Errorf("failed to create store bridge: %w", err)
		}
		bridges = append(bridges, store)
	}

	return bridges, nil
}

// Close releases bridges holding resources, such as the SQLite store
func Close(bridges []Bridge) error {
	closers := lo.FilterMap(bridges, func(b Bridge, _ int) (io.Closer, bool) {
		c, ok := b.(io.Closer)
		return c, ok
	})

	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
