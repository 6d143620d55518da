// Package config resolves whether error reporting is active and which bridges
// deliver reports.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
)

// BridgeType selects the set of bridges a Reporter is wired with
type BridgeType string

const (
	BridgeFile   BridgeType = "file"
	BridgeHTTP   BridgeType = "http"
	BridgeBoth   BridgeType = "both"
	BridgeSQLite BridgeType = "sqlite"
	BridgeNone   BridgeType = "none"
)

// Defaults
const (
	EnvEnabled = "CURSOR_EXCEPTION_REPORTING"

	DefaultBridge       = BridgeFile
	DefaultLogFile      = ".cursor/exceptions.log"
	DefaultHTTPEndpoint = "http://localhost:7331/exception"
	DefaultHTTPTimeout  = time.Second
	DefaultStorePath    = ".cursor/exceptions.db"
)

// ErrInvalidBridge is returned for bridge selectors outside the known set
var ErrInvalidBridge = errors.New("invalid bridge type")

var truthy = []string{"true", "1", "yes", "on"}

// Config is the resolved, immutable reporting configuration. It is passed by
// value and never shared as a singleton.
type Config struct {
	Enabled      bool
	Bridge       BridgeType
	LogFile      string
	HTTPEndpoint string
	HTTPTimeout  time.Duration
	StorePath    string
}

// Default returns the built-in configuration. Reporting is disabled until
// enabled explicitly or through the environment.
func Default() Config {
	return Config{
		Enabled:      false,
		Bridge:       DefaultBridge,
		LogFile:      DefaultLogFile,
		HTTPEndpoint: DefaultHTTPEndpoint,
		HTTPTimeout:  DefaultHTTPTimeout,
		StorePath:    DefaultStorePath,
	}
}

// ParseBridgeType validates a bridge selector, case-insensitively
func ParseBridgeType(s string) (BridgeType, error) {
	bt := BridgeType(strings.ToLower(strings.TrimSpace(s)))
	switch bt {
	case BridgeFile, BridgeHTTP, BridgeBoth, BridgeSQLite, BridgeNone:
		return bt, nil
	default:
		return "", fmt.Errorf("%w: %q (want file, http, both, sqlite or none)", ErrInvalidBridge, s)
	}
}

// IsTruthy reports whether s is one of the recognized enablement values:
// true, 1, yes, on (case-insensitive).
func IsTruthy(s string) bool {
	return lo.Contains(truthy, strings.ToLower(strings.TrimSpace(s)))
}

// UsesFile reports whether the file bridge is selected
func (c Config) UsesFile() bool {
	return c.Bridge == BridgeFile || c.Bridge == BridgeBoth
}

// UsesHTTP reports whether the HTTP bridge is selected
func (c Config) UsesHTTP() bool {
	return c.Bridge == BridgeHTTP || c.Bridge == BridgeBoth
}

// UsesStore reports whether the SQLite store bridge is selected
func (c Config) UsesStore() bool {
	return c.Bridge == BridgeSQLite
}

// Validate checks the parameters required by the selected bridges
func (c Config) Validate() error {
	if _, err := ParseBridgeType(string(c.Bridge)); err != nil {
		return err
	}

	if c.UsesFile() && c.LogFile == "" {
		return fmt.Errorf("log file path is required for bridge %q", c.Bridge)
	}

	if c.UsesHTTP() {
		u, err := url.Parse(c.HTTPEndpoint)
		if err != nil {
			return fmt.Errorf("invalid http endpoint: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("invalid http endpoint %q: must be an absolute http(s) URL", c.HTTPEndpoint)
		}
		if c.HTTPTimeout <= 0 {
			return fmt.Errorf("http timeout must be positive, got %s", c.HTTPTimeout)
		}
	}

	if c.UsesStore() && c.StorePath == "" {
		return fmt.Errorf("store path is required for bridge %q", c.Bridge)
	}

	return nil
}
