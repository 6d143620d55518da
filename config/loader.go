package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Resolve
const (
	EnvBridge       = "REPORTIT_BRIDGE"
	EnvLogFile      = "REPORTIT_LOG_FILE"
	EnvHTTPEndpoint = "REPORTIT_HTTP_ENDPOINT"
	EnvHTTPTimeout  = "REPORTIT_HTTP_TIMEOUT"
	EnvStorePath    = "REPORTIT_STORE"
	EnvConfigFile   = "REPORTIT_CONFIG"
)

// Overrides carries explicit caller choices. Nil pointers and empty strings
// mean "not set" and fall through to the file, the environment, then the
// defaults.
type Overrides struct {
	Enabled      *bool
	Bridge       BridgeType
	LogFile      string
	HTTPEndpoint string
	HTTPTimeout  time.Duration
	StorePath    string

	// File is a TOML or YAML config file. Empty means $REPORTIT_CONFIG.
	File string
}

// Bool returns a pointer to v, for Overrides.Enabled
func Bool(v bool) *bool {
	return &v
}

// fileConfig mirrors Config with optional fields so that keys missing from a
// file do not reset values resolved earlier.
type fileConfig struct {
	Enabled      *bool  `toml:"enabled" yaml:"enabled"`
	Bridge       string `toml:"bridge" yaml:"bridge"`
	LogFile      string `toml:"log_file" yaml:"log_file"`
	HTTPEndpoint string `toml:"http_endpoint" yaml:"http_endpoint"`
	HTTPTimeout  string `toml:"http_timeout" yaml:"http_timeout"`
	StorePath    string `toml:"store_path" yaml:"store_path"`
}

// Resolve builds a validated Config: defaults, then environment, then the
// config file, then explicit overrides.
func Resolve(o Overrides) (Config, error) {
	cfg := Default()

	if err := applyEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to apply environment: %w", err)
	}

	path := o.File
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyOverrides(&cfg, o); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Enabled = IsTruthy(os.Getenv(EnvEnabled))

	if v := os.Getenv(EnvBridge); v != "" {
		bt, err := ParseBridgeType(v)
		if err != nil {
			return err
		}
		cfg.Bridge = bt
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv(EnvHTTPEndpoint); v != "" {
		cfg.HTTPEndpoint = v
	}
	if v := os.Getenv(EnvHTTPTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHTTPTimeout, err)
		}
		cfg.HTTPTimeout = d
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		cfg.StorePath = v
	}

	return nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.Enabled != nil {
		cfg.Enabled = *fc.Enabled
	}
	if fc.Bridge != "" {
		bt, err := ParseBridgeType(fc.Bridge)
		if err != nil {
			return err
		}
		cfg.Bridge = bt
	}
	if fc.LogFile != "" {
		cfg.LogFile = fc.LogFile
	}
	if fc.HTTPEndpoint != "" {
		cfg.HTTPEndpoint = fc.HTTPEndpoint
	}
	if fc.HTTPTimeout != "" {
		d, err := time.ParseDuration(fc.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("invalid http_timeout: %w", err)
		}
		cfg.HTTPTimeout = d
	}
	if fc.StorePath != "" {
		cfg.StorePath = fc.StorePath
	}

	return nil
}

func applyOverrides(cfg *Config, o Overrides) error {
	if o.Enabled != nil {
		cfg.Enabled = *o.Enabled
	}
	if o.Bridge != "" {
		bt, err := ParseBridgeType(string(o.Bridge))
		if err != nil {
			return err
		}
		cfg.Bridge = bt
	}
	if o.LogFile != "" {
		cfg.LogFile = o.LogFile
	}
	if o.HTTPEndpoint != "" {
		cfg.HTTPEndpoint = o.HTTPEndpoint
	}
	if o.HTTPTimeout != 0 {
		cfg.HTTPTimeout = o.HTTPTimeout
	}
	if o.StorePath != "" {
		cfg.StorePath = o.StorePath
	}
	return nil
}

// Encode writes cfg as TOML
func Encode(cfg Config) (string, error) {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(fileConfig{
		Enabled:      &cfg.Enabled,
		Bridge:       string(cfg.Bridge),
		LogFile:      cfg.LogFile,
		HTTPEndpoint: cfg.HTTPEndpoint,
		HTTPTimeout:  cfg.HTTPTimeout.String(),
		StorePath:    cfg.StorePath,
	}); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return sb.String(), nil
}
