// Package config defines the service configuration schema and its loader.
//
// Configuration comes from a single YAML file. Every field has a sensible
// default, so an empty file (or no file at all) yields a working in-memory
// deployment; production setups override what they need.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kalima-ai/kalima/internal/gate"
	"github.com/kalima-ai/kalima/internal/resolve"
)

// LogLevel is the slog level selector.
type LogLevel string

// Supported log levels.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is a supported level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// LogFormat selects the slog handler.
type LogFormat string

// Supported log formats.
const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// IsValid reports whether f is a supported format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatJSON || f == LogFormatText
}

// StoreKind selects the dialog session store backend.
type StoreKind string

// Supported session store backends.
const (
	StoreMemory   StoreKind = "memory"
	StorePostgres StoreKind = "postgres"
)

// IsValid reports whether k is a supported backend.
func (k StoreKind) IsValid() bool {
	return k == StoreMemory || k == StorePostgres
}

// Config is the root configuration document.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Dictionary DictionaryConfig `yaml:"dictionary"`
	Session    SessionConfig    `yaml:"session"`
	Resolver   ResolverConfig   `yaml:"resolver"`
	Gate       gate.Thresholds  `yaml:"gate"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// DictionaryConfig configures the intent pack directory and its watcher.
type DictionaryConfig struct {
	// Dir is the directory holding the YAML pack files.
	Dir string `yaml:"dir"`

	// Watch enables hot reload of the pack directory.
	Watch bool `yaml:"watch"`

	// WatchInterval is the polling cadence when Watch is on.
	WatchInterval time.Duration `yaml:"watch_interval"`
}

// SessionConfig configures dialog session persistence.
type SessionConfig struct {
	// Store selects the backend: "memory" or "postgres".
	Store StoreKind `yaml:"store"`

	// PostgresDSN is required when Store is "postgres".
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ResolverConfig configures the cascade.
type ResolverConfig struct {
	Weights resolve.Weights `yaml:"weights"`
}

// TelemetryConfig configures metrics export.
type TelemetryConfig struct {
	// Enabled turns the OTel meter provider and the /metrics endpoint on.
	Enabled bool `yaml:"enabled"`

	// ServiceName overrides the service name reported in telemetry.
	ServiceName string `yaml:"service_name"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatJSON,
		},
		Dictionary: DictionaryConfig{
			Dir:           "dictionaries",
			Watch:         true,
			WatchInterval: 5 * time.Second,
		},
		Session: SessionConfig{
			Store: StoreMemory,
		},
		Resolver: ResolverConfig{
			Weights: resolve.DefaultWeights(),
		},
		Gate: gate.DefaultThresholds(),
		Telemetry: TelemetryConfig{
			Enabled:     true,
			ServiceName: "kalima",
		},
	}
}

// Validate checks the whole document, joining every finding.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr: must not be empty"))
	}
	if !c.Logging.Level.IsValid() {
		errs = append(errs, fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level))
	}
	if !c.Logging.Format.IsValid() {
		errs = append(errs, fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format))
	}
	if c.Dictionary.Dir == "" {
		errs = append(errs, errors.New("dictionary.dir: must not be empty"))
	}
	if c.Dictionary.Watch && c.Dictionary.WatchInterval <= 0 {
		errs = append(errs, errors.New("dictionary.watch_interval: must be positive when watch is enabled"))
	}
	if !c.Session.Store.IsValid() {
		errs = append(errs, fmt.Errorf("session.store: unsupported value %q", c.Session.Store))
	}
	if c.Session.Store == StorePostgres && c.Session.PostgresDSN == "" {
		errs = append(errs, errors.New("session.postgres_dsn: required when session.store is postgres"))
	}
	if err := c.Gate.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
