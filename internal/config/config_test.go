package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/kalima-ai/kalima/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	if err := config.Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestLoadFromReaderOverridesDefaults(t *testing.T) {
	t.Parallel()

	src := `
server:
  addr: ":9090"
logging:
  level: debug
  format: text
dictionary:
  dir: /etc/kalima/packs
  watch_interval: 30s
session:
  store: postgres
  postgres_dsn: postgres://localhost/kalima
`
	cfg, err := config.LoadFromReader(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("server.addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Logging.Level != config.LogLevelDebug || cfg.Logging.Format != config.LogFormatText {
		t.Errorf("logging = %+v, want debug/text", cfg.Logging)
	}
	if cfg.Dictionary.WatchInterval != 30*time.Second {
		t.Errorf("watch_interval = %v, want 30s", cfg.Dictionary.WatchInterval)
	}
	if cfg.Session.Store != config.StorePostgres {
		t.Errorf("session.store = %q, want postgres", cfg.Session.Store)
	}
	// Untouched sections keep their defaults.
	if cfg.Gate.Execute != 0.7 || cfg.Gate.Clarify != 0.4 {
		t.Errorf("gate thresholds = %+v, want defaults", cfg.Gate)
	}
	if cfg.Resolver.Weights.FuzzyMin != 0.5 {
		t.Errorf("resolver weights lost their defaults: %+v", cfg.Resolver.Weights)
	}
}

func TestLoadFromReaderEmptyDocument(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader(empty) error = %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("empty document did not yield defaults: addr = %q", cfg.Server.Addr)
	}
}

func TestLoadFromReaderRejectsUnknownField(t *testing.T) {
	t.Parallel()

	if _, err := config.LoadFromReader(strings.NewReader("serverr:\n  addr: ':1'\n")); err == nil {
		t.Fatal("unknown top-level field accepted, want error")
	}
}

func TestValidateFindings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty addr", func(c *config.Config) { c.Server.Addr = "" }},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "verbose" }},
		{"bad store", func(c *config.Config) { c.Session.Store = "redis" }},
		{"postgres without dsn", func(c *config.Config) { c.Session.Store = config.StorePostgres }},
		{"watch without interval", func(c *config.Config) { c.Dictionary.WatchInterval = 0 }},
		{"inverted gate", func(c *config.Config) { c.Gate.Clarify = 0.9 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() passed, want error")
			}
		})
	}
}
