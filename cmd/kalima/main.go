// Command kalima runs the intent recognition and dialog state service.
//
// Usage:
//
//	kalima [-config config.yaml]
//
// Without -config the built-in defaults apply: an in-memory session store,
// packs loaded from ./dictionaries, and the API on :8080.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/kalima-ai/kalima/internal/config"
	"github.com/kalima-ai/kalima/internal/dialog"
	dialogpg "github.com/kalima-ai/kalima/internal/dialog/postgres"
	"github.com/kalima-ai/kalima/internal/dictionary"
	"github.com/kalima-ai/kalima/internal/engine"
	"github.com/kalima-ai/kalima/internal/health"
	"github.com/kalima-ai/kalima/internal/observe"
	"github.com/kalima-ai/kalima/internal/server"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	// ── Configuration ──

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		cfg = loaded
	}

	// ── Logging ──

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("starting kalima", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ──

	if cfg.Telemetry.Enabled {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
		})
		if err != nil {
			logger.Error("init telemetry", "error", err)
			return 1
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn("telemetry shutdown", "error", err)
			}
		}()
	}

	// ── Session store ──

	var store dialog.Store
	switch cfg.Session.Store {
	case config.StorePostgres:
		pg, err := dialogpg.New(ctx, cfg.Session.PostgresDSN)
		if err != nil {
			logger.Error("connect session store", "error", err)
			return 1
		}
		defer pg.Close()
		store = pg
		logger.Info("session store ready", "backend", "postgres")
	default:
		store = dialog.NewMemStore()
		logger.Info("session store ready", "backend", "memory")
	}

	// ── Engine ──

	eng, err := engine.New(cfg.Dictionary.Dir, store,
		engine.WithLogger(logger),
		engine.WithWeights(cfg.Resolver.Weights),
		engine.WithThresholds(cfg.Gate),
	)
	if err != nil {
		logger.Error("build engine", "error", err)
		return 1
	}

	// ── HTTP ──

	mux := http.NewServeMux()
	server.New(eng, logger).Register(mux)
	health.New(
		health.Checker{Name: "dictionary", Check: func(context.Context) error { return eng.Ready() }},
		health.Checker{Name: "sessions", Check: func(ctx context.Context) error {
			_, err := store.Count(ctx)
			return err
		}},
	).Register(mux)
	if cfg.Telemetry.Enabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      observe.Middleware(observe.DefaultMetrics())(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── Run ──

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})

	if cfg.Dictionary.Watch {
		watcher := dictionary.NewWatcher(cfg.Dictionary.Dir, cfg.Dictionary.WatchInterval,
			eng.ReloadDictionaries, logger)
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("dictionary watcher: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("shutdown with error", "error", err)
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}

// newLogger builds the slog logger described by cfg.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case config.LogLevelDebug:
		level = slog.LevelDebug
	case config.LogLevelWarn:
		level = slog.LevelWarn
	case config.LogLevelError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == config.LogFormatText {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
