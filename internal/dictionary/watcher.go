package dictionary

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultWatchInterval is the pack-directory polling cadence.
const DefaultWatchInterval = 5 * time.Second

// Watcher polls a pack directory and invokes a reload callback whenever the
// combined content digest of the pack files changes. Polling (rather than
// inotify) keeps behaviour identical across platforms and network mounts.
type Watcher struct {
	dir      string
	interval time.Duration
	reload   func(context.Context) error
	logger   *slog.Logger

	lastDigest string
}

// NewWatcher creates a watcher over dir. reload is called on the watcher
// goroutine; it must be safe to call concurrently with serving traffic.
func NewWatcher(dir string, interval time.Duration, reload func(context.Context) error, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{dir: dir, interval: interval, reload: reload, logger: logger}
}

// Run polls until ctx is cancelled. The digest observed at start is treated
// as current, so the initial load is never repeated.
func (w *Watcher) Run(ctx context.Context) error {
	digest, err := w.digest()
	if err != nil {
		w.logger.Warn("dictionary watcher: initial digest failed", "dir", w.dir, "error", err)
	}
	w.lastDigest = digest

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	digest, err := w.digest()
	if err != nil {
		w.logger.Warn("dictionary watcher: digest failed", "dir", w.dir, "error", err)
		return
	}
	if digest == w.lastDigest {
		return
	}
	// Record the digest before reloading: a persistently broken pack should
	// log once per edit, not once per tick.
	w.lastDigest = digest

	w.logger.Info("dictionary pack changed, reloading", "dir", w.dir)
	if err := w.reload(ctx); err != nil {
		w.logger.Error("dictionary reload failed, keeping previous index", "dir", w.dir, "error", err)
		return
	}
	w.logger.Info("dictionary reloaded", "dir", w.dir)
}

// digest hashes the name, size, mtime, and content of every pack file.
func (w *Watcher) digest() (string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return "", fmt.Errorf("read dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		path := filepath.Join(w.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", name, err)
		}
		fmt.Fprintf(h, "%s|%d|%d\n", name, info.Size(), info.ModTime().UnixNano())

		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", name, err)
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", name, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
