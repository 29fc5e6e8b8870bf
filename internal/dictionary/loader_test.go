package dictionary_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalima-ai/kalima/internal/dictionary"
)

func writePack(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
		t.Fatalf("write pack %s: %v", name, err)
	}
}

func TestLoadDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePack(t, dir, "en-core.yaml", enPack)
	writePack(t, dir, "ar-core.yaml", arPack)
	writePack(t, dir, "notes.txt", "not a pack")

	defs, err := dictionary.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("LoadDir() returned %d definitions, want 2", len(defs))
	}
	// Sorted by file name: ar before en.
	if defs[0].Language != "ar" || defs[1].Language != "en" {
		t.Errorf("load order = [%s %s], want [ar en]", defs[0].Language, defs[1].Language)
	}
}

func TestLoadDirFailsOnBrokenPack(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePack(t, dir, "en-core.yaml", enPack)
	writePack(t, dir, "broken.yaml", "intents: [not, a, mapping")

	if _, err := dictionary.LoadDir(dir); err == nil {
		t.Fatal("LoadDir() with a broken pack succeeded, want error")
	}
}

func TestLoadDirEmpty(t *testing.T) {
	t.Parallel()

	if _, err := dictionary.LoadDir(t.TempDir()); err == nil {
		t.Fatal("LoadDir(empty) succeeded, want error")
	}
}

func TestWatcherTriggersReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePack(t, dir, "en-core.yaml", enPack)

	var reloads atomic.Int32
	w := dictionary.NewWatcher(dir, 10*time.Millisecond, func(context.Context) error {
		reloads.Add(1)
		return nil
	}, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	// Unchanged directory: no reloads.
	time.Sleep(50 * time.Millisecond)
	if n := reloads.Load(); n != 0 {
		t.Fatalf("reloads before change = %d, want 0", n)
	}

	writePack(t, dir, "en-core.yaml", enPack+"\n# bumped\n")

	deadline := time.After(2 * time.Second)
	for reloads.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("watcher never observed the pack change")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
