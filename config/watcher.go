package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is how often the watcher scans the definitions
// directory for changed files.
const DefaultPollInterval = 2 * time.Second

// Watcher polls the workflow definitions directory and invalidates the
// registry cache when a definition file is written, created, or removed.
// Polling is deliberate: definitions change rarely and a scan every couple of
// seconds is cheap, while filesystem-event APIs differ per platform.
type Watcher struct {
	registry *Registry
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	modTimes map[string]time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWatcher creates a watcher over the registry's directory. A non-positive
// interval falls back to DefaultPollInterval.
func NewWatcher(registry *Registry, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		registry: registry,
		interval: interval,
		logger:   logger.With(zap.String("component", "workflow_watcher")),
		modTimes: make(map[string]time.Time),
	}
}

// Start snapshots the current file set and begins polling. It returns
// immediately; Stop or ctx cancellation ends the poll loop.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	w.modTimes = w.scan()

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	done := make(chan struct{})
	w.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.sweep()
			}
		}
	}()

	w.logger.Info("workflow definition watcher started",
		zap.String("dir", w.registry.dir),
		zap.Duration("interval", w.interval),
	)
}

// Stop ends the poll loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// scan reads the current modification time of every definition file.
func (w *Watcher) scan() map[string]time.Time {
	out := make(map[string]time.Time)
	entries, err := os.ReadDir(w.registry.dir)
	if err != nil {
		w.logger.Warn("failed to scan definitions directory", zap.Error(err))
		return out
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[e.Name()] = info.ModTime()
	}
	return out
}

// sweep compares the directory against the last snapshot and invalidates
// every definition whose file changed.
func (w *Watcher) sweep() {
	current := w.scan()

	w.mu.Lock()
	previous := w.modTimes
	w.modTimes = current
	w.mu.Unlock()

	for file, mod := range current {
		prev, existed := previous[file]
		if existed && !mod.After(prev) {
			continue
		}
		name := strings.TrimSuffix(file, filepath.Ext(file))
		w.registry.Invalidate(name)
		w.logger.Info("workflow definition changed, cache invalidated",
			zap.String("workflow", name),
		)
	}
	for file := range previous {
		if _, still := current[file]; still {
			continue
		}
		name := strings.TrimSuffix(file, filepath.Ext(file))
		w.registry.Invalidate(name)
		w.logger.Info("workflow definition removed, cache invalidated",
			zap.String("workflow", name),
		)
	}
}
