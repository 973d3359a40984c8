package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/GoCodeAlone/unitrouter"
	"github.com/fsnotify/fsnotify"
)

// ReloadCallback receives each successfully reloaded configuration.
type ReloadCallback func(ctx context.Context, cfg *Config)

// Watcher reloads the configuration when its file changes. Editors often
// replace files instead of writing them, so the directory is watched and
// events are debounced.
type Watcher struct {
	loader   *Loader
	logger   unitrouter.Logger
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

var ErrNoConfigFile = errors.New("no config file to watch")

// NewWatcher creates a watcher for the loader's file.
func NewWatcher(loader *Loader, logger unitrouter.Logger) *Watcher {
	return &Watcher{loader: loader, logger: logger, debounce: 100 * time.Millisecond}
}

// Start begins watching. Invalid reloads are logged and skipped.
func (w *Watcher) Start(ctx context.Context, cb ReloadCallback) error {
	if w.loader.Path() == "" {
		return ErrNoConfigFile
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	path, err := filepath.Abs(w.loader.Path())
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("resolve config path: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	w.watcher = fw
	w.done = make(chan struct{})
	go w.loop(ctx, fw, path, cb, w.done)
	return nil
}

// Stop stops watching and waits for the loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	fw, done := w.watcher, w.done
	w.watcher, w.done = nil, nil
	w.mu.Unlock()
	if fw == nil {
		return nil
	}
	err := fw.Close()
	<-done
	return err
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, path string, cb ReloadCallback, done chan struct{}) {
	defer close(done)
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", "error", err)
		case <-fire:
			fire = nil
			cfg, err := w.loader.Load(ctx)
			if err != nil {
				w.logger.Error("Config reload failed", "path", path, "error", err)
				continue
			}
			w.logger.Info("Config reloaded", "path", path, "units", len(cfg.Units))
			cb(ctx, cfg)
		}
	}
}
