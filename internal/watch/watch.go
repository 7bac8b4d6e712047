// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch turns a directory into a drop folder: scripts created or
// copied into it are handed to a callback once they stop changing.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/jeranaias/batchrun/internal/logging"
)

// tickInterval is how often pending paths are checked against the debounce.
const tickInterval = 100 * time.Millisecond

// Config configures a drop folder.
type Config struct {
	Dir string

	// Extensions admitted (".sh"); empty admits every regular file
	Extensions []string

	// Debounce is how long a file must be quiet before it is handed over
	Debounce time.Duration

	// MaxPerSecond caps admissions; 0 means unlimited
	MaxPerSecond float64
}

// Watcher watches one directory (not recursive).
type Watcher struct {
	cfg     Config
	log     logging.Logger
	watcher *fsnotify.Watcher
	limiter *rate.Limiter
	exts    map[string]bool

	mu      sync.Mutex
	pending map[string]time.Time // path -> last change time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher for cfg.Dir. It does not start watching.
func New(cfg Config, log logging.Logger) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch: no directory")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", cfg.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory", cfg.Dir)
	}
	if log == nil {
		log = logging.Nop()
	}

	limit := rate.Inf
	burst := 1
	if cfg.MaxPerSecond > 0 {
		limit = rate.Limit(cfg.MaxPerSecond)
		if b := int(cfg.MaxPerSecond); b > 1 {
			burst = b
		}
	}

	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}

	return &Watcher{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(limit, burst),
		exts:    exts,
		pending: make(map[string]time.Time),
	}, nil
}

// Matches reports whether path has an admitted extension.
func (w *Watcher) Matches(path string) bool {
	if len(w.exts) == 0 {
		return true
	}
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

// Scan returns the matching regular files already in the directory, sorted.
func (w *Watcher) Scan() ([]string, error) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p := filepath.Join(w.cfg.Dir, e.Name())
		if w.Matches(p) {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// Start begins watching. onDrop is called from the watcher's goroutine with
// each batch of settled paths; it must not block for long.
func (w *Watcher) Start(ctx context.Context, onDrop func(paths []string)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.cfg.Dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}
	w.watcher = fsw

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.processPending(ctx, onDrop)

	w.log.Info("watching drop folder", logging.F("dir", w.cfg.Dir))
	return nil
}

// Close stops watching and waits for the goroutines to exit.
func (w *Watcher) Close() error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// processEvents records create and write events as pending.
func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				w.touch(event.Name, time.Now())
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.forget(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("drop folder watch error", logging.F("dir", w.cfg.Dir), logging.F("error", err))
		}
	}
}

func (w *Watcher) touch(path string, at time.Time) {
	if strings.HasPrefix(filepath.Base(path), ".") || !w.Matches(path) {
		return
	}
	w.mu.Lock()
	w.pending[path] = at
	w.mu.Unlock()
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
}

// processPending hands over paths whose debounce has elapsed.
func (w *Watcher) processPending(ctx context.Context, onDrop func([]string)) {
	defer w.wg.Done()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if paths := w.settled(now); len(paths) > 0 {
				w.log.Debug("drop folder admitted files", logging.F("count", len(paths)))
				onDrop(paths)
			}
		}
	}
}

// settled removes and returns pending paths quiet for at least the debounce.
// Paths over the admission rate stay pending for a later tick; paths that are
// gone or are directories are dropped.
func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	var ready []string
	for path, changed := range w.pending {
		if now.Sub(changed) >= w.cfg.Debounce {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)

	var out []string
	for _, path := range ready {
		if !w.limiter.AllowN(now, 1) {
			break
		}
		delete(w.pending, path)
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		out = append(out, path)
	}
	w.mu.Unlock()
	return out
}
