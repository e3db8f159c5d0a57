// Package watch monitors the input root and reports which shop's feed
// changed. A shop fires once its directory has stayed quiet for the debounce
// window, so a multi-file export drop triggers one run, not one per file.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the settle delay applied when none is configured.
const DefaultDebounce = 2 * time.Second

// Watcher debounces filesystem activity under <root>/<shop>/ into per-shop
// triggers.
type Watcher struct {
	root     string
	debounce time.Duration
	logger   *slog.Logger

	fs *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer // shop -> settle timer

	triggers chan string
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a watcher over the per-shop input root. Existing shop
// directories are watched immediately; directories created later are picked
// up as they appear.
func New(root string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input root %s is not a directory", root)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		debounce: debounce,
		logger:   logger,
		fs:       fs,
		pending:  make(map[string]*time.Timer),
		triggers: make(chan string, 16),
		done:     make(chan struct{}),
	}

	if err := fs.Add(root); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to watch input root: %w", err)
	}

	// The input layout is one level deep; fsnotify is not recursive, so each
	// shop directory gets its own watch.
	entries, err := os.ReadDir(root)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to read input root: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := fs.Add(filepath.Join(root, entry.Name())); err != nil {
			logger.Error("failed to add watch", "shop", entry.Name(), "error", err)
		}
	}

	return w, nil
}

// Start processes filesystem events.
// This method blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.wg.Add(1)
	go w.processEvents(ctx)

	<-ctx.Done()
	return nil
}

// Triggers returns the channel of settled shop names. The channel is never
// closed; consumers stop via their own context.
func (w *Watcher) Triggers() <-chan string {
	return w.triggers
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		for _, timer := range w.pending {
			timer.Stop()
		}
		clear(w.pending)
		w.mu.Unlock()

		w.fs.Close()
		w.wg.Wait()
	})
	return nil
}

// processEvents folds fsnotify events into per-shop settle timers.
func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	// A directory appearing directly under the root is a new shop.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			base := filepath.Base(path)
			if filepath.Dir(path) == w.root && !strings.HasPrefix(base, ".") {
				if err := w.fs.Add(path); err != nil {
					w.logger.Error("failed to watch new shop dir", "path", path, "error", err)
				} else {
					w.logger.Debug("watching new shop dir", "shop", base)
				}
			}
			return
		}
	}

	// Removals never start runs.
	if event.Op&fsnotify.Remove != 0 {
		return
	}

	if shop := w.shopFor(path); shop != "" {
		w.touch(shop)
	}
}

// shopFor maps an event path to its shop. Only export files exactly one
// level under the root count.
func (w *Watcher) shopFor(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}

	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) != 2 {
		return ""
	}

	shop, file := parts[0], parts[1]
	if strings.HasPrefix(shop, ".") || strings.HasPrefix(file, ".") {
		return ""
	}
	if !strings.EqualFold(filepath.Ext(file), ".json") {
		return ""
	}
	return shop
}

// touch resets the shop's settle timer.
func (w *Watcher) touch(shop string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, exists := w.pending[shop]; exists {
		timer.Stop()
	}
	w.pending[shop] = time.AfterFunc(w.debounce, func() {
		w.settled(shop)
	})
}

// settled emits the trigger once a shop's input has stayed quiet.
func (w *Watcher) settled(shop string) {
	w.mu.Lock()
	delete(w.pending, shop)
	w.mu.Unlock()

	select {
	case w.triggers <- shop:
		w.logger.Info("input settled", "shop", shop)
	case <-w.done:
	}
}
