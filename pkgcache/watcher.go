package pkgcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher keeps the session maps of a Store consistent with the disk tree:
// removing a package directory (or its lib folder) makes the next resolution
// of that package go back to disk or network.
type Watcher struct {
	store   *Store
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for store. Call Start to begin watching.
func NewWatcher(logger *zap.Logger, store *Store) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create cache watcher: %w", err)
	}
	return &Watcher{
		store:   store,
		logger:  logger,
		watcher: w,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start watches the cache root and every package directory already in it.
// It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	root := w.store.Root()
	if err := w.watcher.Add(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", root, err)
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			w.add(filepath.Join(root, e.Name()))
		}
	}

	w.running = true
	go w.run(ctx)
	w.logger.Info("watching package cache", zap.String("root", root))
	return nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("package cache watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.store.Root(), event.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	dirName := parts[0]
	if strings.HasPrefix(dirName, ".") {
		return
	}

	switch {
	case event.Has(fsnotify.Create) && len(parts) == 1:
		w.add(event.Name)
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if len(parts) == 1 || (len(parts) == 2 && strings.EqualFold(parts[1], "lib")) {
			if w.store.ForgetDir(dirName) {
				w.logger.Info("package removed from cache", zap.String("dir", dirName))
			}
		}
	}
}

func (w *Watcher) add(dir string) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Debug("failed to watch package directory", zap.String("dir", dir), zap.Error(err))
	}
}
