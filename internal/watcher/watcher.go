// Package watcher observes raw corpus paths and reports changed
// datasets after a debounce window. It is an opt-in convenience on top
// of explicit invalidation: the watcher never touches index state
// itself, it only invokes the caller's handler, which typically calls
// the lifecycle manager's Invalidate.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/convsearch/convdex/internal/registry"
	"github.com/convsearch/convdex/internal/storage"
)

// DefaultDebounce coalesces bursts of writes to the same corpus (large
// downloads touch a file many times) into one notification.
const DefaultDebounce = 2 * time.Second

// Config configures a Watcher.
type Config struct {
	Registry *registry.Registry
	Storage  storage.Manager
	// Debounce is the quiet period before a change is reported.
	// Zero means DefaultDebounce.
	Debounce time.Duration
	// OnChange is invoked once per changed dataset after the debounce
	// window closes.
	OnChange func(dataset string)
}

// Watcher watches the raw corpus paths of all registered datasets.
type Watcher struct {
	cfg Config
	fs  *fsnotify.Watcher

	// roots maps each watched path to its dataset name.
	roots map[string]string

	mu      sync.Mutex
	pending map[string]time.Time

	doneCh chan struct{}
}

// New creates a watcher over the registry's datasets. Datasets whose
// raw path cannot be resolved are skipped with a warning.
func New(cfg Config) (*Watcher, error) {
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("watcher config: OnChange callback is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		cfg:     cfg,
		fs:      fs,
		roots:   make(map[string]string),
		pending: make(map[string]time.Time),
		doneCh:  make(chan struct{}),
	}

	for _, d := range cfg.Registry.List() {
		path, err := cfg.Storage.ResolveDatasetPath(d)
		if err != nil {
			slog.Warn("skipping unwatchable dataset",
				slog.String("dataset", d.Name),
				slog.String("error", err.Error()))
			continue
		}
		if err := fs.Add(path); err != nil {
			slog.Warn("failed to watch corpus path",
				slog.String("dataset", d.Name),
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		w.roots[path] = d.Name
	}
	return w, nil
}

// Start runs the event loop until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	defer func() { _ = w.fs.Close() }()

	ticker := time.NewTicker(w.cfg.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if name := w.datasetFor(event.Name); name != "" {
				w.mu.Lock()
				w.pending[name] = time.Now()
				w.mu.Unlock()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("watch error", slog.String("error", err.Error()))
		case <-ticker.C:
			w.flush()
		}
	}
}

// flush reports datasets whose last event is older than the debounce
// window.
func (w *Watcher) flush() {
	now := time.Now()

	w.mu.Lock()
	var due []string
	for name, last := range w.pending {
		if now.Sub(last) >= w.cfg.Debounce {
			due = append(due, name)
			delete(w.pending, name)
		}
	}
	w.mu.Unlock()

	for _, name := range due {
		slog.Info("corpus changed", slog.String("dataset", name))
		w.cfg.OnChange(name)
	}
}

// datasetFor maps an event path to the dataset whose watched root
// contains it.
func (w *Watcher) datasetFor(path string) string {
	for root, name := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return name
		}
	}
	return ""
}

// Wait blocks until the event loop has exited.
func (w *Watcher) Wait() {
	<-w.doneCh
}
