package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

// ModelTable maps providers to model ids and can be swapped at runtime.
type ModelTable struct {
	mu     sync.RWMutex
	models map[domain.Provider]string
}

// NewModelTable builds a table from cfg's providers.
func NewModelTable(cfg *Config) *ModelTable {
	t := &ModelTable{}
	t.Update(cfg)
	return t
}

// Resolve returns the model id for p, or "" when p is not configured.
func (t *ModelTable) Resolve(p domain.Provider) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.models[p]
}

// Update replaces every model id with the ones in cfg.
func (t *ModelTable) Update(cfg *Config) {
	models := make(map[domain.Provider]string, len(cfg.Providers))
	for name, p := range cfg.Providers {
		models[domain.Provider(name)] = p.Model
	}

	t.mu.Lock()
	t.models = models
	t.mu.Unlock()
}

// Watcher reloads a config file when it is written.
type Watcher struct {
	path    string
	logger  *slog.Logger
	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, logger: logger}, nil
}

// Watch calls onChange with the reloaded config after every write to the
// file until ctx is done. A reload that fails is logged and skipped.
func (w *Watcher) Watch(ctx context.Context, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(w.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	w.logger.Info("watching config file for changes", slog.String("path", w.path))

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				w.logger.Debug("config watch stopped")
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) {
					continue
				}

				cfg, err := Load(w.path)
				if err != nil {
					w.logger.Error("failed to reload config",
						slog.String("error", err.Error()),
						slog.String("path", w.path))
					continue
				}
				w.logger.Info("config reloaded", slog.String("path", event.Name))
				onChange(cfg)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("config watch error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
