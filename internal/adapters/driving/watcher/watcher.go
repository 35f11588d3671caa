// Package watcher triggers regeneration when content files change.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driving"
	"github.com/custodia-labs/llmsync/internal/logger"
)

// DefaultDebounce is the quiet window used when none is configured.
const DefaultDebounce = 5 * time.Second

// Options configures a Watcher.
type Options struct {
	// Directory is the root watched recursively.
	Directory string

	// Extensions limits events to these file extensions, e.g. ".md".
	// Empty means every file.
	Extensions []string

	// Debounce is the quiet window after the last event before a trigger.
	Debounce time.Duration

	// Ignore lists paths whose events are dropped, such as the manifest
	// itself when it lives under Directory. Relative paths resolve against
	// the working directory.
	Ignore []string
}

// OptionsFromConfig builds watcher options from the configuration.
func OptionsFromConfig(cfg *domain.Config) Options {
	opts := Options{
		Directory:  cfg.WatchDirectory(),
		Extensions: cfg.Watch.Extensions,
		Debounce:   cfg.WatchDebounce(),
	}
	files := []string{cfg.OutputPath, cfg.CacheFile, cfg.Sidecars.SitemapPath, cfg.Sidecars.RobotsPath}
	for _, p := range files {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			opts.Ignore = append(opts.Ignore, abs)
		}
	}
	return opts
}

// Watcher watches a content directory and fires a watch trigger once
// changes have been quiet for the debounce window.
type Watcher struct {
	opts        Options
	sourceID    string
	coordinator driving.Coordinator
	extensions  map[string]bool
	ignore      map[string]bool

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a watcher for one source.
func New(opts Options, sourceID string, coordinator driving.Coordinator) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	w := &Watcher{
		opts:        opts,
		sourceID:    sourceID,
		coordinator: coordinator,
		extensions:  make(map[string]bool, len(opts.Extensions)),
		ignore:      make(map[string]bool, len(opts.Ignore)),
	}
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		w.extensions[ext] = true
	}
	for _, p := range opts.Ignore {
		if abs, err := filepath.Abs(p); err == nil {
			w.ignore[abs] = true
		}
	}
	return w
}

// Start watches until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.opts.Directory)
	if err != nil {
		return fmt.Errorf("%w: watch directory %s: %v", domain.ErrInvalidInput, w.opts.Directory, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: watch directory %s is not a directory", domain.ErrInvalidInput, w.opts.Directory)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.opts.Directory); err != nil {
		return err
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.wg.Add(1)
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		w.wg.Done()
	}()

	logger.Info("Watching %s (debounce %s)", w.opts.Directory, w.opts.Debounce)

	// The timer is created stopped and re-armed by every relevant event.
	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(fsw, event) {
				logger.Debug("Change detected: %s %s", event.Op, event.Name)
				timer.Reset(w.opts.Debounce)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
		case <-timer.C:
			w.fire(ctx)
		}
	}
}

// Stop stops the watch loop and waits for an in-flight trigger.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	return nil
}

func (w *Watcher) fire(ctx context.Context) {
	logger.Info("Content changed, regenerating")
	ack, result := w.coordinator.Trigger(ctx, w.sourceID, domain.ReasonWatch)
	switch {
	case ack == domain.AckPending:
		logger.Info("Watch trigger coalesced into the running pass")
	case result != nil:
		logger.Info("Watch run: %s", result.Summary())
	}
}

// handleEvent reports whether event should re-arm the debounce timer.
// New directories are added to the watch set as a side effect.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	if isHidden(event.Name) || w.ignored(event.Name) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(fsw, event.Name); err != nil {
				logger.Warn("Failed to watch new directory %s: %v", event.Name, err)
			}
			return false
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return w.matches(event.Name)
}

// ignored reports whether path is one of the files this tool writes.
// fsnotify names are relative when the watched directory is.
func (w *Watcher) ignored(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return w.ignore[abs]
}

// matches reports whether path carries a watched extension.
func (w *Watcher) matches(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

// addRecursive watches root and every non-hidden directory beneath it.
func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// isHidden reports whether the final element of path starts with a dot.
func isHidden(path string) bool {
	base := filepath.Base(path)
	return len(base) > 1 && strings.HasPrefix(base, ".") && base != ".."
}
