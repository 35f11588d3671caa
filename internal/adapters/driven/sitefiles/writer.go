// Package sitefiles writes the manifest and keeps the sitemap and robots
// policy pointing at it.
package sitefiles

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
	"github.com/custodia-labs/llmsync/internal/fileutil"
	"github.com/custodia-labs/llmsync/internal/logger"
)

// DefaultBackupKeep is the number of backups kept per file.
const DefaultBackupKeep = 5

// Ensure Writer implements the interface.
var _ driven.SiteWriter = (*Writer)(nil)

// Options configures a Writer.
type Options struct {
	// Backup copies the previous version of every file it changes to
	// "<name>.backup_YYYYMMDD_HHMMSS".
	Backup bool

	// BackupKeep bounds the backups kept per file.
	BackupKeep int
}

// OptionsFromConfig maps configuration onto writer options.
func OptionsFromConfig(cfg *domain.Config) Options {
	return Options{Backup: cfg.BackupFiles, BackupKeep: cfg.BackupKeep}
}

// Writer applies manifest and sidecar changes. Every change is an atomic
// replace, and every operation is a no-op when the file is already in the
// desired state.
type Writer struct {
	mu   sync.Mutex
	opts Options
	now  func() time.Time
}

// New creates a Writer.
func New(opts Options) *Writer {
	if opts.BackupKeep <= 0 {
		opts.BackupKeep = DefaultBackupKeep
	}
	return &Writer{opts: opts, now: time.Now}
}

// SetClock replaces the time source. Used by tests.
func (w *Writer) SetClock(now func() time.Time) {
	w.now = now
}

// WriteManifest atomically replaces path with text. An identical file is
// left untouched.
func (w *Writer) WriteManifest(path, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	current, err := os.ReadFile(path)
	if err == nil && bytes.Equal(current, []byte(text)) {
		logger.Debug("Manifest %s already up to date", path)
		return nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: read %s: %v", domain.ErrWrite, path, err)
	}

	if err := w.replace(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrWrite, path, err)
	}
	return nil
}

// replace backs up path if configured, then writes data over it.
// Caller holds mu.
func (w *Writer) replace(path string, data []byte, perm os.FileMode) error {
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	if w.opts.Backup {
		name, err := fileutil.Backup(path, w.now())
		if err != nil {
			return err
		}
		if name != "" {
			logger.Debug("Created backup: %s", name)
		}
	}

	if err := fileutil.WriteAtomic(path, data, perm); err != nil {
		return err
	}

	if w.opts.Backup {
		if err := fileutil.PruneBackups(path, w.opts.BackupKeep); err != nil {
			logger.Warn("Pruning backups of %s: %v", path, err)
		}
	}
	return nil
}
