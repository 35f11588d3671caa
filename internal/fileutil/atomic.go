// Package fileutil replaces files atomically and keeps timestamped backups.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// BackupTimeFormat is the timestamp layout used in backup file names.
const BackupTimeFormat = "20060102_150405"

// WriteAtomic replaces path with data. The data is written to a temporary
// file in the same directory, synced, and renamed over path, so readers see
// either the old or the new content and never a partial file. Missing
// parent directories are created.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	committed = true

	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry after a rename. Not every platform
// supports syncing directories, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Backup copies path to "<path>.backup_YYYYMMDD_HHMMSS" and returns the
// backup name. A missing path is not an error and yields "".
func Backup(path string, now time.Time) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read for backup: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat for backup: %w", err)
	}

	name := path + ".backup_" + now.Format(BackupTimeFormat)
	if err := WriteAtomic(name, data, info.Mode().Perm()); err != nil {
		return "", err
	}
	return name, nil
}

// Backups lists the backups of path, oldest first.
func Backups(path string) ([]string, error) {
	matches, err := filepath.Glob(path + ".backup_*")
	if err != nil {
		return nil, err
	}
	prefix := path + ".backup_"
	var out []string
	for _, m := range matches {
		stamp := strings.TrimPrefix(m, prefix)
		if _, err := time.Parse(BackupTimeFormat, stamp); err == nil {
			out = append(out, m)
		}
	}
	// The timestamp layout sorts lexically in time order.
	sort.Strings(out)
	return out, nil
}

// PruneBackups removes all but the newest keep backups of path.
// A non-positive keep leaves every backup in place.
func PruneBackups(path string, keep int) error {
	if keep <= 0 {
		return nil
	}
	backups, err := Backups(path)
	if err != nil {
		return err
	}
	if len(backups) <= keep {
		return nil
	}
	for _, old := range backups[:len(backups)-keep] {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove backup: %w", err)
		}
	}
	return nil
}
