// Package logger provides process-wide logging for llmsync.
//
// Messages are printf-style and routed through log/slog. By default only
// warnings and errors reach stderr; --verbose lowers the level to debug.
// Configure fans records out to a log file and, when running as a systemd
// service, to the journal.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	format          = "text"
	level           = new(slog.LevelVar)
	extra   []slog.Handler
	base            = newLogger()
)

func init() {
	level.Set(slog.LevelWarn)
}

// Options configures the log sinks.
type Options struct {
	// Level is debug, info, warn or error. Empty keeps the current level.
	Level string

	// Format is text or json for the stderr sink.
	Format string

	// File appends JSON records to this path when set.
	File string

	// Journal also sends records to the systemd journal when running
	// as a service.
	Journal bool
}

// Configure installs the sinks described by opts. The returned closer
// releases the log file; it is never nil.
func Configure(opts Options) (io.Closer, error) {
	if opts.Level != "" {
		l, err := ParseLevel(opts.Level)
		if err != nil {
			return nopCloser{}, err
		}
		level.Set(l)
	}

	var handlers []slog.Handler
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return closer, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		closer = f
	}

	if opts.Journal && isSystemdService() {
		h, err := slogjournal.NewHandler(&slogjournal.Options{
			Level: level,
			ReplaceGroup: func(key string) string {
				return toJournalKey(key)
			},
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err != nil {
			Warn("systemd journal unavailable: %v", err)
		} else {
			handlers = append(handlers, h)
		}
	}

	mu.Lock()
	if opts.Format != "" {
		format = strings.ToLower(opts.Format)
	}
	extra = handlers
	base = newLogger()
	mu.Unlock()

	return closer, nil
}

// ParseLevel maps a level name onto slog.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// SetVerbose enables or disables verbose logging.
// Verbose mode logs everything from debug upwards.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	if v {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelWarn)
	}
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetLevel sets the minimum level by name.
func SetLevel(name string) error {
	l, err := ParseLevel(name)
	if err != nil {
		return err
	}
	level.Set(l)
	return nil
}

// SetOutput sets the writer for the stderr sink.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = newLogger()
}

// Slog returns the underlying structured logger.
func Slog() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Debug logs a debug message.
func Debug(format string, args ...any) {
	logf(slog.LevelDebug, format, args...)
}

// Info logs an informational message.
func Info(format string, args ...any) {
	logf(slog.LevelInfo, format, args...)
}

// Warn logs a warning.
func Warn(format string, args ...any) {
	logf(slog.LevelWarn, format, args...)
}

// Error logs an error.
func Error(format string, args ...any) {
	logf(slog.LevelError, format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

func logf(l slog.Level, format string, args ...any) {
	mu.RLock()
	lg := base
	mu.RUnlock()

	ctx := context.Background()
	if !lg.Enabled(ctx, l) {
		return
	}
	lg.Log(ctx, l, fmt.Sprintf(format, args...))
}

// newLogger must be called with mu held.
func newLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var terminal slog.Handler
	if format == "json" {
		terminal = slog.NewJSONHandler(output, opts)
	} else {
		terminal = slog.NewTextHandler(output, opts)
	}
	if len(extra) == 0 {
		return slog.New(terminal)
	}
	handlers := append([]slog.Handler{terminal}, extra...)
	return slog.New(slogmulti.Fanout(handlers...))
}

func isSystemdService() bool {
	if os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	parts := strings.Split(strings.TrimSpace(string(content)), ":")
	if len(parts) < 3 {
		return false
	}
	return strings.HasSuffix(path.Dir(parts[2]), ".service") || strings.HasSuffix(parts[2], ".service")
}

func toJournalKey(str string) string {
	str = strings.ToUpper(str)
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, str)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Since formats the elapsed time since start for log messages.
func Since(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}
