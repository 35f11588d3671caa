// Package cli provides the llmsync command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/llmsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/llmsync/internal/app"
	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/logger"
)

var version = "dev"

var (
	configPath string
	verbose    bool
	logLevel   string
)

// Dependencies replaced by tests.
var (
	loadConfig = file.Load
	openApp    = app.New
	appOptions app.Options
)

var rootCmd = &cobra.Command{
	Use:   "llmsync",
	Short: "Keep a site's llms.txt in sync with its content",
	Long: `llmsync generates an llms.txt manifest from a site's sitemap, REST API
or content directory, and keeps it current through scheduled runs, a
webhook endpoint or a filesystem watcher.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if logLevel != "" {
			return logger.SetLevel(logLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default llmsync.toml, then llms_config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
}

// SetVersion sets the version reported by the CLI and stamped on manifests.
func SetVersion(v string) {
	version = v
}

// SetOptions sets extra application options, such as a delegated provider
// for embedded use.
func SetOptions(opts app.Options) {
	appOptions = opts
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// runtime is a loaded configuration with its logging installed.
type runtime struct {
	cfg    *domain.Config
	closer io.Closer
}

func (r *runtime) Close() error {
	return r.closer.Close()
}

// loadRuntime loads the configuration and configures logging from it.
// Command-line flags win over the file.
func loadRuntime() (*runtime, error) {
	path := file.ResolvePath(configPath)
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded configuration from %s", path)

	level := cfg.Logging.Level
	switch {
	case verbose:
		level = "debug"
	case logLevel != "":
		level = logLevel
	}
	closer, err := logger.Configure(logger.Options{
		Level:   level,
		Format:  cfg.Logging.Format,
		File:    cfg.Logging.File,
		Journal: cfg.Logging.Journal,
	})
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, closer: closer}, nil
}

// openRuntime loads the configuration and builds the application.
func openRuntime(opts app.Options) (*runtime, *app.App, error) {
	rt, err := loadRuntime()
	if err != nil {
		return nil, nil, err
	}
	a, err := rt.open(opts)
	if err != nil {
		_ = rt.Close()
		return nil, nil, err
	}
	return rt, a, nil
}

// open builds the application from the loaded configuration.
func (r *runtime) open(opts app.Options) (*app.App, error) {
	opts.Version = version
	if opts.Provider == nil {
		opts.Provider = appOptions.Provider
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = appOptions.HTTPClient
	}
	return openApp(r.cfg, opts)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// errRunFailed is returned so the process exits non-zero after a failed run
// whose cause has already been printed.
type errRunFailed struct {
	summary string
}

func (e errRunFailed) Error() string {
	return fmt.Sprintf("run %s", e.summary)
}
