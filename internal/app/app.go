// Package app wires the adapters and services for one configured source.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/llmsync/internal/adapters/driven/sitefiles"
	"github.com/custodia-labs/llmsync/internal/adapters/driven/storage/jsonfile"
	"github.com/custodia-labs/llmsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/llmsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/llmsync/internal/adapters/driving/watcher"
	"github.com/custodia-labs/llmsync/internal/adapters/driving/webhook"
	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
	"github.com/custodia-labs/llmsync/internal/core/services"
	"github.com/custodia-labs/llmsync/internal/extractors"
	"github.com/custodia-labs/llmsync/internal/logger"
)

// Options customises New.
type Options struct {
	// Version is stamped into manifests and fingerprint records.
	Version string

	// Ephemeral keeps the fingerprint cache and run history in memory.
	Ephemeral bool

	// Provider backs the delegated extractor when set.
	Provider driven.ItemProvider

	// HTTPClient overrides the transport of HTTP extractors.
	HTTPClient *http.Client

	// SiteWriter replaces the file writer. Used by tests.
	SiteWriter driven.SiteWriter
}

// App holds the running pieces for one source.
type App struct {
	Config      *domain.Config
	Extractor   driven.Extractor
	Cache       *services.FingerprintCache
	Fingerprint driven.FingerprintStore
	History     driven.RunHistoryStore
	Generator   *services.Generator
	Coordinator *services.Coordinator

	closers []io.Closer
}

// New validates cfg and builds the pipeline. Close releases the stores.
func New(cfg *domain.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg}
	if err := a.openStores(opts.Ephemeral); err != nil {
		return nil, err
	}

	factory := extractors.NewFactory(extractors.Options{
		Provider:   opts.Provider,
		HTTPClient: opts.HTTPClient,
	})
	ext, err := factory.Create(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Extractor = ext

	writer := opts.SiteWriter
	if writer == nil {
		writer = sitefiles.New(sitefiles.OptionsFromConfig(cfg))
	}

	a.Cache = services.NewFingerprintCache(a.Fingerprint, opts.Version)
	a.Generator = services.NewGenerator(cfg, ext, a.Cache, services.NewRenderer(), writer, a.History, opts.Version)
	a.Coordinator = services.NewCoordinator(cfg.RunTimeoutDuration(), a.Generator)

	logger.Debug("Source %s uses the %s extractor", cfg.SourceID(), ext.Type())
	return a, nil
}

// openStores picks the cache backend from the cache_file extension:
// SQLite for .db/.sqlite files, a JSON document otherwise.
func (a *App) openStores(ephemeral bool) error {
	switch {
	case ephemeral:
		a.Fingerprint = memory.NewFingerprintStore()
		a.History = memory.NewRunHistoryStore()
	case sqlite.IsDatabasePath(a.Config.CacheFile):
		store, err := sqlite.NewStore(a.Config.CacheFile)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store)
		a.Fingerprint = store.FingerprintStore()
		a.History = store.RunHistoryStore()
	default:
		a.Fingerprint = jsonfile.NewStore(a.Config.CacheFile)
		// The JSON cache has no history table; runs are kept for the
		// lifetime of the process.
		a.History = memory.NewRunHistoryStore()
	}
	return nil
}

// SourceID returns the configured source.
func (a *App) SourceID() string {
	return a.Config.SourceID()
}

// Scheduler builds the timer trigger.
func (a *App) Scheduler() (*services.Scheduler, error) {
	schedule, err := a.Config.ScheduleSpec()
	if err != nil {
		return nil, err
	}
	return services.NewScheduler(schedule, a.SourceID(), a.Coordinator), nil
}

// Webhook builds the push trigger.
func (a *App) Webhook() (*webhook.Server, error) {
	return webhook.New(a.Config.Webhook, a.SourceID(), a.Coordinator)
}

// Watcher builds the filesystem trigger.
func (a *App) Watcher() *watcher.Watcher {
	return watcher.New(watcher.OptionsFromConfig(a.Config), a.SourceID(), a.Coordinator)
}

// Triggers selects which trigger sources Serve runs.
type Triggers struct {
	Schedule bool
	Webhook  bool
	Watch    bool
}

// EnabledTriggers returns the triggers switched on in the configuration.
func (a *App) EnabledTriggers() Triggers {
	return Triggers{
		Schedule: a.Config.Schedule.Enabled,
		Webhook:  a.Config.Webhook.Enabled,
		Watch:    a.Config.Watch.Enabled,
	}
}

// Serve runs the selected trigger sources until ctx is cancelled or one of
// them fails, then waits for the in-flight run to finish.
func (a *App) Serve(ctx context.Context, t Triggers) error {
	if !t.Schedule && !t.Webhook && !t.Watch {
		return fmt.Errorf("%w: no trigger enabled (set schedule.enabled, webhook.enabled or watch.enabled)", domain.ErrInvalidInput)
	}

	// Construct everything first so a bad setting fails before anything runs.
	var runners []func(context.Context) error
	if t.Schedule {
		s, err := a.Scheduler()
		if err != nil {
			return err
		}
		runners = append(runners, s.Start)
	}
	if t.Webhook {
		s, err := a.Webhook()
		if err != nil {
			return err
		}
		runners = append(runners, s.Start)
	}
	if t.Watch {
		runners = append(runners, a.Watcher().Start)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, run := range runners {
		g.Go(func() error {
			err := run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	err := g.Wait()
	a.Coordinator.Wait()
	return err
}

// Close releases the stores.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
