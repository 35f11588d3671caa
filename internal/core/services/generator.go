package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
	"github.com/custodia-labs/llmsync/internal/core/ports/driving"
	"github.com/custodia-labs/llmsync/internal/logger"
)

// Ensure Generator implements the interface.
var _ driving.Generator = (*Generator)(nil)

// historyKeep is the number of runs retained per source.
const historyKeep = 100

// sitemapCandidates are probed, in order, when no sitemap path is configured.
var sitemapCandidates = []string{"sitemap.xml", "sitemap_index.xml", "public/sitemap.xml", "static/sitemap.xml"}

// Generator runs extract, compare, render, write and commit for one source.
type Generator struct {
	cfg       *domain.Config
	extractor driven.Extractor
	cache     *FingerprintCache
	renderer  *Renderer
	writer    driven.SiteWriter
	history   driven.RunHistoryStore
	version   string
	now       func() time.Time
}

// NewGenerator creates the pipeline for cfg.
// history is optional and may be nil.
func NewGenerator(
	cfg *domain.Config,
	extractor driven.Extractor,
	cache *FingerprintCache,
	renderer *Renderer,
	writer driven.SiteWriter,
	history driven.RunHistoryStore,
	version string,
) *Generator {
	return &Generator{
		cfg:       cfg,
		extractor: extractor,
		cache:     cache,
		renderer:  renderer,
		writer:    writer,
		history:   history,
		version:   version,
		now:       time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

// SourceID returns the source this generator serves.
func (g *Generator) SourceID() string {
	return g.cfg.SourceID()
}

// Run executes one pass of the pipeline.
//
// A failed extraction leaves the cache and every output file untouched.
// Sidecar failures are reported on the result and never fail the run.
func (g *Generator) Run(ctx context.Context, opts driving.RunOptions) *domain.RunResult {
	sourceID := g.SourceID()
	result := &domain.RunResult{
		ID:           uuid.NewString(),
		SourceID:     sourceID,
		Reason:       opts.Reason,
		ManifestPath: g.cfg.OutputPath,
		StartedAt:    g.now(),
	}
	defer g.finish(ctx, result)

	logger.Section("Regeneration")
	logger.Info("Run %s for source %s (%s)", result.ID, sourceID, opts.Reason)

	// 1. Extract
	items, err := g.extractor.Extract(ctx)
	if err != nil {
		result.Fail(classify(ctx, err, domain.ErrExtraction))
		return result
	}
	result.ItemsExtracted = len(items)

	// 2. Compare
	rc := NewRenderConfig(g.cfg, result.StartedAt, g.version)
	selected := g.renderer.Select(items, rc)
	if len(selected) == 0 && len(items) > 0 {
		result.Fail(fmt.Errorf("%w: all %d items were filtered out (min_word_count=%d, include_drafts=%t)",
			domain.ErrExtraction, len(items), g.cfg.MinWordCount, g.cfg.IncludeDrafts))
		return result
	}

	record, err := g.cache.Load(ctx, sourceID)
	if err != nil {
		logger.Warn("Fingerprint cache unreadable, regenerating: %v", err)
		record = nil
	}
	stale := opts.Force ||
		g.cache.IsStale(record, selected, g.cfg.CacheTTL(), result.StartedAt) ||
		!fileExists(g.cfg.OutputPath)
	if !stale {
		result.Outcome = domain.OutcomeSkippedUnchanged
		result.ItemsRendered = record.ItemCount
		logger.Info("Content unchanged, skipping update")
		return result
	}

	// A run that ran out of time during extraction must not write.
	if err := ctx.Err(); err != nil {
		result.Fail(classify(ctx, err, domain.ErrTimeout))
		return result
	}

	// 3. Render and write
	doc := g.document(g.renderer.RenderSelected(selected, rc), len(selected))
	if err := g.writer.WriteManifest(doc.Path, doc.Text); err != nil {
		result.Fail(classify(ctx, err, domain.ErrWrite))
		return result
	}
	result.ItemsRendered = doc.ItemCount

	// 4. Sidecars
	result.SidecarErrors = g.applySidecars(doc)

	// 5. Commit
	if _, err := g.cache.Commit(ctx, sourceID, g.extractor.Type(), selected, g.cfg.CacheTTL(), result.StartedAt); err != nil {
		logger.Warn("Manifest written but fingerprint not saved, next run will regenerate: %v", err)
	}

	result.Outcome = domain.OutcomeUpdated
	return result
}

// DryRun extracts and renders without touching the cache or any file.
func (g *Generator) DryRun(ctx context.Context) (*driving.DryRunReport, error) {
	items, err := g.extractor.Extract(ctx)
	if err != nil {
		return nil, classify(ctx, err, domain.ErrExtraction)
	}

	rc := NewRenderConfig(g.cfg, g.now(), g.version)
	selected := g.renderer.Select(items, rc)

	record, err := g.cache.Load(ctx, g.SourceID())
	if err != nil {
		logger.Warn("Fingerprint cache unreadable: %v", err)
		record = nil
	}

	return &driving.DryRunReport{
		SourceID:       g.SourceID(),
		ItemsExtracted: len(items),
		ItemsRendered:  len(selected),
		Stale:          g.cache.IsStale(record, selected, g.cfg.CacheTTL(), rc.GeneratedAt),
		Fingerprint:    domain.Fingerprint(selected),
		Manifest:       g.renderer.RenderSelected(selected, rc),
	}, nil
}

// document assembles the manifest and its sidecar targets.
func (g *Generator) document(text string, count int) domain.ManifestDocument {
	doc := domain.ManifestDocument{
		Text:      text,
		Path:      g.cfg.OutputPath,
		URL:       g.cfg.ManifestURL(),
		URLPath:   g.cfg.ManifestPath(),
		ItemCount: count,
	}
	doc.SitemapPath = g.sitemapPath()
	if g.cfg.Sidecars.AutoUpdateRobots {
		doc.RobotsPath = g.cfg.Sidecars.RobotsPath
	}
	return doc
}

// sitemapPath resolves which sitemap, if any, to edit.
// An externally owned sitemap is never edited. An explicit path is used
// as is; otherwise the first existing well-known location wins.
func (g *Generator) sitemapPath() string {
	sc := g.cfg.Sidecars
	if !sc.AutoUpdateSitemap || sc.ExternalSitemap {
		return ""
	}
	if sc.SitemapPath != "" {
		return sc.SitemapPath
	}
	for _, candidate := range sitemapCandidates {
		if fileExists(candidate) {
			return candidate
		}
	}
	logger.Debug("No sitemap found, skipping sitemap update")
	return ""
}

func (g *Generator) applySidecars(doc domain.ManifestDocument) []error {
	var errs []error
	if doc.SitemapPath != "" {
		changed, err := g.writer.EnsureSitemapEntry(doc.SitemapPath, doc.URL)
		switch {
		case err != nil:
			logger.Warn("Sitemap update failed: %v", err)
			errs = append(errs, fmt.Errorf("sitemap %s: %w", doc.SitemapPath, err))
		case changed:
			logger.Info("Added %s to %s", doc.URL, doc.SitemapPath)
		}
	}
	if doc.RobotsPath != "" {
		changed, err := g.writer.EnsureRobotsRule(doc.RobotsPath, doc.URLPath)
		switch {
		case err != nil:
			logger.Warn("Robots update failed: %v", err)
			errs = append(errs, fmt.Errorf("robots %s: %w", doc.RobotsPath, err))
		case changed:
			logger.Info("Allowed %s in %s", doc.URLPath, doc.RobotsPath)
		}
	}
	return errs
}

// finish stamps the result, logs it and records it in history.
func (g *Generator) finish(ctx context.Context, result *domain.RunResult) {
	result.EndedAt = g.now()

	if result.Outcome == domain.OutcomeFailed {
		logger.Error("Run %s failed (%s): %v", result.ID, result.ErrorKind, result.Err)
	} else {
		logger.Info("Run %s %s: %d extracted, %d rendered in %s",
			result.ID, result.Outcome, result.ItemsExtracted, result.ItemsRendered, result.Duration())
	}

	if g.history == nil {
		return
	}
	// History is best-effort and must outlive a cancelled run context.
	hctx := context.WithoutCancel(ctx)
	rec := result.Record()
	if err := g.history.RecordRun(hctx, &rec); err != nil {
		logger.Warn("Failed to record run %s: %v", result.ID, err)
	}
	if err := g.history.PruneHistory(hctx, historyKeep); err != nil {
		logger.Warn("Failed to prune run history: %v", err)
	}
}

// classify wraps err onto the failure taxonomy. Errors already carrying a
// kind keep it; a run whose context expired is always a timeout.
func classify(ctx context.Context, err error, kind error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	if domain.KindOf(err) != domain.ErrorKindUnknown {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
