package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driving"
)

type generatorFixture struct {
	cfg       *domain.Config
	extractor *mockExtractor
	store     *mockFingerprintStore
	writer    *mockSiteWriter
	history   *mockRunHistory
	gen       *Generator
	clock     time.Time
}

func newGeneratorFixture(t *testing.T) *generatorFixture {
	t.Helper()
	dir := t.TempDir()

	cfg := domain.DefaultConfig()
	cfg.SiteURL = "https://example.com"
	cfg.SiteName = "Example"
	cfg.MinWordCount = 0
	cfg.OutputPath = filepath.Join(dir, "llms.txt")
	cfg.Sidecars.SitemapPath = filepath.Join(dir, "sitemap.xml")
	cfg.Sidecars.RobotsPath = filepath.Join(dir, "robots.txt")

	f := &generatorFixture{
		cfg:       &cfg,
		extractor: &mockExtractor{items: makeItems(3)},
		store:     newMockFingerprintStore(),
		writer:    newMockSiteWriter(),
		history:   &mockRunHistory{},
		clock:     renderEpoch,
	}
	f.gen = NewGenerator(f.cfg, f.extractor, NewFingerprintCache(f.store, "test"), NewRenderer(), f.writer, f.history, "test")
	f.gen.SetClock(func() time.Time { return f.clock })
	return f
}

func (f *generatorFixture) run(opts driving.RunOptions) *domain.RunResult {
	return f.gen.Run(context.Background(), opts)
}

// ==================== Run Tests ====================

func TestGenerator_Run_WritesAndCommits(t *testing.T) {
	f := newGeneratorFixture(t)

	result := f.run(driving.RunOptions{Reason: domain.ReasonManual})

	require.Equal(t, domain.OutcomeUpdated, result.Outcome, "err: %v", result.Err)
	assert.Equal(t, 3, result.ItemsExtracted)
	assert.Equal(t, 3, result.ItemsRendered)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, domain.ReasonManual, result.Reason)
	assert.Equal(t, 1, f.writer.Writes())
	assert.Len(t, f.writer.sitemaps, 1)
	assert.Contains(t, f.writer.sitemaps[0], "https://example.com/llms.txt")
	assert.Len(t, f.writer.robots, 1)
	assert.Contains(t, f.writer.robots[0], "/llms.txt")

	rec := f.store.records["sitemap"]
	assert.Equal(t, domain.Fingerprint(makeItems(3)), rec.Hash)
	assert.Equal(t, 3, rec.ItemCount)
	assert.Equal(t, renderEpoch, rec.GeneratedAt)

	require.Len(t, f.history.runs, 1)
	assert.Equal(t, domain.OutcomeUpdated, f.history.runs[0].Outcome)
}

func TestGenerator_Run_Idempotent(t *testing.T) {
	f := newGeneratorFixture(t)

	first := f.run(driving.RunOptions{Reason: domain.ReasonManual})
	require.Equal(t, domain.OutcomeUpdated, first.Outcome)
	before, err := os.ReadFile(f.cfg.OutputPath)
	require.NoError(t, err)

	f.clock = f.clock.Add(time.Minute)
	second := f.run(driving.RunOptions{Reason: domain.ReasonScheduled})

	assert.Equal(t, domain.OutcomeSkippedUnchanged, second.Outcome)
	assert.Equal(t, 3, second.ItemsRendered)
	assert.Equal(t, 1, f.writer.Writes())
	after, err := os.ReadFile(f.cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestGenerator_Run_ForceRegenerates(t *testing.T) {
	f := newGeneratorFixture(t)

	f.run(driving.RunOptions{})
	result := f.run(driving.RunOptions{Force: true})

	assert.Equal(t, domain.OutcomeUpdated, result.Outcome)
	assert.Equal(t, 2, f.writer.Writes())
}

func TestGenerator_Run_ChangeDetected(t *testing.T) {
	f := newGeneratorFixture(t)
	f.run(driving.RunOptions{})

	items := makeItems(3)
	items[0].WordCount++
	f.extractor.SetItems(items)

	result := f.run(driving.RunOptions{})
	assert.Equal(t, domain.OutcomeUpdated, result.Outcome)
	assert.Equal(t, 2, f.writer.Writes())
}

func TestGenerator_Run_TTLExpiry(t *testing.T) {
	f := newGeneratorFixture(t)
	f.run(driving.RunOptions{})

	f.clock = f.clock.Add(f.cfg.CacheTTL() + time.Second)
	result := f.run(driving.RunOptions{})
	assert.Equal(t, domain.OutcomeUpdated, result.Outcome)
}

func TestGenerator_Run_MissingManifestIsStale(t *testing.T) {
	f := newGeneratorFixture(t)
	f.run(driving.RunOptions{})

	require.NoError(t, os.Remove(f.cfg.OutputPath))
	result := f.run(driving.RunOptions{})
	assert.Equal(t, domain.OutcomeUpdated, result.Outcome)
	assert.FileExists(t, f.cfg.OutputPath)
}

func TestGenerator_Run_ExtractionFailureTouchesNothing(t *testing.T) {
	f := newGeneratorFixture(t)
	f.extractor.err = errors.New("connection refused")

	result := f.run(driving.RunOptions{})

	assert.Equal(t, domain.OutcomeFailed, result.Outcome)
	assert.Equal(t, domain.ErrorKindExtraction, result.ErrorKind)
	assert.Equal(t, "failed: extraction", result.Summary())
	assert.Zero(t, f.writer.Writes())
	assert.Empty(t, f.writer.sitemaps)
	assert.Empty(t, f.store.records)
	assert.NoFileExists(t, f.cfg.OutputPath)
}

func TestGenerator_Run_FailedRunKeepsBaseline(t *testing.T) {
	f := newGeneratorFixture(t)
	f.run(driving.RunOptions{})
	baseline := f.store.records["sitemap"]

	f.extractor.err = fmt.Errorf("sitemap: %w", domain.ErrExtraction)
	f.clock = f.clock.Add(2 * time.Hour)
	result := f.run(driving.RunOptions{})

	assert.Equal(t, domain.OutcomeFailed, result.Outcome)
	assert.Equal(t, baseline, f.store.records["sitemap"])
}

func TestGenerator_Run_UnknownWordCountsKeptByDefault(t *testing.T) {
	f := newGeneratorFixture(t)
	f.cfg.MinWordCount = domain.DefaultConfig().MinWordCount
	items := makeItems(3)
	for i := range items {
		items[i].WordCount = 0
	}
	f.extractor.SetItems(items)

	result := f.run(driving.RunOptions{})

	require.Equal(t, domain.OutcomeUpdated, result.Outcome, "err: %v", result.Err)
	assert.Equal(t, 3, result.ItemsRendered)
}

func TestGenerator_Run_AllFilteredKeepsPreviousManifest(t *testing.T) {
	f := newGeneratorFixture(t)
	require.Equal(t, domain.OutcomeUpdated, f.run(driving.RunOptions{}).Outcome)
	baseline := f.store.records["sitemap"]
	before, err := os.ReadFile(f.cfg.OutputPath)
	require.NoError(t, err)

	f.cfg.MinWordCount = 1000
	result := f.run(driving.RunOptions{Force: true})

	assert.Equal(t, domain.OutcomeFailed, result.Outcome)
	assert.Equal(t, domain.ErrorKindExtraction, result.ErrorKind)
	assert.ErrorContains(t, result.Err, "filtered out")
	assert.Equal(t, 1, f.writer.Writes())
	assert.Equal(t, baseline, f.store.records["sitemap"])
	after, err := os.ReadFile(f.cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestGenerator_Run_WriteFailure(t *testing.T) {
	f := newGeneratorFixture(t)
	f.writer.writeErr = fmt.Errorf("%w: disk full", domain.ErrWrite)

	result := f.run(driving.RunOptions{})

	assert.Equal(t, domain.ErrorKindWrite, result.ErrorKind)
	assert.Empty(t, f.store.records, "no commit after a failed write")
	assert.Empty(t, f.writer.sitemaps)
}

func TestGenerator_Run_SidecarFailureNotFatal(t *testing.T) {
	f := newGeneratorFixture(t)
	f.writer.sideErr = errors.New("permission denied")

	result := f.run(driving.RunOptions{})

	assert.Equal(t, domain.OutcomeUpdated, result.Outcome)
	assert.Len(t, result.SidecarErrors, 2)
	assert.Contains(t, f.store.records, "sitemap")
}

func TestGenerator_Run_ExternalSitemapNeverEdited(t *testing.T) {
	f := newGeneratorFixture(t)
	f.cfg.Sidecars.ExternalSitemap = true

	f.run(driving.RunOptions{})
	assert.Empty(t, f.writer.sitemaps)
	assert.Len(t, f.writer.robots, 1)
}

func TestGenerator_Run_SidecarsDisabled(t *testing.T) {
	f := newGeneratorFixture(t)
	f.cfg.Sidecars.AutoUpdateSitemap = false
	f.cfg.Sidecars.AutoUpdateRobots = false

	f.run(driving.RunOptions{})
	assert.Empty(t, f.writer.sitemaps)
	assert.Empty(t, f.writer.robots)
}

func TestGenerator_Run_CorruptCacheTreatedAsMiss(t *testing.T) {
	f := newGeneratorFixture(t)
	f.run(driving.RunOptions{})
	f.store.getErr = fmt.Errorf("%w: invalid character", domain.ErrCache)

	result := f.run(driving.RunOptions{})
	assert.Equal(t, domain.OutcomeUpdated, result.Outcome)
	assert.Equal(t, 2, f.writer.Writes())
}

func TestGenerator_Run_Timeout(t *testing.T) {
	f := newGeneratorFixture(t)
	f.extractor.block = make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	result := f.gen.Run(ctx, driving.RunOptions{})

	assert.Equal(t, domain.ErrorKindTimeout, result.ErrorKind)
	assert.True(t, errors.Is(result.Err, domain.ErrTimeout))
	assert.Zero(t, f.writer.Writes())
}

// ==================== DryRun Tests ====================

func TestGenerator_DryRun_WritesNothing(t *testing.T) {
	f := newGeneratorFixture(t)

	report, err := f.gen.DryRun(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.ItemsExtracted)
	assert.Equal(t, 3, report.ItemsRendered)
	assert.True(t, report.Stale)
	assert.Equal(t, domain.Fingerprint(makeItems(3)), report.Fingerprint)
	assert.Contains(t, report.Manifest, "URL: https://example.com/post-0000")
	assert.Zero(t, f.writer.Writes())
	assert.Empty(t, f.store.records)
	assert.Empty(t, f.history.runs)
}

func TestGenerator_DryRun_ExtractionError(t *testing.T) {
	f := newGeneratorFixture(t)
	f.extractor.err = errors.New("boom")

	_, err := f.gen.DryRun(context.Background())
	assert.True(t, errors.Is(err, domain.ErrExtraction))
}
