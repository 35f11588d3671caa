package services

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
	"github.com/custodia-labs/llmsync/internal/core/ports/driving"
)

// --- Mock implementations for service testing ---

// mockExtractor implements driven.Extractor for testing.
type mockExtractor struct {
	mu    sync.Mutex
	items []domain.ContentItem
	err   error
	calls int
	// block, when set, is received from before returning.
	block chan struct{}
}

var _ driven.Extractor = (*mockExtractor)(nil)

func (m *mockExtractor) Type() string     { return "mock" }
func (m *mockExtractor) SourceID() string { return "mock" }

func (m *mockExtractor) Validate(_ context.Context) error { return nil }

func (m *mockExtractor) Extract(ctx context.Context) ([]domain.ContentItem, error) {
	m.mu.Lock()
	m.calls++
	block := m.block
	items, err := m.items, m.err
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	kept, _ := domain.NormaliseItems(items)
	return kept, nil
}

func (m *mockExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockExtractor) SetItems(items []domain.ContentItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
}

// mockFingerprintStore implements driven.FingerprintStore for testing.
type mockFingerprintStore struct {
	mu      sync.RWMutex
	records map[string]domain.FingerprintRecord
	getErr  error
	saveErr error
}

var _ driven.FingerprintStore = (*mockFingerprintStore)(nil)

func newMockFingerprintStore() *mockFingerprintStore {
	return &mockFingerprintStore{records: make(map[string]domain.FingerprintRecord)}
}

func (m *mockFingerprintStore) Get(_ context.Context, sourceID string) (*domain.FingerprintRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.records[sourceID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *mockFingerprintStore) Save(_ context.Context, record domain.FingerprintRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[record.SourceID] = record
	return nil
}

func (m *mockFingerprintStore) Delete(_ context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, sourceID)
	return nil
}

func (m *mockFingerprintStore) List(_ context.Context) ([]domain.FingerprintRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.FingerprintRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

// mockSiteWriter implements driven.SiteWriter for testing.
type mockSiteWriter struct {
	mu        sync.Mutex
	manifests map[string]string
	writes    int
	writeErr  error
	sitemaps  []string
	robots    []string
	sideErr   error
}

var _ driven.SiteWriter = (*mockSiteWriter)(nil)

func newMockSiteWriter() *mockSiteWriter {
	return &mockSiteWriter{manifests: make(map[string]string)}
}

func (m *mockSiteWriter) WriteManifest(path, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.manifests[path] = text
	return os.WriteFile(path, []byte(text), 0o644)
}

func (m *mockSiteWriter) EnsureSitemapEntry(sitemapPath, manifestURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sideErr != nil {
		return false, m.sideErr
	}
	m.sitemaps = append(m.sitemaps, sitemapPath+" "+manifestURL)
	return true, nil
}

func (m *mockSiteWriter) EnsureRobotsRule(robotsPath, manifestPath string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sideErr != nil {
		return false, m.sideErr
	}
	m.robots = append(m.robots, robotsPath+" "+manifestPath)
	return true, nil
}

func (m *mockSiteWriter) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// mockRunHistory implements driven.RunHistoryStore for testing.
type mockRunHistory struct {
	mu   sync.Mutex
	runs []domain.RunRecord
}

var _ driven.RunHistoryStore = (*mockRunHistory)(nil)

func (m *mockRunHistory) RecordRun(_ context.Context, record *domain.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *record)
	return nil
}

func (m *mockRunHistory) GetRunHistory(_ context.Context, sourceID string, limit int) ([]domain.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RunRecord
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.runs[i].SourceID == sourceID {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}

func (m *mockRunHistory) PruneHistory(_ context.Context, _ int) error { return nil }

// mockGenerator implements driving.Generator for coordinator testing.
type mockGenerator struct {
	id string

	mu      sync.Mutex
	runs    int
	reasons []domain.TriggerReason
	forced  []bool
	// started receives once per run, after the run is counted.
	started chan struct{}
	// release must be received from before a run returns, when set.
	release chan struct{}
	delay   time.Duration
	panicOn int
}

var _ driving.Generator = (*mockGenerator)(nil)

func (m *mockGenerator) SourceID() string { return m.id }

func (m *mockGenerator) Run(ctx context.Context, opts driving.RunOptions) *domain.RunResult {
	m.mu.Lock()
	m.runs++
	n := m.runs
	m.reasons = append(m.reasons, opts.Reason)
	m.forced = append(m.forced, opts.Force)
	m.mu.Unlock()

	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.panicOn == n {
		panic("boom")
	}

	result := &domain.RunResult{SourceID: m.id, Reason: opts.Reason, StartedAt: time.Now()}
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			result.Fail(ctx.Err())
			return result
		}
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			result.Fail(ctx.Err())
			return result
		}
	}
	result.Outcome = domain.OutcomeUpdated
	result.EndedAt = time.Now()
	return result
}

func (m *mockGenerator) DryRun(_ context.Context) (*driving.DryRunReport, error) {
	return &driving.DryRunReport{SourceID: m.id}, nil
}

func (m *mockGenerator) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

func (m *mockGenerator) Forced() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.forced...)
}

// mockCoordinator implements driving.Coordinator for scheduler testing.
type mockCoordinator struct {
	mu       sync.Mutex
	triggers []domain.TriggerReason
	fired    chan struct{}
}

var _ driving.Coordinator = (*mockCoordinator)(nil)

func (m *mockCoordinator) Trigger(_ context.Context, sourceID string, reason domain.TriggerReason) (domain.TriggerAck, *domain.RunResult) {
	m.mu.Lock()
	m.triggers = append(m.triggers, reason)
	m.mu.Unlock()
	if m.fired != nil {
		m.fired <- struct{}{}
	}
	return domain.AckRan, &domain.RunResult{SourceID: sourceID, Reason: reason, Outcome: domain.OutcomeUpdated}
}

func (m *mockCoordinator) Submit(sourceID string, reason domain.TriggerReason) domain.TriggerAck {
	ack, _ := m.Trigger(context.Background(), sourceID, reason)
	return ack
}

func (m *mockCoordinator) Status(sourceID string) driving.CoordinatorStatus {
	return driving.CoordinatorStatus{SourceID: sourceID}
}

func (m *mockCoordinator) Wait() {}

func (m *mockCoordinator) Triggers() []domain.TriggerReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TriggerReason(nil), m.triggers...)
}
