package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
)

// Ensure RunHistoryStore implements the interface.
var _ driven.RunHistoryStore = (*RunHistoryStore)(nil)

// RunHistoryStore is an in-memory implementation of driven.RunHistoryStore.
type RunHistoryStore struct {
	mu   sync.RWMutex
	runs map[string][]domain.RunRecord
}

// NewRunHistoryStore creates a new in-memory run history store.
func NewRunHistoryStore() *RunHistoryStore {
	return &RunHistoryStore{
		runs: make(map[string][]domain.RunRecord),
	}
}

// RecordRun logs a finished run.
func (s *RunHistoryStore) RecordRun(_ context.Context, record *domain.RunRecord) error {
	if record == nil {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[record.SourceID] = append(s.runs[record.SourceID], *record)
	return nil
}

// GetRunHistory returns up to limit runs, most recent first.
// A non-positive limit returns every run.
func (s *RunHistoryStore) GetRunHistory(_ context.Context, sourceID string, limit int) ([]domain.RunRecord, error) {
	s.mu.RLock()
	runs := append([]domain.RunRecord(nil), s.runs[sourceID]...)
	s.mu.RUnlock()

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// PruneHistory keeps the most recent keep runs per source.
func (s *RunHistoryStore) PruneHistory(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for source, runs := range s.runs {
		sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
		if len(runs) > keep {
			runs = runs[:keep]
		}
		s.runs[source] = runs
	}
	return nil
}
