package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
)

// Ensure FingerprintStore implements the interface.
var _ driven.FingerprintStore = (*FingerprintStore)(nil)

// FingerprintStore is an in-memory implementation of driven.FingerprintStore.
type FingerprintStore struct {
	mu      sync.RWMutex
	records map[string]domain.FingerprintRecord
}

// NewFingerprintStore creates a new in-memory fingerprint store.
func NewFingerprintStore() *FingerprintStore {
	return &FingerprintStore{
		records: make(map[string]domain.FingerprintRecord),
	}
}

// Get retrieves the record for a source, or nil when there is none.
func (s *FingerprintStore) Get(_ context.Context, sourceID string) (*domain.FingerprintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[sourceID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// Save creates or replaces the record for record.SourceID.
func (s *FingerprintStore) Save(_ context.Context, record domain.FingerprintRecord) error {
	if record.SourceID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.SourceID] = record
	return nil
}

// Delete removes the record for a source.
func (s *FingerprintStore) Delete(_ context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sourceID)
	return nil
}

// List returns every record ordered by source ID.
func (s *FingerprintStore) List(_ context.Context) ([]domain.FingerprintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.FingerprintRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}
