package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
)

// FingerprintCache decides whether a source changed since its last
// successful generation. It owns no state beyond the store it wraps.
type FingerprintCache struct {
	store   driven.FingerprintStore
	version string
}

// NewFingerprintCache wraps store. version is recorded on committed records.
func NewFingerprintCache(store driven.FingerprintStore, version string) *FingerprintCache {
	return &FingerprintCache{store: store, version: version}
}

// Load returns the record for sourceID, or nil when there is none.
// A corrupt or unreadable store yields (nil, error wrapping ErrCache);
// callers treat that as a miss.
func (c *FingerprintCache) Load(ctx context.Context, sourceID string) (*domain.FingerprintRecord, error) {
	record, err := c.store.Get(ctx, sourceID)
	if err != nil {
		if errors.Is(err, domain.ErrCache) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrCache, err)
	}
	return record, nil
}

// IsStale reports whether items must be regenerated given record.
// It is true when record is nil, when record is older than ttl at now
// (ttl <= 0 disables age expiry), or when the item hash differs.
func (c *FingerprintCache) IsStale(record *domain.FingerprintRecord, items []domain.ContentItem, ttl time.Duration, now time.Time) bool {
	if record == nil {
		return true
	}
	if record.Expired(now, ttl) {
		return true
	}
	return record.Hash != domain.Fingerprint(items)
}

// Commit records items as the new baseline for sourceID.
// Call only after the manifest write succeeded.
func (c *FingerprintCache) Commit(ctx context.Context, sourceID, extractor string, items []domain.ContentItem, ttl time.Duration, ts time.Time) (*domain.FingerprintRecord, error) {
	record := domain.FingerprintRecord{
		SourceID:         sourceID,
		Hash:             domain.Fingerprint(items),
		ItemCount:        len(items),
		GeneratedAt:      ts,
		TTL:              ttl,
		ExtractorUsed:    extractor,
		GeneratorVersion: c.version,
	}
	if err := c.store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: save fingerprint: %w", domain.ErrCache, err)
	}
	return &record, nil
}

// Invalidate forgets the baseline for sourceID so the next run regenerates.
func (c *FingerprintCache) Invalidate(ctx context.Context, sourceID string) error {
	if err := c.store.Delete(ctx, sourceID); err != nil {
		return fmt.Errorf("%w: delete fingerprint: %w", domain.ErrCache, err)
	}
	return nil
}
