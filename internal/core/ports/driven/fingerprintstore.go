package driven

import (
	"context"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

// FingerprintStore persists fingerprint records keyed by source ID.
type FingerprintStore interface {
	// Get retrieves the record for a source.
	// Returns nil and no error if the source has no record.
	// Returns an error wrapping domain.ErrCache when the store is corrupt.
	Get(ctx context.Context, sourceID string) (*domain.FingerprintRecord, error)

	// Save creates or replaces the record for record.SourceID.
	Save(ctx context.Context, record domain.FingerprintRecord) error

	// Delete removes the record for a source.
	Delete(ctx context.Context, sourceID string) error

	// List returns every stored record.
	List(ctx context.Context) ([]domain.FingerprintRecord, error)
}
