package driven

import (
	"context"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

// RunHistoryStore keeps an audit trail of regeneration runs.
type RunHistoryStore interface {
	// RecordRun logs a finished run.
	RecordRun(ctx context.Context, record *domain.RunRecord) error

	// GetRunHistory returns recent runs for a source.
	// Results are ordered by start time descending (most recent first).
	GetRunHistory(ctx context.Context, sourceID string, limit int) ([]domain.RunRecord, error)

	// PruneHistory removes old runs beyond the retention limit.
	// Keeps the most recent 'keep' runs per source.
	PruneHistory(ctx context.Context, keep int) error
}
