package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
)

// runHistoryStore implements driven.RunHistoryStore.
type runHistoryStore struct {
	store *Store
}

var _ driven.RunHistoryStore = (*runHistoryStore)(nil)

// RecordRun logs a finished run.
func (s *runHistoryStore) RecordRun(ctx context.Context, record *domain.RunRecord) error {
	if record == nil {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO run_history (id, source_id, reason, outcome, error_kind, error,
			items_extracted, items_rendered, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, record.ID, record.SourceID, string(record.Reason), string(record.Outcome),
		nullString(string(record.ErrorKind)), nullString(record.Error),
		record.ItemsExtracted, record.ItemsRendered,
		formatTime(record.StartedAt), formatTime(record.EndedAt))
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// GetRunHistory returns recent runs for a source.
// Results are ordered by start time descending (most recent first).
func (s *runHistoryStore) GetRunHistory(ctx context.Context, sourceID string, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, source_id, reason, outcome, error_kind, error,
			items_extracted, items_rendered, started_at, ended_at
		FROM run_history
		WHERE source_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying run history: %w", err)
	}
	defer rows.Close()

	var records []domain.RunRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		record, err := scanRunRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run history: %w", err)
	}
	return records, nil
}

// PruneHistory removes old runs beyond the retention limit.
// Keeps the most recent 'keep' runs per source.
func (s *runHistoryStore) PruneHistory(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM run_history
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY source_id ORDER BY started_at DESC) as rn
				FROM run_history
			) WHERE rn <= ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning run history: %w", err)
	}
	return nil
}

// scanRunRecord scans a run record from *sql.Rows.
func scanRunRecord(rows *sql.Rows) (*domain.RunRecord, error) {
	var record domain.RunRecord
	var reason, outcome string
	var errorKind, errMsg, startedAt, endedAt sql.NullString

	if err := rows.Scan(&record.ID, &record.SourceID, &reason, &outcome, &errorKind, &errMsg,
		&record.ItemsExtracted, &record.ItemsRendered, &startedAt, &endedAt); err != nil {
		return nil, fmt.Errorf("scanning run record: %w", err)
	}

	record.Reason = domain.TriggerReason(reason)
	record.Outcome = domain.Outcome(outcome)
	record.ErrorKind = domain.ErrorKind(errorKind.String)
	record.Error = errMsg.String
	record.StartedAt = parseNullableTime(startedAt)
	record.EndedAt = parseNullableTime(endedAt)
	return &record, nil
}
