package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/llmsync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
)

// Store is a SQLite database holding fingerprints and run history.
type Store struct {
	db   *sql.DB
	path string
}

// IsDatabasePath reports whether a cache_file names a SQLite database.
func IsDatabasePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// NewStore opens or creates the database at dbPath and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: database path is empty", domain.ErrInvalidInput)
	}

	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// WAL mode lets the status command read while a run writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: running migrations: %v", domain.ErrCache, err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// FingerprintStore returns a FingerprintStore backed by this store.
func (s *Store) FingerprintStore() driven.FingerprintStore {
	return &fingerprintStore{store: s}
}

// RunHistoryStore returns a RunHistoryStore backed by this store.
func (s *Store) RunHistoryStore() driven.RunHistoryStore {
	return &runHistoryStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Fingerprint Store ====================

// fingerprintStore implements driven.FingerprintStore.
type fingerprintStore struct {
	store *Store
}

var _ driven.FingerprintStore = (*fingerprintStore)(nil)

// Get retrieves the record for a source.
// Returns nil and no error if the source has no record.
func (s *fingerprintStore) Get(ctx context.Context, sourceID string) (*domain.FingerprintRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT source_id, content_hash, item_count, generated_at, ttl_seconds, extractor_used, generator_version
		FROM fingerprints WHERE source_id = ?
	`, sourceID)

	record, err := scanFingerprint(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Save creates or replaces the record for record.SourceID.
func (s *fingerprintStore) Save(ctx context.Context, record domain.FingerprintRecord) error {
	if record.SourceID == "" {
		return fmt.Errorf("%w: fingerprint record without source id", domain.ErrInvalidInput)
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO fingerprints (source_id, content_hash, item_count, generated_at, ttl_seconds, extractor_used, generator_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			item_count = excluded.item_count,
			generated_at = excluded.generated_at,
			ttl_seconds = excluded.ttl_seconds,
			extractor_used = excluded.extractor_used,
			generator_version = excluded.generator_version
	`, record.SourceID, record.Hash, record.ItemCount,
		formatTime(record.GeneratedAt), int64(record.TTL.Seconds()),
		nullString(record.ExtractorUsed), nullString(record.GeneratorVersion))
	if err != nil {
		return fmt.Errorf("%w: saving fingerprint: %v", domain.ErrCache, err)
	}
	return nil
}

// Delete removes the record for a source.
func (s *fingerprintStore) Delete(ctx context.Context, sourceID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM fingerprints WHERE source_id = ?", sourceID)
	if err != nil {
		return fmt.Errorf("deleting fingerprint: %w", err)
	}
	return nil
}

// List returns every stored record ordered by source ID.
func (s *fingerprintStore) List(ctx context.Context) ([]domain.FingerprintRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT source_id, content_hash, item_count, generated_at, ttl_seconds, extractor_used, generator_version
		FROM fingerprints ORDER BY source_id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying fingerprints: %v", domain.ErrCache, err)
	}
	defer rows.Close()

	var records []domain.FingerprintRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		record, err := scanFingerprint(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fingerprints: %w", err)
	}
	return records, nil
}

// ==================== Helper Functions ====================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFingerprint(row scanner) (*domain.FingerprintRecord, error) {
	var record domain.FingerprintRecord
	var generatedAt string
	var ttlSeconds int64
	var extractor, version sql.NullString

	if err := row.Scan(&record.SourceID, &record.Hash, &record.ItemCount,
		&generatedAt, &ttlSeconds, &extractor, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning fingerprint: %v", domain.ErrCache, err)
	}

	t, err := time.Parse(time.RFC3339Nano, generatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: fingerprint for %s has a bad timestamp %q", domain.ErrCache, record.SourceID, generatedAt)
	}
	record.GeneratedAt = t
	record.TTL = time.Duration(ttlSeconds) * time.Second
	record.ExtractorUsed = extractor.String
	record.GeneratorVersion = version.String
	return &record, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime formats a time as fixed-width UTC RFC3339.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseNullableTime parses a nullable RFC3339 string to time.Time.
// Returns zero time if the string is empty or invalid.
func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
