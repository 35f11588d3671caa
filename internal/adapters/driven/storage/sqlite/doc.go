// Package sqlite stores fingerprint records and run history in a single
// SQLite database.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. It is selected when cache_file ends in .db or .sqlite and
// implements two ports through one connection:
//
//   - FingerprintStore: the change-detection baseline per source
//   - RunHistoryStore: an audit trail of regeneration runs
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql
// files.
//
// # Thread Safety
//
// All operations are safe for concurrent use. The store relies on the
// database-level locking SQLite provides in WAL mode.
package sqlite
