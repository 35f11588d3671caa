package domain

import (
	"context"
	"errors"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown extractor type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrRunInProgress indicates a regeneration is already running for the source.
	ErrRunInProgress = errors.New("run in progress")

	// Run failure taxonomy. Every failed run wraps exactly one of these.

	// ErrExtraction indicates the source was unreachable, returned malformed
	// data, or yielded no recoverable items.
	ErrExtraction = errors.New("extraction failed")

	// ErrCache indicates the fingerprint cache is corrupt or unreadable.
	// Callers recover by treating the source as stale.
	ErrCache = errors.New("fingerprint cache unavailable")

	// ErrWrite indicates the manifest could not be written.
	ErrWrite = errors.New("write failed")

	// ErrAuth indicates a push request failed secret or address checks.
	ErrAuth = errors.New("authentication failed")

	// ErrTimeout indicates a run exceeded its time budget.
	ErrTimeout = errors.New("run timed out")
)

// ErrorKind names a failure class in run reports.
type ErrorKind string

// Failure kinds reported on a RunResult.
const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindExtraction ErrorKind = "extraction"
	ErrorKindCache      ErrorKind = "cache"
	ErrorKindWrite      ErrorKind = "write"
	ErrorKindAuth       ErrorKind = "auth"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindUnknown    ErrorKind = "unknown"
)

// KindOf maps an error onto the failure taxonomy.
// A deadline exceeded anywhere in the chain is reported as a timeout.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.Is(err, ErrExtraction):
		return ErrorKindExtraction
	case errors.Is(err, ErrWrite):
		return ErrorKindWrite
	case errors.Is(err, ErrCache):
		return ErrorKindCache
	case errors.Is(err, ErrAuth):
		return ErrorKindAuth
	default:
		return ErrorKindUnknown
	}
}
