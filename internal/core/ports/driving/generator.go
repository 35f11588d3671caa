package driving

import (
	"context"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

// RunOptions modify a single pipeline pass.
type RunOptions struct {
	// Reason is recorded on the result.
	Reason domain.TriggerReason

	// Force regenerates even when the fingerprint is unchanged.
	Force bool
}

// Generator runs the extraction-to-write pipeline for one source.
type Generator interface {
	// SourceID returns the source this generator serves.
	SourceID() string

	// Run executes one pass. It never returns nil; failures are reported
	// on the result with Outcome failed.
	Run(ctx context.Context, opts RunOptions) *domain.RunResult

	// DryRun extracts and renders without touching the cache or any file.
	DryRun(ctx context.Context) (*DryRunReport, error)
}

// DryRunReport is the outcome of a dry run.
type DryRunReport struct {
	// SourceID identifies the source.
	SourceID string

	// ItemsExtracted counts items after normalisation.
	ItemsExtracted int

	// ItemsRendered counts manifest entries.
	ItemsRendered int

	// Stale reports whether a real run would regenerate.
	Stale bool

	// Fingerprint is the hash a real run would commit.
	Fingerprint string

	// Manifest is the rendered text.
	Manifest string
}
