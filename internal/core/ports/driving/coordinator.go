package driving

import (
	"context"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

// Coordinator is the single entry point for every trigger source.
// It guarantees at most one run in flight per source and coalesces
// triggers that arrive during a run into one follow-up pass.
type Coordinator interface {
	// Trigger runs the pipeline in the caller's goroutine when the source
	// is idle, returning AckRan and the final result. When a run is
	// already in flight it marks the source pending and returns
	// AckPending with a nil result without blocking.
	Trigger(ctx context.Context, sourceID string, reason domain.TriggerReason) (domain.TriggerAck, *domain.RunResult)

	// Submit makes the same decision as Trigger but never blocks; an
	// accepted run executes on its own goroutine.
	Submit(sourceID string, reason domain.TriggerReason) domain.TriggerAck

	// Status returns the current state of a source.
	Status(sourceID string) CoordinatorStatus

	// Wait blocks until no run is in flight.
	Wait()
}

// CoordinatorStatus is a point-in-time view of one source.
type CoordinatorStatus struct {
	// SourceID identifies the source.
	SourceID string

	// Running indicates a pass is in flight.
	Running bool

	// Pending indicates a follow-up pass has been requested.
	Pending bool

	// Runs counts completed passes since start.
	Runs int

	// LastResult is the most recent completed pass, if any.
	LastResult *domain.RunResult
}
