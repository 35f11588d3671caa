package driving

import "context"

// Scheduler fires timer-driven regeneration triggers.
type Scheduler interface {
	// Start begins firing triggers.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the scheduler and waits for an in-flight trigger.
	Stop() error
}
