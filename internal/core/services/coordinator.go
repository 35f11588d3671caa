package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driving"
	"github.com/custodia-labs/llmsync/internal/logger"
)

// Ensure Coordinator implements the interface.
var _ driving.Coordinator = (*Coordinator)(nil)

// sourceState is the per-source state machine:
// Idle -> Running -> (Idle | Running with pending).
type sourceState struct {
	running bool
	pending bool
	// next carries the reason of the first trigger that set pending. Force
	// is set when any coalesced trigger asked for it.
	next driving.RunOptions
	runs int
	last *domain.RunResult
}

// Coordinator is the single-flight, coalescing gate in front of the
// generators. Trigger sources never lock anything themselves.
type Coordinator struct {
	generators map[string]driving.Generator
	runTimeout time.Duration

	mu     sync.Mutex
	states map[string]*sourceState
	wg     sync.WaitGroup
}

// NewCoordinator creates a coordinator for the given generators, keyed by
// their source IDs. A positive runTimeout bounds every pass.
func NewCoordinator(runTimeout time.Duration, generators ...driving.Generator) *Coordinator {
	c := &Coordinator{
		generators: make(map[string]driving.Generator, len(generators)),
		runTimeout: runTimeout,
		states:     make(map[string]*sourceState, len(generators)),
	}
	for _, g := range generators {
		c.generators[g.SourceID()] = g
		c.states[g.SourceID()] = &sourceState{}
	}
	return c
}

// Trigger runs the pipeline for sourceID in the caller's goroutine when the
// source is idle, then keeps running one more pass for as long as triggers
// arrived during the previous one. When a run is already in flight it only
// marks the source pending and returns at once.
func (c *Coordinator) Trigger(ctx context.Context, sourceID string, reason domain.TriggerReason) (domain.TriggerAck, *domain.RunResult) {
	return c.trigger(ctx, sourceID, driving.RunOptions{Reason: reason})
}

// Regenerate is Trigger with the fingerprint comparison bypassed for the
// first pass. The stored baseline is only replaced once the new manifest is
// written, so a failed forced run leaves it intact.
func (c *Coordinator) Regenerate(ctx context.Context, sourceID string, reason domain.TriggerReason) (domain.TriggerAck, *domain.RunResult) {
	return c.trigger(ctx, sourceID, driving.RunOptions{Reason: reason, Force: true})
}

func (c *Coordinator) trigger(ctx context.Context, sourceID string, opts driving.RunOptions) (domain.TriggerAck, *domain.RunResult) {
	gen, ok := c.generators[sourceID]
	if !ok {
		return domain.AckRan, unknownSource(sourceID, opts.Reason)
	}
	if !c.acquire(sourceID, opts) {
		return domain.AckPending, nil
	}
	c.wg.Add(1)
	defer c.wg.Done()
	return domain.AckRan, c.drain(ctx, gen, opts)
}

// Submit makes the same decision as Trigger without blocking. An accepted
// run executes on its own goroutine with a background context.
// An unknown source is answered with AckUnknownSource and nothing runs.
func (c *Coordinator) Submit(sourceID string, reason domain.TriggerReason) domain.TriggerAck {
	gen, ok := c.generators[sourceID]
	if !ok {
		logger.Warn("Trigger for unknown source %q ignored", sourceID)
		return domain.AckUnknownSource
	}
	opts := driving.RunOptions{Reason: reason}
	if !c.acquire(sourceID, opts) {
		return domain.AckPending
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.drain(context.Background(), gen, opts)
	}()
	return domain.AckRan
}

// Status returns a snapshot of one source.
func (c *Coordinator) Status(sourceID string) driving.CoordinatorStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := driving.CoordinatorStatus{SourceID: sourceID}
	if st, ok := c.states[sourceID]; ok {
		status.Running = st.running
		status.Pending = st.pending
		status.Runs = st.runs
		status.LastResult = st.last
	}
	return status
}

// Wait blocks until no run is in flight.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// acquire moves an idle source to Running and reports true, or marks a
// running source pending and reports false.
func (c *Coordinator) acquire(sourceID string, opts driving.RunOptions) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.states[sourceID]
	if st.running {
		if !st.pending {
			st.pending = true
			st.next = opts
		}
		st.next.Force = st.next.Force || opts.Force
		logger.Debug("Source %s busy, %s trigger coalesced", sourceID, opts.Reason)
		return false
	}
	st.running = true
	return true
}

// drain runs passes until no trigger is pending, then returns the source to
// Idle. The state always returns to Idle, whatever the pass outcome.
func (c *Coordinator) drain(ctx context.Context, gen driving.Generator, opts driving.RunOptions) *domain.RunResult {
	sourceID := gen.SourceID()
	for {
		result := c.pass(ctx, gen, opts)

		c.mu.Lock()
		st := c.states[sourceID]
		st.runs++
		st.last = result
		if !st.pending || ctx.Err() != nil {
			st.running = false
			st.pending = false
			st.next = driving.RunOptions{}
			c.mu.Unlock()
			return result
		}
		opts = st.next
		st.pending = false
		st.next = driving.RunOptions{}
		c.mu.Unlock()

		logger.Debug("Source %s running coalesced follow-up pass (%s)", sourceID, opts.Reason)
	}
}

// pass runs the generator once under the per-run timeout.
func (c *Coordinator) pass(ctx context.Context, gen driving.Generator, opts driving.RunOptions) (result *domain.RunResult) {
	runCtx := ctx
	if c.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.runTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			now := time.Now()
			result = &domain.RunResult{SourceID: gen.SourceID(), Reason: opts.Reason, StartedAt: now, EndedAt: now}
			result.Fail(fmt.Errorf("pipeline panic: %v", r))
			logger.Error("Run for source %s panicked: %v", gen.SourceID(), r)
		}
	}()

	return gen.Run(runCtx, opts)
}

func unknownSource(sourceID string, reason domain.TriggerReason) *domain.RunResult {
	now := time.Now()
	result := &domain.RunResult{SourceID: sourceID, Reason: reason, StartedAt: now, EndedAt: now}
	result.Fail(fmt.Errorf("%w: source %q", domain.ErrNotFound, sourceID))
	return result
}
