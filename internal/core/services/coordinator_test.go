package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

func waitStarted(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
	}
}

// ==================== Trigger Tests ====================

func TestCoordinator_Trigger_RunsSynchronouslyWhenIdle(t *testing.T) {
	gen := &mockGenerator{id: "site"}
	c := NewCoordinator(0, gen)

	ack, result := c.Trigger(context.Background(), "site", domain.ReasonManual)

	assert.Equal(t, domain.AckRan, ack)
	require.NotNil(t, result)
	assert.Equal(t, domain.OutcomeUpdated, result.Outcome)
	assert.Equal(t, 1, gen.Runs())

	status := c.Status("site")
	assert.False(t, status.Running)
	assert.False(t, status.Pending)
	assert.Equal(t, 1, status.Runs)
	assert.Same(t, result, status.LastResult)
}

func TestCoordinator_Trigger_Coalesces(t *testing.T) {
	gen := &mockGenerator{
		id:      "site",
		started: make(chan struct{}, 10),
		release: make(chan struct{}),
	}
	c := NewCoordinator(0, gen)

	type outcome struct {
		ack    domain.TriggerAck
		result *domain.RunResult
	}
	first := make(chan outcome, 1)
	go func() {
		ack, result := c.Trigger(context.Background(), "site", domain.ReasonManual)
		first <- outcome{ack, result}
	}()
	waitStarted(t, gen.started)

	var wg sync.WaitGroup
	acks := make(chan domain.TriggerAck, 50)
	for i := 0; i < 50; i++ {
		reason := domain.ReasonWebhook
		if i%2 == 1 {
			reason = domain.ReasonWatch
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ack, result := c.Trigger(context.Background(), "site", reason)
			assert.Nil(t, result)
			acks <- ack
		}()
	}
	wg.Wait()
	close(acks)
	for ack := range acks {
		assert.Equal(t, domain.AckPending, ack)
	}
	assert.True(t, c.Status("site").Pending)

	close(gen.release)
	got := <-first

	assert.Equal(t, domain.AckRan, got.ack)
	assert.Equal(t, 2, gen.Runs(), "fifty triggers during a run cause exactly one follow-up")
	assert.False(t, c.Status("site").Running)
	assert.False(t, c.Status("site").Pending)
	assert.Equal(t, 2, c.Status("site").Runs)
}

func TestCoordinator_Trigger_NoFollowUpWithoutPending(t *testing.T) {
	gen := &mockGenerator{id: "site"}
	c := NewCoordinator(0, gen)

	for i := 0; i < 3; i++ {
		c.Trigger(context.Background(), "site", domain.ReasonScheduled)
	}
	assert.Equal(t, 3, gen.Runs())
}

func TestCoordinator_Trigger_TimeoutReturnsToIdle(t *testing.T) {
	gen := &mockGenerator{id: "site", release: make(chan struct{})}
	c := NewCoordinator(20*time.Millisecond, gen)

	ack, result := c.Trigger(context.Background(), "site", domain.ReasonManual)

	assert.Equal(t, domain.AckRan, ack)
	assert.Equal(t, domain.OutcomeFailed, result.Outcome)
	assert.Equal(t, domain.ErrorKindTimeout, result.ErrorKind)
	assert.False(t, c.Status("site").Running)

	// The source is usable again.
	_, result = c.Trigger(context.Background(), "site", domain.ReasonManual)
	assert.Equal(t, domain.ErrorKindTimeout, result.ErrorKind)
	assert.Equal(t, 2, gen.Runs())
}

func TestCoordinator_Trigger_PanicReturnsToIdle(t *testing.T) {
	gen := &mockGenerator{id: "site", panicOn: 1}
	c := NewCoordinator(0, gen)

	_, result := c.Trigger(context.Background(), "site", domain.ReasonManual)
	assert.Equal(t, domain.OutcomeFailed, result.Outcome)
	assert.False(t, c.Status("site").Running)

	_, result = c.Trigger(context.Background(), "site", domain.ReasonManual)
	assert.Equal(t, domain.OutcomeUpdated, result.Outcome)
}

func TestCoordinator_Trigger_UnknownSource(t *testing.T) {
	c := NewCoordinator(0, &mockGenerator{id: "site"})

	_, result := c.Trigger(context.Background(), "other", domain.ReasonManual)
	require.NotNil(t, result)
	assert.True(t, errors.Is(result.Err, domain.ErrNotFound))
}

func TestCoordinator_SourcesAreIndependent(t *testing.T) {
	blog := &mockGenerator{id: "blog", started: make(chan struct{}, 1), release: make(chan struct{})}
	docs := &mockGenerator{id: "docs"}
	c := NewCoordinator(0, blog, docs)

	done := make(chan struct{})
	go func() {
		c.Trigger(context.Background(), "blog", domain.ReasonManual)
		close(done)
	}()
	waitStarted(t, blog.started)

	ack, _ := c.Trigger(context.Background(), "docs", domain.ReasonManual)
	assert.Equal(t, domain.AckRan, ack)

	close(blog.release)
	<-done
}

// ==================== Submit Tests ====================

func TestCoordinator_Submit(t *testing.T) {
	gen := &mockGenerator{
		id:      "site",
		started: make(chan struct{}, 10),
		release: make(chan struct{}),
	}
	c := NewCoordinator(0, gen)

	assert.Equal(t, domain.AckRan, c.Submit("site", domain.ReasonWebhook))
	waitStarted(t, gen.started)

	assert.Equal(t, domain.AckPending, c.Submit("site", domain.ReasonWebhook))
	assert.Equal(t, domain.AckPending, c.Submit("site", domain.ReasonWebhook))

	close(gen.release)
	c.Wait()

	assert.Equal(t, 2, gen.Runs())
	assert.False(t, c.Status("site").Running)
}

func TestCoordinator_Submit_UnknownSource(t *testing.T) {
	gen := &mockGenerator{id: "site"}
	c := NewCoordinator(0, gen)

	assert.Equal(t, domain.AckUnknownSource, c.Submit("other", domain.ReasonWebhook))
	c.Wait()
	assert.Zero(t, gen.Runs())
}

// ==================== Regenerate Tests ====================

func TestCoordinator_Regenerate_ForcesPass(t *testing.T) {
	gen := &mockGenerator{id: "site"}
	c := NewCoordinator(0, gen)

	_, result := c.Trigger(context.Background(), "site", domain.ReasonManual)
	require.NotNil(t, result)
	ack, result := c.Regenerate(context.Background(), "site", domain.ReasonManual)

	assert.Equal(t, domain.AckRan, ack)
	require.NotNil(t, result)
	assert.Equal(t, []bool{false, true}, gen.Forced())
}

func TestCoordinator_Regenerate_WhileBusyForcesFollowUp(t *testing.T) {
	gen := &mockGenerator{
		id:      "site",
		started: make(chan struct{}, 10),
		release: make(chan struct{}),
	}
	c := NewCoordinator(0, gen)

	assert.Equal(t, domain.AckRan, c.Submit("site", domain.ReasonWebhook))
	waitStarted(t, gen.started)

	ack, result := c.Regenerate(context.Background(), "site", domain.ReasonManual)
	assert.Equal(t, domain.AckPending, ack)
	assert.Nil(t, result)

	close(gen.release)
	c.Wait()

	assert.Equal(t, []bool{false, true}, gen.Forced())
}
