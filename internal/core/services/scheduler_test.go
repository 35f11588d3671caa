package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

// fakeTimer hands out channels the test fires by hand and records the
// requested waits.
type fakeTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	chans []chan time.Time
	made  chan struct{}
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{made: make(chan struct{}, 10)}
}

func (f *fakeTimer) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan time.Time, 1)
	f.waits = append(f.waits, d)
	f.chans = append(f.chans, ch)
	f.made <- struct{}{}
	return ch
}

func (f *fakeTimer) Fire(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chans[i] <- time.Now()
}

func (f *fakeTimer) Wait(i int) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waits[i]
}

func TestScheduler_FiresAtNextScheduledTime(t *testing.T) {
	schedule, err := domain.NewSchedule("daily", "02:00", "")
	require.NoError(t, err)

	coord := &mockCoordinator{fired: make(chan struct{}, 1)}
	s := NewScheduler(schedule, "site", coord)
	s.now = func() time.Time { return time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC) }
	timer := newFakeTimer()
	s.after = timer.After

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	<-timer.made
	assert.Equal(t, time.Hour, timer.Wait(0))

	timer.Fire(0)
	select {
	case <-coord.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled trigger not fired")
	}
	<-timer.made

	require.NoError(t, s.Stop())
	require.NoError(t, <-done)
	assert.Equal(t, []domain.TriggerReason{domain.ReasonScheduled}, coord.Triggers())
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	schedule, err := domain.NewSchedule("hourly", "00:30", "")
	require.NoError(t, err)

	s := NewScheduler(schedule, "site", &mockCoordinator{})
	timer := newFakeTimer()
	s.after = timer.After

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	<-timer.made

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.NoError(t, s.Stop())
}

func TestScheduler_StopWhenNotRunning(t *testing.T) {
	s := NewScheduler(domain.Schedule{Interval: domain.IntervalDaily}, "site", &mockCoordinator{})
	assert.NoError(t, s.Stop())
}
