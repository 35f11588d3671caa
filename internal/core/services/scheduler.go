package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driving"
	"github.com/custodia-labs/llmsync/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// Scheduler fires a scheduled trigger at every fire time of a Schedule.
// Fire times missed while the process was busy or asleep are not replayed.
type Scheduler struct {
	schedule    domain.Schedule
	sourceID    string
	coordinator driving.Coordinator
	now         func() time.Time
	after       func(time.Duration) <-chan time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler for one source.
func NewScheduler(schedule domain.Schedule, sourceID string, coordinator driving.Coordinator) *Scheduler {
	return &Scheduler{
		schedule:    schedule,
		sourceID:    sourceID,
		coordinator: coordinator,
		now:         time.Now,
		after:       time.After,
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.wg.Add(1)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.wg.Done()
	}()

	logger.Info("Scheduler started: %s", s.schedule)

	for {
		now := s.now()
		next := s.schedule.Next(now)
		wait := next.Sub(now)
		logger.Debug("Next scheduled run at %s", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-s.after(wait):
			ack, result := s.coordinator.Trigger(ctx, s.sourceID, domain.ReasonScheduled)
			if ack == domain.AckPending {
				logger.Info("Scheduled trigger coalesced into the running pass")
			} else if result != nil {
				logger.Info("Scheduled run: %s", result.Summary())
			}
		}
	}
}

// Stop gracefully shuts down the scheduler, waiting for an in-flight
// scheduled run to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
