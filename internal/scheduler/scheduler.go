package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ExpiryCleaner is implemented by service.Coordinator.
type ExpiryCleaner interface {
	CleanupExpiredProposals(ctx context.Context) (int, error)
}

const defaultTick = time.Second

// Sweeper periodically expires overdue pending proposals. Signing and reads
// expire proposals lazily, so the sweeper only bounds how long a forgotten
// proposal stays pending in storage.
type Sweeper struct {
	cleaner  ExpiryCleaner
	schedule cron.Schedule
	tick     time.Duration
	logger   *logrus.Logger
	now      func() time.Time

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
	stopped chan struct{}
}

func NewSweeper(cleaner ExpiryCleaner, schedule string, logger *logrus.Logger) (*Sweeper, error) {
	if cleaner == nil {
		return nil, fmt.Errorf("expiry cleaner is nil")
	}
	parsed, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sweep schedule %q: %w", schedule, err)
	}
	return &Sweeper{
		cleaner:  cleaner,
		schedule: parsed,
		tick:     defaultTick,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Start runs the sweep loop until ctx is cancelled or Stop is called. Only the
// first call starts a loop, and a stopped sweeper does not restart.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	go s.run(ctx)
}

// Stop ends the loop and waits for an in-flight sweep to finish. It returns
// immediately when the sweeper was never started.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.stopped
	}
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.stopped)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	next := s.schedule.Next(s.now())
	s.logger.WithField("next_sweep", next).Info("Expiry sweeper started")

	for {
		select {
		case <-ticker.C:
			now := s.now()
			if now.Before(next) {
				continue
			}
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.WithError(err).Error("failed to sweep expired proposals")
			}
			next = s.schedule.Next(now)
		case <-ctx.Done():
			s.logger.Info("Expiry sweeper stopped")
			return
		case <-s.done:
			s.logger.Info("Expiry sweeper stopped")
			return
		}
	}
}

// RunOnce performs a single sweep and returns how many proposals it expired.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	start := s.now()
	count, err := s.cleaner.CleanupExpiredProposals(ctx)
	fields := logrus.Fields{
		"expired":  count,
		"duration": s.now().Sub(start),
	}
	if err != nil {
		s.logger.WithFields(fields).WithError(err).Warn("Expiry sweep finished with errors")
		return count, err
	}
	if count > 0 {
		s.logger.WithFields(fields).Info("Expiry sweep finished")
	} else {
		s.logger.WithFields(fields).Debug("Expiry sweep finished")
	}
	return count, nil
}
