package session

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// RefreshScheduler refreshes a token and, after each success, arms a timer to
// refresh again. A failure ends the chain; the next stale request restarts it.
type RefreshScheduler struct {
	name    string
	refresh RefreshFunc
	backOff backoff.BackOff
	logger  *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
}

// NewRefreshScheduler refreshes on a fixed interval.
func NewRefreshScheduler(name string, interval time.Duration, refresh RefreshFunc, logger *zap.Logger) *RefreshScheduler {
	return NewRefreshSchedulerWithBackOff(name, backoff.NewConstantBackOff(interval), refresh, logger)
}

// NewRefreshSchedulerWithBackOff takes the delay before each scheduled refresh
// from b. backoff.Stop ends the chain.
func NewRefreshSchedulerWithBackOff(name string, b backoff.BackOff, refresh RefreshFunc, logger *zap.Logger) *RefreshScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RefreshScheduler{
		name:    name,
		refresh: refresh,
		backOff: b,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Refresh refreshes the token once and schedules the next refresh on success.
// It satisfies RefreshFunc.
func (s *RefreshScheduler) Refresh(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil {
		s.logger.Error("Error occurred while trying to refresh the token. Won't schedule the auto refresh.",
			zap.String("scheduler", s.name),
			zap.Error(err))
		return err
	}

	s.schedule()
	return nil
}

// Stop cancels the armed timer, if any, and prevents further scheduling.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.cancel()
}

// Scheduled reports whether a refresh timer is armed.
func (s *RefreshScheduler) Scheduled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *RefreshScheduler) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	delay := s.backOff.NextBackOff()
	if delay == backoff.Stop {
		s.logger.Info("Refresh schedule exhausted", zap.String("scheduler", s.name))
		s.timer = nil
		return
	}

	// A refresh triggered outside the timer replaces the pending one.
	if s.timer != nil {
		s.timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.timer != timer {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		ctx := s.ctx
		s.mu.Unlock()

		_ = s.Refresh(ctx)
	})
	s.timer = timer

	s.logger.Debug("Scheduled token refresh",
		zap.String("scheduler", s.name),
		zap.Duration("delay", delay))
}
