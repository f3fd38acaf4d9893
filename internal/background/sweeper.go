package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/stagewerk/lockbox/internal/models"
)

// Cleaner is the slice of the lockout engine the sweeper needs.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (models.CleanupResult, error)
}

// Sweeper periodically purges expired lockouts and stale failure counters.
// It runs independently of request traffic; live logins observing the same
// expiry first simply win the race.
type Sweeper struct {
	cleaner  Cleaner
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewSweeper creates a new cleanup sweeper
func NewSweeper(cleaner Cleaner, logger *slog.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		cleaner:  cleaner,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep. It blocks until Stop is called or the
// context is cancelled, so run it in its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopCh:
			s.logger.Info("cleanup sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("cleanup sweeper context cancelled")
			return
		}
	}
}

// runSweep executes one bounded cleanup batch
func (s *Sweeper) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := s.cleaner.CleanupExpired(sweepCtx)
	if err != nil {
		s.logger.Error("cleanup sweep failed", slog.Any("error", err))
		return
	}

	if result.LockoutsCleared > 0 || result.AttemptsReset > 0 {
		s.logger.Info("cleanup sweep completed",
			slog.Int("lockouts_cleared", result.LockoutsCleared),
			slog.Int("attempts_reset", result.AttemptsReset),
		)
	}
}

// Stop signals the sweeper to stop
func (s *Sweeper) Stop() {
	close(s.stopCh)
}
