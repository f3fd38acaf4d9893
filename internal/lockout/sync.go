package lockout

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stagewerk/lockbox/internal/verifier"
	pkglogger "github.com/stagewerk/lockbox/pkg/logger"
)

// Syncer forces the external credential verifier to discard its cached
// lockout state whenever the engine transitions an identity out of lockout.
//
// The verifier's true invalidation contract is not established: an
// identity-scoped invalidate has been observed to be insufficient on its
// own, and a single connection reset to sometimes fail. The sequence below
// (invalidate with retry, reset, bounded settle wait, defensive second
// reset) is the empirically reliable one. The whole procedure is
// best-effort and safe to run redundantly; the engine's own record is
// already deleted by the time it runs.
type Syncer struct {
	verifier    verifier.CredentialVerifier
	logger      *slog.Logger
	settleDelay time.Duration
	maxRetries  uint64
}

// NewSyncer creates a sync procedure over the given verifier.
func NewSyncer(v verifier.CredentialVerifier, logger *slog.Logger, settleDelay time.Duration, maxRetries int) *Syncer {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Syncer{
		verifier:    v,
		logger:      logger,
		settleDelay: settleDelay,
		maxRetries:  uint64(maxRetries),
	}
}

// Invalidate runs the full invalidation sequence for one identity. The
// returned error is for visibility only; callers must treat a sync failure
// as non-fatal to the lockout transition that triggered it.
func (s *Syncer) Invalidate(ctx context.Context, identity string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second

	err := backoff.Retry(func() error {
		return s.verifier.InvalidateLockoutCache(ctx, identity)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, s.maxRetries), ctx))
	if err != nil {
		s.logger.Warn("verifier cache invalidation failed, continuing with connection reset",
			slog.String("identity", pkglogger.SanitizedEmail(identity)),
			slog.Any("error", err))
	}

	s.verifier.ResetConnection()

	if waitErr := s.settle(ctx); waitErr != nil {
		// Caller is gone; skip the defensive second reset.
		return err
	}

	s.verifier.ResetConnection()
	return err
}

func (s *Syncer) settle(ctx context.Context) error {
	if s.settleDelay <= 0 {
		return nil
	}

	timer := time.NewTimer(s.settleDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
