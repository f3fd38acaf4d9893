// Package lockout implements the login-attempt and account-lockout policy
// engine. It tracks consecutive failed authentication attempts per identity,
// transitions accounts into a time-boxed lockout, expires that lockout on
// observation, and keeps the external credential verifier's cached lockout
// view coherent with its own decisions.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stagewerk/lockbox/internal/models"
	pkglogger "github.com/stagewerk/lockbox/pkg/logger"
)

// conflictRetries bounds the internal retry loop on concurrent-mutation
// conflicts before a transient error is surfaced.
const conflictRetries = 3

// Config holds the lockout policy constants.
type Config struct {
	MaxFailedAttempts   int
	LockoutDuration     time.Duration
	AttemptResetTimeout time.Duration
	SweepBatchSize      int
}

// LockoutNotifier receives best-effort notifications when an identity
// transitions into lockout.
type LockoutNotifier interface {
	NotifyLockout(ctx context.Context, identity, ipAddress string, until time.Time) error
}

// Engine evaluates lockout status and applies the per-identity state
// machine. It is stateless between calls; the AttemptStore is the single
// source of truth.
type Engine struct {
	store    AttemptStore
	syncer   *Syncer
	config   Config
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
	notifier LockoutNotifier
	now      func() time.Time
}

// NewEngine creates a lockout policy engine.
func NewEngine(store AttemptStore, syncer *Syncer, config Config, logger *slog.Logger, audit *pkglogger.AuditLogger) *Engine {
	return &Engine{
		store:  store,
		syncer: syncer,
		config: config,
		logger: logger,
		audit:  audit,
		now:    time.Now,
	}
}

// SetNotifier enables lockout alerting.
func (e *Engine) SetNotifier(notifier LockoutNotifier) {
	e.notifier = notifier
}

// SetClock replaces the engine's time source. Tests use this to drive
// expiry without sleeping.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// CheckStatus reports whether an identity may attempt to authenticate.
//
// Despite its name this is not a pure read: observing an expired lockout or
// a stale failure counter deletes the record and triggers verifier cache
// invalidation before the clean status is returned.
//
// On store unavailability CheckStatus fails open and reports "not locked"
// with all attempts remaining. Denying every login because the attempt
// store is down is a worse failure mode than briefly losing lockout
// enforcement; the trade-off is deliberate and logged.
func (e *Engine) CheckStatus(ctx context.Context, identity, ipAddress string) (models.LockoutStatus, error) {
	identity, err := normalizeIdentity(identity)
	if err != nil {
		return models.LockoutStatus{}, err
	}

	now := e.now()
	clean := models.LockoutStatus{RemainingAttempts: e.config.MaxFailedAttempts}

	rec, err := e.store.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return clean, nil
		}
		e.logger.Error("attempt store unavailable, failing open",
			slog.String("identity", pkglogger.SanitizedEmail(identity)),
			slog.Any("error", err))
		return clean, nil
	}

	if rec.LockActive(now) {
		return models.LockoutStatus{
			IsLocked:      true,
			LockoutUntil:  rec.LockoutUntil,
			TimeRemaining: rec.LockoutUntil.Sub(now),
		}, nil
	}

	if rec.LockExpired(now) {
		e.forget(ctx, identity, ipAddress, "lockout_expired", true)
		return clean, nil
	}

	if rec.Idle(now, e.config.AttemptResetTimeout) {
		e.forget(ctx, identity, ipAddress, "attempts_reset_inactivity", true)
		return clean, nil
	}

	remaining := e.config.MaxFailedAttempts - rec.FailedAttempts
	if remaining < 0 {
		remaining = 0
	}
	return models.LockoutStatus{RemainingAttempts: remaining}, nil
}

// RecordAttempt records the outcome of a credential check. Success deletes
// any accumulated failure state; failure increments it atomically and may
// trip the lockout.
//
// A store outage makes this best-effort: the attempt is logged and dropped
// rather than blocking the login path on storage.
func (e *Engine) RecordAttempt(ctx context.Context, identity, ipAddress, userAgent string, success bool) error {
	identity, err := normalizeIdentity(identity)
	if err != nil {
		return err
	}

	if success {
		if err := e.store.Delete(ctx, identity); err != nil && !errors.Is(err, models.ErrNotFound) {
			e.logger.Error("failed to clear attempt record after successful login",
				slog.String("identity", pkglogger.SanitizedEmail(identity)),
				slog.Any("error", err))
		}
		// A successful login already proves the credential path is coherent;
		// no verifier sync is needed here.
		e.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType: "login_attempt",
			Identity:  identity,
			IPAddress: ipAddress,
			UserAgent: userAgent,
			Success:   true,
		})
		return nil
	}

	rec, err := e.incrementWithRetry(ctx, identity, ipAddress, userAgent)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return fmt.Errorf("transient conflict recording attempt: %w", err)
		}
		e.logger.Error("failed to record login attempt, dropping",
			slog.String("identity", pkglogger.SanitizedEmail(identity)),
			slog.Any("error", err))
		return nil
	}

	if rec.FailedAttempts >= e.config.MaxFailedAttempts && rec.LockoutUntil == nil {
		e.lock(ctx, identity, ipAddress, rec.FailedAttempts)
	}

	e.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_attempt",
		Identity:  identity,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   false,
		Metadata: map[string]string{
			"failed_attempts": fmt.Sprintf("%d", rec.FailedAttempts),
		},
	})
	return nil
}

// ClearLockout is the administrative override: the record is removed
// unconditionally and the verifier cache invalidated even when no local
// record existed, since the verifier's view may be stale on its own.
// Store errors are surfaced; the admin caller relies on this not failing
// silently.
func (e *Engine) ClearLockout(ctx context.Context, identity, ipAddress string) error {
	identity, err := normalizeIdentity(identity)
	if err != nil {
		return err
	}

	if err := e.store.Delete(ctx, identity); err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to delete attempt record: %w", err)
	}

	if syncErr := e.syncer.Invalidate(ctx, identity); syncErr != nil {
		e.logger.Warn("verifier sync failed after admin clear",
			slog.String("identity", pkglogger.SanitizedEmail(identity)),
			slog.Any("error", syncErr))
	}

	e.audit.LogLockoutEvent("lockout_cleared_admin", identity, ipAddress, nil)
	return nil
}

// CleanupExpired sweeps one bounded batch of records, deleting expired
// lockouts (with verifier sync) and stale failure counters. Records that
// vanish or change between the read and the delete are tolerated; the
// accepted staleness window is one sweep interval.
func (e *Engine) CleanupExpired(ctx context.Context) (models.CleanupResult, error) {
	var result models.CleanupResult

	records, err := e.store.ListPage(ctx, e.config.SweepBatchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list attempt records: %w", err)
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		now := e.now()
		switch {
		case rec.LockExpired(now):
			if err := e.store.Delete(ctx, rec.Identity); err != nil && !errors.Is(err, models.ErrNotFound) {
				e.logger.Error("sweep failed to delete expired lockout",
					slog.String("identity", pkglogger.SanitizedEmail(rec.Identity)),
					slog.Any("error", err))
				continue
			}
			if syncErr := e.syncer.Invalidate(ctx, rec.Identity); syncErr != nil {
				e.logger.Warn("verifier sync failed during sweep",
					slog.String("identity", pkglogger.SanitizedEmail(rec.Identity)),
					slog.Any("error", syncErr))
			}
			result.LockoutsCleared++

		case rec.Idle(now, e.config.AttemptResetTimeout):
			if err := e.store.Delete(ctx, rec.Identity); err != nil && !errors.Is(err, models.ErrNotFound) {
				e.logger.Error("sweep failed to delete stale counter",
					slog.String("identity", pkglogger.SanitizedEmail(rec.Identity)),
					slog.Any("error", err))
				continue
			}
			result.AttemptsReset++
		}
	}

	e.audit.LogSweep(result.LockoutsCleared, result.AttemptsReset)
	return result, nil
}

// forget deletes a record whose state has expired and re-syncs the verifier.
// Delete is idempotent, and the sync is safe to run redundantly, so two
// concurrent observers of the same expiry are harmless.
func (e *Engine) forget(ctx context.Context, identity, ipAddress, reason string, sync bool) {
	if err := e.store.Delete(ctx, identity); err != nil && !errors.Is(err, models.ErrNotFound) {
		e.logger.Error("failed to delete expired attempt record",
			slog.String("identity", pkglogger.SanitizedEmail(identity)),
			slog.String("reason", reason),
			slog.Any("error", err))
	}

	if sync {
		if err := e.syncer.Invalidate(ctx, identity); err != nil {
			e.logger.Warn("verifier sync failed after expiry",
				slog.String("identity", pkglogger.SanitizedEmail(identity)),
				slog.String("reason", reason),
				slog.Any("error", err))
		}
	}

	e.audit.LogLockoutEvent(reason, identity, ipAddress, nil)
}

// lock sets the lockout deadline. The conditional store write guarantees
// exactly one caller wins when concurrent failures cross the threshold
// together; only the winner audits and notifies.
func (e *Engine) lock(ctx context.Context, identity, ipAddress string, failedAttempts int) {
	until := e.now().Add(e.config.LockoutDuration)

	won, err := e.store.SetLockout(ctx, identity, until)
	if err != nil {
		e.logger.Error("failed to set lockout deadline",
			slog.String("identity", pkglogger.SanitizedEmail(identity)),
			slog.Any("error", err))
		return
	}
	if !won {
		return
	}

	e.audit.LogLockoutEvent("lockout_triggered", identity, ipAddress, map[string]string{
		"failed_attempts": fmt.Sprintf("%d", failedAttempts),
		"lockout_until":   until.UTC().Format(time.RFC3339),
	})

	if e.notifier != nil {
		if err := e.notifier.NotifyLockout(ctx, identity, ipAddress, until); err != nil {
			e.logger.Warn("lockout notification failed",
				slog.String("identity", pkglogger.SanitizedEmail(identity)),
				slog.Any("error", err))
		}
	}
}

func (e *Engine) incrementWithRetry(ctx context.Context, identity, ipAddress, userAgent string) (*models.LoginAttemptRecord, error) {
	var lastErr error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		rec, err := e.store.IncrementOrCreate(ctx, identity, ipAddress, userAgent, e.now())
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func normalizeIdentity(identity string) (string, error) {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" {
		return "", fmt.Errorf("%w: identity must not be empty", models.ErrBadRequest)
	}
	return identity, nil
}
