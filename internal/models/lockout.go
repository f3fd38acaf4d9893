package models

import "time"

// LoginAttemptRecord tracks consecutive failed login attempts for one identity.
// A record exists only while there is at least one unforgiven failure; success,
// expiry, and administrative clears delete the record rather than zeroing it.
type LoginAttemptRecord struct {
	Identity       string     `db:"identity"`
	IPAddress      string     `db:"ip_address"`
	UserAgent      string     `db:"user_agent"`
	FailedAttempts int        `db:"failed_attempts"`
	LastAttemptAt  time.Time  `db:"last_attempt_at"`
	LockoutUntil   *time.Time `db:"lockout_until"`
}

// LockActive reports whether the record carries a lockout that has not yet expired.
func (r *LoginAttemptRecord) LockActive(now time.Time) bool {
	return r.LockoutUntil != nil && r.LockoutUntil.After(now)
}

// LockExpired reports whether the record carries a lockout whose deadline has passed.
func (r *LoginAttemptRecord) LockExpired(now time.Time) bool {
	return r.LockoutUntil != nil && !r.LockoutUntil.After(now)
}

// Idle reports whether a non-locking failure counter has gone stale and
// should be forgiven.
func (r *LoginAttemptRecord) Idle(now time.Time, resetTimeout time.Duration) bool {
	return r.LockoutUntil == nil && now.Sub(r.LastAttemptAt) > resetTimeout
}

// LockoutStatus is the engine's answer to "may this identity attempt to log in".
type LockoutStatus struct {
	IsLocked          bool          `json:"is_locked"`
	LockoutUntil      *time.Time    `json:"lockout_until,omitempty"`
	RemainingAttempts int           `json:"remaining_attempts"`
	TimeRemaining     time.Duration `json:"time_remaining,omitempty"`
}

// CleanupResult aggregates the outcome of one sweep over stale records.
type CleanupResult struct {
	LockoutsCleared int `json:"lockouts_cleared"`
	AttemptsReset   int `json:"attempts_reset"`
}
