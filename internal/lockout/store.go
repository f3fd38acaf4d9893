package lockout

import (
	"context"
	"time"

	"github.com/stagewerk/lockbox/internal/models"
)

// AttemptStore is the persistence contract for login attempt records. The
// engine is the only writer of policy fields; adapters own storage and must
// normalize timestamps to UTC time.Time before records reach the engine.
type AttemptStore interface {
	// FindByIdentity returns the record for an identity, or models.ErrNotFound.
	FindByIdentity(ctx context.Context, identity string) (*models.LoginAttemptRecord, error)

	// Create inserts a new record. Returns models.ErrConflict if one exists.
	Create(ctx context.Context, rec *models.LoginAttemptRecord) error

	// IncrementOrCreate atomically increments the failure counter for an
	// identity, creating the record with a count of 1 when absent, and
	// refreshes the attempt metadata. Two concurrent calls must yield two
	// increments; a read-then-write implementation is not acceptable here.
	IncrementOrCreate(ctx context.Context, identity, ipAddress, userAgent string, now time.Time) (*models.LoginAttemptRecord, error)

	// SetLockout sets the lockout deadline, but only if none is set yet.
	// Returns true when this call won the write; false when a deadline was
	// already present or the record is gone.
	SetLockout(ctx context.Context, identity string, until time.Time) (bool, error)

	// Delete removes the record. Idempotent: absent records are not an error.
	Delete(ctx context.Context, identity string) error

	// ListPage returns up to limit records, in no particular order. The
	// sweeper re-checks expiry on each record it receives.
	ListPage(ctx context.Context, limit int) ([]*models.LoginAttemptRecord, error)
}
