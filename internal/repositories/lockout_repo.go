package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stagewerk/lockbox/internal/database"
	"github.com/stagewerk/lockbox/internal/models"
)

// LockoutRepository is the Postgres attempt store. The increment path is a
// single upsert statement, so concurrent failures for one identity can
// never lose an update.
type LockoutRepository struct {
	db *database.DB
}

// NewLockoutRepository creates a new LockoutRepository
func NewLockoutRepository(db *database.DB) *LockoutRepository {
	return &LockoutRepository{db: db}
}

// rowScanner interface for scanning record rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecordRow(scanner rowScanner) (*models.LoginAttemptRecord, error) {
	var rec models.LoginAttemptRecord
	var lockoutUntil *time.Time

	err := scanner.Scan(
		&rec.Identity, &rec.IPAddress, &rec.UserAgent,
		&rec.FailedAttempts, &rec.LastAttemptAt, &lockoutUntil,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	// Normalize timestamps at the adapter boundary; the engine only ever
	// sees UTC time.Time values.
	rec.LastAttemptAt = rec.LastAttemptAt.UTC()
	if lockoutUntil != nil {
		u := lockoutUntil.UTC()
		rec.LockoutUntil = &u
	}

	return &rec, nil
}

func (r *LockoutRepository) FindByIdentity(ctx context.Context, identity string) (*models.LoginAttemptRecord, error) {
	query := `
		SELECT identity, ip_address, user_agent, failed_attempts, last_attempt_at, lockout_until
		FROM login_lockouts WHERE identity = $1
	`

	return scanRecordRow(r.db.Pool.QueryRow(ctx, query, identity))
}

func (r *LockoutRepository) Create(ctx context.Context, rec *models.LoginAttemptRecord) error {
	query := `
		INSERT INTO login_lockouts (identity, ip_address, user_agent, failed_attempts, last_attempt_at, lockout_until)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		rec.Identity, rec.IPAddress, rec.UserAgent,
		rec.FailedAttempts, rec.LastAttemptAt, rec.LockoutUntil,
	)
	return database.MapPostgresError(err)
}

// IncrementOrCreate relies on ON CONFLICT DO UPDATE to make the counter
// increment atomic at the database level.
func (r *LockoutRepository) IncrementOrCreate(ctx context.Context, identity, ipAddress, userAgent string, now time.Time) (*models.LoginAttemptRecord, error) {
	query := `
		INSERT INTO login_lockouts (identity, ip_address, user_agent, failed_attempts, last_attempt_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (identity) DO UPDATE SET
			failed_attempts = login_lockouts.failed_attempts + 1,
			ip_address      = EXCLUDED.ip_address,
			user_agent      = EXCLUDED.user_agent,
			last_attempt_at = EXCLUDED.last_attempt_at
		RETURNING identity, ip_address, user_agent, failed_attempts, last_attempt_at, lockout_until
	`

	return scanRecordRow(r.db.Pool.QueryRow(ctx, query, identity, ipAddress, userAgent, now))
}

// SetLockout only writes a deadline where none exists, so exactly one of
// several concurrent threshold observers wins.
func (r *LockoutRepository) SetLockout(ctx context.Context, identity string, until time.Time) (bool, error) {
	query := `
		UPDATE login_lockouts SET lockout_until = $2
		WHERE identity = $1 AND lockout_until IS NULL
	`

	tag, err := r.db.Pool.Exec(ctx, query, identity, until)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *LockoutRepository) Delete(ctx context.Context, identity string) error {
	query := `DELETE FROM login_lockouts WHERE identity = $1`

	_, err := r.db.Pool.Exec(ctx, query, identity)
	return database.MapPostgresError(err)
}

func (r *LockoutRepository) ListPage(ctx context.Context, limit int) ([]*models.LoginAttemptRecord, error) {
	query := `
		SELECT identity, ip_address, user_agent, failed_attempts, last_attempt_at, lockout_until
		FROM login_lockouts ORDER BY last_attempt_at ASC LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login lockouts: %w", err)
	}

	return scanRecordRows(rows)
}

func scanRecordRows(rows pgx.Rows) ([]*models.LoginAttemptRecord, error) {
	defer rows.Close()

	records := make([]*models.LoginAttemptRecord, 0)

	for rows.Next() {
		rec, err := scanRecordRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}
