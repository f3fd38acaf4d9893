package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/stagewerk/lockbox/internal/models"
)

// MemoryLockoutRepository is the in-process attempt store. It backs the
// memory store mode and the engine's unit tests. All mutations happen under
// one mutex, so the increment path is atomic by construction.
type MemoryLockoutRepository struct {
	mu      sync.Mutex
	records map[string]*models.LoginAttemptRecord
}

// NewMemoryLockoutRepository creates an empty in-memory attempt store.
func NewMemoryLockoutRepository() *MemoryLockoutRepository {
	return &MemoryLockoutRepository{
		records: make(map[string]*models.LoginAttemptRecord),
	}
}

func (r *MemoryLockoutRepository) FindByIdentity(ctx context.Context, identity string) (*models.LoginAttemptRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[identity]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (r *MemoryLockoutRepository) Create(ctx context.Context, rec *models.LoginAttemptRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.Identity]; ok {
		return models.ErrConflict
	}
	r.records[rec.Identity] = copyRecord(rec)
	return nil
}

func (r *MemoryLockoutRepository) IncrementOrCreate(ctx context.Context, identity, ipAddress, userAgent string, now time.Time) (*models.LoginAttemptRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[identity]
	if !ok {
		rec = &models.LoginAttemptRecord{Identity: identity}
		r.records[identity] = rec
	}

	rec.FailedAttempts++
	rec.IPAddress = ipAddress
	rec.UserAgent = userAgent
	rec.LastAttemptAt = now.UTC()

	return copyRecord(rec), nil
}

func (r *MemoryLockoutRepository) SetLockout(ctx context.Context, identity string, until time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[identity]
	if !ok || rec.LockoutUntil != nil {
		return false, nil
	}

	u := until.UTC()
	rec.LockoutUntil = &u
	return true, nil
}

func (r *MemoryLockoutRepository) Delete(ctx context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, identity)
	return nil
}

func (r *MemoryLockoutRepository) ListPage(ctx context.Context, limit int) ([]*models.LoginAttemptRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]*models.LoginAttemptRecord, 0, limit)
	for _, rec := range r.records {
		if len(records) >= limit {
			break
		}
		records = append(records, copyRecord(rec))
	}
	return records, nil
}

func copyRecord(rec *models.LoginAttemptRecord) *models.LoginAttemptRecord {
	cp := *rec
	if rec.LockoutUntil != nil {
		u := *rec.LockoutUntil
		cp.LockoutUntil = &u
	}
	return &cp
}
