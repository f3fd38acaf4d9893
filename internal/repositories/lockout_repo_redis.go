package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stagewerk/lockbox/internal/models"
)

const lockoutKeyPrefix = "lockout:"

// RedisLockoutRepository is the Redis attempt store. One hash per identity;
// HINCRBY makes the counter increment atomic, HSETNX makes the lockout
// deadline first-writer-wins.
type RedisLockoutRepository struct {
	rdb redis.UniversalClient
}

// NewRedisLockoutRepository creates a new RedisLockoutRepository
func NewRedisLockoutRepository(rdb redis.UniversalClient) *RedisLockoutRepository {
	return &RedisLockoutRepository{rdb: rdb}
}

func lockoutKey(identity string) string {
	return lockoutKeyPrefix + identity
}

func (r *RedisLockoutRepository) FindByIdentity(ctx context.Context, identity string) (*models.LoginAttemptRecord, error) {
	fields, err := r.rdb.HGetAll(ctx, lockoutKey(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, models.ErrNotFound
	}

	return recordFromFields(identity, fields)
}

func (r *RedisLockoutRepository) Create(ctx context.Context, rec *models.LoginAttemptRecord) error {
	key := lockoutKey(rec.Identity)

	created, err := r.rdb.HSetNX(ctx, key, "failed_attempts", rec.FailedAttempts).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if !created {
		return models.ErrConflict
	}

	fields := map[string]interface{}{
		"ip_address":      rec.IPAddress,
		"user_agent":      rec.UserAgent,
		"last_attempt_at": rec.LastAttemptAt.UTC().UnixMilli(),
	}
	if rec.LockoutUntil != nil {
		fields["lockout_until"] = rec.LockoutUntil.UTC().UnixMilli()
	}

	if err := r.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisLockoutRepository) IncrementOrCreate(ctx context.Context, identity, ipAddress, userAgent string, now time.Time) (*models.LoginAttemptRecord, error) {
	key := lockoutKey(identity)

	pipe := r.rdb.TxPipeline()
	incr := pipe.HIncrBy(ctx, key, "failed_attempts", 1)
	pipe.HSet(ctx, key, map[string]interface{}{
		"ip_address":      ipAddress,
		"user_agent":      userAgent,
		"last_attempt_at": now.UTC().UnixMilli(),
	})
	lock := pipe.HGet(ctx, key, "lockout_until")

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	rec := &models.LoginAttemptRecord{
		Identity:       identity,
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
		FailedAttempts: int(incr.Val()),
		LastAttemptAt:  now.UTC(),
	}

	if until, err := lock.Result(); err == nil {
		t, parseErr := parseMillis(until)
		if parseErr != nil {
			return nil, parseErr
		}
		rec.LockoutUntil = &t
	}

	return rec, nil
}

func (r *RedisLockoutRepository) SetLockout(ctx context.Context, identity string, until time.Time) (bool, error) {
	key := lockoutKey(identity)

	// A record deleted between the threshold observation and this write
	// stays deleted; writing a lone lockout field into a fresh hash would
	// resurrect it.
	exists, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if exists == 0 {
		return false, nil
	}

	won, err := r.rdb.HSetNX(ctx, key, "lockout_until", until.UTC().UnixMilli()).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return won, nil
}

func (r *RedisLockoutRepository) Delete(ctx context.Context, identity string) error {
	if err := r.rdb.Del(ctx, lockoutKey(identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisLockoutRepository) ListPage(ctx context.Context, limit int) ([]*models.LoginAttemptRecord, error) {
	records := make([]*models.LoginAttemptRecord, 0, limit)

	iter := r.rdb.Scan(ctx, 0, lockoutKeyPrefix+"*", int64(limit)).Iterator()
	for iter.Next(ctx) {
		if len(records) >= limit {
			break
		}

		identity := iter.Val()[len(lockoutKeyPrefix):]
		rec, err := r.FindByIdentity(ctx, identity)
		if err != nil {
			// Deleted between scan and fetch; live traffic won the race.
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	return records, nil
}

// recordFromFields normalizes the loosely-typed hash fields into a typed
// record so the engine never coerces timestamps itself.
func recordFromFields(identity string, fields map[string]string) (*models.LoginAttemptRecord, error) {
	rec := &models.LoginAttemptRecord{
		Identity:  identity,
		IPAddress: fields["ip_address"],
		UserAgent: fields["user_agent"],
	}

	if v, ok := fields["failed_attempts"]; ok {
		count, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("malformed failed_attempts for %s: %w", identity, err)
		}
		rec.FailedAttempts = count
	}

	if v, ok := fields["last_attempt_at"]; ok {
		t, err := parseMillis(v)
		if err != nil {
			return nil, err
		}
		rec.LastAttemptAt = t
	}

	if v, ok := fields["lockout_until"]; ok {
		t, err := parseMillis(v)
		if err != nil {
			return nil, err
		}
		rec.LockoutUntil = &t
	}

	return rec, nil
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: %w", v, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
