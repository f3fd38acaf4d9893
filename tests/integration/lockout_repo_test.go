package integration

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagewerk/lockbox/internal/models"
	"github.com/stagewerk/lockbox/internal/repositories"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	db, err := SetupTestDatabase(ctx)
	if err != nil {
		// No container runtime available; integration coverage is optional
		log.Printf("skipping integration tests: %v", err)
		os.Exit(0)
	}
	testDB = db

	code := m.Run()

	_ = db.Teardown(ctx)
	os.Exit(code)
}

func setupRepo(t *testing.T) *repositories.LockoutRepository {
	t.Helper()
	require.NoError(t, testDB.CleanupTables(context.Background()))
	return repositories.NewLockoutRepository(testDB.DB)
}

func TestLockoutRepository_IncrementOrCreate(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	rec, err := repo.IncrementOrCreate(ctx, "guest@example.com", "203.0.113.7", "agent/1.0", now)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.FailedAttempts)
	assert.Nil(t, rec.LockoutUntil)

	later := now.Add(time.Second)
	rec, err = repo.IncrementOrCreate(ctx, "guest@example.com", "203.0.113.8", "agent/2.0", later)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.FailedAttempts)
	assert.Equal(t, "203.0.113.8", rec.IPAddress, "metadata reflects the latest attempt")
	assert.WithinDuration(t, later, rec.LastAttemptAt, time.Millisecond)
}

func TestLockoutRepository_IncrementOrCreate_NoLostUpdates(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	const writers = 10
	var wg sync.WaitGroup
	wg.Add(writers)

	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_, err := repo.IncrementOrCreate(ctx, "guest@example.com", "203.0.113.7", "agent/1.0", time.Now().UTC())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := repo.FindByIdentity(ctx, "guest@example.com")
	require.NoError(t, err)
	assert.Equal(t, writers, rec.FailedAttempts, "concurrent upserts must all be counted")
}

func TestLockoutRepository_SetLockout_FirstWriterWins(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.IncrementOrCreate(ctx, "guest@example.com", "203.0.113.7", "agent/1.0", now)
	require.NoError(t, err)

	first := now.Add(5 * time.Minute).Truncate(time.Millisecond)
	won, err := repo.SetLockout(ctx, "guest@example.com", first)
	require.NoError(t, err)
	assert.True(t, won)

	// A racing second writer must not move the deadline
	won, err = repo.SetLockout(ctx, "guest@example.com", now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.False(t, won)

	rec, err := repo.FindByIdentity(ctx, "guest@example.com")
	require.NoError(t, err)
	require.NotNil(t, rec.LockoutUntil)
	assert.WithinDuration(t, first, *rec.LockoutUntil, time.Millisecond)
}

func TestLockoutRepository_SetLockout_MissingIdentity(t *testing.T) {
	repo := setupRepo(t)

	won, err := repo.SetLockout(context.Background(), "nobody@example.com", time.Now().Add(5*time.Minute))
	require.NoError(t, err)
	assert.False(t, won)
}

func TestLockoutRepository_DeleteIsIdempotent(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	_, err := repo.IncrementOrCreate(ctx, "guest@example.com", "203.0.113.7", "agent/1.0", time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "guest@example.com"))
	require.NoError(t, repo.Delete(ctx, "guest@example.com"))

	_, err = repo.FindByIdentity(ctx, "guest@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLockoutRepository_ListPage(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	until := now.Add(-time.Minute)
	require.NoError(t, SeedLockoutRecord(ctx, testDB.Pool, &models.LoginAttemptRecord{
		Identity:       "locked@example.com",
		FailedAttempts: 5,
		LastAttemptAt:  now.Add(-10 * time.Minute),
		LockoutUntil:   &until,
	}))
	require.NoError(t, SeedLockoutRecord(ctx, testDB.Pool, &models.LoginAttemptRecord{
		Identity:       "stale@example.com",
		FailedAttempts: 2,
		LastAttemptAt:  now.Add(-time.Hour),
	}))
	require.NoError(t, SeedLockoutRecord(ctx, testDB.Pool, &models.LoginAttemptRecord{
		Identity:       "fresh@example.com",
		FailedAttempts: 1,
		LastAttemptAt:  now,
	}))

	page, err := repo.ListPage(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2, "page size bounds the sweep batch")

	all, err := repo.ListPage(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
