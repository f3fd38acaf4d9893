package background

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stagewerk/lockbox/internal/models"
	"github.com/stretchr/testify/assert"
)

type mockCleaner struct {
	mu     sync.Mutex
	calls  int
	result models.CleanupResult
	err    error
}

func (m *mockCleaner) CleanupExpired(ctx context.Context) (models.CleanupResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.result, m.err
}

func (m *mockCleaner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func TestSweeper_RunsImmediatelyOnStart(t *testing.T) {
	cleaner := &mockCleaner{result: models.CleanupResult{LockoutsCleared: 2}}
	sweeper := NewSweeper(cleaner, testLogger(), time.Hour)

	done := make(chan struct{})
	go func() {
		sweeper.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return cleaner.callCount() >= 1 },
		2*time.Second, 10*time.Millisecond)

	sweeper.Stop()
	<-done
}

func TestSweeper_RunsOnTicker(t *testing.T) {
	cleaner := &mockCleaner{}
	sweeper := NewSweeper(cleaner, testLogger(), 20*time.Millisecond)

	done := make(chan struct{})
	go func() {
		sweeper.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return cleaner.callCount() >= 3 },
		2*time.Second, 10*time.Millisecond)

	sweeper.Stop()
	<-done
}

func TestSweeper_StopsOnContextCancel(t *testing.T) {
	cleaner := &mockCleaner{}
	sweeper := NewSweeper(cleaner, testLogger(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop on context cancellation")
	}
}

func TestSweeper_SurvivesCleanupErrors(t *testing.T) {
	cleaner := &mockCleaner{err: errors.New("store down")}
	sweeper := NewSweeper(cleaner, testLogger(), 20*time.Millisecond)

	done := make(chan struct{})
	go func() {
		sweeper.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return cleaner.callCount() >= 2 },
		2*time.Second, 10*time.Millisecond, "a failed sweep must not kill the loop")

	sweeper.Stop()
	<-done
}
