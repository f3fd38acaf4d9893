package lockout_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stagewerk/lockbox/internal/lockout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSyncLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func TestSyncer_HappyPathSequence(t *testing.T) {
	mockVerifier := &lockout.MockVerifier{}
	syncer := lockout.NewSyncer(mockVerifier, newSyncLogger(), time.Millisecond, 2)

	err := syncer.Invalidate(context.Background(), "a@x.com")
	require.NoError(t, err)

	assert.Equal(t, []string{"a@x.com"}, mockVerifier.InvalidateCalls())
	assert.Equal(t, 2, mockVerifier.ResetCalls(), "one reset plus the defensive repeat")
}

func TestSyncer_RetriesInvalidation(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	mockVerifier := &lockout.MockVerifier{}
	mockVerifier.InvalidateFunc = func(ctx context.Context, identity string) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return errors.New("verifier flake")
		}
		return nil
	}

	syncer := lockout.NewSyncer(mockVerifier, newSyncLogger(), 0, 3)

	err := syncer.Invalidate(context.Background(), "a@x.com")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
}

func TestSyncer_GivesUpAfterBoundedRetries(t *testing.T) {
	mockVerifier := &lockout.MockVerifier{}
	mockVerifier.InvalidateFunc = func(ctx context.Context, identity string) error {
		return errors.New("verifier down")
	}

	syncer := lockout.NewSyncer(mockVerifier, newSyncLogger(), 0, 2)

	err := syncer.Invalidate(context.Background(), "a@x.com")
	assert.Error(t, err, "exhausted retries are reported for visibility")

	// 1 initial call + 2 retries
	assert.Len(t, mockVerifier.InvalidateCalls(), 3)
	// The connection resets still run; they are the part that has been
	// observed to actually help.
	assert.GreaterOrEqual(t, mockVerifier.ResetCalls(), 1)
}

func TestSyncer_SafeToRunRedundantly(t *testing.T) {
	mockVerifier := &lockout.MockVerifier{}
	syncer := lockout.NewSyncer(mockVerifier, newSyncLogger(), 0, 0)

	require.NoError(t, syncer.Invalidate(context.Background(), "a@x.com"))
	require.NoError(t, syncer.Invalidate(context.Background(), "a@x.com"))

	assert.Len(t, mockVerifier.InvalidateCalls(), 2)
}

func TestSyncer_SkipsSecondResetWhenCallerGone(t *testing.T) {
	mockVerifier := &lockout.MockVerifier{}
	syncer := lockout.NewSyncer(mockVerifier, newSyncLogger(), time.Hour, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = syncer.Invalidate(ctx, "a@x.com")
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Invalidate did not return after cancellation")
	}

	assert.Equal(t, 1, mockVerifier.ResetCalls(), "settle wait was cancelled before the repeat reset")
}
