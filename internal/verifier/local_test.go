package verifier

import (
	"context"
	"testing"

	"github.com/stagewerk/lockbox/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalVerify_CorrectCredential(t *testing.T) {
	local := NewLocal(nil)
	require.NoError(t, local.SetCredential("a@x.com", "Correct-Horse-7!"))

	err := local.Verify(context.Background(), "a@x.com", "Correct-Horse-7!")
	assert.NoError(t, err)
}

func TestLocalVerify_WrongCredential(t *testing.T) {
	local := NewLocal(nil)
	require.NoError(t, local.SetCredential("a@x.com", "Correct-Horse-7!"))

	err := local.Verify(context.Background(), "a@x.com", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Equal(t, 1, local.CachedFailures("a@x.com"))
}

func TestLocalVerify_UnknownIdentity(t *testing.T) {
	local := NewLocal(nil)

	err := local.Verify(context.Background(), "nobody@x.com", "whatever")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestLocalVerify_SuccessClearsFailureCache(t *testing.T) {
	local := NewLocal(nil)
	require.NoError(t, local.SetCredential("a@x.com", "Correct-Horse-7!"))

	_ = local.Verify(context.Background(), "a@x.com", "wrong")
	_ = local.Verify(context.Background(), "a@x.com", "wrong")
	require.NoError(t, local.Verify(context.Background(), "a@x.com", "Correct-Horse-7!"))

	assert.Equal(t, 0, local.CachedFailures("a@x.com"))
}

// The production verifier keeps rejecting previously-valid credentials after
// enough failures until its cache is forcibly invalidated. The local adapter
// reproduces that so the sync procedure has something real to test against.
func TestLocalVerify_StaleCacheRejectsValidCredential(t *testing.T) {
	local := NewLocal(nil)
	require.NoError(t, local.SetCredential("a@x.com", "Correct-Horse-7!"))

	for i := 0; i < localCacheThreshold; i++ {
		_ = local.Verify(context.Background(), "a@x.com", "wrong")
	}

	err := local.Verify(context.Background(), "a@x.com", "Correct-Horse-7!")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials, "stale cache should reject valid credential")

	require.NoError(t, local.InvalidateLockoutCache(context.Background(), "a@x.com"))

	err = local.Verify(context.Background(), "a@x.com", "Correct-Horse-7!")
	assert.NoError(t, err, "invalidation should restore access")
}

func TestLocalResetConnection_DropsAllCachedState(t *testing.T) {
	local := NewLocal(nil)
	require.NoError(t, local.SetCredential("a@x.com", "Correct-Horse-7!"))
	require.NoError(t, local.SetCredential("b@x.com", "Other-Horse-8!"))

	for i := 0; i < localCacheThreshold; i++ {
		_ = local.Verify(context.Background(), "a@x.com", "wrong")
		_ = local.Verify(context.Background(), "b@x.com", "wrong")
	}

	local.ResetConnection()

	assert.NoError(t, local.Verify(context.Background(), "a@x.com", "Correct-Horse-7!"))
	assert.NoError(t, local.Verify(context.Background(), "b@x.com", "Other-Horse-8!"))
}
