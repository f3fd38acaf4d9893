package verifier

import (
	"context"
	"sync"

	"github.com/stagewerk/lockbox/internal/models"
	"github.com/stagewerk/lockbox/pkg/auth"
)

// localCacheThreshold is the failure count after which the local verifier
// starts rejecting even valid credentials, mirroring the hidden lockout
// cache observed in the production verifier.
const localCacheThreshold = 5

// Local verifies credentials against an in-memory set of bcrypt hashes. It
// is the development and test backend, and it deliberately reproduces the
// external verifier's failure mode: after repeated failures for an identity
// it keeps rejecting valid credentials until its cache is invalidated.
type Local struct {
	mu       sync.Mutex
	hashes   map[string]string // identity -> bcrypt hash
	failures map[string]int    // internal lockout cache
}

// NewLocal creates a local verifier over the given identity -> bcrypt hash map.
func NewLocal(hashes map[string]string) *Local {
	if hashes == nil {
		hashes = make(map[string]string)
	}
	return &Local{
		hashes:   hashes,
		failures: make(map[string]int),
	}
}

// SetCredential registers or replaces a credential.
func (l *Local) SetCredential(identity, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.hashes[identity] = hash
	l.mu.Unlock()
	return nil
}

// Verify checks the credential. Once the internal failure cache for an
// identity reaches its threshold, Verify rejects even correct credentials
// until InvalidateLockoutCache is called for that identity.
func (l *Local) Verify(ctx context.Context, identity, password string) error {
	l.mu.Lock()
	hash, ok := l.hashes[identity]
	cached := l.failures[identity] >= localCacheThreshold
	l.mu.Unlock()

	if cached {
		return models.ErrInvalidCredentials
	}
	if !ok {
		l.recordFailure(identity)
		return models.ErrInvalidCredentials
	}

	if err := auth.ComparePassword(hash, password); err != nil {
		l.recordFailure(identity)
		return models.ErrInvalidCredentials
	}

	l.mu.Lock()
	delete(l.failures, identity)
	l.mu.Unlock()
	return nil
}

// InvalidateLockoutCache drops the cached failure state for one identity.
func (l *Local) InvalidateLockoutCache(ctx context.Context, identity string) error {
	l.mu.Lock()
	delete(l.failures, identity)
	l.mu.Unlock()
	return nil
}

// ResetConnection drops all cached failure state.
func (l *Local) ResetConnection() {
	l.mu.Lock()
	l.failures = make(map[string]int)
	l.mu.Unlock()
}

// CachedFailures reports the internal failure count for an identity.
func (l *Local) CachedFailures(identity string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures[identity]
}

func (l *Local) recordFailure(identity string) {
	l.mu.Lock()
	l.failures[identity]++
	l.mu.Unlock()
}
