package handlers

import (
	"context"
	"sync"

	"github.com/stagewerk/lockbox/internal/models"
)

// MockPolicyEngine implements PolicyEngine with overridable behavior
type MockPolicyEngine struct {
	mu sync.Mutex

	CheckStatusFunc    func(ctx context.Context, identity, ipAddress string) (models.LockoutStatus, error)
	RecordAttemptFunc  func(ctx context.Context, identity, ipAddress, userAgent string, success bool) error
	ClearLockoutFunc   func(ctx context.Context, identity, ipAddress string) error
	CleanupExpiredFunc func(ctx context.Context) (models.CleanupResult, error)

	recorded []RecordedAttempt
	cleared  []string
}

// RecordedAttempt captures one RecordAttempt call for assertions
type RecordedAttempt struct {
	Identity  string
	IPAddress string
	UserAgent string
	Success   bool
}

func (m *MockPolicyEngine) CheckStatus(ctx context.Context, identity, ipAddress string) (models.LockoutStatus, error) {
	if m.CheckStatusFunc != nil {
		return m.CheckStatusFunc(ctx, identity, ipAddress)
	}
	return models.LockoutStatus{IsLocked: false}, nil
}

func (m *MockPolicyEngine) RecordAttempt(ctx context.Context, identity, ipAddress, userAgent string, success bool) error {
	m.mu.Lock()
	m.recorded = append(m.recorded, RecordedAttempt{
		Identity:  identity,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   success,
	})
	m.mu.Unlock()

	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, identity, ipAddress, userAgent, success)
	}
	return nil
}

func (m *MockPolicyEngine) ClearLockout(ctx context.Context, identity, ipAddress string) error {
	m.mu.Lock()
	m.cleared = append(m.cleared, identity)
	m.mu.Unlock()

	if m.ClearLockoutFunc != nil {
		return m.ClearLockoutFunc(ctx, identity, ipAddress)
	}
	return nil
}

func (m *MockPolicyEngine) CleanupExpired(ctx context.Context) (models.CleanupResult, error) {
	if m.CleanupExpiredFunc != nil {
		return m.CleanupExpiredFunc(ctx)
	}
	return models.CleanupResult{}, nil
}

// RecordedAttempts returns a copy of every RecordAttempt call seen so far
func (m *MockPolicyEngine) RecordedAttempts() []RecordedAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedAttempt, len(m.recorded))
	copy(out, m.recorded)
	return out
}

// ClearedIdentities returns the identities passed to ClearLockout
func (m *MockPolicyEngine) ClearedIdentities() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.cleared))
	copy(out, m.cleared)
	return out
}

// MockCredentialChecker implements CredentialChecker with a fixed outcome
type MockCredentialChecker struct {
	VerifyFunc func(ctx context.Context, identity, password string) error
}

func (m *MockCredentialChecker) Verify(ctx context.Context, identity, password string) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, identity, password)
	}
	return nil
}
