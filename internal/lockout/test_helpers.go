package lockout

import (
	"context"
	"sync"
	"time"

	"github.com/stagewerk/lockbox/internal/models"
)

// MockVerifier implements verifier.CredentialVerifier for testing and
// counts sync-relevant calls.
type MockVerifier struct {
	mu sync.Mutex

	VerifyFunc     func(ctx context.Context, identity, password string) error
	InvalidateFunc func(ctx context.Context, identity string) error

	invalidated []string
	resets      int
}

func (m *MockVerifier) Verify(ctx context.Context, identity, password string) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, identity, password)
	}
	return nil
}

func (m *MockVerifier) InvalidateLockoutCache(ctx context.Context, identity string) error {
	m.mu.Lock()
	m.invalidated = append(m.invalidated, identity)
	m.mu.Unlock()

	if m.InvalidateFunc != nil {
		return m.InvalidateFunc(ctx, identity)
	}
	return nil
}

func (m *MockVerifier) ResetConnection() {
	m.mu.Lock()
	m.resets++
	m.mu.Unlock()
}

// InvalidateCalls returns the identities passed to InvalidateLockoutCache,
// in order.
func (m *MockVerifier) InvalidateCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.invalidated...)
}

// ResetCalls returns how often ResetConnection was invoked.
func (m *MockVerifier) ResetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// MockNotifier implements LockoutNotifier and records notifications.
type MockNotifier struct {
	mu            sync.Mutex
	NotifyFunc    func(ctx context.Context, identity, ipAddress string, until time.Time) error
	notifications []string
}

func (m *MockNotifier) NotifyLockout(ctx context.Context, identity, ipAddress string, until time.Time) error {
	m.mu.Lock()
	m.notifications = append(m.notifications, identity)
	m.mu.Unlock()

	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, identity, ipAddress, until)
	}
	return nil
}

// Notifications returns the identities notified so far.
func (m *MockNotifier) Notifications() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.notifications...)
}

// FailingStore simulates an unavailable attempt store.
type FailingStore struct {
	Err error
}

func (s *FailingStore) FindByIdentity(ctx context.Context, identity string) (*models.LoginAttemptRecord, error) {
	return nil, s.Err
}

func (s *FailingStore) Create(ctx context.Context, rec *models.LoginAttemptRecord) error {
	return s.Err
}

func (s *FailingStore) IncrementOrCreate(ctx context.Context, identity, ipAddress, userAgent string, now time.Time) (*models.LoginAttemptRecord, error) {
	return nil, s.Err
}

func (s *FailingStore) SetLockout(ctx context.Context, identity string, until time.Time) (bool, error) {
	return false, s.Err
}

func (s *FailingStore) Delete(ctx context.Context, identity string) error {
	return s.Err
}

func (s *FailingStore) ListPage(ctx context.Context, limit int) ([]*models.LoginAttemptRecord, error) {
	return nil, s.Err
}
