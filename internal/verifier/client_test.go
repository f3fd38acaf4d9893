package verifier

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stagewerk/lockbox/internal/models"
	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func TestClientVerify_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/verify", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second, testLogger())

	err := client.Verify(context.Background(), "a@x.com", "hunter2!")
	assert.NoError(t, err)
}

func TestClientVerify_BadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second, testLogger())

	err := client.Verify(context.Background(), "a@x.com", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestClientVerify_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 500*time.Millisecond, testLogger())

	err := client.Verify(context.Background(), "a@x.com", "hunter2!")
	assert.ErrorIs(t, err, models.ErrVerifierUnavailable)
	assert.Equal(t, 1, client.ConsecutiveFailures())
}

func TestClientInvalidate_TreatsNotFoundAsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/lockout/invalidate", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second, testLogger())

	err := client.InvalidateLockoutCache(context.Background(), "a@x.com")
	assert.NoError(t, err)
}

func TestClientInvalidate_SurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second, testLogger())

	err := client.InvalidateLockoutCache(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, models.ErrVerifierUnavailable)
}

func TestClientResetConnection_ClearsFailureCount(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 500*time.Millisecond, testLogger())

	_ = client.Verify(context.Background(), "a@x.com", "hunter2!")
	_ = client.Verify(context.Background(), "a@x.com", "hunter2!")
	assert.Equal(t, 2, client.ConsecutiveFailures())

	client.ResetConnection()
	assert.Equal(t, 0, client.ConsecutiveFailures())
}

func TestClientResetConnection_ClientStillUsable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second, testLogger())
	client.ResetConnection()

	err := client.Verify(context.Background(), "a@x.com", "hunter2!")
	assert.NoError(t, err)
}
