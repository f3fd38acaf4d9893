package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/stagewerk/lockbox/internal/models"
)

// Client is an HTTP adapter for a remote credential verifier. It owns its
// connection lifecycle: ResetConnection swaps the underlying transport
// instead of flipping a shared error flag.
type Client struct {
	baseURL string
	timeout time.Duration
	logger  *slog.Logger

	mu          sync.Mutex
	httpClient  *http.Client
	consecutive int // consecutive transport-level failures
}

type verifyRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type invalidateRequest struct {
	Identity string `json:"identity"`
}

// NewClient creates a remote verifier client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		timeout:    timeout,
		logger:     logger,
		httpClient: newHTTPClient(timeout),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func (c *Client) client() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.httpClient
}

// Verify checks the credential against the remote verifier.
func (c *Client) Verify(ctx context.Context, identity, password string) error {
	status, err := c.post(ctx, "/v1/verify", verifyRequest{Identity: identity, Password: password})
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.ErrInvalidCredentials
	default:
		return fmt.Errorf("%w: unexpected status %d", models.ErrVerifierUnavailable, status)
	}
}

// InvalidateLockoutCache asks the verifier to drop its cached lockout state
// for one identity.
func (c *Client) InvalidateLockoutCache(ctx context.Context, identity string) error {
	status, err := c.post(ctx, "/v1/lockout/invalidate", invalidateRequest{Identity: identity})
	if err != nil {
		return err
	}

	// 404 means the verifier holds no state for the identity, which is the
	// outcome we wanted anyway.
	if status == http.StatusOK || status == http.StatusNoContent || status == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("%w: invalidate returned status %d", models.ErrVerifierUnavailable, status)
}

// ResetConnection discards the cached HTTP client and its idle connections.
func (c *Client) ResetConnection() {
	c.mu.Lock()
	old := c.httpClient
	c.httpClient = newHTTPClient(c.timeout)
	c.consecutive = 0
	c.mu.Unlock()

	if transport, ok := old.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}

	c.logger.Info("verifier connection reset")
}

// ConsecutiveFailures reports transport-level failures since the last
// successful call or connection reset.
func (c *Client) ConsecutiveFailures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consecutive
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode verifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build verifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		c.recordFailure()
		return 0, fmt.Errorf("%w: %v", models.ErrVerifierUnavailable, err)
	}
	defer resp.Body.Close()

	c.recordSuccess()
	return resp.StatusCode, nil
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.consecutive++
	count := c.consecutive
	c.mu.Unlock()

	c.logger.Warn("verifier request failed", slog.Int("consecutive_failures", count))
}

func (c *Client) recordSuccess() {
	c.mu.Lock()
	c.consecutive = 0
	c.mu.Unlock()
}
