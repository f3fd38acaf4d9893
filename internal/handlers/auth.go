package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/stagewerk/lockbox/internal/models"
	pkghttp "github.com/stagewerk/lockbox/pkg/http"
)

// PolicyEngine defines the interface for the lockout policy engine
type PolicyEngine interface {
	CheckStatus(ctx context.Context, identity, ipAddress string) (models.LockoutStatus, error)
	RecordAttempt(ctx context.Context, identity, ipAddress, userAgent string, success bool) error
	ClearLockout(ctx context.Context, identity, ipAddress string) error
	CleanupExpired(ctx context.Context) (models.CleanupResult, error)
}

// CredentialChecker is the slice of the verifier the login handler needs
type CredentialChecker interface {
	Verify(ctx context.Context, identity, password string) error
}

// AuthHandler handles login requests, gating credential checks behind the
// lockout policy engine
type AuthHandler struct {
	engine   PolicyEngine
	verifier CredentialChecker
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(engine PolicyEngine, verifier CredentialChecker, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		engine:   engine,
		verifier: verifier,
		ipConfig: ipConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a successful login. No session or token is
// issued here; the platform's session service handles that downstream.
type LoginResponse struct {
	Message string `json:"message"`
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	// Normalize email
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ipAddress := h.ipConfig.ClientIP(r)
	userAgent := r.Header.Get("User-Agent")

	// Lockout gate runs before any credential work. A locked account never
	// reaches the verifier, so its deadline cannot be extended by retries.
	status, err := h.engine.CheckStatus(r.Context(), req.Email, ipAddress)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	if status.IsLocked {
		pkghttp.WriteAccountLocked(w, status.TimeRemaining)
		return
	}

	verifyErr := h.verifier.Verify(r.Context(), req.Email, req.Password)
	switch {
	case verifyErr == nil:
		if err := h.engine.RecordAttempt(r.Context(), req.Email, ipAddress, userAgent, true); err != nil {
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{Message: "Login successful"})

	case errors.Is(verifyErr, models.ErrInvalidCredentials):
		if err := h.engine.RecordAttempt(r.Context(), req.Email, ipAddress, userAgent, false); err != nil {
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
		// Generic message regardless of remaining attempts to prevent
		// user enumeration and threshold probing
		pkghttp.WriteUnauthorized(w, "Invalid email or password")

	default:
		// Verifier outage is not a failed attempt; nothing is recorded
		pkghttp.WriteError(w, http.StatusServiceUnavailable, "service_unavailable",
			"Unable to verify credentials. Please try again later.")
	}
}
