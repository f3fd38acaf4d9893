package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/stagewerk/lockbox/internal/models"
	pkghttp "github.com/stagewerk/lockbox/pkg/http"
)

// AdminHandler exposes lockout inspection and override operations for the
// platform's support tooling
type AdminHandler struct {
	engine   PolicyEngine
	ipConfig *pkghttp.IPConfig
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(engine PolicyEngine, ipConfig *pkghttp.IPConfig) *AdminHandler {
	return &AdminHandler{
		engine:   engine,
		ipConfig: ipConfig,
	}
}

// ClearLockoutResponse represents the response for a manual lockout clear
type ClearLockoutResponse struct {
	Message string `json:"message"`
}

// identityParam extracts and unescapes the identity path parameter
func identityParam(r *http.Request) string {
	raw := chi.URLParam(r, "identity")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// GetStatus returns the current lockout status for an identity
// @Summary Lockout status for an identity
// @Produce json
// @Success 200 {object} models.LockoutStatus
// @Failure 400 {object} ErrorResponse
// @Router /admin/lockouts/{identity} [get]
func (h *AdminHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	identity := identityParam(r)

	status, err := h.engine.CheckStatus(r.Context(), identity, h.ipConfig.ClientIP(r))
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Invalid identity")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// ClearLockout removes any lockout and failure history for an identity
// @Summary Manually clear a lockout
// @Produce json
// @Success 200 {object} ClearLockoutResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /admin/lockouts/{identity}/clear [post]
func (h *AdminHandler) ClearLockout(w http.ResponseWriter, r *http.Request) {
	identity := identityParam(r)

	err := h.engine.ClearLockout(r.Context(), identity, h.ipConfig.ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid identity")
		case errors.Is(err, models.ErrStoreUnavailable):
			// Unlike login reads, a manual override must not silently
			// no-op; the operator needs to know it did not take effect
			pkghttp.WriteError(w, http.StatusServiceUnavailable, "service_unavailable",
				"Lockout store unavailable. The clear did not take effect.")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, ClearLockoutResponse{Message: "Lockout cleared"})
}

// RunCleanup triggers one bounded cleanup batch outside the sweeper schedule
// @Summary Run an on-demand cleanup batch
// @Produce json
// @Success 200 {object} models.CleanupResult
// @Failure 503 {object} ErrorResponse
// @Router /admin/lockouts/cleanup [post]
func (h *AdminHandler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.CleanupExpired(r.Context())
	if err != nil {
		pkghttp.WriteError(w, http.StatusServiceUnavailable, "service_unavailable",
			"Cleanup could not complete against the lockout store.")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}
