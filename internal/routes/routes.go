package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stagewerk/lockbox/internal/handlers"
	"github.com/stagewerk/lockbox/internal/middleware"
	pkghttp "github.com/stagewerk/lockbox/pkg/http"
)

// HealthChecker reports whether the lockout store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	adminAPIKey string,
	health HealthChecker,
) {
	// Public routes
	router.Post("/auth/login", authHandler.Login)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := health.HealthCheck(ctx); err != nil {
				pkghttp.WriteError(w, http.StatusServiceUnavailable, "unhealthy", "Lockout store unreachable")
				return
			}
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Admin routes for the platform's support tooling
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminAPIKey(adminAPIKey))

		r.Get("/admin/lockouts/{identity}", adminHandler.GetStatus)
		r.Post("/admin/lockouts/{identity}/clear", adminHandler.ClearLockout)
		r.Post("/admin/lockouts/cleanup", adminHandler.RunCleanup)
	})
}
