package middleware

import (
	"crypto/subtle"
	"net/http"

	pkghttp "github.com/stagewerk/lockbox/pkg/http"
)

// AdminAPIKeyHeader carries the key for admin endpoints
const AdminAPIKeyHeader = "X-Admin-API-Key"

// RequireAdminAPIKey returns a middleware that gates admin routes behind a
// shared API key. Comparison is constant time so the key cannot be probed
// byte by byte via response timing.
func RequireAdminAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(AdminAPIKeyHeader)
			if presented == "" {
				pkghttp.WriteUnauthorized(w, "Missing admin API key")
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
				pkghttp.WriteForbidden(w, "Invalid admin API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
