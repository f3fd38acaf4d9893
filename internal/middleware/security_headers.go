package middleware

import "net/http"

// SecurityHeadersConfig holds security headers configuration
type SecurityHeadersConfig struct {
	Env string
}

// SecurityHeaders returns a middleware that adds security headers to all
// responses. This service only speaks JSON, so the set is the API-relevant
// subset rather than a full browser policy.
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// nosniff prevents browsers from MIME-sniffing a response away
			// from the declared Content-Type
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// API responses are never meant to be framed
			w.Header().Set("X-Frame-Options", "DENY")

			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// Lockout statuses and login outcomes must not land in shared caches
			w.Header().Set("Cache-Control", "no-store")

			// HSTS only for HTTPS traffic in production
			if config.Env == "production" && (r.Header.Get("X-Forwarded-Proto") == "https" || r.URL.Scheme == "https") {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
