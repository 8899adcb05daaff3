// Package middleware provides HTTP middleware for the engine service.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/varunvs7692/chaos-negotiator/pkg/logger"
)

// APIKey returns a middleware that requires the X-API-Key header to
// match the configured key. An empty key disables the check; routes
// stay open for local development.
func APIKey(key string, log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				log.Warn("rejected request with invalid api key",
					"method", r.Method,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error": "invalid or missing api key"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
