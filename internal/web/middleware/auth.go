package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// APIKeyHeader carries the key checked by APIKeyAuth.
const APIKeyHeader = "X-API-Key"

type authError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// APIKeyAuth rejects requests whose X-API-Key is missing or unknown.
// With required false every request passes. With required true and no keys
// configured every request is rejected.
func APIKeyAuth(required bool, keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !required {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				slog.Warn("auth: missing API key", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, authError{Error: "missing API key", Code: "AUTH_MISSING_KEY"})
				return
			}
			if !validAPIKey(key, keys) {
				slog.Warn("auth: invalid API key", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, authError{Error: "invalid API key", Code: "AUTH_INVALID_KEY"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// validAPIKey compares against every key in constant time.
func validAPIKey(key string, keys []string) bool {
	valid := 0
	for _, k := range keys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return valid == 1
}
