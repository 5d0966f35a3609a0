// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/HOUCINE710/csv-fille-Processed/internal/logging"
)

// Logger logs one structured line per request with status, size and
// duration. The logger comes from logging.FromContext, so the line carries
// chi's request ID.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		logger := logging.FromContext(r.Context())
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", ClientIP(r),
			"user_agent", r.UserAgent(),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request", attrs...)
			return
		}
		logger.Info("request", attrs...)
	})
}
