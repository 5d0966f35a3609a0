// Package logging provides structured logging configuration using log/slog.
//
// Request loggers carry chi's request ID so every entry produced while
// handling one form submission can be correlated.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey int

const sessionKey ctxKey = iota

// Setup configures the global slog logger to write to stdout.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w with the given level and format.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ContextWithSession stores the visitor's session ID for log enrichment.
func ContextWithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey, sessionID)
}

// SessionFromContext returns the session ID stored by ContextWithSession.
func SessionFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionKey).(string); ok {
		return v
	}
	return ""
}

// FromContext returns a logger enriched with request context.
//
// When the context carries a chi request ID or a session ID, every entry
// written through the returned logger includes them.
//
//	logger := logging.FromContext(r.Context())
//	logger.Info("processing run", "files", len(files))
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if sid := SessionFromContext(ctx); sid != "" {
		logger = logger.With("session_id", sid)
	}

	return logger
}

// WithFields returns a context logger with additional structured fields.
//
//	runLogger := logging.WithFields(ctx, "run_id", runID, "policy", policy)
//	runLogger.Info("run started")
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
