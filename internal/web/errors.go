package web

// errors.go provides unified error response handling for the web layer.
//
// Errors are logged with full technical detail and returned to the client
// as a user message with a suggested action and a support code, formatted
// for the kind of request (HTMX, JSON or HTML).

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/HOUCINE710/csv-fille-Processed/internal/core"
	"github.com/HOUCINE710/csv-fille-Processed/internal/logging"
	"github.com/HOUCINE710/csv-fille-Processed/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Action  string            `json:"action,omitempty"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// respondError logs the technical error and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	// Errors with a support code are expected; ERR000 means something broke.
	if core.IsUserFacing(err) {
		logger.Warn("request error", attrs...)
	} else {
		logger.Error("request error", attrs...)
	}

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, userMsg, statusCode)
	case wantsJSON(r):
		respondErrorJSON(w, r, userMsg, statusCode)
	default:
		respondErrorHTML(w, userMsg, statusCode)
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	render.Status(r, statusCode)
	render.JSON(w, r, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondErrorHTML writes a plain HTML error response.
func respondErrorHTML(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	http.Error(w, msg.Message+" ("+msg.Code+")", statusCode)
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error partial", "error", err)
	}
}

// statusFor picks the HTTP status for an error returned by the service.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case core.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyFiles), errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
