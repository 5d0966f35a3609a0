package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	"github.com/HOUCINE710/csv-fille-Processed/internal/core"
	"github.com/HOUCINE710/csv-fille-Processed/internal/history"
	"github.com/HOUCINE710/csv-fille-Processed/internal/logging"
)

// ClassifyRequest is the body of POST /api/classify. Rows are data rows
// only; there is no header row to skip.
type ClassifyRequest struct {
	Threshold string     `json:"threshold" validate:"required,measurement"`
	Policy    string     `json:"policy" validate:"omitempty,oneof=strict-pass-fail active-inactive"`
	Rows      [][]string `json:"rows" validate:"required,max=100000"`
}

// ClassifyResponse is the result of POST /api/classify.
type ClassifyResponse struct {
	Policy  core.Policy         `json:"policy"`
	Rows    []core.ResultRow    `json:"rows"`
	Emitted int                 `json:"emitted"`
	Dropped int                 `json:"dropped"`
	Summary map[core.Status]int `json:"summary"`
}

// RowsResponse is the session table returned by GET /api/rows.
type RowsResponse struct {
	ReportID  string              `json:"reportId,omitempty"`
	Threshold string              `json:"threshold"`
	Error     string              `json:"error,omitempty"`
	Rows      []core.ResultRow    `json:"rows"`
	Summary   map[core.Status]int `json:"summary"`
	LastRunID string              `json:"lastRunId,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status   string             `json:"status"`
	Sessions int                `json:"sessions"`
	Runs     core.LimiterStatus `json:"runs"`
}

// handleClassify classifies rows sent as JSON without touching any session.
// The body is capped at the per-file upload size.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if limit := s.cfg.Upload.MaxFileSize; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	var req ClassifyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("classify request exceeds %d bytes: %w", tooLarge.Limit, core.ErrFileTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("decode classify request: %w: %w", core.ErrInvalidRequest, err), http.StatusBadRequest)
		return
	}

	if err := s.validate.Struct(req); err != nil {
		msg := core.MapError(core.ErrInvalidRequest)
		logging.FromContext(r.Context()).Warn("classify request invalid", "error", err)
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
			Fields:  fieldErrors(err),
		})
		return
	}

	policy := s.service.Policy()
	if req.Policy != "" {
		policy = core.Policy(req.Policy)
	}

	rows, dropped := s.service.Classify(policy, req.Threshold, req.Rows)
	logging.WithFields(r.Context(), "policy", policy, "threshold", req.Threshold).Info("rows classified",
		"emitted", len(rows),
		"dropped", dropped,
	)
	render.JSON(w, r, ClassifyResponse{
		Policy:  policy,
		Rows:    rows,
		Emitted: len(rows),
		Dropped: dropped,
		Summary: core.CountStatuses(rows),
	})
}

// handleRows returns the session's current table.
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	st := s.service.Snapshot(sessionID(r))

	resp := RowsResponse{
		ReportID:  st.ReportID,
		Threshold: st.Threshold,
		Error:     st.Error,
		Rows:      st.Rows,
		Summary:   st.Summary(),
	}
	if resp.Rows == nil {
		resp.Rows = []core.ResultRow{}
	}
	if st.LastRun != nil {
		resp.LastRunID = st.LastRun.RunID
	}
	render.JSON(w, r, resp)
}

// handleRuns lists stored runs, newest first.
//
// Query parameters: report_id, policy, since (RFC 3339), limit, offset.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{
			Error:   "run history is not enabled",
			Message: "Run history is not enabled",
			Action:  "Set DATABASE_URL to record runs",
			Code:    "HIST001",
		})
		return
	}

	q := r.URL.Query()
	opts := history.ListOptions{
		ReportID: q.Get("report_id"),
		Policy:   q.Get("policy"),
		Limit:    parseIntParam(r, "limit", history.DefaultListLimit),
		Offset:   parseIntParam(r, "offset", 0),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			s.respondError(w, r, fmt.Errorf("since %q: %w", since, core.ErrInvalidRequest), http.StatusBadRequest)
			return
		}
		opts.Since = t
	}

	runs, err := s.runs.ListRuns(r.Context(), opts)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	render.JSON(w, r, runs)
}

// handleHealth reports liveness with session and run-slot counts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:   "ok",
		Sessions: s.service.Sessions().Len(),
		Runs:     s.service.Limiter().Status(),
	})
}

// parseIntParam parses a non-negative integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}
