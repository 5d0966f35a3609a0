package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RecordTimeout bounds writing a run summary to the history log.
var RecordTimeout = 5 * time.Second

// Recorder stores run summaries. Implementations must not keep result rows.
type Recorder interface {
	RecordRun(ctx context.Context, run RunSummary) error
}

// Observer receives run and export outcomes for instrumentation.
type Observer interface {
	RunCompleted(run RunSummary, statuses map[Status]int)
	RunFailed(policy Policy, err error)
	Exported(format string, rows int)
}

// ServiceConfig holds the processing settings of a Service.
type ServiceConfig struct {
	Policy        Policy
	Mode          RerunMode
	Batch         BatchOptions
	MaxConcurrent int
	MaxWait       time.Duration
	SessionTTL    time.Duration
}

// Service ties sessions, the run limiter, batch processing, export and
// run history together. It is safe for concurrent use.
type Service struct {
	cfg      ServiceConfig
	sessions *SessionStore
	limiter  *RunLimiter
	recorder Recorder
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithRecorder sets where run summaries are written.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithObserver sets the instrumentation sink.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service with its own session store and run limiter.
func NewService(cfg ServiceConfig, opts ...Option) *Service {
	if cfg.Policy == "" {
		cfg.Policy = PolicyStrictPassFail
	}
	if cfg.Mode == "" {
		cfg.Mode = RerunReset
	}
	s := &Service{
		cfg:      cfg,
		sessions: NewSessionStore(cfg.SessionTTL, cfg.Mode),
		limiter:  NewRunLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		recorder: nopRecorder{},
		observer: nopObserver{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions.now = s.now
	if s.cfg.Batch.Logger == nil {
		s.cfg.Batch.Logger = s.logger
	}
	return s
}

// Policy returns the configured classifier policy.
func (s *Service) Policy() Policy { return s.cfg.Policy }

// Limiter exposes the run limiter for health output and shutdown draining.
func (s *Service) Limiter() *RunLimiter { return s.limiter }

// Sessions exposes the session store so the server can run its janitor.
func (s *Service) Sessions() *SessionStore { return s.sessions }

// Session returns a usable session ID for id (a new one when id is unknown)
// together with its state.
func (s *Service) Session(id string) (string, State) {
	id = s.sessions.Resolve(id)
	return id, s.sessions.Get(id)
}

// Snapshot returns the current state of a session.
func (s *Service) Snapshot(sessionID string) State {
	return s.sessions.Get(sessionID)
}

// SelectFiles replaces the session's file selection.
func (s *Service) SelectFiles(sessionID string, files []SourceFile) State {
	st, _ := s.sessions.Update(sessionID, func(st State) (State, error) {
		return st.FilesSelected(files), nil
	})
	return st
}

// SetThreshold stores the threshold text.
func (s *Service) SetThreshold(sessionID, threshold string) State {
	st, _ := s.sessions.Update(sessionID, func(st State) (State, error) {
		return st.ThresholdChanged(threshold), nil
	})
	return st
}

// SetReportID stores the report ID.
func (s *Service) SetReportID(sessionID, reportID string) State {
	st, _ := s.sessions.Update(sessionID, func(st State) (State, error) {
		return st.ReportIDChanged(reportID), nil
	})
	return st
}

// Reset discards the session's state.
func (s *Service) Reset(sessionID string) State {
	st, _ := s.sessions.Update(sessionID, func(State) (State, error) {
		return NewState(s.cfg.Mode), nil
	})
	return st
}

// Submission is one submit of the page form.
type Submission struct {
	ReportID  string
	Threshold string
	// Files replaces the selection when non-empty; an empty slice keeps the
	// files of the previous submit.
	Files []SourceFile
}

// Submit applies the form fields and then processes the session's files.
func (s *Service) Submit(ctx context.Context, sessionID string, sub Submission) (State, error) {
	return s.sessions.Update(sessionID, func(st State) (State, error) {
		st = st.ReportIDChanged(sub.ReportID)
		if len(sub.Files) > 0 {
			st = st.FilesSelected(sub.Files)
		}
		st = st.ThresholdChanged(sub.Threshold)
		return s.process(ctx, sessionID, st)
	})
}

// Process runs the batch for the files and threshold already in the session.
func (s *Service) Process(ctx context.Context, sessionID string) (State, error) {
	return s.sessions.Update(sessionID, func(st State) (State, error) {
		return s.process(ctx, sessionID, st)
	})
}

func (s *Service) process(ctx context.Context, sessionID string, st State) (State, error) {
	st, err := st.ProcessRequested()
	if err != nil {
		return st, err
	}

	logger := s.logger.With("session_id", sessionID, "policy", s.cfg.Policy)

	if err := s.limiter.Acquire(ctx); err != nil {
		logger.Warn("run rejected", "error", err, "active_runs", s.limiter.ActiveCount())
		s.observer.RunFailed(s.cfg.Policy, err)
		return st.ProcessFailed(err), fmt.Errorf("acquire run slot: %w", err)
	}
	defer s.limiter.Release()

	classifier := Classifier{
		Policy:    s.cfg.Policy,
		Threshold: ParseNumber(st.Threshold),
		Now:       s.now,
	}

	start := s.now()
	res, err := RunBatch(ctx, st.Files, classifier, s.cfg.Batch)
	if err != nil {
		logger.Error("run failed", "error", err, "files", len(st.Files))
		s.observer.RunFailed(s.cfg.Policy, err)
		return st.ProcessFailed(err), fmt.Errorf("process files: %w", err)
	}

	client := ClientFromContext(ctx)
	summary := RunSummary{
		RunID:     uuid.NewString(),
		SessionID: sessionID,
		ReportID:  st.ReportID,
		Policy:    s.cfg.Policy,
		Threshold: st.Threshold,
		Files:     stripRows(res.Files),
		Emitted:   res.Emitted,
		Dropped:   res.Dropped,
		StartedAt: start,
		Duration:  s.now().Sub(start),
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	}

	st = st.ProcessCompleted(summary, res.Rows)

	logger.Info("run completed",
		"run_id", summary.RunID,
		"report_id", summary.ReportID,
		"files", len(summary.Files),
		"emitted", summary.Emitted,
		"dropped", summary.Dropped,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	s.observer.RunCompleted(summary, CountStatuses(res.Rows))
	s.record(ctx, summary)

	return st, nil
}

// record writes the summary to the history log. Failures are logged only:
// the run itself already succeeded.
func (s *Service) record(ctx context.Context, summary RunSummary) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RecordTimeout)
	defer cancel()

	if err := s.recorder.RecordRun(ctx, summary); err != nil {
		s.logger.Error("failed to record run",
			"run_id", summary.RunID,
			"error", err,
		)
	}
}

// Export returns the CSV export of the session's table.
func (s *Service) Export(sessionID string) (State, []byte, error) {
	return s.export(sessionID, "csv", ExportCSV)
}

// ExportXLSX returns the workbook export of the session's table.
func (s *Service) ExportXLSX(sessionID string) (State, []byte, error) {
	return s.export(sessionID, "xlsx", ExportXLSX)
}

func (s *Service) export(sessionID, format string, encode func([]ResultRow) ([]byte, error)) (State, []byte, error) {
	var out []byte
	st, err := s.sessions.Update(sessionID, func(st State) (State, error) {
		st, rows, err := st.ExportRequested()
		if err != nil {
			return st, err
		}
		out, err = encode(rows)
		if err != nil {
			return st.ProcessFailed(err), fmt.Errorf("export %s: %w", format, err)
		}
		s.observer.Exported(format, len(rows))
		return st, nil
	})
	return st, out, err
}

// Classify runs the classifier over data rows without touching any session.
// Rows are taken as given; there is no header to skip.
func (s *Service) Classify(policy Policy, threshold string, rows [][]string) ([]ResultRow, int) {
	if policy == "" {
		policy = s.cfg.Policy
	}
	c := Classifier{Policy: policy, Threshold: ParseNumber(threshold), Now: s.now}

	out := make([]ResultRow, 0, len(rows))
	var dropped int
	for _, raw := range rows {
		row, ok := c.Classify(raw)
		if !ok {
			dropped++
			continue
		}
		out = append(out, row)
	}
	return out, dropped
}

func stripRows(files []FileResult) []FileResult {
	out := make([]FileResult, len(files))
	for i, f := range files {
		f.Rows = nil
		out[i] = f
	}
	return out
}

// CountStatuses tallies rows per status.
func CountStatuses(rows []ResultRow) map[Status]int {
	counts := make(map[Status]int)
	for _, r := range rows {
		counts[r.Status]++
	}
	return counts
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(context.Context, RunSummary) error { return nil }

type nopObserver struct{}

func (nopObserver) RunCompleted(RunSummary, map[Status]int) {}
func (nopObserver) RunFailed(Policy, error)                 {}
func (nopObserver) Exported(string, int)                    {}
