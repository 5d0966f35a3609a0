// Package history keeps an audit trail of classification runs in PostgreSQL.
//
// Only run metadata is stored: who ran it, with which policy and threshold,
// and how many rows came out. Result rows never leave the visitor's session.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/HOUCINE710/csv-fille-Processed/internal/core"
)

// DefaultListLimit caps ListRuns when no limit is given.
const DefaultListLimit = 50

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Schema creates the processing_runs table.
const Schema = `
CREATE TABLE IF NOT EXISTS processing_runs (
    run_id       UUID PRIMARY KEY,
    session_id   UUID NOT NULL,
    report_id    TEXT,
    policy       TEXT NOT NULL,
    threshold    TEXT NOT NULL,
    file_count   INTEGER NOT NULL,
    files        JSONB NOT NULL DEFAULT '[]',
    rows_emitted INTEGER NOT NULL,
    rows_dropped INTEGER NOT NULL,
    duration_ms  BIGINT NOT NULL,
    ip_address   INET,
    user_agent   TEXT,
    started_at   TIMESTAMPTZ NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS processing_runs_created_at_idx ON processing_runs (created_at DESC);
CREATE INDEX IF NOT EXISTS processing_runs_report_id_idx ON processing_runs (report_id);
`

const insertRunSQL = `
INSERT INTO processing_runs (
    run_id, session_id, report_id, policy, threshold,
    file_count, files, rows_emitted, rows_dropped, duration_ms,
    ip_address, user_agent, started_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const selectRunsSQL = `
SELECT run_id, session_id, report_id, policy, threshold,
       file_count, files, rows_emitted, rows_dropped, duration_ms,
       ip_address, user_agent, started_at, created_at
FROM processing_runs`

// Run is one stored run.
type Run struct {
	RunID      string      `json:"runId"`
	SessionID  string      `json:"sessionId"`
	ReportID   string      `json:"reportId,omitempty"`
	Policy     string      `json:"policy"`
	Threshold  string      `json:"threshold"`
	FileCount  int         `json:"fileCount"`
	Files      []FileEntry `json:"files"`
	Emitted    int         `json:"rowsEmitted"`
	Dropped    int         `json:"rowsDropped"`
	DurationMS int64       `json:"durationMs"`
	IPAddress  string      `json:"ipAddress,omitempty"`
	UserAgent  string      `json:"userAgent,omitempty"`
	StartedAt  time.Time   `json:"startedAt"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// FileEntry is the per-file part of a stored run.
type FileEntry struct {
	Name     string `json:"name"`
	DataRows int    `json:"dataRows"`
	Dropped  int    `json:"dropped"`
	ReadErr  string `json:"readError,omitempty"`
}

// Store reads and writes processing_runs.
type Store struct {
	db DBTX
}

// New returns a Store backed by db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the table and its indexes when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create processing_runs: %w", err)
	}
	return nil
}

// RecordRun implements core.Recorder.
func (s *Store) RecordRun(ctx context.Context, run core.RunSummary) error {
	files := make([]FileEntry, len(run.Files))
	for i, f := range run.Files {
		files[i] = FileEntry{Name: f.FileName, DataRows: f.DataRows, Dropped: f.Dropped, ReadErr: f.ReadErr}
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("marshal files: %w", err)
	}

	_, err = s.db.Exec(ctx, insertRunSQL,
		toPgUUID(run.RunID),
		toPgUUID(run.SessionID),
		toPgText(run.ReportID),
		string(run.Policy),
		run.Threshold,
		len(run.Files),
		filesJSON,
		run.Emitted,
		run.Dropped,
		run.Duration.Milliseconds(),
		parseIP(run.IPAddress),
		toPgText(run.UserAgent),
		pgtype.Timestamptz{Time: run.StartedAt, Valid: !run.StartedAt.IsZero()},
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}
	return nil
}

// ListOptions filters ListRuns.
type ListOptions struct {
	SessionID string
	ReportID  string
	Policy    string
	Since     time.Time
	Limit     int
	Offset    int
}

// ListRuns returns stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	query, args := buildListQuery(opts)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func buildListQuery(opts ListOptions) (string, []interface{}) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}

	wb := newWhereBuilder()
	if opts.SessionID != "" {
		wb.Add("session_id", toPgUUID(opts.SessionID))
	}
	if opts.ReportID != "" {
		wb.Add("report_id", opts.ReportID)
	}
	if opts.Policy != "" {
		wb.Add("policy", opts.Policy)
	}
	if !opts.Since.IsZero() {
		wb.AddOp("created_at", ">=", pgtype.Timestamptz{Time: opts.Since, Valid: true})
	}

	where, args := wb.Build()
	limitIdx := len(args) + 1
	args = append(args, opts.Limit, opts.Offset)

	var b strings.Builder
	b.WriteString(selectRunsSQL)
	b.WriteString(where)
	fmt.Fprintf(&b, " ORDER BY created_at DESC LIMIT $%d OFFSET $%d", limitIdx, limitIdx+1)
	return b.String(), args
}

func scanRun(rows pgx.Rows) (Run, error) {
	var (
		runID     pgtype.UUID
		sessionID pgtype.UUID
		reportID  pgtype.Text
		ipAddress *netip.Addr
		userAgent pgtype.Text
		startedAt pgtype.Timestamptz
		createdAt pgtype.Timestamptz
		files     []byte
		run       Run
	)

	err := rows.Scan(
		&runID, &sessionID, &reportID, &run.Policy, &run.Threshold,
		&run.FileCount, &files, &run.Emitted, &run.Dropped, &run.DurationMS,
		&ipAddress, &userAgent, &startedAt, &createdAt,
	)
	if err != nil {
		return Run{}, err
	}

	run.RunID = pgUUIDToString(runID)
	run.SessionID = pgUUIDToString(sessionID)
	run.ReportID = reportID.String
	run.UserAgent = userAgent.String
	run.StartedAt = startedAt.Time
	run.CreatedAt = createdAt.Time
	if ipAddress != nil {
		run.IPAddress = ipAddress.String()
	}
	if len(files) > 0 {
		if err := json.Unmarshal(files, &run.Files); err != nil {
			return Run{}, fmt.Errorf("decode files: %w", err)
		}
	}
	return run, nil
}

// Nop discards every run. It is used when no database is configured.
type Nop struct{}

// RecordRun implements core.Recorder.
func (Nop) RecordRun(context.Context, core.RunSummary) error { return nil }

// ----------------------------------------------------------------------------
// pgtype conversions
// ----------------------------------------------------------------------------

func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// toPgUUID returns an invalid UUID for empty or malformed input.
func toPgUUID(s string) pgtype.UUID {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func pgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// parseIP strips a port if present. Unparseable input yields nil (NULL).
func parseIP(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}
