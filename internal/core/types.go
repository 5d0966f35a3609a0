package core

import (
	"fmt"
	"time"
)

// Policy selects the rule set used to classify raw rows.
type Policy string

const (
	// PolicyStrictPassFail drops incomplete or non-numeric rows and labels the
	// rest Pass when threshold <= max pressure.
	PolicyStrictPassFail Policy = "strict-pass-fail"

	// PolicyActiveInactive keeps every row, defaults bad event pressure to 0
	// and labels rows Active when event pressure >= threshold.
	PolicyActiveInactive Policy = "active-inactive"
)

// ParsePolicy converts a configured policy name to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyStrictPassFail, PolicyActiveInactive:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown classifier policy %q", s)
	}
}

// RerunMode decides what a new run does with the rows already displayed.
type RerunMode string

const (
	// RerunReset replaces the table on every run. Selecting files or changing
	// the threshold also clears it.
	RerunReset RerunMode = "reset"

	// RerunAppend appends each run's rows to the existing table.
	RerunAppend RerunMode = "append"
)

// ParseRerunMode converts a configured mode name to a RerunMode.
func ParseRerunMode(s string) (RerunMode, error) {
	switch RerunMode(s) {
	case RerunReset, RerunAppend:
		return RerunMode(s), nil
	default:
		return "", fmt.Errorf("unknown rerun mode %q", s)
	}
}

// Status is the derived label of a result row.
type Status string

const (
	StatusPass     Status = "Pass"
	StatusFail     Status = "Fail"
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// Positive reports whether the status is the "good" outcome of its policy.
func (s Status) Positive() bool {
	return s == StatusPass || s == StatusActive
}

// ResultRow is one classified record derived from a source row plus the threshold.
type ResultRow struct {
	Key                    string  `json:"key"`
	PressureMeasurement    string  `json:"pressureMeasurement"`
	EventPressure          float64 `json:"-"`
	PressureMaxMeasurement string  `json:"pressureMaxMeasurement"`
	Status                 Status  `json:"status"`
	UpdatedBy              string  `json:"updatedBy"`
	UpdatedDate            string  `json:"updatedDate"`
	AttachmentsIndicator   string  `json:"attachmentsIndicator"`
	SourceFile             string  `json:"sourceFile,omitempty"`
}

// Record returns the row's export fields in header order.
func (r ResultRow) Record() []string {
	return []string{
		r.Key,
		r.PressureMeasurement,
		r.PressureMaxMeasurement,
		string(r.Status),
		r.UpdatedBy,
		r.UpdatedDate,
		r.AttachmentsIndicator,
	}
}

// SourceFile is one uploaded file held in a session until the next selection.
type SourceFile struct {
	Name string
	Data []byte
}

// Size returns the file size in bytes.
func (f SourceFile) Size() int64 {
	return int64(len(f.Data))
}

// FileResult is the outcome of parsing and classifying one file.
type FileResult struct {
	FileName string
	DataRows int // rows after the header
	Dropped  int // rows the policy discarded
	Rows     []ResultRow
	ReadErr  string // non-empty when the file stopped parsing early
}

// RunSummary describes one completed batch run.
type RunSummary struct {
	RunID     string
	SessionID string
	ReportID  string
	Policy    Policy
	Threshold string
	Files     []FileResult
	Emitted   int
	Dropped   int
	StartedAt time.Time
	Duration  time.Duration
	IPAddress string
	UserAgent string
}
