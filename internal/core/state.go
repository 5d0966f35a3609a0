package core

// state.go holds the page state of one visitor and the transitions a user
// action causes. State is a value: every transition returns a new State and
// leaves the receiver untouched, so handlers can compute the next state,
// run side effects, and then publish it.

// State is what the page shows: the selected files, the form fields, the
// error line and the results table.
type State struct {
	Files     []SourceFile
	Threshold string
	ReportID  string
	Error     string
	Rows      []ResultRow
	Mode      RerunMode
	LastRun   *RunSummary
}

// NewState returns an empty page for the given rerun mode.
func NewState(mode RerunMode) State {
	if mode == "" {
		mode = RerunReset
	}
	return State{Mode: mode}
}

// FilesSelected replaces the file selection. In reset mode it also clears
// the table and the error line.
func (s State) FilesSelected(files []SourceFile) State {
	next := s
	next.Files = append([]SourceFile(nil), files...)
	if s.Mode == RerunReset {
		next.Rows = nil
		next.Error = ""
	}
	return next
}

// ThresholdChanged stores the new threshold text. In reset mode a different
// value clears the table.
func (s State) ThresholdChanged(threshold string) State {
	next := s
	next.Threshold = threshold
	if s.Mode == RerunReset && threshold != s.Threshold {
		next.Rows = nil
	}
	return next
}

// ReportIDChanged stores the report ID. It does not affect the table.
func (s State) ReportIDChanged(reportID string) State {
	next := s
	next.ReportID = reportID
	return next
}

// ProcessRequested checks the preconditions of a run, threshold first and
// files second. On failure the error line is set, the table is untouched
// and the returned error names the failed check.
func (s State) ProcessRequested() (State, error) {
	next := s
	if s.Threshold == "" {
		next.Error = MsgThresholdRequired
		return next, ErrThresholdRequired
	}
	next.Error = ""
	if len(s.Files) == 0 {
		next.Error = MsgNoFiles
		return next, ErrNoFiles
	}
	return next, nil
}

// ProcessCompleted publishes the merged rows of a run: they replace the
// table in reset mode and are appended to it in append mode.
func (s State) ProcessCompleted(summary RunSummary, rows []ResultRow) State {
	next := s
	next.Error = ""
	next.LastRun = &summary
	if s.Mode == RerunAppend {
		merged := make([]ResultRow, 0, len(s.Rows)+len(rows))
		merged = append(merged, s.Rows...)
		next.Rows = append(merged, rows...)
		return next
	}
	next.Rows = append([]ResultRow(nil), rows...)
	return next
}

// ProcessFailed shows err on the error line and keeps the table.
func (s State) ProcessFailed(err error) State {
	next := s
	next.Error = DisplayError(err)
	return next
}

// ExportRequested checks that there is something to export. On success the
// error line is cleared and the rows to serialize are returned in table order.
func (s State) ExportRequested() (State, []ResultRow, error) {
	next := s
	if len(s.Rows) == 0 {
		next.Error = MsgNoData
		return next, nil, ErrNoData
	}
	next.Error = ""
	return next, s.Rows, nil
}

// Summary counts rows per status for the page footer.
func (s State) Summary() map[Status]int {
	return CountStatuses(s.Rows)
}
