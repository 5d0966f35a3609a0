package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows(keys ...string) []ResultRow {
	rows := make([]ResultRow, len(keys))
	for i, k := range keys {
		rows[i] = ResultRow{Key: k, Status: StatusPass, AttachmentsIndicator: "0"}
	}
	return rows
}

func TestState_ProcessRequested(t *testing.T) {
	files := []SourceFile{{Name: "a.csv", Data: []byte("h\n")}}

	tests := []struct {
		name      string
		state     State
		wantErr   error
		wantError string
	}{
		{
			name:      "missing threshold",
			state:     State{Files: files},
			wantErr:   ErrThresholdRequired,
			wantError: "Please enter the minimum pressure value.",
		},
		{
			name:      "threshold checked before files",
			state:     State{},
			wantErr:   ErrThresholdRequired,
			wantError: "Please enter the minimum pressure value.",
		},
		{
			name:      "no files",
			state:     State{Threshold: "90"},
			wantErr:   ErrNoFiles,
			wantError: "Please upload CSV files before processing.",
		},
		{
			name:  "ready clears previous error",
			state: State{Threshold: "90", Files: files, Error: "old"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.state.Rows = sampleRows("R1")
			next, err := tt.state.ProcessRequested()

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantError, next.Error)
			assert.Equal(t, tt.state.Rows, next.Rows, "table must be unchanged")
		})
	}
}

func TestState_NoFilesLeavesTableUnchanged(t *testing.T) {
	s := State{Threshold: "90", Rows: sampleRows("R1", "R2")}

	next, err := s.ProcessRequested()

	require.ErrorIs(t, err, ErrNoFiles)
	assert.Equal(t, MsgNoFiles, next.Error)
	assert.Equal(t, sampleRows("R1", "R2"), next.Rows)
}

func TestState_ResetMode(t *testing.T) {
	s := NewState(RerunReset)
	assert.Equal(t, RerunReset, s.Mode)

	s = s.ThresholdChanged("90")
	s = s.FilesSelected([]SourceFile{{Name: "a.csv"}})
	s = s.ProcessCompleted(RunSummary{RunID: "1"}, sampleRows("R1"))
	require.Len(t, s.Rows, 1)

	t.Run("rerun replaces rows", func(t *testing.T) {
		next := s.ProcessCompleted(RunSummary{RunID: "2"}, sampleRows("R2", "R3"))
		assert.Equal(t, sampleRows("R2", "R3"), next.Rows)
		assert.Equal(t, "2", next.LastRun.RunID)
	})

	t.Run("threshold change clears rows", func(t *testing.T) {
		next := s.ThresholdChanged("95")
		assert.Empty(t, next.Rows)
		assert.Equal(t, "95", next.Threshold)
	})

	t.Run("same threshold keeps rows", func(t *testing.T) {
		next := s.ThresholdChanged("90")
		assert.Len(t, next.Rows, 1)
	})

	t.Run("file selection clears rows and error", func(t *testing.T) {
		withErr := s
		withErr.Error = MsgNoData
		next := withErr.FilesSelected([]SourceFile{{Name: "b.csv"}})
		assert.Empty(t, next.Rows)
		assert.Empty(t, next.Error)
		assert.Equal(t, "b.csv", next.Files[0].Name)
	})

	t.Run("receiver untouched", func(t *testing.T) {
		_ = s.ThresholdChanged("1")
		assert.Equal(t, "90", s.Threshold)
		assert.Len(t, s.Rows, 1)
	})
}

func TestState_AppendMode(t *testing.T) {
	s := NewState(RerunAppend).ThresholdChanged("90")
	s = s.FilesSelected([]SourceFile{{Name: "a.csv"}})
	s = s.ProcessCompleted(RunSummary{}, sampleRows("R1"))

	s = s.ThresholdChanged("10")
	s = s.FilesSelected([]SourceFile{{Name: "b.csv"}})
	assert.Len(t, s.Rows, 1, "append mode keeps rows across edits")

	s = s.ProcessCompleted(RunSummary{}, sampleRows("R2"))
	assert.Equal(t, sampleRows("R1", "R2"), s.Rows)
}

func TestState_ExportRequested(t *testing.T) {
	t.Run("empty table", func(t *testing.T) {
		next, rows, err := State{}.ExportRequested()
		assert.ErrorIs(t, err, ErrNoData)
		assert.Nil(t, rows)
		assert.Equal(t, "No data available to download.", next.Error)
	})

	t.Run("rows in table order", func(t *testing.T) {
		s := State{Rows: sampleRows("B", "A"), Error: MsgNoData}
		next, rows, err := s.ExportRequested()
		require.NoError(t, err)
		assert.Equal(t, sampleRows("B", "A"), rows)
		assert.Empty(t, next.Error)
	})
}

func TestState_ProcessFailedKeepsRows(t *testing.T) {
	s := State{Rows: sampleRows("R1")}
	next := s.ProcessFailed(ErrTooManyRuns)

	assert.Equal(t, sampleRows("R1"), next.Rows)
	assert.Contains(t, next.Error, "RUN001")
}

func TestState_Summary(t *testing.T) {
	s := State{Rows: []ResultRow{
		{Status: StatusPass}, {Status: StatusFail}, {Status: StatusPass},
	}}
	assert.Equal(t, map[Status]int{StatusPass: 2, StatusFail: 1}, s.Summary())
}
