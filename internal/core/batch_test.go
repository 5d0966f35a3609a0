package core

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csvFile(name string, lines ...string) SourceFile {
	return SourceFile{Name: name, Data: []byte(strings.Join(lines, "\n") + "\n")}
}

func rowKeys(rows []ResultRow) []string {
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.Key
	}
	return keys
}

func TestRunBatch_MergesFiles(t *testing.T) {
	files := []SourceFile{
		csvFile("a.csv", "Key,Max,Event", "A1,100,80", "A2,50,abc", "A3,80,70"),
		csvFile("b.csv", "Key,Max,Event", "B1,100,95", "B2,,30"),
	}

	res, err := RunBatch(context.Background(), files, classifier(PolicyStrictPassFail, "90"), BatchOptions{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Emitted)
	assert.Equal(t, 2, res.Dropped)
	require.Len(t, res.Files, 2)

	// Files arrive in completion order; rows within a file keep parse order.
	var offset int
	for _, fr := range res.Files {
		got := rowKeys(res.Rows[offset : offset+len(fr.Rows)])
		assert.Equal(t, rowKeys(fr.Rows), got)
		offset += len(fr.Rows)

		switch fr.FileName {
		case "a.csv":
			assert.Equal(t, []string{"A1", "A3"}, got)
			assert.Equal(t, 3, fr.DataRows)
		case "b.csv":
			assert.Equal(t, []string{"B1"}, got)
			assert.Equal(t, 2, fr.DataRows)
		default:
			t.Fatalf("unexpected file %q", fr.FileName)
		}
	}

	for _, r := range res.Rows {
		assert.NotEmpty(t, r.SourceFile)
	}
}

func TestRunBatch_SkipsHeaderOnly(t *testing.T) {
	files := []SourceFile{
		csvFile("header.csv", "Key,Max,Event"),
		{Name: "empty.csv"},
	}

	res, err := RunBatch(context.Background(), files, classifier(PolicyActiveInactive, "10"), BatchOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Len(t, res.Files, 2)
}

func TestRunBatch_ActiveInactiveKeepsEveryRow(t *testing.T) {
	files := []SourceFile{csvFile("a.csv", "Key,Max,Event", "R1,100,x", "R2,,95", ",,")}

	res, err := RunBatch(context.Background(), files, classifier(PolicyActiveInactive, "90"), BatchOptions{})
	require.NoError(t, err)

	require.Len(t, res.Rows, 3)
	assert.Equal(t, StatusInactive, res.Rows[0].Status)
	assert.Equal(t, StatusActive, res.Rows[1].Status)
	assert.Equal(t, NotAvailable, res.Rows[1].PressureMaxMeasurement)
	assert.Zero(t, res.Dropped)
}

func TestRunBatch_CorruptFileKeepsRowsRead(t *testing.T) {
	files := []SourceFile{
		{Name: "bad.xlsx", Data: []byte("PK not really a workbook")},
		csvFile("good.csv", "Key,Max,Event", "G1,100,80", "G2,100,85"),
	}

	var logs bytes.Buffer
	opts := BatchOptions{Logger: slog.New(slog.NewTextHandler(&logs, nil))}

	res, err := RunBatch(context.Background(), files, classifier(PolicyStrictPassFail, "90"), opts)
	require.NoError(t, err)

	keys := rowKeys(res.Rows)
	sort.Strings(keys)
	assert.Equal(t, []string{"G1", "G2"}, keys)
	assert.Contains(t, logs.String(), "file=bad.xlsx")
	assert.Contains(t, logs.String(), "code=FILE004")

	for _, fr := range res.Files {
		if fr.FileName == "bad.xlsx" {
			assert.Contains(t, fr.ReadErr, "invalid xlsx")
			assert.Empty(t, fr.Rows)
		} else {
			assert.Empty(t, fr.ReadErr)
		}
	}
}

func TestRunBatch_Caps(t *testing.T) {
	small := csvFile("a.csv", "Key,Max,Event", "R1,100,80")

	tests := []struct {
		name    string
		files   []SourceFile
		opts    BatchOptions
		wantErr error
	}{
		{
			name:    "too many files",
			files:   []SourceFile{small, small, small},
			opts:    BatchOptions{MaxFiles: 2},
			wantErr: ErrTooManyFiles,
		},
		{
			name:    "file too large",
			files:   []SourceFile{small},
			opts:    BatchOptions{MaxFileSize: 5},
			wantErr: ErrFileTooLarge,
		},
		{
			name:  "within caps",
			files: []SourceFile{small, small},
			opts:  BatchOptions{MaxFiles: 2, MaxFileSize: 1024},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := RunBatch(context.Background(), tt.files, classifier(PolicyStrictPassFail, "90"), tt.opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, res.Rows)
				return
			}
			require.NoError(t, err)
			assert.Len(t, res.Rows, len(tt.files))
		})
	}
}

func TestRunBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lines := []string{"Key,Max,Event"}
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("R%d,100,80", i))
	}

	res, err := RunBatch(ctx, []SourceFile{csvFile("a.csv", lines...)}, classifier(PolicyStrictPassFail, "90"), BatchOptions{Timeout: time.Minute})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Rows)
}

func TestRunBatch_ManyFiles(t *testing.T) {
	var files []SourceFile
	for i := 0; i < 25; i++ {
		files = append(files, csvFile(fmt.Sprintf("f%02d.csv", i), "Key,Max,Event", fmt.Sprintf("K%02d,100,80", i)))
	}

	res, err := RunBatch(context.Background(), files, classifier(PolicyStrictPassFail, "90"), BatchOptions{Workers: 4})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 25)
	assert.Len(t, res.Files, 25)
}
