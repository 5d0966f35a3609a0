package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HOUCINE710/csv-fille-Processed/internal/core"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_WritesCSV(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "Key,Max,Event\nR1,100,80\nR2,85,x\n")
	out := filepath.Join(dir, "out.csv")

	var stderr bytes.Buffer
	err := run(context.Background(), []string{"-threshold", "90", "-report-id", "ORC-7", "-log-level", "info", "-out", out, a}, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "report_id=ORC-7")
	assert.Contains(t, stderr.String(), "dropped=1")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\r\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(core.ExportHeader, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "R1,80,100,Pass,,"))
}

func TestRun_ActiveInactiveXLSX(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "Key,Max,Event\nR1,,80\n")
	out := filepath.Join(dir, "out.xlsx")

	err := run(context.Background(), []string{"-threshold", "75", "-policy", "active-inactive", "-out", out, a}, &bytes.Buffer{})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "h\nR1,1,1\n")
	blank := writeFile(t, dir, "blank.csv", "h\nR1,,1\n")

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no threshold", []string{a}, core.ErrThresholdRequired},
		{"no files", []string{"-threshold", "90"}, core.ErrNoFiles},
		{"bad policy", []string{"-threshold", "90", "-policy", "loose", a}, core.ErrInvalidRequest},
		{"every row dropped", []string{"-threshold", "90", "-out", filepath.Join(dir, "out.csv"), blank}, core.ErrNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.args, &bytes.Buffer{})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		err := run(context.Background(), []string{"-threshold", "90", filepath.Join(dir, "nope.csv")}, &bytes.Buffer{})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
