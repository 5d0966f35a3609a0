package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HOUCINE710/csv-fille-Processed/internal/core"
)

func renderString(t *testing.T, data PageData, partial bool) string {
	t.Helper()
	var buf bytes.Buffer
	c := Page(data)
	if partial {
		c = Results(data)
	}
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestPage_Empty(t *testing.T) {
	html := renderString(t, PageData{}, false)

	assert.Contains(t, html, "<!doctype html>")
	assert.Contains(t, html, `<form method="post" action="/process" enctype="multipart/form-data">`)
	assert.NotContains(t, html, "hx-")
	assert.Contains(t, html, "Step 3 : Set Minimum Pressure :")
	assert.Contains(t, html, "No results")
	assert.Contains(t, html, `href="/export"`)
	for _, h := range core.ExportHeader {
		assert.Contains(t, html, "<th>"+h+"</th>")
	}
	assert.NotContains(t, html, `role="alert"`)
}

func TestPage_RowsAndError(t *testing.T) {
	data := PageData{
		ReportID:  `ORC"1`,
		Threshold: "90",
		Error:     core.MsgNoFiles,
		Files:     []string{"a.csv", "b.csv"},
		Rows: []core.ResultRow{
			{Key: "<R1>", PressureMeasurement: "80", PressureMaxMeasurement: "100", Status: core.StatusPass, UpdatedDate: "2024-03-10", AttachmentsIndicator: "0"},
			{Key: "R2", PressureMeasurement: "70", PressureMaxMeasurement: "85", Status: core.StatusFail, UpdatedDate: "2024-03-10", AttachmentsIndicator: "0"},
		},
		Summary: map[core.Status]int{core.StatusPass: 1, core.StatusFail: 1},
	}

	html := renderString(t, data, false)

	assert.Contains(t, html, "Please upload CSV files before processing.")
	assert.Contains(t, html, "&lt;R1&gt;")
	assert.NotContains(t, html, "<R1>")
	assert.Contains(t, html, `value="ORC&#34;1"`)
	assert.Contains(t, html, "Selected: a.csv, b.csv")
	assert.Contains(t, html, `value="90"`)
	assert.Contains(t, html, `<td class="status-ok">Pass</td>`)
	assert.Contains(t, html, `<td class="status-bad">Fail</td>`)
	assert.Contains(t, html, "2 rows, 1 Pass, 1 Fail")
	assert.NotContains(t, html, "No results")
}

func TestPage_MaxFilesHint(t *testing.T) {
	html := renderString(t, PageData{MaxFiles: 20}, false)
	assert.Contains(t, html, `<p class="hint">Up to 20 files per run.</p>`)
}

func TestResults_IsPartial(t *testing.T) {
	html := renderString(t, PageData{Error: core.MsgThresholdRequired}, true)

	assert.True(t, strings.HasPrefix(html, `<section id="results">`))
	assert.NotContains(t, html, "<form")
	assert.Contains(t, html, "Please enter the minimum pressure value.")
}

func TestErrorAlert(t *testing.T) {
	tests := []struct {
		name         string
		action, code string
		want         string
	}{
		{"action and code", "Please wait", "RATE001", `<div class="error" role="alert"><strong>Too many requests</strong> Please wait <span class="code">(RATE001)</span></div>`},
		{"message only", "", "", `<div class="error" role="alert"><strong>Too many requests</strong></div>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, ErrorAlert("Too many requests", tt.action, tt.code).Render(context.Background(), &buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}
