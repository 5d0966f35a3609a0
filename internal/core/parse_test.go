package core

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "simple",
			input: "Key,Max,Event\nR1,100,80\n",
			want:  [][]string{{"Key", "Max", "Event"}, {"R1", "100", "80"}},
		},
		{
			name:  "strips bom",
			input: "\ufeffKey,Max,Event\r\nR1,100,80",
			want:  [][]string{{"Key", "Max", "Event"}, {"R1", "100", "80"}},
		},
		{
			name:  "ragged rows",
			input: "Key,Max,Event\nR1\nR2,50,,30\n",
			want:  [][]string{{"Key", "Max", "Event"}, {"R1"}, {"R2", "50", "", "30"}},
		},
		{
			name:  "quoted comma",
			input: "Key,Max,Event\n\"R,1\",100,80\n",
			want:  [][]string{{"Key", "Max", "Event"}, {"R,1", "100", "80"}},
		},
		{
			name:  "normalises to nfc",
			input: "Key\nCafe\u0301\n",
			want:  [][]string{{"Key"}, {"Caf\u00e9"}},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseCSV(strings.NewReader(tt.input))
			require.NoError(t, res.Err)
			assert.Equal(t, tt.want, res.Rows)
		})
	}
}

func TestParseCSV_InvalidUTF8Replaced(t *testing.T) {
	res := ParseCSV(bytes.NewReader([]byte("Key\nR\xff1\n")))
	require.NoError(t, res.Err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "R\ufffd1", res.Rows[1][0])
}

func TestParseCSV_ReadErrorKeepsEarlierRows(t *testing.T) {
	r := io.MultiReader(
		strings.NewReader("Key,Max,Event\nR1,100,80\n"),
		iotest.ErrReader(errors.New("connection lost")),
	)

	res := ParseCSV(r)

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "invalid csv")
	assert.Equal(t, [][]string{{"Key", "Max", "Event"}, {"R1", "100", "80"}}, res.Rows)
}

func TestParseFile_XLSX(t *testing.T) {
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &[]interface{}{"Key", "Max", "Event"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A2", &[]interface{}{"R1", "100", "80"}))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	res := ParseFile(SourceFile{Name: "report.XLSX", Data: buf.Bytes()})

	require.NoError(t, res.Err)
	assert.Equal(t, [][]string{{"Key", "Max", "Event"}, {"R1", "100", "80"}}, res.Rows)
}

func TestParseFile_InvalidXLSX(t *testing.T) {
	res := ParseFile(SourceFile{Name: "broken.xlsx", Data: []byte("not a zip")})
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "invalid xlsx")
	assert.Empty(t, res.Rows)
}

func TestIsSpreadsheet(t *testing.T) {
	assert.True(t, IsSpreadsheet("a.xlsx"))
	assert.True(t, IsSpreadsheet("A.XLSX"))
	assert.False(t, IsSpreadsheet("a.csv"))
	assert.False(t, IsSpreadsheet("xlsx"))
}
