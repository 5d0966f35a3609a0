package core

// parse.go turns an uploaded file into raw rows.
//
// Input bytes pass through a golang.org/x/text decoder that drops a UTF-8
// BOM (Excel adds one on "Save as CSV UTF-8") and replaces invalid UTF-8
// with U+FFFD. Cells are NFC-normalised so visually identical keys compare
// equal. Spreadsheet uploads (.xlsx) are read from their first sheet.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ParseResult holds the rows read from one file.
// Err is set when reading stopped early; Rows still holds what was read.
type ParseResult struct {
	Rows [][]string
	Err  error
}

// IsSpreadsheet reports whether the file name has an .xlsx extension.
func IsSpreadsheet(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}

// ParseFile reads all rows of f, choosing the reader by file extension.
func ParseFile(f SourceFile) ParseResult {
	if IsSpreadsheet(f.Name) {
		return ParseXLSX(bytes.NewReader(f.Data))
	}
	return ParseCSV(bytes.NewReader(f.Data))
}

// NewDecodingReader wraps r so that it yields valid UTF-8 without a BOM.
func NewDecodingReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// ParseCSV reads comma-separated rows from r. Rows may have any number of
// fields and stray quotes are tolerated. A malformed record stops the read;
// the rows before it are returned together with the error.
func ParseCSV(r io.Reader) ParseResult {
	reader := csv.NewReader(NewDecodingReader(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var res ParseResult
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Err = fmt.Errorf("invalid csv: %w", err)
			break
		}
		res.Rows = append(res.Rows, normalizeRow(record))
	}
	return res
}

// ParseXLSX reads the rows of the first sheet of a workbook.
func ParseXLSX(r io.Reader) ParseResult {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return ParseResult{Err: fmt.Errorf("invalid xlsx: %w", err)}
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return ParseResult{}
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return ParseResult{Err: fmt.Errorf("invalid xlsx: %w", err)}
	}

	res := ParseResult{Rows: make([][]string, 0, len(rows))}
	for _, row := range rows {
		res.Rows = append(res.Rows, normalizeRow(row))
	}
	return res
}

func normalizeRow(record []string) []string {
	out := make([]string, len(record))
	for i, c := range record {
		out[i] = norm.NFC.String(c)
	}
	return out
}
