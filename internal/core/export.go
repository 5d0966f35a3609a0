package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	ExportFileName     = "Processed_Results.csv"
	ExportXLSXFileName = "Processed_Results.xlsx"

	CSVContentType  = "text/csv;charset=utf-8"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	exportSheet = "Results"
)

// ExportHeader is the first line of every export.
var ExportHeader = []string{
	"Key",
	"Press Measurement",
	"Pressure Max Measurement",
	"Status",
	"Updated By",
	"Updated Date",
	"Attachments Indicator",
}

// WriteCSV writes the header and rows to w with CRLF line separators. The
// last line has no line break.
func WriteCSV(w io.Writer, rows []ResultRow) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.UseCRLF = true

	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return fmt.Errorf("write row %q: %w", r.Key, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	_, err := w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\r\n")))
	return err
}

// ExportCSV returns the CSV export of rows, or ErrNoData for an empty table.
func ExportCSV(rows []ResultRow) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportXLSX returns a workbook with one sheet holding the header and rows.
func ExportXLSX(rows []ResultRow) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	wb := excelize.NewFile()
	defer wb.Close()

	if err := wb.SetSheetName(wb.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	if err := setRow(wb, 1, ExportHeader); err != nil {
		return nil, err
	}
	bold, err := wb.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	if err := wb.SetRowStyle(exportSheet, 1, 1, bold); err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, r := range rows {
		if err := setRow(wb, i+2, r.Record()); err != nil {
			return nil, err
		}
	}

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(wb *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := wb.SetSheetRow(exportSheet, cell, &vals); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}
