package core

import (
	"math"
	"time"
)

// Cell positions in a source row.
const (
	colKey         = 0
	colMaxPressure = 1
	colEvent       = 2
)

const (
	// NotAvailable is shown when a max-pressure cell is missing.
	NotAvailable = "N/A"

	// PressureUnit is appended to pressures under the active-inactive policy.
	PressureUnit = "PSI"

	// DateLayout is the calendar-date format of UpdatedDate.
	DateLayout = "2006-01-02"
)

// Classifier converts raw rows to result rows for one threshold and policy.
// It holds no mutable state; the zero Now uses time.Now.
type Classifier struct {
	Policy    Policy
	Threshold float64
	Now       func() time.Time
}

// NewClassifier parses threshold and returns a classifier for policy.
// An unparseable threshold yields NaN, which fails every comparison.
func NewClassifier(policy Policy, threshold string) Classifier {
	return Classifier{Policy: policy, Threshold: ParseNumber(threshold)}
}

// Classify converts one data row into a result row. The boolean is false when
// the policy discards the row.
func (c Classifier) Classify(row []string) (ResultRow, bool) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	date := now().UTC().Format(DateLayout)

	switch c.Policy {
	case PolicyActiveInactive:
		return classifyActiveInactive(row, c.Threshold, date), true
	default:
		return classifyStrict(row, c.Threshold, date)
	}
}

func classifyStrict(row []string, threshold float64, date string) (ResultRow, bool) {
	key := cell(row, colKey)
	maxRaw := cell(row, colMaxPressure)
	eventRaw := cell(row, colEvent)
	if key == "" || maxRaw == "" || eventRaw == "" {
		return ResultRow{}, false
	}

	event := ParseNumber(eventRaw)
	if math.IsNaN(event) {
		return ResultRow{}, false
	}

	// NaN on either side makes the comparison false, so the row fails.
	status := StatusFail
	if threshold <= ParseNumber(maxRaw) {
		status = StatusPass
	}

	return ResultRow{
		Key:                    key,
		PressureMeasurement:    FormatNumber(event),
		EventPressure:          event,
		PressureMaxMeasurement: maxRaw,
		Status:                 status,
		UpdatedDate:            date,
		AttachmentsIndicator:   "0",
	}, true
}

func classifyActiveInactive(row []string, threshold float64, date string) ResultRow {
	event := ParseNumber(cell(row, colEvent))
	if math.IsNaN(event) {
		event = 0
	}

	status := StatusInactive
	if event >= threshold {
		status = StatusActive
	}

	maxPressure := NotAvailable
	if raw := cell(row, colMaxPressure); raw != "" {
		maxPressure = withUnit(raw)
	}

	return ResultRow{
		Key:                    cell(row, colKey),
		PressureMeasurement:    withUnit(FormatNumber(event)),
		EventPressure:          event,
		PressureMaxMeasurement: maxPressure,
		Status:                 status,
		UpdatedDate:            date,
		AttachmentsIndicator:   "0",
	}
}

func withUnit(v string) string {
	return v + " " + PressureUnit
}

// cell returns row[i], or "" when the row is too short.
func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
