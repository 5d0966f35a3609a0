// Package templates renders the HTML of the pressure results page.
//
// Components are written in page.templ; page_templ.go holds the code
// templ generates from it.
package templates

//go:generate templ generate

import (
	"fmt"
	"strings"

	"github.com/HOUCINE710/csv-fille-Processed/internal/core"
)

// ResultsID is the id of the results section. Requests sent with an
// HX-Request header get only this section back.
const ResultsID = "results"

// statusColumn is the position of Status in core.ResultRow.Record.
const statusColumn = 3

// PageData is everything the page shows.
type PageData struct {
	ReportID  string
	Threshold string
	Error     string
	Files     []string
	Rows      []core.ResultRow
	Summary   map[core.Status]int
	Policy    core.Policy
	MaxFiles  int
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}

func summaryLine(total int, counts map[core.Status]int) string {
	parts := []string{fmt.Sprintf("%d rows", total)}
	for _, s := range []core.Status{core.StatusPass, core.StatusFail, core.StatusActive, core.StatusInactive} {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	return strings.Join(parts, ", ")
}
