// Package core provides the business logic for classifying pressure readings.
//
// The package holds all domain logic independent of any UI or transport
// layer. The web server and the classify command both drive it.
//
// # Rows and policies
//
// Every uploaded file is read into raw rows (see [ParseFile]). The first row
// of each file is a header and is skipped. Each data row is read as
// key, max pressure, event pressure and converted by a [Classifier] into a
// [ResultRow]. Two policies exist:
//
//   - [PolicyStrictPassFail] drops rows with a blank cell or a non-numeric
//     event pressure, and labels the rest Pass when threshold <= max.
//   - [PolicyActiveInactive] keeps every row, treats a bad event pressure as
//     0, and labels rows Active when event >= threshold.
//
// # Runs
//
// [RunBatch] classifies all files of a run concurrently and merges their rows
// in completion order. [Service] wraps it with the per-visitor [State], the
// [RunLimiter] that bounds concurrent runs, instrumentation and run history.
//
// # Sessions
//
// State transitions are pure methods on [State]; the [SessionStore] keeps one
// State per visitor and serialises updates to it. Idle sessions are evicted
// by [SessionStore.StartJanitor].
//
// # Export
//
// [ExportCSV] writes the header and rows as Processed_Results.csv with CRLF
// separators and no trailing line break. [ExportXLSX] writes the same table
// as a workbook.
//
// # Error Handling
//
// Errors wrap the package sentinels with fmt.Errorf and %w. [MapError]
// converts any error to a [UserMessage] with a support code; validation
// messages are shown to the visitor exactly as written.
package core
