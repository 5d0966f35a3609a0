package core

// errors.go maps technical errors to user-facing messages with a support code.
//
// Codes by category:
//
//	VAL001  threshold missing              "Please enter the minimum pressure value."
//	VAL002  no files selected              "Please upload CSV files before processing."
//	VAL003  nothing to export              "No data available to download."
//	VAL004  malformed API request
//	FILE001 too many files in one run
//	FILE002 file over the size limit
//	FILE003 unreadable CSV (logged per file; the run keeps the rows read)
//	FILE004 unreadable workbook (logged per file, as FILE003)
//	RUN001  every processing slot busy
//	RUN002  run exceeded its timeout
//	RUN003  run cancelled by the client
//	RATE001 request rate limit hit
//	ERR000  anything else; check the logs for the technical error
//
// Sentinel errors are matched with errors.Is first. Errors that arrive as
// plain text (from parsers or the network) fall back to case-insensitive
// substring patterns; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Messages shown verbatim in the page's error line.
const (
	MsgThresholdRequired = "Please enter the minimum pressure value."
	MsgNoFiles           = "Please upload CSV files before processing."
	MsgNoData            = "No data available to download."
)

var (
	ErrThresholdRequired = errors.New("threshold required")
	ErrNoFiles           = errors.New("no files selected")
	ErrNoData            = errors.New("no data to export")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrTooManyFiles      = errors.New("too many files")
	ErrFileTooLarge      = errors.New("file too large")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrThresholdRequired, UserMessage{
		Message: MsgThresholdRequired,
		Action:  "Enter a number in the minimum pressure field",
		Code:    "VAL001",
	}},
	{ErrNoFiles, UserMessage{
		Message: MsgNoFiles,
		Action:  "Select one or more CSV files",
		Code:    "VAL002",
	}},
	{ErrNoData, UserMessage{
		Message: MsgNoData,
		Action:  "Process files before downloading results",
		Code:    "VAL003",
	}},
	{ErrInvalidRequest, UserMessage{
		Message: "The request is invalid",
		Action:  "Check the threshold, policy and rows fields",
		Code:    "VAL004",
	}},
	{ErrTooManyFiles, UserMessage{
		Message: "Too many files selected",
		Action:  "Process the files in smaller groups",
		Code:    "FILE001",
	}},
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file into smaller files",
		Code:    "FILE002",
	}},
	{ErrTooManyRuns, UserMessage{
		Message: "System is busy processing other files",
		Action:  "Please wait a moment and try again",
		Code:    "RUN001",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Processing timed out",
		Action:  "Try fewer or smaller files",
		Code:    "RUN002",
	}},
	{context.Canceled, UserMessage{
		Message: "Processing was cancelled",
		Action:  "Please try again",
		Code:    "RUN003",
	}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is consulted only when no sentinel matches.
var errorPatterns = []errorPattern{
	{"invalid csv", UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure the file is comma-separated text",
		Code:    "FILE003",
	}},
	{"invalid xlsx", UserMessage{
		Message: "File is not a valid Excel workbook",
		Action:  "Save the file as .xlsx or export it as CSV",
		Code:    "FILE004",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// A nil error yields the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsValidation reports whether err is one of the input checks whose message
// is shown exactly as written, without code or action.
func IsValidation(err error) bool {
	return strings.HasPrefix(MapError(err).Code, "VAL")
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// DisplayError is the text for the page's error line: validation messages
// verbatim, everything else in the coded format.
func DisplayError(err error) string {
	if err == nil {
		return ""
	}
	if IsValidation(err) {
		return MapError(err).Message
	}
	return FormatUserError(err)
}
