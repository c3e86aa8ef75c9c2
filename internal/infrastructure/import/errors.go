package csvimport

import (
	"errors"
	"fmt"
	"strings"
)

// Row error codes, reported to clients alongside the row number
const (
	CodeRequiredField   = "REQUIRED_FIELD"
	CodeInvalidType     = "INVALID_TYPE"
	CodeOutOfRange      = "OUT_OF_RANGE"
	CodePatternMismatch = "PATTERN_MISMATCH"
	CodeInvalidValue    = "INVALID_VALUE"
	CodeDuplicateInFile = "DUPLICATE_IN_FILE"
	CodeMalformedRow    = "MALFORMED_ROW"
)

var (
	ErrEmptyFile     = errors.New("CSV file is empty")
	ErrMissingHeader = errors.New("CSV file missing header row")
)

// MissingColumnsError rejects the whole file: none of its rows can be read
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "CSV file is missing required columns: " + strings.Join(e.Columns, ", ")
}

// RowError is a rejected row. Row numbers count the header as row 1.
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (e RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	}
	return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
}

const defaultMaxErrors = 100

// ErrorCollection keeps the first max row errors and counts every one
type ErrorCollection struct {
	kept  []RowError
	max   int
	total int
}

// NewErrorCollection caps kept errors at maxErrors; zero or less means 100
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = defaultMaxErrors
	}
	return &ErrorCollection{max: maxErrors}
}

func (ec *ErrorCollection) Add(err RowError) {
	ec.total++
	if len(ec.kept) < ec.max {
		ec.kept = append(ec.kept, err)
	}
}

// Addf records a row error with a formatted message
func (ec *ErrorCollection) Addf(row int, column, code, value, format string, args ...any) {
	ec.Add(RowError{Row: row, Column: column, Code: code, Value: value, Message: fmt.Sprintf(format, args...)})
}

func (ec *ErrorCollection) Errors() []RowError { return ec.kept }

// TotalCount includes errors dropped by the cap
func (ec *ErrorCollection) TotalCount() int { return ec.total }

func (ec *ErrorCollection) HasErrors() bool { return ec.total > 0 }

func (ec *ErrorCollection) IsTruncated() bool { return ec.total > len(ec.kept) }
