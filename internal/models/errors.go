package models

import "fmt"

// ErrorKind classifies row-level failures.
type ErrorKind string

const (
	ErrParse             ErrorKind = "ParseError"
	ErrConfiguration     ErrorKind = "ConfigurationError"
	ErrReferenceNotFound ErrorKind = "ReferenceNotFound"
	ErrAmbiguous         ErrorKind = "AmbiguousReference"
	ErrDuplicate         ErrorKind = "DuplicateDetected"
	ErrPersistence       ErrorKind = "PersistenceError"
)

// RowError is a failure tied to one input row.
type RowError struct {
	Kind ErrorKind
	Line int
	Raw  string
	Err  error
}

// NewRowError wraps err with its row context.
func NewRowError(kind ErrorKind, line int, raw string, err error) *RowError {
	return &RowError{Kind: kind, Line: line, Raw: raw, Err: err}
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s: %v (raw: %q)", e.Line, e.Kind, e.Err, e.Raw)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Issue converts the error into its reportable form.
func (e *RowError) Issue() RowIssue {
	return RowIssue{Line: e.Line, Raw: e.Raw, Kind: e.Kind, Message: e.Err.Error()}
}

// RowIssue is a row-level outcome reported in an ImportResult.
type RowIssue struct {
	Line    int
	Raw     string
	Kind    ErrorKind
	Message string
}

func (i RowIssue) String() string {
	return fmt.Sprintf("line %d: %s (raw: %q)", i.Line, i.Message, i.Raw)
}
