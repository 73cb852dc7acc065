package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/dynq/internal/qerr"
)

// RuntimeError represents an error detected while executing a plan, as
// opposed to the compile errors of package qerr.
//
// Runtime errors include:
//   - Provider failures: the provider could not run a stage
//   - Unsupported stages: a provider cannot express a stage (for example a
//     predicate over nested fields against SQL)
//   - Record mismatches: a plan applied to a sequence of another type
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected execution, when known.
	RunID string

	// Stage names the pipeline stage (filter, order, page, project, read).
	Stage string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeProvider indicates the provider failed while running a stage.
	ErrCodeProvider RuntimeErrorCode = "PROVIDER_ERROR"

	// ErrCodeUnsupported indicates the provider cannot run a stage.
	ErrCodeUnsupported RuntimeErrorCode = "UNSUPPORTED_STAGE"

	// ErrCodeRecordMismatch indicates a plan and a sequence disagree on the
	// record type.
	ErrCodeRecordMismatch RuntimeErrorCode = "RECORD_MISMATCH"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("%s (stage=%s)", msg, e.Stage)
	}
	if e.RunID != "" {
		msg = fmt.Sprintf("%s (run=%s)", msg, e.RunID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps a provider failure in stage.
func NewProviderError(stage string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeProvider,
		Message: "provider failed",
		Stage:   stage,
		Err:     err,
	}
}

// NewUnsupportedError reports a stage the provider cannot run.
func NewUnsupportedError(stage, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnsupported,
		Message: fmt.Sprintf(format, args...),
		Stage:   stage,
	}
}

// NewRecordMismatchError reports a plan applied to the wrong record type.
func NewRecordMismatchError(stage, want, got string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeRecordMismatch,
		Message: fmt.Sprintf("expected record %s, got %s", want, got),
		Stage:   stage,
		Details: map[string]string{
			"want": want,
			"got":  got,
		},
	}
}

// IsProviderError returns true if the error is a provider failure.
// Uses errors.As to handle wrapped errors.
func IsProviderError(err error) bool {
	return hasCode(err, ErrCodeProvider)
}

// IsUnsupportedError returns true if the error is an unsupported stage.
func IsUnsupportedError(err error) bool {
	return hasCode(err, ErrCodeUnsupported)
}

// IsRecordMismatch returns true if the error is a record type mismatch.
func IsRecordMismatch(err error) bool {
	return hasCode(err, ErrCodeRecordMismatch)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// ErrorCode returns the code of the first query or runtime error in err's
// chain, or "" when there is none.
func ErrorCode(err error) string {
	if code := qerr.CodeOf(err); code != "" {
		return string(code)
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return ""
}
