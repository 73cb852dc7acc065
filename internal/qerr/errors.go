// Package qerr defines the error taxonomy shared by every dynq component.
//
// Compile-time errors (unknown fields, type mismatches, bad literals) abort
// the whole compile; they are never downgraded to "no filter". Callers
// inspect errors with the Is* helpers, which use errors.As and therefore
// match wrapped errors too.
package qerr

import (
	"errors"
	"fmt"
)

// Code categorizes query errors.
type Code string

const (
	// ErrCodeFieldNotFound indicates a field name matched no attribute.
	ErrCodeFieldNotFound Code = "FIELD_NOT_FOUND"

	// ErrCodeAmbiguousField indicates a field name matched several attributes
	// where exactly one was required.
	ErrCodeAmbiguousField Code = "AMBIGUOUS_FIELD"

	// ErrCodeEmptyFilterSet indicates a filter group declared filters but
	// none of them named a field.
	ErrCodeEmptyFilterSet Code = "EMPTY_FILTER_SET"

	// ErrCodeTypeMismatch indicates an operator was applied to a field whose
	// type does not support it.
	ErrCodeTypeMismatch Code = "TYPE_MISMATCH"

	// ErrCodeCoercion indicates a literal could not be parsed into the
	// field's type.
	ErrCodeCoercion Code = "COERCION_ERROR"

	// ErrCodeUnsupportedAggregation indicates an aggregation operator is
	// incompatible with the aggregated field's type.
	ErrCodeUnsupportedAggregation Code = "UNSUPPORTED_AGGREGATION"

	// ErrCodeInvalidSpec indicates a structurally invalid query document.
	ErrCodeInvalidSpec Code = "INVALID_SPEC"
)

// Error is a query compilation or execution error with structured context.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Record names the record type the query targeted, when known.
	Record string

	// Field is the offending field name as written by the caller.
	Field string

	// Value is the offending raw literal (coercion errors).
	Value string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is (or wraps) an *Error with the given code.
func Is(err error, code Code) bool {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

// IsFieldNotFound returns true if the error is a field-not-found error.
func IsFieldNotFound(err error) bool { return Is(err, ErrCodeFieldNotFound) }

// IsAmbiguousField returns true if the error is an ambiguous-field error.
func IsAmbiguousField(err error) bool { return Is(err, ErrCodeAmbiguousField) }

// IsEmptyFilterSet returns true if the error is an empty-filter-set error.
func IsEmptyFilterSet(err error) bool { return Is(err, ErrCodeEmptyFilterSet) }

// IsTypeMismatch returns true if the error is a type-mismatch error.
func IsTypeMismatch(err error) bool { return Is(err, ErrCodeTypeMismatch) }

// IsCoercion returns true if the error is a coercion error.
func IsCoercion(err error) bool { return Is(err, ErrCodeCoercion) }

// IsUnsupportedAggregation returns true if the error is an
// unsupported-aggregation error.
func IsUnsupportedAggregation(err error) bool { return Is(err, ErrCodeUnsupportedAggregation) }

// IsInvalidSpec returns true if the error is an invalid-spec error.
func IsInvalidSpec(err error) bool { return Is(err, ErrCodeInvalidSpec) }

// NewFieldNotFound creates an Error for a field name with no matching attribute.
func NewFieldNotFound(record, field string) *Error {
	return &Error{
		Code:    ErrCodeFieldNotFound,
		Message: fmt.Sprintf("Invalid Filter: field name '%s' doesn't exist", field),
		Record:  record,
		Field:   field,
	}
}

// NewAmbiguousField creates an Error for a field name matching several attributes.
func NewAmbiguousField(record, field string, matches []string) *Error {
	return &Error{
		Code:    ErrCodeAmbiguousField,
		Message: fmt.Sprintf("field name '%s' matches %d attributes of '%s'", field, len(matches), record),
		Record:  record,
		Field:   field,
		Details: map[string]string{"matches": fmt.Sprint(matches)},
	}
}

// NewEmptyFilterSet creates an Error for a group whose filters name no field.
func NewEmptyFilterSet(record string) *Error {
	return &Error{
		Code:    ErrCodeEmptyFilterSet,
		Message: "Filters can't be empty. Either provide filters or remove 'search' argument",
		Record:  record,
	}
}

// NewTypeMismatch creates an Error for an operator the field's type cannot support.
func NewTypeMismatch(field, operation, fieldType, required string) *Error {
	return &Error{
		Code: ErrCodeTypeMismatch,
		Message: fmt.Sprintf("Only fields of '%s' type can have '%s' operation. FieldName: '%s'",
			required, operation, field),
		Field: field,
		Details: map[string]string{
			"operation":  operation,
			"field_type": fieldType,
		},
	}
}

// NewCoercion creates an Error for a literal that does not parse as the field's type.
func NewCoercion(field, raw, fieldType string, cause error) *Error {
	return &Error{
		Code:    ErrCodeCoercion,
		Message: fmt.Sprintf("value '%s' for field '%s' is not a valid %s", raw, field, fieldType),
		Field:   field,
		Value:   raw,
		Err:     cause,
	}
}

// NewUnsupportedAggregation creates an Error for an aggregation the field's type cannot support.
func NewUnsupportedAggregation(field, operation, fieldType string) *Error {
	return &Error{
		Code:    ErrCodeUnsupportedAggregation,
		Message: fmt.Sprintf("aggregation '%s' is not supported on field '%s' of type %s", operation, field, fieldType),
		Field:   field,
		Details: map[string]string{
			"operation":  operation,
			"field_type": fieldType,
		},
	}
}

// NewAggregationOverflow creates an UnsupportedAggregation Error for a
// reduction whose result does not fit in 64 bits.
func NewAggregationOverflow(field, operation, fieldType string) *Error {
	return &Error{
		Code:    ErrCodeUnsupportedAggregation,
		Message: fmt.Sprintf("aggregation '%s' on field '%s' overflows int64", operation, field),
		Field:   field,
		Details: map[string]string{
			"operation":  operation,
			"field_type": fieldType,
		},
	}
}

// NewInvalidSpec creates an Error for a malformed query document.
func NewInvalidSpec(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidSpec,
		Message: fmt.Sprintf(format, args...),
	}
}
