package qerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := NewFieldNotFound("Employee", "Salary")

	assert.Equal(t, "FIELD_NOT_FOUND: Invalid Filter: field name 'Salary' doesn't exist", err.Error())
	assert.Equal(t, "Employee", err.Record)
	assert.Equal(t, "Salary", err.Field)
}

func TestError_Predicates(t *testing.T) {
	testCases := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"field not found", NewFieldNotFound("R", "x"), IsFieldNotFound},
		{"ambiguous", NewAmbiguousField("R", "x", []string{"xa", "xb"}), IsAmbiguousField},
		{"empty filter set", NewEmptyFilterSet("R"), IsEmptyFilterSet},
		{"type mismatch", NewTypeMismatch("Age", "contains", "int32", "String"), IsTypeMismatch},
		{"coercion", NewCoercion("Age", "abc", "int32", errors.New("bad")), IsCoercion},
		{"aggregation", NewUnsupportedAggregation("Name", "sum", "string"), IsUnsupportedAggregation},
		{"invalid spec", NewInvalidSpec("missing %s", "field"), IsInvalidSpec},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.check(tc.err))
			wrapped := fmt.Errorf("compile search: %w", tc.err)
			assert.True(t, tc.check(wrapped), "predicates must see through wrapping")
		})
	}
}

func TestError_PredicatesRejectOtherCodes(t *testing.T) {
	err := NewCoercion("Age", "abc", "int32", nil)

	assert.False(t, IsFieldNotFound(err))
	assert.False(t, IsTypeMismatch(errors.New("plain")))
	assert.Equal(t, ErrCodeCoercion, CodeOf(fmt.Errorf("wrap: %w", err)))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("strconv failure")
	err := NewCoercion("Age", "abc", "int32", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "strconv failure")
}

func TestNewTypeMismatch_Message(t *testing.T) {
	err := NewTypeMismatch("Age", "contains", "int32", "String")

	assert.Equal(t, "Only fields of 'String' type can have 'contains' operation. FieldName: 'Age'", err.Message)
	assert.Equal(t, "int32", err.Details["field_type"])
}
