package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/dynq/internal/schema"
)

// Validation error codes (E100-E199)
const (
	ErrRecordNoFields      = "E101" // record declares no fields
	ErrInvalidFieldType    = "E102" // type is neither a scalar type nor a record
	ErrUnknownRecord       = "E103" // type names an undeclared record
	ErrForeignKeyOnScalar  = "E104" // foreign_key on a field that is not a nested record
	ErrForeignKeyMissing   = "E105" // foreign_key names no field of the record
	ErrForeignKeyNotScalar = "E106" // foreign_key names a list or nested record field
	ErrInvalidName         = "E107" // record or field name is not an identifier
	ErrRecordCycle         = "E108" // records contain each other
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is the error returned when a schema fails validation.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d schema errors:\n  %s", len(errs), strings.Join(msgs, "\n  "))
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks record declarations. Returns all errors found (does not
// fail-fast), ordered by record then field.
func Validate(decls []RecordDecl) []ValidationError {
	var errs []ValidationError

	declared := make(map[string]bool, len(decls))
	for _, d := range decls {
		declared[d.Name] = true
	}

	for _, d := range decls {
		if !namePattern.MatchString(d.Name) {
			errs = append(errs, ValidationError{
				Field:   d.Name,
				Message: fmt.Sprintf("record name %q is not an identifier", d.Name),
				Code:    ErrInvalidName,
				Line:    d.Pos.Line(),
			})
		}
		if len(d.Fields) == 0 {
			errs = append(errs, ValidationError{
				Field:   d.Name,
				Message: "record must declare at least one field",
				Code:    ErrRecordNoFields,
				Line:    d.Pos.Line(),
			})
		}
		errs = append(errs, validateFields(d, declared)...)
	}

	for _, c := range AnalyzeCycles(decls) {
		errs = append(errs, ValidationError{
			Field:   c.Path[0],
			Message: c.Message,
			Code:    ErrRecordCycle,
		})
	}
	return errs
}

func validateFields(d RecordDecl, declared map[string]bool) []ValidationError {
	var errs []ValidationError

	byName := make(map[string]FieldDecl, len(d.Fields))
	for _, f := range d.Fields {
		byName[f.Name] = f
	}

	for _, f := range d.Fields {
		path := d.Name + "." + f.Name
		if !namePattern.MatchString(f.Name) {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("field name %q is not an identifier", f.Name),
				Code:    ErrInvalidName,
				Line:    f.Pos.Line(),
			})
		}

		ref := recordRef(f.Type)
		switch {
		case strings.TrimSpace(f.Type) == "":
			errs = append(errs, ValidationError{
				Field:   path,
				Message: "type is required",
				Code:    ErrInvalidFieldType,
				Line:    f.Pos.Line(),
			})
			continue
		case ref != "" && !namePattern.MatchString(ref):
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("invalid type %q", f.Type),
				Code:    ErrInvalidFieldType,
				Line:    f.Pos.Line(),
			})
			continue
		case ref != "" && !declared[ref]:
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("type %q names no declared record", f.Type),
				Code:    ErrUnknownRecord,
				Line:    f.Pos.Line(),
			})
			continue
		}

		if f.ForeignKey == "" {
			continue
		}
		if ref == "" || strings.HasPrefix(strings.TrimSpace(f.Type), "[]") {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: "foreign_key is only allowed on nested record fields",
				Code:    ErrForeignKeyOnScalar,
				Line:    f.Pos.Line(),
			})
			continue
		}
		key, ok := byName[f.ForeignKey]
		if !ok {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("foreign_key %q names no field of %s", f.ForeignKey, d.Name),
				Code:    ErrForeignKeyMissing,
				Line:    f.Pos.Line(),
			})
			continue
		}
		if t, err := schema.ParseType(key.Type); err != nil || !t.Scalar() {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("foreign_key %q must name a scalar field", f.ForeignKey),
				Code:    ErrForeignKeyNotScalar,
				Line:    f.Pos.Line(),
			})
		}
	}
	return errs
}
