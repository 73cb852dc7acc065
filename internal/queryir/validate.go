package queryir

import (
	"fmt"

	"github.com/roach88/dynq/internal/value"
)

// ValidationResult contains push-down analysis of an expression.
type ValidationResult struct {
	// IsPortable indicates the expression can be compiled to SQL.
	IsPortable bool

	// Warnings lists the constructs that prevent push-down.
	// Empty when IsPortable is true.
	Warnings []string
}

// Validate checks whether an expression stays within the SQL push-down
// fragment: every leaf must read a scalar field and carry scalar literals.
//
// Non-portable expressions remain valid for in-memory evaluation.
// Validate is a pure function with no side effects.
func Validate(e Expr) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateExpr(e)

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateExpr(e Expr) {
	switch ex := e.(type) {
	case nil, Const:
	case And:
		for _, term := range ex.Terms {
			v.validateExpr(term)
		}
	case Or:
		for _, term := range ex.Terms {
			v.validateExpr(term)
		}
	case Not:
		v.validateExpr(ex.Expr)
	case Compare:
		v.validateField(ex.Field)
		if ex.Value != nil && !scalarLiteral(ex.Value) {
			v.addWarning("Comparison on %s uses a %s literal - only scalar literals compile to SQL", ex.Field.Name, ex.Value.Kind())
		}
	case In:
		v.validateField(ex.Field)
		for _, item := range ex.Values {
			if !scalarLiteral(item) {
				v.addWarning("IN list on %s contains a %s literal - only scalar literals compile to SQL", ex.Field.Name, item.Kind())
				break
			}
		}
	case Match:
		v.validateField(ex.Field)
	default:
		v.addWarning("Unknown expression type: %T - portability cannot be verified", e)
	}
}

func (v *validator) validateField(f FieldRef) {
	if !f.Type.Scalar() {
		v.addWarning("Field %s has type %s - only scalar fields compile to SQL", f.Name, f.Type.Name())
	}
}

func scalarLiteral(val value.Value) bool {
	k := val.Kind()
	return k != value.KindList && k != value.KindObject
}
