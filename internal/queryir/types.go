package queryir

import (
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

// Expr is a boolean expression over one row.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// FieldRef identifies the field a leaf reads.
type FieldRef struct {
	Name  string      // Concrete field name
	Index int         // Position in the record type
	Type  schema.Type // Field type
}

// Const is a constant truth value. An empty search compiles to Const{true}.
type Const struct {
	Value bool
}

func (Const) exprNode() {}

// True and False are the constant expressions.
var (
	True  = Const{Value: true}
	False = Const{Value: false}
)

// And is true when every term is true. An empty And is true.
type And struct {
	Terms []Expr
}

func (And) exprNode() {}

// Or is true when any term is true. An empty Or is false.
type Or struct {
	Terms []Expr
}

func (Or) exprNode() {}

// Not negates its operand.
type Not struct {
	Expr Expr
}

func (Not) exprNode() {}

// CmpOp is a comparison operator.
type CmpOp string

const (
	OpEq CmpOp = "="
	OpNe CmpOp = "!="
	OpGt CmpOp = ">"
	OpGe CmpOp = ">="
	OpLt CmpOp = "<"
	OpLe CmpOp = "<="
)

// Compare tests a field against a literal.
//
// Semantics:
//
//	<field> <op> <value>
//
// Eq and Ne are null-safe; ordered operators are false when the field is
// Null.
type Compare struct {
	Field FieldRef
	Op    CmpOp
	Value value.Value
}

func (Compare) exprNode() {}

// In tests set membership of a field's value. False for a Null field and
// for an empty list.
type In struct {
	Field  FieldRef
	Values value.List
}

func (In) exprNode() {}

// MatchMode selects the string test of a Match.
type MatchMode string

const (
	MatchContains MatchMode = "contains"
	MatchPrefix   MatchMode = "startswith"
	MatchSuffix   MatchMode = "endswith"
)

// Match is a case-sensitive substring, prefix or suffix test on a string
// field. False for a Null field.
type Match struct {
	Field   FieldRef
	Mode    MatchMode
	Pattern string
}

func (Match) exprNode() {}

// OrderKey is one ORDER BY term.
type OrderKey struct {
	Field FieldRef
	Desc  bool
}

// Select describes a table read for SQL back ends.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter>
//	ORDER BY <order...>, rowid LIMIT <limit> OFFSET <offset>
//
// Columns lists the fields to read (nil reads all fields of the record
// type). Limit and Offset are ignored when not positive.
type Select struct {
	From    string
	Columns []string
	Filter  Expr
	OrderBy []OrderKey
	Limit   int
	Offset  int
}

// Combine joins a and b with AND (or=false) or OR (or=true), folding
// constants and flattening nested terms of the same connective. Either side
// may be nil, meaning absent.
func Combine(or bool, a, b Expr) Expr {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}

	if c, ok := a.(Const); ok {
		return foldConst(or, c.Value, b)
	}
	if c, ok := b.(Const); ok {
		return foldConst(or, c.Value, a)
	}

	if or {
		return Or{Terms: append(orTerms(a), orTerms(b)...)}
	}
	return And{Terms: append(andTerms(a), andTerms(b)...)}
}

func foldConst(or, c bool, other Expr) Expr {
	switch {
	case or && c:
		return True
	case or:
		return other
	case c:
		return other
	default:
		return False
	}
}

func andTerms(e Expr) []Expr {
	if and, ok := e.(And); ok {
		return append([]Expr(nil), and.Terms...)
	}
	return []Expr{e}
}

func orTerms(e Expr) []Expr {
	if or, ok := e.(Or); ok {
		return append([]Expr(nil), or.Terms...)
	}
	return []Expr{e}
}
