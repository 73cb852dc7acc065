package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/dynq/internal/value"
)

// Type is the static type of a record field.
type Type struct {
	Kind value.Kind

	// Bits is the width of integer and float kinds (8, 16, 32, 64).
	Bits int

	// Unsigned marks unsigned integer kinds.
	Unsigned bool

	// Nullable fields may hold value.Null.
	Nullable bool

	// Elem is the element type of list kinds.
	Elem *Type

	// Record is the nested record type of record kinds.
	Record *RecordType
}

// Common scalar types.
var (
	String   = Type{Kind: value.KindString}
	Bool     = Type{Kind: value.KindBool}
	Int      = Type{Kind: value.KindInt, Bits: 64}
	Int32    = Type{Kind: value.KindInt, Bits: 32}
	Float    = Type{Kind: value.KindFloat, Bits: 64}
	Date     = Type{Kind: value.KindDate}
	DateTime = Type{Kind: value.KindTime}
)

// ListOf returns a list type with the given element type.
func ListOf(elem Type) Type {
	return Type{Kind: value.KindList, Elem: &elem}
}

// RecordOf returns a nested record type. Record-valued fields are always
// nullable.
func RecordOf(rt *RecordType) Type {
	return Type{Kind: value.KindObject, Record: rt, Nullable: true}
}

// OrNull returns a nullable copy of t.
func (t Type) OrNull() Type {
	t.Nullable = true
	return t
}

// Underlying returns t with the nullable wrapper removed.
func (t Type) Underlying() Type {
	t.Nullable = false
	return t
}

// Scalar reports whether t is neither a list nor a nested record.
func (t Type) Scalar() bool {
	return t.Kind != value.KindList && t.Kind != value.KindObject
}

// Name returns the normalized type name, for example "int32", "float64?",
// "[]string" or the nested record's name.
func (t Type) Name() string {
	var name string
	switch t.Kind {
	case value.KindInt:
		prefix := "int"
		if t.Unsigned {
			prefix = "uint"
		}
		name = fmt.Sprintf("%s%d", prefix, bitsOr64(t.Bits))
	case value.KindFloat:
		name = fmt.Sprintf("float%d", bitsOr64(t.Bits))
	case value.KindList:
		elem := "any"
		if t.Elem != nil {
			elem = t.Elem.Name()
		}
		name = "[]" + elem
	case value.KindObject:
		name = "record"
		if t.Record != nil {
			name = t.Record.Name
		}
		// Nested records are implicitly nullable.
		return name
	default:
		name = t.Kind.String()
	}
	if t.Nullable {
		name += "?"
	}
	return name
}

func (t Type) String() string {
	return t.Name()
}

func bitsOr64(bits int) int {
	if bits == 0 {
		return 64
	}
	return bits
}

var scalarTypeNames = map[string]Type{
	"string":    String,
	"text":      String,
	"bool":      Bool,
	"boolean":   Bool,
	"int":       Int,
	"int8":      {Kind: value.KindInt, Bits: 8},
	"int16":     {Kind: value.KindInt, Bits: 16},
	"int32":     Int32,
	"int64":     Int,
	"long":      Int,
	"uint":      {Kind: value.KindInt, Bits: 64, Unsigned: true},
	"uint8":     {Kind: value.KindInt, Bits: 8, Unsigned: true},
	"byte":      {Kind: value.KindInt, Bits: 8, Unsigned: true},
	"uint16":    {Kind: value.KindInt, Bits: 16, Unsigned: true},
	"uint32":    {Kind: value.KindInt, Bits: 32, Unsigned: true},
	"uint64":    {Kind: value.KindInt, Bits: 64, Unsigned: true},
	"float":     Float,
	"float32":   {Kind: value.KindFloat, Bits: 32},
	"float64":   Float,
	"double":    Float,
	"decimal":   Float,
	"date":      Date,
	"datetime":  DateTime,
	"time":      DateTime,
	"timestamp": DateTime,
}

// ParseType parses a scalar or list type name. A trailing "?" marks the type
// nullable and a leading "[]" makes it a list. Names are case-insensitive.
// Record types are not known here; see RecordOf.
func ParseType(s string) (Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return Type{}, fmt.Errorf("empty type name")
	}

	if rest, ok := strings.CutPrefix(name, "[]"); ok {
		elem, err := ParseType(rest)
		if err != nil {
			return Type{}, fmt.Errorf("list element: %w", err)
		}
		return ListOf(elem), nil
	}

	nullable := false
	if rest, ok := strings.CutSuffix(name, "?"); ok {
		nullable = true
		name = rest
	}

	t, ok := scalarTypeNames[name]
	if !ok {
		return Type{}, fmt.Errorf("unknown type %q", s)
	}
	t.Nullable = nullable
	return t, nil
}
