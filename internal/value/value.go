package value

import (
	"slices"
	"time"
	"unicode/utf16"
)

// Kind identifies the dynamic type of a Value and the static kind of a
// record field.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindDate
	KindTime
	KindList
	KindObject
)

var kindNames = map[Kind]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindDate:   "date",
	KindTime:   "datetime",
	KindList:   "list",
	KindObject: "record",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Numeric reports whether values of this kind support arithmetic reduction.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

// Ordered reports whether values of this kind have a total order.
func (k Kind) Ordered() bool {
	switch k {
	case KindInt, KindFloat, KindString, KindDate, KindTime:
		return true
	default:
		return false
	}
}

// Value is a sealed interface over the literal types of this package.
type Value interface {
	Kind() Kind
	value() // Sealed - only types in this package implement it
}

// Null is the absent value.
type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) value()     {}

// Bool is a boolean value.
type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) value()     {}

// Int is an integer value of any width.
type Int int64

func (Int) Kind() Kind { return KindInt }
func (Int) value()     {}

// Float is a floating point value of any width.
type Float float64

func (Float) Kind() Kind { return KindFloat }
func (Float) value()     {}

// String is a text value.
type String string

func (String) Kind() Kind { return KindString }
func (String) value()     {}

// Date is a calendar date. The wrapped time is always UTC midnight.
type Date struct{ time.Time }

func (Date) Kind() Kind { return KindDate }
func (Date) value()     {}

// Time is an instant. The wrapped time is always UTC.
type Time struct{ time.Time }

func (Time) Kind() Kind { return KindTime }
func (Time) value()     {}

// List is an ordered list of values.
type List []Value

func (List) Kind() Kind { return KindList }
func (List) value()     {}

// Object is a nested record keyed by field name.
// Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) Kind() Kind { return KindObject }
func (Object) value()     {}

// NewDate truncates t to its calendar date in t's own location and returns
// that date as UTC midnight.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// NewTime normalizes t to UTC.
func NewTime(t time.Time) Time {
	return Time{t.UTC()}
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sortUTF16(keys)
	return keys
}

// compareUTF16 orders strings by UTF-16 code units as RFC 8785 requires.
// Go's native string order is UTF-8 byte order, which differs for
// supplementary-plane characters.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

func sortUTF16(keys []string) {
	slices.SortFunc(keys, compareUTF16)
}
