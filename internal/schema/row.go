package schema

import (
	"fmt"
	"time"

	"github.com/roach88/dynq/internal/value"
)

// Row is one record: a value per field of its RecordType, in field order.
//
// Rows are small handles over a value slice. Copies of a Row share values;
// use Clone before mutating a row that other code may hold.
type Row struct {
	typ  *RecordType
	vals []value.Value
}

// NewRow returns a row of rt with every field set to its type's default.
func NewRow(rt *RecordType) Row {
	vals := make([]value.Value, len(rt.Fields))
	for i, f := range rt.Fields {
		vals[i] = Zero(f.Type)
	}
	return Row{typ: rt, vals: vals}
}

// RowFromValues builds a row from values given in field order.
func RowFromValues(rt *RecordType, vals ...value.Value) (Row, error) {
	if len(vals) != len(rt.Fields) {
		return Row{}, fmt.Errorf("record %s: expected %d values, got %d", rt.Name, len(rt.Fields), len(vals))
	}
	row := Row{typ: rt, vals: make([]value.Value, len(vals))}
	for i, v := range vals {
		if v == nil {
			v = value.Null{}
		}
		row.vals[i] = v
	}
	return row, nil
}

// Zero returns the default value of t. Nullable, list and record types
// default to Null.
func Zero(t Type) value.Value {
	if t.Nullable {
		return value.Null{}
	}
	switch t.Kind {
	case value.KindBool:
		return value.Bool(false)
	case value.KindInt:
		return value.Int(0)
	case value.KindFloat:
		return value.Float(0)
	case value.KindString:
		return value.String("")
	case value.KindDate:
		return value.NewDate(time.Time{})
	case value.KindTime:
		return value.NewTime(time.Time{})
	default:
		return value.Null{}
	}
}

// Type returns the row's record type.
func (r Row) Type() *RecordType {
	return r.typ
}

// Len returns the number of fields.
func (r Row) Len() int {
	return len(r.vals)
}

// At returns the value of the i'th field.
func (r Row) At(i int) value.Value {
	return r.vals[i]
}

// Get returns the value of the field with exactly this name.
func (r Row) Get(name string) (value.Value, bool) {
	if r.typ == nil {
		return nil, false
	}
	i, ok := r.typ.Lookup(name)
	if !ok {
		return nil, false
	}
	return r.vals[i], true
}

// Set stores v into the i'th field. Nil stores Null.
func (r Row) Set(i int, v value.Value) {
	if v == nil {
		v = value.Null{}
	}
	r.vals[i] = v
}

// Clone returns a row with its own value slice.
func (r Row) Clone() Row {
	vals := make([]value.Value, len(r.vals))
	copy(vals, r.vals)
	return Row{typ: r.typ, vals: vals}
}

// Values returns a copy of the row's values in field order.
func (r Row) Values() []value.Value {
	vals := make([]value.Value, len(r.vals))
	copy(vals, r.vals)
	return vals
}

// Object returns the row as a value.Object keyed by field name.
func (r Row) Object() value.Object {
	obj := make(value.Object, len(r.vals))
	for i, f := range r.typ.Fields {
		obj[f.Name] = r.vals[i]
	}
	return obj
}

// Map returns the row as Go-native values keyed by field name, the form
// used for JSON output.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.vals))
	for i, f := range r.typ.Fields {
		out[f.Name] = value.Native(r.vals[i])
	}
	return out
}

// Key returns the canonical identity of the row's values. Rows with equal
// keys are duplicates.
func (r Row) Key() string {
	return value.Key(r.vals...)
}
