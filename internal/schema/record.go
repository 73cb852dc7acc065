package schema

import (
	"fmt"
	"strings"
)

// Field is a named, typed attribute of a record type.
type Field struct {
	Name string
	Type Type

	// ForeignKey names the scalar field holding the key of a navigation
	// field. Empty for ordinary fields.
	ForeignKey string
}

// RecordType is an ordered set of fields. Treat it as immutable once built.
type RecordType struct {
	Name   string
	Fields []Field

	index map[string]int
}

// NewRecordType builds a record type, rejecting empty or duplicate field
// names and foreign keys that name no scalar field.
func NewRecordType(name string, fields ...Field) (*RecordType, error) {
	rt := &RecordType{Name: name}
	if err := rt.setFields(fields); err != nil {
		return nil, err
	}
	return rt, nil
}

// MustRecordType is NewRecordType that panics on error. Intended for
// package-level fixtures.
func MustRecordType(name string, fields ...Field) *RecordType {
	rt, err := NewRecordType(name, fields...)
	if err != nil {
		panic(err)
	}
	return rt
}

func (rt *RecordType) setFields(fields []Field) error {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("record %s: field %d has no name", rt.Name, i)
		}
		if _, dup := index[f.Name]; dup {
			return fmt.Errorf("record %s: duplicate field %q", rt.Name, f.Name)
		}
		index[f.Name] = i
	}
	for _, f := range fields {
		if f.ForeignKey == "" {
			continue
		}
		idx, ok := index[f.ForeignKey]
		if !ok {
			return fmt.Errorf("record %s: field %q references unknown key field %q", rt.Name, f.Name, f.ForeignKey)
		}
		if !fields[idx].Type.Scalar() {
			return fmt.Errorf("record %s: key field %q of %q is not scalar", rt.Name, f.ForeignKey, f.Name)
		}
	}
	rt.Fields = fields
	rt.index = index
	return nil
}

// NumField returns the number of fields.
func (rt *RecordType) NumField() int {
	return len(rt.Fields)
}

// Field returns the i'th field.
func (rt *RecordType) Field(i int) Field {
	return rt.Fields[i]
}

// Lookup returns the index of the field with exactly this name.
func (rt *RecordType) Lookup(name string) (int, bool) {
	i, ok := rt.index[name]
	return i, ok
}

// FieldNames returns field names in declaration order.
func (rt *RecordType) FieldNames() []string {
	names := make([]string, len(rt.Fields))
	for i, f := range rt.Fields {
		names[i] = f.Name
	}
	return names
}

// Scalar reports whether every field of rt is scalar.
func (rt *RecordType) Scalar() bool {
	for _, f := range rt.Fields {
		if !f.Type.Scalar() {
			return false
		}
	}
	return true
}

// Signature returns the ordered (name, type) signature of rt, for example
// "Dept:string;Total:int64;". Structurally identical record types share a
// signature regardless of their names.
func (rt *RecordType) Signature() string {
	var b strings.Builder
	for _, f := range rt.Fields {
		b.WriteString(f.Name)
		b.WriteByte(':')
		b.WriteString(f.Type.Name())
		b.WriteByte(';')
	}
	return b.String()
}

func (rt *RecordType) String() string {
	return rt.Name
}
