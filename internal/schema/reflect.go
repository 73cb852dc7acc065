package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/roach88/dynq/internal/value"
)

// TagName is the struct tag read by Of.
//
//	type Order struct {
//	    ID         int64
//	    CustomerID int64
//	    Customer   *Customer `dynq:",fk=CustomerID"`
//	    Placed     time.Time `dynq:"placed_on,date"`
//	    Internal   string    `dynq:"-"`
//	}
const TagName = "dynq"

var timeType = reflect.TypeOf(time.Time{})

// reflected caches record types built from Go struct types.
var reflected = struct {
	sync.Mutex
	types map[reflect.Type]*reflectedType
}{types: make(map[reflect.Type]*reflectedType)}

// reflectedType pairs a record type with the struct field index of each of
// its fields.
type reflectedType struct {
	rt      *RecordType
	indexes [][]int
}

// Of returns the record type describing the struct type t (or pointer to
// struct). The result is built once per Go type and cached.
func Of(t reflect.Type) (*RecordType, error) {
	rtyp, err := reflectType(t)
	if err != nil {
		return nil, err
	}
	return rtyp.rt, nil
}

// For returns the record type describing T.
func For[T any]() (*RecordType, error) {
	return Of(reflect.TypeFor[T]())
}

func reflectType(t reflect.Type) (*reflectedType, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == timeType {
		return nil, fmt.Errorf("schema: %s is not a struct type", t)
	}

	reflected.Lock()
	defer reflected.Unlock()
	building := make(map[reflect.Type]*reflectedType)
	return buildType(t, building)
}

// buildType must be called with reflected locked. Types under construction
// are registered in building first so self-referencing navigation fields
// terminate.
func buildType(t reflect.Type, building map[reflect.Type]*reflectedType) (*reflectedType, error) {
	if cached, ok := reflected.types[t]; ok {
		return cached, nil
	}
	if partial, ok := building[t]; ok {
		return partial, nil
	}

	out := &reflectedType{rt: &RecordType{Name: t.Name()}}
	building[t] = out

	var fields []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := parseTag(sf)
		if tag.skip {
			continue
		}
		ft, err := fieldType(sf.Type, tag.date, building)
		if err != nil {
			return nil, fmt.Errorf("schema: %s.%s: %w", t.Name(), sf.Name, err)
		}
		fields = append(fields, Field{Name: tag.name, Type: ft, ForeignKey: tag.foreignKey})
		out.indexes = append(out.indexes, sf.Index)
	}

	if err := out.rt.setFields(fields); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	delete(building, t)
	reflected.types[t] = out
	return out, nil
}

type structTag struct {
	name       string
	foreignKey string
	date       bool
	skip       bool
}

func parseTag(sf reflect.StructField) structTag {
	tag := structTag{name: sf.Name}
	raw, ok := sf.Tag.Lookup(TagName)
	if !ok {
		return tag
	}
	if raw == "-" {
		tag.skip = true
		return tag
	}
	parts := strings.Split(raw, ",")
	if parts[0] != "" {
		tag.name = parts[0]
	}
	for _, opt := range parts[1:] {
		switch {
		case opt == "date":
			tag.date = true
		case strings.HasPrefix(opt, "fk="):
			tag.foreignKey = strings.TrimPrefix(opt, "fk=")
		}
	}
	return tag
}

func fieldType(t reflect.Type, date bool, building map[reflect.Type]*reflectedType) (Type, error) {
	switch t.Kind() {
	case reflect.Pointer:
		elem, err := fieldType(t.Elem(), date, building)
		if err != nil {
			return Type{}, err
		}
		return elem.OrNull(), nil
	case reflect.Bool:
		return Bool, nil
	case reflect.String:
		return String, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Type{Kind: value.KindInt, Bits: t.Bits()}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Type{Kind: value.KindInt, Bits: t.Bits(), Unsigned: true}, nil
	case reflect.Float32, reflect.Float64:
		return Type{Kind: value.KindFloat, Bits: t.Bits()}, nil
	case reflect.Slice, reflect.Array:
		elem, err := fieldType(t.Elem(), date, building)
		if err != nil {
			return Type{}, err
		}
		return ListOf(elem), nil
	case reflect.Struct:
		if t == timeType {
			if date {
				return Date, nil
			}
			return DateTime, nil
		}
		nested, err := buildType(t, building)
		if err != nil {
			return Type{}, err
		}
		return RecordOf(nested.rt), nil
	default:
		return Type{}, fmt.Errorf("unsupported kind %s", t.Kind())
	}
}

// RowOf converts a struct (or pointer to struct) into a row of its record
// type.
func RowOf(v any) (Row, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Row{}, fmt.Errorf("schema: nil %T", v)
		}
		rv = rv.Elem()
	}
	rtyp, err := reflectType(rv.Type())
	if err != nil {
		return Row{}, err
	}
	return structRow(rtyp, rv), nil
}

// RowsOf converts a slice of structs into rows sharing one record type.
func RowsOf[T any](items []T) (*RecordType, []Row, error) {
	rtyp, err := reflectType(reflect.TypeFor[T]())
	if err != nil {
		return nil, nil, err
	}
	rows := make([]Row, len(items))
	for i := range items {
		rv := reflect.ValueOf(&items[i]).Elem()
		for rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil, nil, fmt.Errorf("schema: item %d is nil", i)
			}
			rv = rv.Elem()
		}
		rows[i] = structRow(rtyp, rv)
	}
	return rtyp.rt, rows, nil
}

func structRow(rtyp *reflectedType, rv reflect.Value) Row {
	row := Row{typ: rtyp.rt, vals: make([]value.Value, len(rtyp.indexes))}
	for i, idx := range rtyp.indexes {
		row.vals[i] = toValue(rv.FieldByIndex(idx), rtyp.rt.Fields[i].Type)
	}
	return row
}

func toValue(rv reflect.Value, t Type) value.Value {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return value.Null{}
		}
		return toValue(rv.Elem(), t.Underlying())
	case reflect.Bool:
		return value.Bool(rv.Bool())
	case reflect.String:
		return value.String(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return value.Int(int64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return value.Float(rv.Float())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return value.Null{}
		}
		elemType := Type{}
		if t.Elem != nil {
			elemType = *t.Elem
		}
		list := make(value.List, rv.Len())
		for i := range list {
			list[i] = toValue(rv.Index(i), elemType)
		}
		return list
	case reflect.Struct:
		if rv.Type() == timeType {
			ts := rv.Interface().(time.Time)
			if t.Kind == value.KindDate {
				return value.NewDate(ts)
			}
			return value.NewTime(ts)
		}
		if t.Record == nil {
			return value.Null{}
		}
		rtyp, err := reflectType(rv.Type())
		if err != nil {
			return value.Null{}
		}
		return structRow(rtyp, rv).Object()
	default:
		return value.Null{}
	}
}

// Decode copies a row into out, which must be a pointer to the struct type
// the row's record type was built from. Fields absent from the row's type
// are left untouched.
func Decode(r Row, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("schema: decode target must be a non-nil pointer, got %T", out)
	}
	rv = rv.Elem()
	rtyp, err := reflectType(rv.Type())
	if err != nil {
		return err
	}
	for i, f := range rtyp.rt.Fields {
		v, ok := r.Get(f.Name)
		if !ok {
			continue
		}
		if err := setValue(rv.FieldByIndex(rtyp.indexes[i]), v); err != nil {
			return fmt.Errorf("schema: decode %s.%s: %w", rtyp.rt.Name, f.Name, err)
		}
	}
	return nil
}

func setValue(dst reflect.Value, v value.Value) error {
	if value.IsNull(v) {
		dst.SetZero()
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := setValue(elem.Elem(), v); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	switch val := v.(type) {
	case value.Bool:
		if dst.Kind() != reflect.Bool {
			return fmt.Errorf("cannot store bool in %s", dst.Type())
		}
		dst.SetBool(bool(val))
	case value.String:
		if dst.Kind() != reflect.String {
			return fmt.Errorf("cannot store string in %s", dst.Type())
		}
		dst.SetString(string(val))
	case value.Int:
		switch dst.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dst.SetInt(int64(val))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			dst.SetUint(uint64(val))
		case reflect.Float32, reflect.Float64:
			dst.SetFloat(float64(val))
		default:
			return fmt.Errorf("cannot store int in %s", dst.Type())
		}
	case value.Float:
		if dst.Kind() != reflect.Float32 && dst.Kind() != reflect.Float64 {
			return fmt.Errorf("cannot store float in %s", dst.Type())
		}
		dst.SetFloat(float64(val))
	case value.Date:
		return setTime(dst, val.Time)
	case value.Time:
		return setTime(dst, val.Time)
	case value.List:
		if dst.Kind() != reflect.Slice {
			return fmt.Errorf("cannot store list in %s", dst.Type())
		}
		slice := reflect.MakeSlice(dst.Type(), len(val), len(val))
		for i, elem := range val {
			if err := setValue(slice.Index(i), elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		dst.Set(slice)
	case value.Object:
		if dst.Kind() != reflect.Struct {
			return fmt.Errorf("cannot store record in %s", dst.Type())
		}
		rtyp, err := reflectType(dst.Type())
		if err != nil {
			return err
		}
		for i, f := range rtyp.rt.Fields {
			if elem, ok := val[f.Name]; ok {
				if err := setValue(dst.FieldByIndex(rtyp.indexes[i]), elem); err != nil {
					return fmt.Errorf("%s: %w", f.Name, err)
				}
			}
		}
	default:
		return fmt.Errorf("unsupported value %T", v)
	}
	return nil
}

func setTime(dst reflect.Value, t time.Time) error {
	if dst.Type() != timeType {
		return fmt.Errorf("cannot store time in %s", dst.Type())
	}
	dst.Set(reflect.ValueOf(t))
	return nil
}
