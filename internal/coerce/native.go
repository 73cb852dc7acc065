package coerce

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

// Native converts a decoded Go value (from encoding/json, yaml.v3 or
// database/sql) into a value of type t. Strings are parsed as literals, so
// "42" is accepted for an integer field.
func Native(v any, t schema.Type) (value.Value, error) {
	if v == nil {
		if t.Nullable || !t.Scalar() {
			return value.Null{}, nil
		}
		return nil, fmt.Errorf("null for non-nullable %s", t.Name())
	}
	if existing, ok := v.(value.Value); ok {
		return existing, nil
	}
	u := t.Underlying()

	switch u.Kind {
	case value.KindList:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected list, got %T", v)
		}
		elem := schema.Type{Kind: value.KindString}
		if u.Elem != nil {
			elem = *u.Elem
		}
		list := make(value.List, len(items))
		for i, item := range items {
			ev, err := Native(item, elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = ev
		}
		return list, nil
	case value.KindObject:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object, got %T", v)
		}
		if u.Record == nil {
			return nil, fmt.Errorf("record type unknown")
		}
		row, err := RowFromMap(u.Record, m)
		if err != nil {
			return nil, err
		}
		return row.Object(), nil
	}

	switch val := v.(type) {
	case string:
		return parse(val, u)
	case []byte:
		return parse(string(val), u)
	case bool:
		if u.Kind != value.KindBool {
			if u.Kind == value.KindInt {
				// SQLite stores booleans as integers; the reverse also occurs.
				return value.Int(boolToInt(val)), nil
			}
			return nil, fmt.Errorf("bool for %s", u.Name())
		}
		return value.Bool(val), nil
	case int:
		return fromInt(int64(val), u)
	case int64:
		return fromInt(val, u)
	case int32:
		return fromInt(int64(val), u)
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows int64", val)
		}
		return fromInt(int64(val), u)
	case float64:
		return fromFloat(val, u)
	case float32:
		return fromFloat(float64(val), u)
	case json.Number:
		return parse(val.String(), u)
	case time.Time:
		switch u.Kind {
		case value.KindDate:
			return value.NewDate(val), nil
		case value.KindTime:
			return value.NewTime(val), nil
		case value.KindString:
			return value.String(val.Format(value.TimeLayout)), nil
		}
		return nil, fmt.Errorf("time for %s", u.Name())
	default:
		return nil, fmt.Errorf("unsupported %T for %s", v, u.Name())
	}
}

func fromInt(n int64, t schema.Type) (value.Value, error) {
	switch t.Kind {
	case value.KindInt:
		return fitInt(n, t)
	case value.KindFloat:
		return fitFloat(float64(n), t)
	case value.KindBool:
		return value.Bool(n != 0), nil
	case value.KindString:
		return value.String(fmt.Sprint(n)), nil
	}
	return nil, fmt.Errorf("integer for %s", t.Name())
}

func fromFloat(f float64, t schema.Type) (value.Value, error) {
	switch t.Kind {
	case value.KindFloat:
		return fitFloat(f, t)
	case value.KindInt:
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not an integer", f)
		}
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, fmt.Errorf("%v out of range for %s", f, t.Name())
		}
		return fitInt(int64(f), t)
	case value.KindString:
		return value.String(value.Format(value.Float(f))), nil
	}
	return nil, fmt.Errorf("number for %s", t.Name())
}

// fitInt checks n against the declared width of t, so decoded data holds
// exactly the values a literal of the same field can express.
func fitInt(n int64, t schema.Type) (value.Value, error) {
	bits := bitsOr64(t.Bits)
	if t.Unsigned {
		if n < 0 || (bits < 64 && uint64(n) > uint64(1)<<bits-1) {
			return nil, fmt.Errorf("%d out of range for %s", n, t.Name())
		}
		return value.Int(n), nil
	}
	if bits < 64 {
		lo, hi := -int64(1)<<(bits-1), int64(1)<<(bits-1)-1
		if n < lo || n > hi {
			return nil, fmt.Errorf("%d out of range for %s", n, t.Name())
		}
	}
	return value.Int(n), nil
}

// fitFloat rounds f to the declared width of t. float32 fields hold the
// float32 nearest to f, the same value ParseFloat(raw, 32) yields.
func fitFloat(f float64, t schema.Type) (value.Value, error) {
	if t.Bits != 32 {
		return value.Float(f), nil
	}
	if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
		return nil, fmt.Errorf("%v out of range for %s", f, t.Name())
	}
	return value.Float(float64(float32(f))), nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// RowFromMap builds a row of rt from a decoded object. Fields missing from m
// take their type's default; keys that name no field are an error.
func RowFromMap(rt *schema.RecordType, m map[string]any) (schema.Row, error) {
	row := schema.NewRow(rt)
	for k, raw := range m {
		idx, ok := rt.Lookup(k)
		if !ok {
			return schema.Row{}, fmt.Errorf("record %s has no field %q", rt.Name, k)
		}
		v, err := Native(raw, rt.Fields[idx].Type)
		if err != nil {
			return schema.Row{}, fmt.Errorf("record %s field %s: %w", rt.Name, k, err)
		}
		row.Set(idx, v)
	}
	return row, nil
}

// RowsFromMaps builds rows from decoded objects, failing on the first bad one.
func RowsFromMaps(rt *schema.RecordType, items []map[string]any) ([]schema.Row, error) {
	rows := make([]schema.Row, len(items))
	for i, m := range items {
		row, err := RowFromMap(rt, m)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = row
	}
	return rows, nil
}
