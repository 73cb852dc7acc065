package coerce

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynq/internal/qerr"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

func field(name, typ string) schema.Field {
	t, err := schema.ParseType(typ)
	if err != nil {
		panic(err)
	}
	return schema.Field{Name: name, Type: t}
}

func TestCoerce(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		field    schema.Field
		expected value.Value
	}{
		{"int32", "42", field("Age", "int32"), value.Int(42)},
		{"int8 negative", "-128", field("Small", "int8"), value.Int(-128)},
		{"uint16", "65535", field("Port", "uint16"), value.Int(65535)},
		{"nullable int", " 7 ", field("Rank", "int?"), value.Int(7)},
		{"float", "2.5", field("Amt", "float64"), value.Float(2.5)},
		{"bool mixed case", "True", field("Active", "bool"), value.Bool(true)},
		{"string unchanged", "  Jo ", field("Name", "string"), value.String("  Jo ")},
		{"date truncates", "2024-03-05T17:45:00Z", field("Hired", "date"),
			value.NewDate(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))},
		{"datetime keeps time", "2024-03-05 17:45:00", field("Seen", "datetime"),
			value.NewTime(time.Date(2024, 3, 5, 17, 45, 0, 0, time.UTC))},
		{"us date", "03/05/2024", field("Hired", "date"),
			value.NewDate(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Coerce(tc.raw, tc.field)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestCoerce_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		raw   string
		field schema.Field
	}{
		{"not a number", "abc", field("Age", "int32")},
		{"overflow int8", "300", field("Small", "int8")},
		{"negative unsigned", "-1", field("Port", "uint16")},
		{"bad bool", "yes", field("Active", "bool")},
		{"bad date", "yesterday", field("Hired", "date")},
		{"empty int", "", field("Age", "int")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Coerce(tc.raw, tc.field)
			require.Error(t, err)
			assert.True(t, qerr.IsCoercion(err))

			var qe *qerr.Error
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, tc.field.Name, qe.Field)
			assert.Equal(t, tc.raw, qe.Value)
		})
	}
}

func TestCoerceList(t *testing.T) {
	got, err := CoerceList(" 1, 2,,3 ,", "", field("Age", "int32"))
	require.NoError(t, err)
	assert.Equal(t, value.List{value.Int(1), value.Int(2), value.Int(3)}, got)

	got, err = CoerceList("a|b", "|", field("Tag", "string"))
	require.NoError(t, err)
	assert.Equal(t, value.List{value.String("a"), value.String("b")}, got)

	got, err = CoerceList("x;y", ";", field("Tags", "[]string"))
	require.NoError(t, err)
	assert.Equal(t, value.List{value.String("x"), value.String("y")}, got, "element type of a list field")

	got, err = CoerceList("", ",", field("Age", "int"))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = CoerceList("1,x", ",", field("Age", "int"))
	require.Error(t, err)
	var qe *qerr.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "x", qe.Value)
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, Split(" a ,, b c ", ","))
	assert.Nil(t, Split(" , ", ","))
}

func TestNative(t *testing.T) {
	testCases := []struct {
		name     string
		input    any
		typ      string
		expected value.Value
	}{
		{"json float to int", float64(3), "int", value.Int(3)},
		{"json number", json.Number("12"), "int32", value.Int(12)},
		{"int to float", 4, "float", value.Float(4)},
		{"string literal", "2024-01-02", "date", value.NewDate(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))},
		{"sqlite bool", int64(1), "bool", value.Bool(true)},
		{"nil nullable", nil, "string?", value.Null{}},
		{"list", []any{"a", "b"}, "[]string", value.List{value.String("a"), value.String("b")}},
		{"time", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "datetime",
			value.NewTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))},
		{"float32 rounds", 0.1, "float32", value.Float(float64(float32(0.1)))},
		{"int to float32", 16777217, "float32", value.Float(16777216)},
		{"int8 max", 127, "int8", value.Int(127)},
		{"uint8 max", float64(255), "uint8", value.Int(255)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			typ, err := schema.ParseType(tc.typ)
			require.NoError(t, err)
			got, err := Native(tc.input, typ)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestNative_Errors(t *testing.T) {
	_, err := Native(nil, schema.Int)
	assert.Error(t, err)
	_, err = Native(2.5, schema.Int)
	assert.Error(t, err)
	_, err = Native(true, schema.Date)
	assert.Error(t, err)

	for _, tc := range []struct {
		input any
		typ   string
	}{
		{300, "int8"},
		{-129, "int8"},
		{float64(256), "uint8"},
		{-1, "uint32"},
		{1e40, "float32"},
		{1e19, "int64"},
	} {
		typ, err := schema.ParseType(tc.typ)
		require.NoError(t, err)
		_, err = Native(tc.input, typ)
		assert.ErrorContains(t, err, "range", "%v as %s", tc.input, tc.typ)
	}
}

func TestNative_MatchesLiteralWidth(t *testing.T) {
	testCases := []struct {
		name  string
		input any
		raw   string
		typ   schema.Type
	}{
		{"float32", 0.1, "0.1", schema.Type{Kind: value.KindFloat, Bits: 32}},
		{"float32 from json number", json.Number("2.7"), "2.7", schema.Type{Kind: value.KindFloat, Bits: 32}},
		{"float64", 0.1, "0.1", schema.Float},
		{"int16", 1200, "1200", schema.Type{Kind: value.KindInt, Bits: 16}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stored, err := Native(tc.input, tc.typ)
			require.NoError(t, err)
			literal, err := Coerce(tc.raw, schema.Field{Name: "F", Type: tc.typ})
			require.NoError(t, err)
			assert.True(t, value.Equal(stored, literal), "stored %v, literal %v", stored, literal)
		})
	}
}

func TestRowFromMap(t *testing.T) {
	rt := schema.MustRecordType("Employee",
		schema.Field{Name: "Name", Type: schema.String},
		schema.Field{Name: "Amt", Type: schema.Int},
		schema.Field{Name: "Manager", Type: schema.String.OrNull()},
	)

	row, err := RowFromMap(rt, map[string]any{"Name": "Jo", "Amt": 10})
	require.NoError(t, err)
	assert.Equal(t, value.String("Jo"), row.At(0))
	assert.Equal(t, value.Int(10), row.At(1))
	assert.Equal(t, value.Null{}, row.At(2))

	_, err = RowFromMap(rt, map[string]any{"Salary": 1})
	assert.ErrorContains(t, err, "has no field")

	rows, err := RowsFromMaps(rt, []map[string]any{{"Name": "A"}, {"Amt": "x"}})
	assert.Nil(t, rows)
	assert.ErrorContains(t, err, "row 1")
}
