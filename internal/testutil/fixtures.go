// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

// Employee is the record type used across package tests:
//
//	Name string, Dept string, Salary int, Age int32?, Rating float,
//	Hired date, Active bool, Manager string?
var Employee = schema.MustRecordType("Employee",
	schema.Field{Name: "Name", Type: schema.String},
	schema.Field{Name: "Dept", Type: schema.String},
	schema.Field{Name: "Salary", Type: schema.Int},
	schema.Field{Name: "Age", Type: schema.Int32.OrNull()},
	schema.Field{Name: "Rating", Type: schema.Float},
	schema.Field{Name: "Hired", Type: schema.Date},
	schema.Field{Name: "Active", Type: schema.Bool},
	schema.Field{Name: "Manager", Type: schema.String.OrNull()},
)

// Employees returns five rows of Employee in a fixed order:
//
//	John     Sales  5000  30   4.5 2020-01-15 true  Mark
//	Mark     Sales  7000  45   3.9 2018-03-01 true  null
//	Johanna  Eng    6500  null 4.8 2021-06-30 true  Mark
//	Zed      Eng    4000  25   2.5 2022-11-11 false Johanna
//	Alice    Eng    6500  38   4.8 2019-09-09 true  Johanna
func Employees(t testing.TB) []schema.Row {
	t.Helper()
	data := []struct {
		name, dept string
		salary     int64
		age        value.Value
		rating     float64
		hired      string
		active     bool
		manager    value.Value
	}{
		{"John", "Sales", 5000, value.Int(30), 4.5, "2020-01-15", true, value.String("Mark")},
		{"Mark", "Sales", 7000, value.Int(45), 3.9, "2018-03-01", true, value.Null{}},
		{"Johanna", "Eng", 6500, value.Null{}, 4.8, "2021-06-30", true, value.String("Mark")},
		{"Zed", "Eng", 4000, value.Int(25), 2.5, "2022-11-11", false, value.String("Johanna")},
		{"Alice", "Eng", 6500, value.Int(38), 4.8, "2019-09-09", true, value.String("Johanna")},
	}

	rows := make([]schema.Row, len(data))
	for i, d := range data {
		hired, err := time.Parse(value.DateLayout, d.hired)
		if err != nil {
			t.Fatalf("parse hired date %q: %v", d.hired, err)
		}
		row, err := schema.RowFromValues(Employee,
			value.String(d.name),
			value.String(d.dept),
			value.Int(d.salary),
			d.age,
			value.Float(d.rating),
			value.NewDate(hired),
			value.Bool(d.active),
			d.manager,
		)
		if err != nil {
			t.Fatalf("build row %d: %v", i, err)
		}
		rows[i] = row
	}
	return rows
}

// Column returns the named field's value of every row, in order.
func Column(t testing.TB, rows []schema.Row, name string) []value.Value {
	t.Helper()
	out := make([]value.Value, len(rows))
	for i, row := range rows {
		v, ok := row.Get(name)
		if !ok {
			t.Fatalf("row %d has no field %q", i, name)
		}
		out[i] = v
	}
	return out
}

// Strings returns the named string field of every row, in order.
func Strings(t testing.TB, rows []schema.Row, name string) []string {
	t.Helper()
	vals := Column(t, rows, name)
	out := make([]string, len(vals))
	for i, v := range vals {
		s, ok := v.(value.String)
		if !ok {
			t.Fatalf("row %d field %q is %s, not string", i, name, v.Kind())
		}
		out[i] = string(s)
	}
	return out
}
