package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

var testRecord = schema.MustRecordType("Employee",
	schema.Field{Name: "Name", Type: schema.String},
	schema.Field{Name: "Amt", Type: schema.Int},
	schema.Field{Name: "Manager", Type: schema.String.OrNull()},
	schema.Field{Name: "Tags", Type: schema.ListOf(schema.String)},
)

func ref(name string) FieldRef {
	idx, ok := testRecord.Lookup(name)
	if !ok {
		panic(name)
	}
	return FieldRef{Name: name, Index: idx, Type: testRecord.Fields[idx].Type}
}

func makeTestRow(t *testing.T, name string, amt int64, manager value.Value) schema.Row {
	t.Helper()
	row, err := schema.RowFromValues(testRecord, value.String(name), value.Int(amt), manager, value.Null{})
	require.NoError(t, err)
	return row
}

func TestEval_Leaves(t *testing.T) {
	john := makeTestRow(t, "John", 10, value.Null{})
	mark := makeTestRow(t, "Mark", 20, value.String("Ann"))

	testCases := []struct {
		name string
		expr Expr
		john bool
		mark bool
	}{
		{"eq", Compare{Field: ref("Amt"), Op: OpEq, Value: value.Int(10)}, true, false},
		{"ne", Compare{Field: ref("Amt"), Op: OpNe, Value: value.Int(10)}, false, true},
		{"gt", Compare{Field: ref("Amt"), Op: OpGt, Value: value.Int(10)}, false, true},
		{"ge", Compare{Field: ref("Amt"), Op: OpGe, Value: value.Int(10)}, true, true},
		{"lt", Compare{Field: ref("Amt"), Op: OpLt, Value: value.Int(20)}, true, false},
		{"le", Compare{Field: ref("Amt"), Op: OpLe, Value: value.Int(20)}, true, true},
		{"eq null", Compare{Field: ref("Manager"), Op: OpEq, Value: value.Null{}}, true, false},
		{"ne literal on null", Compare{Field: ref("Manager"), Op: OpNe, Value: value.String("Ann")}, true, false},
		{"ordered on null", Compare{Field: ref("Manager"), Op: OpGe, Value: value.String("A")}, false, true},
		{"in", In{Field: ref("Amt"), Values: value.List{value.Int(5), value.Int(20)}}, false, true},
		{"in empty", In{Field: ref("Amt")}, false, false},
		{"in on null", In{Field: ref("Manager"), Values: value.List{value.String("Ann")}}, false, true},
		{"prefix", Match{Field: ref("Name"), Mode: MatchPrefix, Pattern: "Jo"}, true, false},
		{"suffix", Match{Field: ref("Name"), Mode: MatchSuffix, Pattern: "rk"}, false, true},
		{"contains case sensitive", Match{Field: ref("Name"), Mode: MatchContains, Pattern: "oh"}, true, false},
		{"contains upper", Match{Field: ref("Name"), Mode: MatchContains, Pattern: "OH"}, false, false},
		{"match null", Match{Field: ref("Manager"), Mode: MatchContains, Pattern: ""}, false, true},
		{"not match null", Not{Expr: Match{Field: ref("Manager"), Mode: MatchContains, Pattern: "A"}}, true, false},
		{"const", True, true, true},
		{"nil", nil, true, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.john, Eval(tc.expr, john), "john")
			assert.Equal(t, tc.mark, Eval(tc.expr, mark), "mark")
		})
	}
}

func TestEval_Junctions(t *testing.T) {
	row := makeTestRow(t, "John", 10, value.Null{})
	yes := Compare{Field: ref("Amt"), Op: OpEq, Value: value.Int(10)}
	no := Compare{Field: ref("Amt"), Op: OpEq, Value: value.Int(11)}

	assert.True(t, Eval(And{}, row))
	assert.False(t, Eval(Or{}, row))
	assert.True(t, Eval(And{Terms: []Expr{yes, yes}}, row))
	assert.False(t, Eval(And{Terms: []Expr{yes, no}}, row))
	assert.True(t, Eval(Or{Terms: []Expr{no, yes}}, row))
	assert.True(t, Eval(Not{Expr: no}, row))
}

func TestCombine(t *testing.T) {
	a := Compare{Field: ref("Amt"), Op: OpEq, Value: value.Int(1)}
	b := Compare{Field: ref("Amt"), Op: OpEq, Value: value.Int(2)}
	c := Compare{Field: ref("Amt"), Op: OpEq, Value: value.Int(3)}

	assert.Equal(t, a, Combine(false, nil, a))
	assert.Equal(t, a, Combine(true, a, nil))
	assert.Nil(t, Combine(true, nil, nil))

	assert.Equal(t, a, Combine(false, True, a), "true AND a")
	assert.Equal(t, True, Combine(true, a, True), "a OR true")
	assert.Equal(t, a, Combine(true, False, a), "false OR a")
	assert.Equal(t, False, Combine(false, a, False), "a AND false")

	ab := Combine(false, a, b)
	assert.Equal(t, And{Terms: []Expr{a, b}}, ab)
	assert.Equal(t, And{Terms: []Expr{a, b, c}}, Combine(false, ab, c), "same connective flattens")
	assert.Equal(t, Or{Terms: []Expr{And{Terms: []Expr{a, b}}, c}}, Combine(true, ab, c))

	// Flattening must not alias the original term slice.
	_ = Combine(false, ab, c)
	assert.Len(t, ab.(And).Terms, 2)
}

func TestFormat(t *testing.T) {
	expr := Combine(false,
		Match{Field: ref("Name"), Mode: MatchPrefix, Pattern: "Jo"},
		Combine(true,
			Compare{Field: ref("Amt"), Op: OpGt, Value: value.Int(10)},
			In{Field: ref("Amt"), Values: value.List{value.Int(1), value.Int(2)}},
		),
	)

	assert.Equal(t, `(Name startswith "Jo" AND (Amt > 10 OR Amt IN [1, 2]))`, Format(expr))
	assert.Equal(t, "TRUE", Format(nil))
	assert.Equal(t, `NOT Manager = NULL`, Format(Not{Expr: Compare{Field: ref("Manager"), Op: OpEq, Value: value.Null{}}}))
}

func TestValidate(t *testing.T) {
	portable := Combine(false,
		Compare{Field: ref("Amt"), Op: OpEq, Value: value.Int(1)},
		Not{Expr: Match{Field: ref("Name"), Mode: MatchContains, Pattern: "x"}},
	)
	result := Validate(portable)
	assert.True(t, result.IsPortable)
	assert.Empty(t, result.Warnings)

	nonPortable := Compare{Field: ref("Tags"), Op: OpEq, Value: value.List{value.String("a")}}
	result = Validate(nonPortable)
	assert.False(t, result.IsPortable)
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "Tags")
}
