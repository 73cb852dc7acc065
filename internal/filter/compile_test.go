package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynq/internal/coerce"
	"github.com/roach88/dynq/internal/qerr"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

var employee = schema.MustRecordType("Employee",
	schema.Field{Name: "Name", Type: schema.String},
	schema.Field{Name: "Dept", Type: schema.String},
	schema.Field{Name: "Amt", Type: schema.Int},
	schema.Field{Name: "Age", Type: schema.Int32.OrNull()},
	schema.Field{Name: "Hired", Type: schema.Date},
	schema.Field{Name: "Active", Type: schema.Bool},
	schema.Field{Name: "Manager", Type: schema.String.OrNull()},
)

func makeTestRows(t *testing.T) []schema.Row {
	t.Helper()
	rows, err := coerce.RowsFromMaps(employee, []map[string]any{
		{"Name": "John", "Dept": "A", "Amt": 10, "Age": 30, "Hired": "2020-01-15", "Active": true},
		{"Name": "Mark", "Dept": "A", "Amt": 20, "Hired": "2021-06-01", "Manager": "John"},
		{"Name": "Johanna", "Dept": "B", "Amt": 5, "Age": 41, "Hired": "2019-11-30", "Active": true, "Manager": "Mark"},
		{"Name": "Zed", "Dept": "C", "Amt": 15, "Age": 25, "Hired": "2022-02-02"},
	})
	require.NoError(t, err)
	return rows
}

func names(rows []schema.Row) []string {
	out := []string{}
	for _, r := range rows {
		v, _ := r.Get("Name")
		out = append(out, value.Format(v))
	}
	return out
}

func single(f Filter) *SearchSpec {
	return &SearchSpec{FilterGroups: []FilterGroup{{Filters: []Filter{f}}}}
}

func TestCompile_EmptySpec(t *testing.T) {
	for _, spec := range []*SearchSpec{nil, {}, {FilterGroups: []FilterGroup{}}} {
		pred, err := Compile(employee, spec)
		require.NoError(t, err)
		assert.True(t, pred.IsTrivial())
		assert.Len(t, pred.Filter(makeTestRows(t)), 4)
	}
}

func TestCompile_Operators(t *testing.T) {
	rows := makeTestRows(t)

	testCases := []struct {
		name     string
		filter   Filter
		expected []string
	}{
		{"default is eq", Filter{FieldName: "Dept", Value: "A"}, []string{"John", "Mark"}},
		{"eq int", Filter{Operation: OpEq, FieldName: "amt", Value: "20"}, []string{"Mark"}},
		{"neq", Filter{Operation: OpNeq, FieldName: "Dept", Value: "A"}, []string{"Johanna", "Zed"}},
		{"gt", Filter{Operation: OpGt, FieldName: "Amt", Value: "10"}, []string{"Mark", "Zed"}},
		{"gte", Filter{Operation: OpGte, FieldName: "Amt", Value: "10"}, []string{"John", "Mark", "Zed"}},
		{"lt nullable skips null", Filter{Operation: OpLt, FieldName: "Age", Value: "35"}, []string{"John", "Zed"}},
		{"lte date", Filter{Operation: OpLte, FieldName: "Hired", Value: "2020-01-15T23:59:00Z"}, []string{"John", "Johanna"}},
		{"eq bool", Filter{FieldName: "Active", Value: "true"}, []string{"John", "Johanna"}},
		{"contains", Filter{Operation: OpContains, FieldName: "Name", Value: "oh"}, []string{"John", "Johanna"}},
		{"notcontains", Filter{Operation: OpNotContains, FieldName: "Name", Value: "oh"}, []string{"Mark", "Zed"}},
		{"startswith", Filter{Operation: OpStartsWith, FieldName: "Name", Value: "Jo"}, []string{"John", "Johanna"}},
		{"endswith", Filter{Operation: OpEndsWith, FieldName: "Name", Value: "n"}, []string{"John"}},
		{"notstartswith", Filter{Operation: OpNotStartsWith, FieldName: "Name", Value: "Jo"}, []string{"Mark", "Zed"}},
		{"notendswith", Filter{Operation: OpNotEndsWith, FieldName: "Name", Value: "a"}, []string{"John", "Mark", "Zed"}},
		{"notcontains on null matches", Filter{Operation: OpNotContains, FieldName: "Manager", Value: "J"}, []string{"John", "Johanna", "Zed"}},
		{"inlist", Filter{Operation: OpInList, FieldName: "Amt", Value: "5, 20"}, []string{"Mark", "Johanna"}},
		{"notinlist", Filter{Operation: OpNotInList, FieldName: "Amt", Value: "5,20"}, []string{"John", "Zed"}},
		{"inlist delimiter", Filter{Operation: OpInList, FieldName: "Dept", Value: "B|C", ValueListDelimiter: "|"}, []string{"Johanna", "Zed"}},
		{"containsinlist", Filter{Operation: OpContainsInList, FieldName: "Name", Value: "ar, ed"}, []string{"Mark", "Zed"}},
		{"notcontainsinlist", Filter{Operation: OpNotContainsInList, FieldName: "Name", Value: "ar,ed"}, []string{"John", "Johanna"}},
		{"startswithinlist", Filter{Operation: OpStartsWithInList, FieldName: "Name", Value: "Ma,Ze"}, []string{"Mark", "Zed"}},
		{"endswithinlist", Filter{Operation: OpEndsWithInList, FieldName: "Name", Value: "n,a"}, []string{"John", "Johanna"}},
		{"notstartswithinlist", Filter{Operation: OpNotStartsWithInList, FieldName: "Name", Value: "Jo,Ma"}, []string{"Zed"}},
		{"notendswithinlist", Filter{Operation: OpNotEndsWithInList, FieldName: "Name", Value: "n,d"}, []string{"Mark", "Johanna"}},
		{"inlist segments only empty", Filter{Operation: OpContainsInList, FieldName: "Name", Value: " , "}, []string{"John", "Mark", "Johanna", "Zed"}},
		{"unique prefix", Filter{FieldName: "Man", Value: "John"}, []string{"Mark"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pred, err := Compile(employee, single(tc.filter))
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.expected, names(pred.Filter(rows)))
		})
	}
}

func TestCompile_StartsWithScenario(t *testing.T) {
	rt := schema.MustRecordType("Person", schema.Field{Name: "Name", Type: schema.String})
	rows, err := coerce.RowsFromMaps(rt, []map[string]any{{"Name": "John"}, {"Name": "Mark"}})
	require.NoError(t, err)

	pred, err := Compile(rt, single(Filter{FieldName: "Name", Operation: OpStartsWith, Value: "Jo"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"John"}, names(pred.Filter(rows)))
}

func TestCompile_EqMatchesCoercedValue(t *testing.T) {
	rows := makeTestRows(t)
	for _, raw := range []string{"5", "10", "15", "20", "99"} {
		pred, err := Compile(employee, single(Filter{FieldName: "Amt", Value: raw}))
		require.NoError(t, err)
		want, err := coerce.Coerce(raw, employee.Fields[2])
		require.NoError(t, err)
		for _, row := range rows {
			assert.Equal(t, value.Equal(row.At(2), want), pred.Match(row), raw)
		}
	}
}

func TestCompile_NotInListNegatesInList(t *testing.T) {
	rows := makeTestRows(t)
	for _, raw := range []string{"30", "30,41", "", "25 ; 41"} {
		in, err := Compile(employee, single(Filter{Operation: OpInList, FieldName: "Age", Value: raw, ValueListDelimiter: ";"}))
		if raw == "30,41" {
			// comma is not the delimiter here, so the literal is invalid
			require.True(t, qerr.IsCoercion(err))
			continue
		}
		require.NoError(t, err)
		notIn, err := Compile(employee, single(Filter{Operation: OpNotInList, FieldName: "Age", Value: raw, ValueListDelimiter: ";"}))
		require.NoError(t, err)
		for _, row := range rows {
			assert.NotEqual(t, in.Match(row), notIn.Match(row))
		}
	}
}

func TestCompile_PerFieldChains(t *testing.T) {
	testCases := []struct {
		name     string
		filters  []Filter
		expected string
	}{
		{
			name: "same field chained with own logic",
			filters: []Filter{
				{FieldName: "Dept", Value: "A"},
				{FieldName: "Dept", Value: "B", Logic: Or},
				{FieldName: "Amt", Operation: OpGt, Value: "10"},
			},
			expected: `((Dept = "A" OR Dept = "B") AND Amt > 10)`,
		},
		{
			name: "chains grouped by field regardless of position",
			filters: []Filter{
				{FieldName: "Dept", Value: "A"},
				{FieldName: "Amt", Operation: OpGt, Value: "10", Logic: Or},
				{FieldName: "Dept", Value: "B", Logic: Or},
			},
			expected: `(Dept = "A" OR Dept = "B" OR Amt > 10)`,
		},
		{
			name: "case-insensitive names share a chain",
			filters: []Filter{
				{FieldName: "dept", Value: "A"},
				{FieldName: "DEPT", Value: "B", Logic: Or},
			},
			expected: `(Dept = "A" OR Dept = "B")`,
		},
		{
			name: "second chain joins with its first filter logic",
			filters: []Filter{
				{FieldName: "Amt", Operation: OpLt, Value: "6"},
				{FieldName: "Name", Operation: OpStartsWith, Value: "Z", Logic: Or},
				{FieldName: "Name", Operation: OpEndsWith, Value: "d", Logic: And},
			},
			expected: `(Amt < 6 OR (Name startswith "Z" AND Name endswith "d"))`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pred, err := Compile(employee, &SearchSpec{FilterGroups: []FilterGroup{{Filters: tc.filters}}})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, pred.String())
		})
	}
}

func TestCompile_Groups(t *testing.T) {
	deptA := Filter{FieldName: "Dept", Value: "A"}
	amtGt := Filter{FieldName: "Amt", Operation: OpGt, Value: "10"}
	amtGtOr := Filter{FieldName: "Amt", Operation: OpGt, Value: "10", Logic: Or}
	active := Filter{FieldName: "Active", Value: "true"}

	testCases := []struct {
		name     string
		groups   []FilterGroup
		expected string
	}{
		{
			name:     "empty group is true",
			groups:   []FilterGroup{{}},
			expected: "TRUE",
		},
		{
			name: "node joins children and filters with group logic",
			groups: []FilterGroup{{
				Logic:       Or,
				ChildGroups: []FilterGroup{{Filters: []Filter{deptA}}},
				Filters:     []Filter{active},
			}},
			expected: `(Dept = "A" OR Active = true)`,
		},
		{
			name:     "sibling connector is first filter logic",
			groups:   []FilterGroup{{Filters: []Filter{deptA}}, {Logic: And, Filters: []Filter{amtGtOr}}},
			expected: `(Dept = "A" OR Amt > 10)`,
		},
		{
			name:     "sibling group logic ignored when it has filters",
			groups:   []FilterGroup{{Filters: []Filter{deptA}}, {Logic: Or, Filters: []Filter{amtGt}}},
			expected: `(Dept = "A" AND Amt > 10)`,
		},
		{
			name: "sibling without filters falls back to group logic",
			groups: []FilterGroup{
				{Filters: []Filter{deptA}},
				{Logic: Or, ChildGroups: []FilterGroup{{Filters: []Filter{amtGt}}}},
			},
			expected: `(Dept = "A" OR Amt > 10)`,
		},
		{
			name:     "empty sibling joined with or is true",
			groups:   []FilterGroup{{Filters: []Filter{deptA}}, {Logic: Or}},
			expected: "TRUE",
		},
		{
			name:     "empty sibling joined with and is neutral",
			groups:   []FilterGroup{{Filters: []Filter{deptA}}, {}},
			expected: `Dept = "A"`,
		},
		{
			name: "nested children",
			groups: []FilterGroup{{
				ChildGroups: []FilterGroup{
					{Filters: []Filter{deptA}},
					{Logic: Or, ChildGroups: []FilterGroup{{Filters: []Filter{amtGtOr, active}}}},
				},
			}},
			expected: `(Dept = "A" OR (Amt > 10 AND Active = true))`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pred, err := Compile(employee, &SearchSpec{FilterGroups: tc.groups})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, pred.String())
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		spec  *SearchSpec
		check func(error) bool
	}{
		{"unknown field", single(Filter{FieldName: "Salary", Value: "1"}), qerr.IsFieldNotFound},
		{"ambiguous prefix", single(Filter{FieldName: "A", Value: "1"}), qerr.IsAmbiguousField},
		{"blank field names", single(Filter{Value: "1"}), qerr.IsEmptyFilterSet},
		{"contains on int", single(Filter{Operation: OpContains, FieldName: "Amt", Value: "1"}), qerr.IsTypeMismatch},
		{"inlist string op on date", single(Filter{Operation: OpStartsWithInList, FieldName: "Hired", Value: "2020"}), qerr.IsTypeMismatch},
		{"gt on bool", single(Filter{Operation: OpGt, FieldName: "Active", Value: "true"}), qerr.IsTypeMismatch},
		{"bad literal", single(Filter{FieldName: "Amt", Value: "ten"}), qerr.IsCoercion},
		{"bad list literal", single(Filter{Operation: OpInList, FieldName: "Amt", Value: "1,two"}), qerr.IsCoercion},
		{"unknown field deep in tree", &SearchSpec{FilterGroups: []FilterGroup{
			{Filters: []Filter{{FieldName: "Dept", Value: "A"}}},
			{ChildGroups: []FilterGroup{{Filters: []Filter{{FieldName: "Nope", Value: "x"}}}}},
		}}, qerr.IsFieldNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pred, err := Compile(employee, tc.spec)
			require.Error(t, err)
			assert.Nil(t, pred)
			assert.True(t, tc.check(err), "unexpected error: %v", err)
		})
	}
}

func TestCompile_TypeMismatchMessage(t *testing.T) {
	_, err := Compile(employee, single(Filter{Operation: OpContains, FieldName: "amt", Value: "1"}))

	var qe *qerr.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "Only fields of 'String' type can have 'contains' operation. FieldName: 'amt'", qe.Message)
}

func TestCompile_BlankFilterAlongsideNamedOne(t *testing.T) {
	spec := &SearchSpec{FilterGroups: []FilterGroup{{Filters: []Filter{
		{Value: "x"},
		{FieldName: "Dept", Value: "B"},
	}}}}

	_, err := Compile(employee, spec)
	assert.True(t, qerr.IsFieldNotFound(err), "got %v", err)

	nested := &SearchSpec{FilterGroups: []FilterGroup{{
		Filters:     []Filter{{FieldName: "Dept", Value: "B"}},
		ChildGroups: []FilterGroup{{Filters: []Filter{{FieldName: "Amt", Value: "5"}, {Value: "x"}}}},
	}}}
	_, err = Compile(employee, nested)
	assert.True(t, qerr.IsFieldNotFound(err), "got %v", err)
}

func TestCompile_DateLiteralTruncated(t *testing.T) {
	pred, err := Compile(employee, single(Filter{FieldName: "Hired", Value: "2021-06-01T18:00:00Z"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"Mark"}, names(pred.Filter(makeTestRows(t))))
	assert.Equal(t, `Hired = "2021-06-01"`, pred.String())
}

func TestCompile_EqOnDecodedNarrowFields(t *testing.T) {
	rt := schema.MustRecordType("Reading",
		schema.Field{Name: "Rate", Type: schema.Type{Kind: value.KindFloat, Bits: 32}},
		schema.Field{Name: "Level", Type: schema.Type{Kind: value.KindInt, Bits: 8}},
	)
	rows, err := coerce.RowsFromMaps(rt, []map[string]any{
		{"Rate": 0.1, "Level": 3},
		{"Rate": 0.25, "Level": 120},
	})
	require.NoError(t, err)

	pred, err := Compile(rt, single(Filter{FieldName: "Rate", Value: "0.1"}))
	require.NoError(t, err)
	assert.Len(t, pred.Filter(rows), 1)

	pred, err = Compile(rt, single(Filter{Operation: OpGte, FieldName: "Level", Value: "120"}))
	require.NoError(t, err)
	assert.Len(t, pred.Filter(rows), 1)

	_, err = coerce.RowsFromMaps(rt, []map[string]any{{"Level": 300}})
	assert.ErrorContains(t, err, "out of range")
}
