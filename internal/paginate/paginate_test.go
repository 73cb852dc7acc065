package paginate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

var sale = schema.MustRecordType("Sale",
	schema.Field{Name: "Seq", Type: schema.Int},
	schema.Field{Name: "Region", Type: schema.String},
	schema.Field{Name: "Amt", Type: schema.Int},
	schema.Field{Name: "Note", Type: schema.String.OrNull()},
)

func makeTestRows(t *testing.T) []schema.Row {
	t.Helper()
	data := []struct {
		region string
		amt    int64
		note   value.Value
	}{
		{"north", 5, value.String("b")},
		{"south", 20, value.Null{}},
		{"north", 10, value.String("a")},
		{"south", 5, value.String("c")},
		{"north", 20, value.Null{}},
	}
	rows := make([]schema.Row, len(data))
	for i, d := range data {
		row, err := schema.RowFromValues(sale, value.Int(int64(i)), value.String(d.region), value.Int(d.amt), d.note)
		require.NoError(t, err)
		rows[i] = row
	}
	return rows
}

func seqs(rows []schema.Row) []int64 {
	out := []int64{}
	for _, r := range rows {
		out = append(out, int64(r.At(0).(value.Int)))
	}
	return out
}

func intPtr(n int) *int {
	return &n
}

func TestApply_Scenario(t *testing.T) {
	rt := schema.MustRecordType("Line", schema.Field{Name: "Amt", Type: schema.Int})
	var rows []schema.Row
	for _, n := range []int64{5, 20, 10} {
		row, err := schema.RowFromValues(rt, value.Int(n))
		require.NoError(t, err)
		rows = append(rows, row)
	}

	out := Apply(rows, rt, &Spec{Skip: intPtr(1), Take: intPtr(1), Sorts: []SortKey{{FieldName: "Amt", Direction: Desc}}})

	require.Len(t, out, 1)
	assert.Equal(t, value.Int(10), out[0].At(0))
}

func TestSort(t *testing.T) {
	rows := makeTestRows(t)

	testCases := []struct {
		name     string
		sorts    []SortKey
		expected []int64
	}{
		{"no keys keeps order", nil, []int64{0, 1, 2, 3, 4}},
		{"single ascending is stable", []SortKey{{FieldName: "amt"}}, []int64{0, 3, 2, 1, 4}},
		{"single descending is stable", []SortKey{{FieldName: "Amt", Direction: Desc}}, []int64{1, 4, 2, 0, 3}},
		{"then by", []SortKey{{FieldName: "Region", Direction: Desc}, {FieldName: "Amt"}}, []int64{3, 1, 0, 2, 4}},
		{"nulls first ascending", []SortKey{{FieldName: "Note"}}, []int64{1, 4, 2, 0, 3}},
		{"nulls last descending", []SortKey{{FieldName: "Note", Direction: Desc}}, []int64{3, 0, 2, 1, 4}},
		{"unresolvable key skipped", []SortKey{{FieldName: "Missing"}, {FieldName: "Amt", Direction: Desc}}, []int64{1, 4, 2, 0, 3}},
		{"prefix key", []SortKey{{FieldName: "Reg"}}, []int64{0, 2, 4, 1, 3}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := Sort(rows, OrderKeys(sale, tc.sorts))
			assert.Equal(t, tc.expected, seqs(out))
		})
	}

	assert.Equal(t, []int64{0, 1, 2, 3, 4}, seqs(rows), "input must not be reordered")
}

func TestPage(t *testing.T) {
	rows := makeTestRows(t)

	testCases := []struct {
		name     string
		skip     *int
		take     *int
		expected []int64
	}{
		{"absent", nil, nil, []int64{0, 1, 2, 3, 4}},
		{"skip", intPtr(2), nil, []int64{2, 3, 4}},
		{"take", nil, intPtr(2), []int64{0, 1}},
		{"skip and take", intPtr(1), intPtr(3), []int64{1, 2, 3}},
		{"zero is a no-op", intPtr(0), intPtr(0), []int64{0, 1, 2, 3, 4}},
		{"negative is a no-op", intPtr(-2), intPtr(-1), []int64{0, 1, 2, 3, 4}},
		{"skip past end", intPtr(9), nil, []int64{}},
		{"take past end", intPtr(3), intPtr(10), []int64{3, 4}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, seqs(Page(rows, tc.skip, tc.take)))
		})
	}
}

func TestApply_Distinct(t *testing.T) {
	rt := schema.MustRecordType("Tag", schema.Field{Name: "Name", Type: schema.String})
	var rows []schema.Row
	for _, s := range []string{"b", "a", "b", "c", "a"} {
		row, err := schema.RowFromValues(rt, value.String(s))
		require.NoError(t, err)
		rows = append(rows, row)
	}

	out := Apply(rows, rt, &Spec{Distinct: true, Sorts: []SortKey{{FieldName: "Name"}}, Take: intPtr(2)})

	require.Len(t, out, 2)
	assert.Equal(t, value.String("a"), out[0].At(0))
	assert.Equal(t, value.String("b"), out[1].At(0))
}

func TestDistinctBy(t *testing.T) {
	rows := makeTestRows(t)

	assert.Equal(t, []int64{0, 1}, seqs(DistinctBy(rows, sale, []string{"Region"})))
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, seqs(DistinctBy(rows, sale, []string{"Region", "Amt"})))
	assert.Equal(t, []int64{0, 1, 2}, seqs(DistinctBy(rows, sale, []string{"Amt"})))
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, seqs(DistinctBy(rows, sale, []string{"Missing"})))
}

func TestSpec_Decode(t *testing.T) {
	var spec Spec
	err := json.Unmarshal([]byte(`{"skip":2,"sorts":[{"field_name":"Amt","direction":"DESC"},{"field_name":"Seq"}]}`), &spec)
	require.NoError(t, err)

	assert.Equal(t, 2, spec.Offset())
	assert.Equal(t, 0, spec.Limit())
	assert.Equal(t, []SortKey{{FieldName: "Amt", Direction: Desc}, {FieldName: "Seq"}}, spec.Sorts)

	err = json.Unmarshal([]byte(`{"sorts":[{"field_name":"Amt","direction":"sideways"}]}`), &spec)
	assert.Error(t, err)
}
