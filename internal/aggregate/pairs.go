package aggregate

import (
	"strings"

	"github.com/roach88/dynq/internal/coerce"
	"github.com/roach88/dynq/internal/filter"
	"github.com/roach88/dynq/internal/paginate"
	"github.com/roach88/dynq/internal/queryir"
	"github.com/roach88/dynq/internal/resolve"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

// GroupValuePairs enumerates the distinct key combinations of the
// unfiltered rows, then aggregates, for each key, the rows that satisfy
// spec.Search and carry that key. Keys with no matching rows still appear,
// with a count of zero (or a null min/max).
//
// Pagination sorts and pages the keys before aggregation; sort fields
// resolve against the key shape.
func (a *Aggregator) GroupValuePairs(rows []schema.Row, rt *schema.RecordType, spec PairSpec) ([]GroupValuePair, error) {
	pred, err := filter.Compile(rt, spec.Search)
	if err != nil {
		return nil, err
	}
	fields, err := KeyFields(rt, spec.GroupByFieldNames)
	if err != nil {
		return nil, err
	}

	op := spec.AggregationOperation
	if op == "" {
		op = Count
	}
	var target resolve.ResolvedField
	if op != Count {
		target, err = resolve.Resolve(rt, spec.AggregationFieldName)
		if err != nil {
			return nil, err
		}
		if _, err := resultType(op, target); err != nil {
			return nil, err
		}
	}

	g, err := a.group(rows, fields)
	if err != nil {
		return nil, err
	}
	keys := paginate.Apply(g.Keys(), g.KeyShape, spec.Pagination)

	pairs := make([]GroupValuePair, len(keys))
	for i, key := range keys {
		match := &filter.Predicate{
			Record: rt,
			Expr:   queryir.Combine(false, pred.Expr, keyMatch(fields, key)),
		}
		kv := make([]KeyValue, len(fields))
		for k, f := range fields {
			kv[k] = KeyValue{KeyName: f.Field.Name, KeyValue: key.At(k)}
		}
		v, err := reduce(op, target, match.Filter(rows))
		if err != nil {
			return nil, err
		}
		pairs[i] = GroupValuePair{Keys: kv, Value: v}
	}
	return pairs, nil
}

// DelimitedValues joins the distinct non-null values of the named field in
// first-seen order, separated by delim (coerce.DefaultDelimiter when
// empty). The result is suitable as the value of an inlist filter.
func DelimitedValues(rows []schema.Row, rt *schema.RecordType, field, delim string) (string, error) {
	rf, err := resolve.Resolve(rt, field)
	if err != nil {
		return "", err
	}
	if delim == "" {
		delim = coerce.DefaultDelimiter
	}

	seen := make(map[string]bool)
	var parts []string
	for _, row := range rows {
		v := row.At(rf.Index)
		if value.IsNull(v) {
			continue
		}
		s := value.Format(v)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		parts = append(parts, s)
	}
	return strings.Join(parts, delim), nil
}
