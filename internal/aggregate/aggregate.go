// Package aggregate groups rows by synthesized keys and reduces each group.
//
// GROUPING:
//
// Group key fields resolve like projections (prefix matches may expand one
// name to several fields), but every requested name must resolve to at
// least one field. The key shape comes from the shape registry, so equal
// field sets share one key type. Groups keep first-seen order and key
// equality is canonical value identity over all key fields.
//
// REDUCTIONS:
//
//	count          members of the group (any field type)
//	countdistinct  distinct values of the field, null counted once
//	sum            numeric fields only, nulls skipped, empty sum is zero
//	min, max       ordered fields, nulls skipped, null when nothing remains
package aggregate

import (
	"github.com/roach88/dynq/internal/filter"
	"github.com/roach88/dynq/internal/qerr"
	"github.com/roach88/dynq/internal/queryir"
	"github.com/roach88/dynq/internal/resolve"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/shape"
	"github.com/roach88/dynq/internal/value"
)

// Group is the rows sharing one key.
type Group struct {
	Key  schema.Row
	Rows []schema.Row
}

// Grouping is the result of a group-by.
type Grouping struct {
	KeyShape *schema.RecordType
	Fields   []resolve.ResolvedField
	Groups   []Group
}

// Keys returns the key row of every group, in group order.
func (g *Grouping) Keys() []schema.Row {
	keys := make([]schema.Row, len(g.Groups))
	for i, grp := range g.Groups {
		keys[i] = grp.Key
	}
	return keys
}

// Aggregator runs group-by and aggregation against one shape registry.
type Aggregator struct {
	registry *shape.Registry
}

// New returns an aggregator using reg, or shape.Default when reg is nil.
func New(reg *shape.Registry) *Aggregator {
	if reg == nil {
		reg = shape.Default
	}
	return &Aggregator{registry: reg}
}

// KeyFields resolves group key names against rt. Every name must resolve.
func KeyFields(rt *schema.RecordType, names []string) ([]resolve.ResolvedField, error) {
	if len(names) == 0 {
		return nil, qerr.NewInvalidSpec("group by %s needs at least one field", rt.Name)
	}
	for _, name := range names {
		if len(resolve.ResolveSet(rt, []string{name}, resolve.Options{})) == 0 {
			return nil, qerr.NewFieldNotFound(rt.Name, name)
		}
	}
	return resolve.ResolveSet(rt, names, resolve.Options{}), nil
}

// GroupBy groups rows of rt by the named fields.
func (a *Aggregator) GroupBy(rows []schema.Row, rt *schema.RecordType, names []string) (*Grouping, error) {
	fields, err := KeyFields(rt, names)
	if err != nil {
		return nil, err
	}
	return a.group(rows, fields)
}

func (a *Aggregator) group(rows []schema.Row, fields []resolve.ResolvedField) (*Grouping, error) {
	keyShape, err := a.registry.Shape(fieldsOf(fields))
	if err != nil {
		return nil, err
	}

	g := &Grouping{KeyShape: keyShape, Fields: fields}
	index := make(map[string]int)
	for _, row := range rows {
		key := schema.NewRow(keyShape)
		for i, f := range fields {
			key.Set(i, row.At(f.Index))
		}
		id := key.Key()
		gi, ok := index[id]
		if !ok {
			gi = len(g.Groups)
			index[id] = gi
			g.Groups = append(g.Groups, Group{Key: key})
		}
		g.Groups[gi].Rows = append(g.Groups[gi].Rows, row)
	}
	return g, nil
}

// GroupByOnly filters rows with spec.Search and returns the distinct key
// rows in first-seen order.
func (a *Aggregator) GroupByOnly(rows []schema.Row, rt *schema.RecordType, spec GroupSpec) (*schema.RecordType, []schema.Row, error) {
	pred, err := filter.Compile(rt, spec.Search)
	if err != nil {
		return nil, nil, err
	}
	g, err := a.GroupBy(pred.Filter(rows), rt, spec.FieldNames)
	if err != nil {
		return nil, nil, err
	}
	return g.KeyShape, g.Keys(), nil
}

// Plan is a validated group-by aggregation, ready to run over rows.
type Plan struct {
	Record    *schema.RecordType
	Predicate *filter.Predicate
	KeyFields []resolve.ResolvedField
	Target    resolve.ResolvedField
	Op        Operation
	Output    *schema.RecordType
}

// Compile validates spec against rt and builds the output shape: the key
// fields followed by the result field.
func (a *Aggregator) Compile(rt *schema.RecordType, spec Spec) (*Plan, error) {
	pred, err := filter.Compile(rt, spec.Search)
	if err != nil {
		return nil, err
	}
	keys, err := KeyFields(rt, spec.GroupByFieldNames)
	if err != nil {
		return nil, err
	}
	target, err := resolve.Resolve(rt, spec.AggregationFieldName)
	if err != nil {
		return nil, err
	}
	op := spec.AggregationOperation
	resultType, err := resultType(op, target)
	if err != nil {
		return nil, err
	}

	resultName := spec.AggregationResultFieldName
	if resultName == "" {
		return nil, qerr.NewInvalidSpec("aggregation on %s needs a result field name", rt.Name)
	}
	outFields := fieldsOf(keys)
	for _, f := range outFields {
		if f.Name == resultName {
			return nil, qerr.NewInvalidSpec("result field %q collides with a group key field", resultName)
		}
	}
	outFields = append(outFields, schema.Field{Name: resultName, Type: resultType})
	out, err := a.registry.Shape(outFields)
	if err != nil {
		return nil, err
	}

	return &Plan{Record: rt, Predicate: pred, KeyFields: keys, Target: target, Op: op, Output: out}, nil
}

// Run filters, groups and reduces rows, one output row per group.
func (a *Aggregator) Run(plan *Plan, rows []schema.Row) ([]schema.Row, error) {
	g, err := a.group(plan.Predicate.Filter(rows), plan.KeyFields)
	if err != nil {
		return nil, err
	}
	out := make([]schema.Row, len(g.Groups))
	for i, grp := range g.Groups {
		row := schema.NewRow(plan.Output)
		for k := range plan.KeyFields {
			row.Set(k, grp.Key.At(k))
		}
		v, err := reduce(plan.Op, plan.Target, grp.Rows)
		if err != nil {
			return nil, err
		}
		row.Set(len(plan.KeyFields), v)
		out[i] = row
	}
	return out, nil
}

// GroupByAggregate compiles and runs spec in one step.
func (a *Aggregator) GroupByAggregate(rows []schema.Row, rt *schema.RecordType, spec Spec) (*schema.RecordType, []schema.Row, error) {
	plan, err := a.Compile(rt, spec)
	if err != nil {
		return nil, nil, err
	}
	out, err := a.Run(plan, rows)
	if err != nil {
		return nil, nil, err
	}
	return plan.Output, out, nil
}

// resultType checks that op suits the target field and returns the type of
// the aggregated value.
func resultType(op Operation, target resolve.ResolvedField) (schema.Type, error) {
	t := target.Field.Type
	kind := t.Underlying().Kind
	switch op {
	case Count, CountDistinct:
		return schema.Int, nil
	case Sum:
		if !kind.Numeric() {
			return schema.Type{}, qerr.NewUnsupportedAggregation(target.Name, string(op), t.Name())
		}
		// Totals are 64-bit whatever the field width.
		if kind == value.KindFloat {
			return schema.Float, nil
		}
		return schema.Int, nil
	case Min, Max:
		if !t.Scalar() || !kind.Ordered() {
			return schema.Type{}, qerr.NewUnsupportedAggregation(target.Name, string(op), t.Name())
		}
		return t.Underlying().OrNull(), nil
	case "":
		return schema.Type{}, qerr.NewInvalidSpec("aggregation operation is required")
	default:
		return schema.Type{}, qerr.NewUnsupportedAggregation(target.Name, string(op), t.Name())
	}
}

// reduce applies op to the target field over rows. The operation has been
// validated against the field type; only an integer sum can still fail.
func reduce(op Operation, target resolve.ResolvedField, rows []schema.Row) (value.Value, error) {
	switch op {
	case Count:
		return value.Int(len(rows)), nil
	case CountDistinct:
		seen := make(map[string]bool, len(rows))
		for _, row := range rows {
			seen[value.Key(row.At(target.Index))] = true
		}
		return value.Int(len(seen)), nil
	case Sum:
		return sum(target, rows)
	case Min, Max:
		var best value.Value = value.Null{}
		for _, row := range rows {
			v := row.At(target.Index)
			if value.IsNull(v) {
				continue
			}
			if value.IsNull(best) {
				best = v
				continue
			}
			c, ok := value.Compare(v, best)
			if ok && ((op == Min && c < 0) || (op == Max && c > 0)) {
				best = v
			}
		}
		return best, nil
	default:
		return value.Null{}, nil
	}
}

func sum(target resolve.ResolvedField, rows []schema.Row) (value.Value, error) {
	if target.Field.Type.Underlying().Kind == value.KindFloat {
		var total float64
		for _, row := range rows {
			switch v := row.At(target.Index).(type) {
			case value.Float:
				total += float64(v)
			case value.Int:
				total += float64(v)
			}
		}
		return value.Float(total), nil
	}
	var total int64
	for _, row := range rows {
		v, ok := row.At(target.Index).(value.Int)
		if !ok {
			continue
		}
		next := total + int64(v)
		// Signed overflow flips the sign away from both operands.
		if (v > 0 && next < total) || (v < 0 && next > total) {
			return nil, qerr.NewAggregationOverflow(target.Name, string(Sum), target.Field.Type.Name())
		}
		total = next
	}
	return value.Int(total), nil
}

// keyMatch builds "field = value" tests for every key field of key.
func keyMatch(fields []resolve.ResolvedField, key schema.Row) queryir.Expr {
	var expr queryir.Expr
	for i, f := range fields {
		ref := queryir.FieldRef{Name: f.Field.Name, Index: f.Index, Type: f.Field.Type}
		expr = queryir.Combine(false, expr, queryir.Compare{Field: ref, Op: queryir.OpEq, Value: key.At(i)})
	}
	return expr
}

func fieldsOf(rfs []resolve.ResolvedField) []schema.Field {
	out := make([]schema.Field, len(rfs))
	for i, rf := range rfs {
		out[i] = rf.Field
	}
	return out
}
