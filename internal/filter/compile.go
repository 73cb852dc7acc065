// Package filter compiles filter trees into predicates over records.
//
// COMPILATION:
//
// A SearchSpec holds sibling FilterGroups; each group holds child groups and
// filters. Compile resolves every field name in the tree first, so an
// unknown field fails the whole compile before any expression is built.
// Then, for each group:
//
//  1. Filters are partitioned by field, keeping their original order. Within
//     a field, filter i joins the chain so far with filter i's Logic.
//  2. Field chains are joined in first-seen order; each chain after the
//     first joins with the Logic of its own first filter.
//  3. The child-group expression and the filter expression are joined with
//     the group's Logic. A group with neither is true.
//  4. Sibling groups are joined left to right; each group after the first
//     joins with the Logic of its first filter (its own Logic when it has
//     no filters).
//
// The result is a queryir.Expr, evaluated in memory by Predicate.Match or
// pushed down to SQL by the store.
package filter

import (
	"github.com/roach88/dynq/internal/coerce"
	"github.com/roach88/dynq/internal/qerr"
	"github.com/roach88/dynq/internal/queryir"
	"github.com/roach88/dynq/internal/resolve"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

// Predicate is a compiled search bound to one record type.
type Predicate struct {
	Record *schema.RecordType
	Expr   queryir.Expr
}

// Always returns the predicate that matches every row of rt.
func Always(rt *schema.RecordType) *Predicate {
	return &Predicate{Record: rt, Expr: queryir.True}
}

// Match reports whether row satisfies the predicate.
func (p *Predicate) Match(row schema.Row) bool {
	return queryir.Eval(p.Expr, row)
}

// Filter returns the rows that satisfy the predicate, in order.
func (p *Predicate) Filter(rows []schema.Row) []schema.Row {
	out := make([]schema.Row, 0, len(rows))
	for _, row := range rows {
		if p.Match(row) {
			out = append(out, row)
		}
	}
	return out
}

// IsTrivial reports whether the predicate matches every row.
func (p *Predicate) IsTrivial() bool {
	c, ok := p.Expr.(queryir.Const)
	return ok && c.Value
}

func (p *Predicate) String() string {
	return queryir.Format(p.Expr)
}

// Compile compiles spec against rt. A nil or empty spec compiles to the
// always-true predicate.
func Compile(rt *schema.RecordType, spec *SearchSpec) (*Predicate, error) {
	if spec.Empty() {
		return Always(rt), nil
	}

	c := &compiler{rt: rt, fields: make(map[*Filter]resolve.ResolvedField)}
	if err := c.resolveGroups(spec.FilterGroups); err != nil {
		return nil, err
	}

	expr, err := c.compileGroups(spec.FilterGroups)
	if err != nil {
		return nil, err
	}
	if expr == nil {
		expr = queryir.True
	}
	return &Predicate{Record: rt, Expr: expr}, nil
}

// compiler holds per-compile state.
type compiler struct {
	rt     *schema.RecordType
	fields map[*Filter]resolve.ResolvedField
}

// resolveGroups resolves every filter field in the subtree up front.
// A group whose filters all have blank field names is an EmptyFilterSet
// error; a blank name next to named filters is FieldNotFound.
func (c *compiler) resolveGroups(groups []FilterGroup) error {
	for gi := range groups {
		g := &groups[gi]
		if err := c.resolveGroups(g.ChildGroups); err != nil {
			return err
		}
		blank := 0
		for fi := range g.Filters {
			f := &g.Filters[fi]
			if f.FieldName == "" {
				blank++
				continue
			}
			rf, err := resolve.Resolve(c.rt, f.FieldName)
			if err != nil {
				return err
			}
			c.fields[f] = rf
		}
		switch {
		case blank == 0:
		case blank == len(g.Filters):
			return qerr.NewEmptyFilterSet(c.rt.Name)
		default:
			return qerr.NewFieldNotFound(c.rt.Name, "")
		}
	}
	return nil
}

// compileGroups joins sibling groups left to right. Returns nil for no
// groups.
func (c *compiler) compileGroups(groups []FilterGroup) (queryir.Expr, error) {
	var combined queryir.Expr
	for i := range groups {
		g := &groups[i]
		node, err := c.compileGroup(g)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			combined = node
			continue
		}
		combined = queryir.Combine(g.connector().IsOr(), combined, node)
	}
	return combined, nil
}

// compileGroup compiles one node. Never returns nil: an empty group is true.
func (c *compiler) compileGroup(g *FilterGroup) (queryir.Expr, error) {
	groupExpr, err := c.compileGroups(g.ChildGroups)
	if err != nil {
		return nil, err
	}
	filterExpr, err := c.compileFilters(g.Filters)
	if err != nil {
		return nil, err
	}

	switch {
	case groupExpr != nil && filterExpr != nil:
		return queryir.Combine(g.Logic.IsOr(), groupExpr, filterExpr), nil
	case groupExpr != nil:
		return groupExpr, nil
	case filterExpr != nil:
		return filterExpr, nil
	default:
		return queryir.True, nil
	}
}

// fieldChain accumulates the filters of one field.
type fieldChain struct {
	expr       queryir.Expr
	firstLogic Logic
}

// compileFilters builds per-field chains and joins them. Returns nil when
// there is nothing to compile.
func (c *compiler) compileFilters(filters []Filter) (queryir.Expr, error) {
	var order []string
	chains := make(map[string]*fieldChain)

	for i := range filters {
		f := &filters[i]
		rf, ok := c.fields[f]
		if !ok {
			continue
		}
		expr, err := compileFilter(f, rf)
		if err != nil {
			return nil, err
		}

		name := rf.Field.Name
		chain, exists := chains[name]
		if !exists {
			chains[name] = &fieldChain{expr: expr, firstLogic: f.Logic}
			order = append(order, name)
			continue
		}
		chain.expr = queryir.Combine(f.Logic.IsOr(), chain.expr, expr)
	}

	var combined queryir.Expr
	for i, name := range order {
		chain := chains[name]
		if i == 0 {
			combined = chain.expr
			continue
		}
		combined = queryir.Combine(chain.firstLogic.IsOr(), combined, chain.expr)
	}
	return combined, nil
}

// compileFilter builds the expression for one filter.
func compileFilter(f *Filter, rf resolve.ResolvedField) (queryir.Expr, error) {
	op := f.Operation
	if op == "" {
		op = OpEq
	}
	ref := queryir.FieldRef{Name: rf.Field.Name, Index: rf.Index, Type: rf.Field.Type}
	kind := rf.Field.Type.Underlying().Kind

	switch op {
	case OpNeq, OpGt, OpGte, OpLt, OpLte:
		if op != OpNeq && !kind.Ordered() {
			return nil, qerr.NewTypeMismatch(f.FieldName, string(op), rf.Field.Type.Name(), "Ordered")
		}
		return compileCompare(f, rf, ref, compareOps[op])

	case OpContains, OpStartsWith, OpEndsWith:
		if kind != value.KindString {
			return nil, stringMismatch(f, rf, op)
		}
		return queryir.Match{Field: ref, Mode: matchModes[op], Pattern: f.Value}, nil

	case OpNotContains, OpNotStartsWith, OpNotEndsWith:
		if kind != value.KindString {
			return nil, stringMismatch(f, rf, op)
		}
		return queryir.Not{Expr: queryir.Match{Field: ref, Mode: matchModes[op], Pattern: f.Value}}, nil

	case OpInList, OpNotInList:
		if !rf.Field.Type.Scalar() {
			return nil, qerr.NewTypeMismatch(f.FieldName, string(op), rf.Field.Type.Name(), "Scalar")
		}
		values, err := coerce.CoerceList(f.Value, f.ValueListDelimiter, rf.Field)
		if err != nil {
			return nil, err
		}
		in := queryir.In{Field: ref, Values: values}
		if op == OpNotInList {
			return queryir.Not{Expr: in}, nil
		}
		return in, nil

	case OpContainsInList, OpStartsWithInList, OpEndsWithInList:
		if kind != value.KindString {
			return nil, stringMismatch(f, rf, op)
		}
		var expr queryir.Expr
		for _, seg := range coerce.Split(f.Value, f.ValueListDelimiter) {
			expr = queryir.Combine(true, expr, queryir.Match{Field: ref, Mode: matchModes[op], Pattern: seg})
		}
		return orTrue(expr), nil

	case OpNotContainsInList, OpNotStartsWithInList, OpNotEndsWithInList:
		if kind != value.KindString {
			return nil, stringMismatch(f, rf, op)
		}
		var expr queryir.Expr
		for _, seg := range coerce.Split(f.Value, f.ValueListDelimiter) {
			match := queryir.Match{Field: ref, Mode: matchModes[op], Pattern: seg}
			expr = queryir.Combine(false, expr, queryir.Not{Expr: match})
		}
		return orTrue(expr), nil

	default:
		return compileCompare(f, rf, ref, queryir.OpEq)
	}
}

func compileCompare(f *Filter, rf resolve.ResolvedField, ref queryir.FieldRef, op queryir.CmpOp) (queryir.Expr, error) {
	if !rf.Field.Type.Scalar() {
		op := f.Operation
		if op == "" {
			op = OpEq
		}
		return nil, qerr.NewTypeMismatch(f.FieldName, string(op), rf.Field.Type.Name(), "Scalar")
	}
	lit, err := coerce.Coerce(f.Value, rf.Field)
	if err != nil {
		return nil, err
	}
	return queryir.Compare{Field: ref, Op: op, Value: lit}, nil
}

// orTrue maps an absent segment expression (no non-empty segments) to true:
// the filter then places no constraint.
func orTrue(e queryir.Expr) queryir.Expr {
	if e == nil {
		return queryir.True
	}
	return e
}

func stringMismatch(f *Filter, rf resolve.ResolvedField, op Operator) error {
	return qerr.NewTypeMismatch(f.FieldName, string(op), rf.Field.Type.Name(), "String")
}

var compareOps = map[Operator]queryir.CmpOp{
	OpNeq: queryir.OpNe,
	OpGt:  queryir.OpGt,
	OpGte: queryir.OpGe,
	OpLt:  queryir.OpLt,
	OpLte: queryir.OpLe,
}

var matchModes = map[Operator]queryir.MatchMode{
	OpContains:            queryir.MatchContains,
	OpNotContains:         queryir.MatchContains,
	OpStartsWith:          queryir.MatchPrefix,
	OpNotStartsWith:       queryir.MatchPrefix,
	OpEndsWith:            queryir.MatchSuffix,
	OpNotEndsWith:         queryir.MatchSuffix,
	OpContainsInList:      queryir.MatchContains,
	OpNotContainsInList:   queryir.MatchContains,
	OpStartsWithInList:    queryir.MatchPrefix,
	OpNotStartsWithInList: queryir.MatchPrefix,
	OpEndsWithInList:      queryir.MatchSuffix,
	OpNotEndsWithInList:   queryir.MatchSuffix,
}
