package store

import (
	"context"
	"fmt"

	"github.com/roach88/dynq/internal/engine"
	"github.com/roach88/dynq/internal/filter"
	"github.com/roach88/dynq/internal/queryir"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/shape"
)

// TableInfo describes a catalog entry.
type TableInfo struct {
	Name      string
	Record    string
	Signature string
}

// Tables returns every table in the catalog, ordered by name.
//
// Returns an empty slice (not nil) if the catalog is empty.
func (s *Store) Tables(ctx context.Context) ([]TableInfo, error) {
	return s.readCatalog(ctx, "SELECT name, record, signature FROM dynq_tables ORDER BY name COLLATE BINARY ASC")
}

// TablesFor returns the tables holding rows of the named record type,
// ordered by name.
func (s *Store) TablesFor(ctx context.Context, record string) ([]TableInfo, error) {
	return s.readCatalog(ctx, `
		SELECT name, record, signature FROM dynq_tables
		WHERE record = ?
		ORDER BY name COLLATE BINARY ASC
	`, record)
}

func (s *Store) readCatalog(ctx context.Context, query string, args ...any) ([]TableInfo, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	tables := []TableInfo{}
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Name, &t.Record, &t.Signature); err != nil {
			return nil, fmt.Errorf("scan catalog: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog: %w", err)
	}
	return tables, nil
}

// Table is a lazy query over one table. Stages applied through the Store's
// Provider methods accumulate in the select; nothing runs until Materialize
// or Count.
//
// Table values are immutable; every stage returns a new Table.
type Table struct {
	name  string
	rt    *schema.RecordType
	sel   queryir.Select
	proj  *shape.Projection
	empty bool
}

// Table returns a sequence over every row of the named table.
func (s *Store) Table(ctx context.Context, name string) (*Table, error) {
	rt, err := s.RecordType(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Table{name: name, rt: rt, sel: queryir.Select{From: name}}, nil
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// RecordType implements engine.Sequence. After a projection it is the
// projection's shape.
func (t *Table) RecordType() *schema.RecordType {
	if t.proj != nil {
		return t.proj.Shape
	}
	return t.rt
}

func (t *Table) paged() bool {
	return t.empty || t.sel.Limit > 0 || t.sel.Offset > 0
}

func (t *Table) clone() *Table {
	c := *t
	c.sel.OrderBy = append([]queryir.OrderKey(nil), t.sel.OrderBy...)
	return &c
}

func tableOf(seq engine.Sequence, stage string) (*Table, error) {
	t, ok := seq.(*Table)
	if !ok {
		return nil, engine.NewUnsupportedError(stage, "store cannot read %T", seq)
	}
	return t, nil
}

// Filter implements engine.Provider. The predicate must be portable and
// must come before ordering's paging and any projection.
func (s *Store) Filter(ctx context.Context, seq engine.Sequence, pred *filter.Predicate) (engine.Sequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := tableOf(seq, "filter")
	if err != nil {
		return nil, err
	}
	if t.proj != nil || t.paged() {
		return nil, engine.NewUnsupportedError("filter", "filter after projection or paging")
	}
	if err := engine.CheckRecord("filter", pred.Record, t.rt); err != nil {
		return nil, err
	}
	if res := queryir.Validate(pred.Expr); !res.IsPortable {
		return nil, engine.NewUnsupportedError("filter", "predicate cannot run in SQL: %v", res.Warnings)
	}

	out := t.clone()
	out.sel.Filter = queryir.Combine(false, t.sel.Filter, pred.Expr)
	return out, nil
}

// OrderBy implements engine.Provider. A later OrderBy replaces an earlier
// one.
func (s *Store) OrderBy(ctx context.Context, seq engine.Sequence, keys []queryir.OrderKey) (engine.Sequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := tableOf(seq, "order")
	if err != nil {
		return nil, err
	}
	if t.proj != nil || t.paged() {
		return nil, engine.NewUnsupportedError("order", "order after projection or paging")
	}
	for _, k := range keys {
		if k.Field.Index >= len(t.rt.Fields) || t.rt.Fields[k.Field.Index].Name != k.Field.Name {
			return nil, engine.NewUnsupportedError("order", "key %s is not a column of %s", k.Field.Name, t.name)
		}
	}

	out := t.clone()
	out.sel.OrderBy = append([]queryir.OrderKey(nil), keys...)
	return out, nil
}

// SkipTake implements engine.Provider. Repeated paging composes: skipping
// within an earlier window never reaches past it.
func (s *Store) SkipTake(ctx context.Context, seq engine.Sequence, skip, take int) (engine.Sequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := tableOf(seq, "page")
	if err != nil {
		return nil, err
	}
	skip, take = max(skip, 0), max(take, 0)

	out := t.clone()
	if t.sel.Limit > 0 {
		remaining := t.sel.Limit - skip
		if remaining <= 0 {
			out.empty = true
			return out, nil
		}
		if take == 0 || take > remaining {
			take = remaining
		}
	}
	out.sel.Offset = t.sel.Offset + skip
	out.sel.Limit = take
	return out, nil
}

// Project implements engine.Provider. Only the columns the projection reads
// are selected.
func (s *Store) Project(ctx context.Context, seq engine.Sequence, proj *shape.Projection) (engine.Sequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := tableOf(seq, "project")
	if err != nil {
		return nil, err
	}
	if t.proj != nil {
		return nil, engine.NewUnsupportedError("project", "table is already projected")
	}
	if err := engine.CheckRecord("project", proj.Source, t.rt); err != nil {
		return nil, err
	}

	out := t.clone()
	out.proj = proj
	out.sel.Columns = proj.Columns()
	return out, nil
}

// Materialize implements engine.Provider.
//
// Returns an empty slice (not nil) when no rows match.
func (s *Store) Materialize(ctx context.Context, seq engine.Sequence) ([]schema.Row, error) {
	t, err := tableOf(seq, "read")
	if err != nil {
		return nil, err
	}
	if t.empty {
		return []schema.Row{}, nil
	}

	sel := t.sel
	if t.proj == nil {
		sel.Columns = t.rt.FieldNames()
	}
	query, params, err := s.compiler.Compile(sel)
	if err != nil {
		return nil, engine.NewProviderError("read", err)
	}
	rows, err := s.query(ctx, query, params...)
	if err != nil {
		return nil, engine.NewProviderError("read", err)
	}
	defer rows.Close()

	// Columns in select order, mapped back to source field indexes.
	targets := make([]int, len(t.rt.Fields))
	for i := range targets {
		targets[i] = i
	}
	if t.proj != nil {
		targets = targets[:0]
		for _, f := range t.proj.Fields {
			targets = append(targets, f.Index)
		}
	}

	raw := make([]any, len(targets))
	ptrs := make([]any, len(targets))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	out := []schema.Row{}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, engine.NewProviderError("read", fmt.Errorf("scan %s: %w", t.name, err))
		}
		row := schema.NewRow(t.rt)
		for i, idx := range targets {
			v, err := unmarshalValue(raw[i], t.rt.Fields[idx].Type)
			if err != nil {
				return nil, engine.NewProviderError("read", fmt.Errorf("%s.%s: %w", t.name, t.rt.Fields[idx].Name, err))
			}
			row.Set(idx, v)
		}
		if t.proj != nil {
			row = t.proj.Copy(row)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, engine.NewProviderError("read", fmt.Errorf("iterate %s: %w", t.name, err))
	}
	return out, nil
}

// Count returns the number of rows seq would produce.
func (s *Store) Count(ctx context.Context, seq engine.Sequence) (int, error) {
	t, err := tableOf(seq, "count")
	if err != nil {
		return 0, err
	}
	if t.empty {
		return 0, nil
	}

	query, params, err := s.compiler.CompileCount(t.sel)
	if err != nil {
		return 0, engine.NewProviderError("count", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, params...).Scan(&n); err != nil {
		return 0, engine.NewProviderError("count", err)
	}
	if t.sel.Offset > 0 {
		n = max(n-t.sel.Offset, 0)
	}
	if t.sel.Limit > 0 {
		n = min(n, t.sel.Limit)
	}
	return n, nil
}
