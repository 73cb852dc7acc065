package engine

import (
	"context"
	"fmt"

	"github.com/roach88/dynq/internal/filter"
	"github.com/roach88/dynq/internal/paginate"
	"github.com/roach88/dynq/internal/queryir"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/shape"
)

// Sequence is a possibly lazy sequence of rows of one record type.
type Sequence interface {
	RecordType() *schema.RecordType
}

// Provider applies query stages to sequences. Each method returns a new
// sequence and leaves its input unchanged. Stages arrive in pipeline order;
// a provider may reject a stage it cannot express with a RuntimeError.
type Provider interface {
	Filter(ctx context.Context, seq Sequence, pred *filter.Predicate) (Sequence, error)
	Project(ctx context.Context, seq Sequence, proj *shape.Projection) (Sequence, error)
	OrderBy(ctx context.Context, seq Sequence, keys []queryir.OrderKey) (Sequence, error)
	SkipTake(ctx context.Context, seq Sequence, skip, take int) (Sequence, error)
	Materialize(ctx context.Context, seq Sequence) ([]schema.Row, error)
}

// Rows is an in-memory sequence.
type Rows struct {
	rt   *schema.RecordType
	rows []schema.Row
}

// NewRows wraps rows of rt as a sequence.
func NewRows(rt *schema.RecordType, rows []schema.Row) *Rows {
	return &Rows{rt: rt, rows: rows}
}

// RecordType implements Sequence.
func (r *Rows) RecordType() *schema.RecordType {
	return r.rt
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	return len(r.rows)
}

// MemoryProvider evaluates every stage in memory over *Rows sequences.
type MemoryProvider struct{}

// Filter implements Provider.
func (MemoryProvider) Filter(ctx context.Context, seq Sequence, pred *filter.Predicate) (Sequence, error) {
	rows, err := memRows(ctx, seq, "filter")
	if err != nil {
		return nil, err
	}
	if err := CheckRecord("filter", pred.Record, rows.rt); err != nil {
		return nil, err
	}
	return NewRows(rows.rt, pred.Filter(rows.rows)), nil
}

// Project implements Provider.
func (MemoryProvider) Project(ctx context.Context, seq Sequence, proj *shape.Projection) (Sequence, error) {
	rows, err := memRows(ctx, seq, "project")
	if err != nil {
		return nil, err
	}
	if err := CheckRecord("project", proj.Source, rows.rt); err != nil {
		return nil, err
	}
	return NewRows(proj.Shape, proj.CopyAll(rows.rows)), nil
}

// OrderBy implements Provider.
func (MemoryProvider) OrderBy(ctx context.Context, seq Sequence, keys []queryir.OrderKey) (Sequence, error) {
	rows, err := memRows(ctx, seq, "order")
	if err != nil {
		return nil, err
	}
	return NewRows(rows.rt, paginate.Sort(rows.rows, keys)), nil
}

// SkipTake implements Provider. Non-positive values are no-ops.
func (MemoryProvider) SkipTake(ctx context.Context, seq Sequence, skip, take int) (Sequence, error) {
	rows, err := memRows(ctx, seq, "page")
	if err != nil {
		return nil, err
	}
	return NewRows(rows.rt, paginate.Page(rows.rows, &skip, &take)), nil
}

// Materialize implements Provider.
func (MemoryProvider) Materialize(ctx context.Context, seq Sequence) ([]schema.Row, error) {
	rows, err := memRows(ctx, seq, "read")
	if err != nil {
		return nil, err
	}
	out := make([]schema.Row, len(rows.rows))
	copy(out, rows.rows)
	return out, nil
}

func memRows(ctx context.Context, seq Sequence, stage string) (*Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, ok := seq.(*Rows)
	if !ok {
		return nil, NewUnsupportedError(stage, "memory provider cannot read %T", seq)
	}
	return rows, nil
}

// CheckRecord checks that a compiled artifact targets the sequence's record
// type. Structurally identical types with the same name are accepted.
func CheckRecord(stage string, want, got *schema.RecordType) error {
	if want == got {
		return nil
	}
	if want == nil || got == nil || want.Name != got.Name || want.Signature() != got.Signature() {
		return NewRecordMismatchError(stage, recordName(want), recordName(got))
	}
	return nil
}

func recordName(rt *schema.RecordType) string {
	if rt == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s{%s}", rt.Name, rt.Signature())
}
