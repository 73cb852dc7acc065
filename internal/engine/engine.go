package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/dynq/internal/aggregate"
	"github.com/roach88/dynq/internal/filter"
	"github.com/roach88/dynq/internal/paginate"
	"github.com/roach88/dynq/internal/plancache"
	"github.com/roach88/dynq/internal/queryir"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/shape"
)

// Engine compiles and executes query documents.
//
// Thread-safety: an Engine is safe for concurrent use. Plans are immutable
// once compiled; the shape registry and plan cache synchronize internally.
type Engine struct {
	registry   *shape.Registry
	aggregator *aggregate.Aggregator
	plans      *plancache.Cache[*Plan]
	planSize   int
	runIDs     RunIDGenerator
	clock      *Clock
	logger     *slog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithRegistry sets the shape registry. Default: shape.Default.
func WithRegistry(reg *shape.Registry) EngineOption {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithPlanCacheSize sets how many compiled plans are kept.
// Default: plancache.DefaultSize. Negative disables caching.
func WithPlanCacheSize(size int) EngineOption {
	return func(e *Engine) {
		e.planSize = size
	}
}

// WithRunIDGenerator sets the run ID generator. Default: UUIDv7Generator.
func WithRunIDGenerator(gen RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = gen
	}
}

// WithClock sets the logical clock numbering executions.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger. Default: discards everything.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		registry: shape.Default,
		runIDs:   UUIDv7Generator{},
		clock:    NewClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.aggregator = aggregate.New(e.registry)
	if e.planSize >= 0 {
		plans, err := plancache.New[*Plan](e.planSize)
		if err != nil {
			return nil, fmt.Errorf("create plan cache: %w", err)
		}
		e.plans = plans
	}
	return e, nil
}

// Registry returns the engine's shape registry.
func (e *Engine) Registry() *shape.Registry {
	return e.registry
}

// Plan is a compiled query: every name resolved, every literal coerced and
// every output shape synthesized.
type Plan struct {
	Record *schema.RecordType
	Query  *Query
	Kind   Kind

	// Key is the plan cache key.
	Key string

	// Predicate filters source rows. Always set; trivial when no search.
	Predicate *filter.Predicate

	// Rows queries.
	OrderKeys  []queryir.OrderKey
	Projection *shape.Projection

	// Aggregate queries.
	Aggregate *aggregate.Plan

	// Group and pairs queries, with the effective search folded in.
	Group *aggregate.GroupSpec
	Pairs *aggregate.PairSpec

	// Output is the record type of result rows. Nil for pairs.
	Output *schema.RecordType
}

// Compile compiles q against rt, reusing a cached plan when an identical
// query was compiled before.
func (e *Engine) Compile(rt *schema.RecordType, q *Query) (*Plan, error) {
	if q == nil {
		q = &Query{}
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	doc, err := q.Canonical()
	if err != nil {
		return nil, fmt.Errorf("canonical query: %w", err)
	}
	key := plancache.Key(rt.Name+"\x00"+rt.Signature(), doc)
	if e.plans != nil {
		if plan, ok := e.plans.Get(key); ok && plan.Record == rt {
			e.logger.Debug("plan cache hit", "record", rt.Name, "key", key[:12])
			return plan, nil
		}
	}

	plan, err := e.compile(rt, q)
	if err != nil {
		return nil, err
	}
	plan.Key = key
	if e.plans != nil {
		e.plans.Add(key, plan)
	}
	e.logger.Debug("compiled plan", "record", rt.Name, "kind", plan.Kind, "query", q.describe())
	return plan, nil
}

func (e *Engine) compile(rt *schema.RecordType, q *Query) (*Plan, error) {
	plan := &Plan{Record: rt, Query: q, Kind: q.Kind()}

	switch plan.Kind {
	case KindRows:
		pred, err := filter.Compile(rt, q.Search)
		if err != nil {
			return nil, err
		}
		plan.Predicate = pred
		plan.Output = rt
		if q.Pagination != nil {
			plan.OrderKeys = paginate.OrderKeys(rt, q.Pagination.Sorts)
		}
		if len(q.Select) > 0 || q.Mode == shape.SameType {
			proj, err := e.registry.Project(rt, q.Select, shape.Options{IncludeParent: q.IncludeParent, Mode: q.Mode})
			if err != nil {
				return nil, err
			}
			plan.Projection = proj
			plan.Output = proj.Shape
		}

	case KindGroup:
		spec := *q.Group
		if spec.Search == nil {
			spec.Search = q.Search
		}
		pred, err := filter.Compile(rt, spec.Search)
		if err != nil {
			return nil, err
		}
		fields, err := aggregate.KeyFields(rt, spec.FieldNames)
		if err != nil {
			return nil, err
		}
		keyFields := make([]schema.Field, len(fields))
		for i, f := range fields {
			keyFields[i] = f.Field
		}
		out, err := e.registry.Shape(keyFields)
		if err != nil {
			return nil, err
		}
		plan.Predicate = pred
		plan.Group = &spec
		plan.Output = out

	case KindAggregate:
		spec := *q.Aggregate
		if spec.Search == nil {
			spec.Search = q.Search
		}
		agg, err := e.aggregator.Compile(rt, spec)
		if err != nil {
			return nil, err
		}
		plan.Predicate = agg.Predicate
		plan.Aggregate = agg
		plan.Output = agg.Output

	case KindPairs:
		spec := *q.Pairs
		if spec.Search == nil {
			spec.Search = q.Search
		}
		if spec.Pagination == nil {
			spec.Pagination = q.Pagination
		}
		// Pairs enumerate keys over unfiltered rows; validate the search
		// here so errors surface at compile time.
		if _, err := filter.Compile(rt, spec.Search); err != nil {
			return nil, err
		}
		if _, err := aggregate.KeyFields(rt, spec.GroupByFieldNames); err != nil {
			return nil, err
		}
		plan.Predicate = filter.Always(rt)
		plan.Pairs = &spec
	}
	return plan, nil
}

// Result is the outcome of one execution.
type Result struct {
	RunID string
	Seq   int64
	Kind  Kind

	// Shape is the record type of Rows. Nil for pairs.
	Shape *schema.RecordType
	Rows  []schema.Row
	Pairs []aggregate.GroupValuePair
}

// Maps returns the result rows (or pairs) in their JSON output form.
func (r *Result) Maps() []map[string]any {
	if r.Kind == KindPairs {
		out := make([]map[string]any, len(r.Pairs))
		for i, p := range r.Pairs {
			out[i] = p.Map()
		}
		return out
	}
	out := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Map()
	}
	return out
}

// Len returns the number of result rows or pairs.
func (r *Result) Len() int {
	if r.Kind == KindPairs {
		return len(r.Pairs)
	}
	return len(r.Rows)
}

// Execute compiles q against the sequence's record type and runs it through
// p.
func (e *Engine) Execute(ctx context.Context, p Provider, seq Sequence, q *Query) (*Result, error) {
	plan, err := e.Compile(seq.RecordType(), q)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, p, seq, plan)
}

// ExecuteRows runs q over in-memory rows of rt.
func (e *Engine) ExecuteRows(ctx context.Context, rt *schema.RecordType, rows []schema.Row, q *Query) (*Result, error) {
	return e.Execute(ctx, MemoryProvider{}, NewRows(rt, rows), q)
}

// Run executes a compiled plan.
func (e *Engine) Run(ctx context.Context, p Provider, seq Sequence, plan *Plan) (*Result, error) {
	res := &Result{RunID: e.runIDs.Generate(), Seq: e.clock.Next(), Kind: plan.Kind, Shape: plan.Output}
	start := time.Now()

	err := CheckRecord("plan", plan.Record, seq.RecordType())
	switch {
	case err != nil:
	case plan.Kind == KindRows:
		res.Rows, err = e.runRows(ctx, p, seq, plan)
	case plan.Kind == KindGroup:
		res.Rows, err = e.runGroup(ctx, p, seq, plan)
	case plan.Kind == KindAggregate:
		res.Rows, err = e.runAggregate(ctx, p, seq, plan)
	case plan.Kind == KindPairs:
		res.Pairs, err = e.runPairs(ctx, p, seq, plan)
	}
	if err != nil {
		var re *RuntimeError
		if errors.As(err, &re) && re.RunID == "" {
			re.RunID = res.RunID
		}
		e.logger.Debug("query failed", "run_id", res.RunID, "seq", res.Seq, "error", err)
		return nil, err
	}

	e.logger.Debug("query executed",
		"run_id", res.RunID,
		"seq", res.Seq,
		"record", plan.Record.Name,
		"kind", plan.Kind,
		"results", res.Len(),
		"elapsed", time.Since(start),
	)
	return res, nil
}

func (e *Engine) runRows(ctx context.Context, p Provider, seq Sequence, plan *Plan) ([]schema.Row, error) {
	q := plan.Query
	var err error
	if !plan.Predicate.IsTrivial() {
		if seq, err = p.Filter(ctx, seq, plan.Predicate); err != nil {
			return nil, err
		}
	}
	if len(plan.OrderKeys) > 0 {
		if seq, err = p.OrderBy(ctx, seq, plan.OrderKeys); err != nil {
			return nil, err
		}
	}

	distinct := len(q.DistinctBy) > 0 || (q.Pagination != nil && q.Pagination.Distinct)
	if distinct {
		return e.finishDistinct(ctx, p, seq, plan)
	}

	if skip, take := q.Pagination.Offset(), q.Pagination.Limit(); skip > 0 || take > 0 {
		if seq, err = p.SkipTake(ctx, seq, skip, take); err != nil {
			return nil, err
		}
	}
	if plan.Projection != nil {
		if seq, err = p.Project(ctx, seq, plan.Projection); err != nil {
			return nil, err
		}
	}
	return p.Materialize(ctx, seq)
}

// finishDistinct completes a rows query in memory: distinct_by on source
// rows, then projection, then pagination's distinct on output rows, then
// skip and take.
func (e *Engine) finishDistinct(ctx context.Context, p Provider, seq Sequence, plan *Plan) ([]schema.Row, error) {
	q := plan.Query
	rows, err := p.Materialize(ctx, seq)
	if err != nil {
		return nil, err
	}
	if len(q.DistinctBy) > 0 {
		rows = paginate.DistinctBy(rows, plan.Record, q.DistinctBy)
	}
	if plan.Projection != nil {
		rows = plan.Projection.CopyAll(rows)
	}
	if q.Pagination != nil && q.Pagination.Distinct {
		rows = paginate.Distinct(rows)
	}
	if q.Pagination != nil {
		rows = paginate.Page(rows, q.Pagination.Skip, q.Pagination.Take)
	}
	return rows, nil
}

func (e *Engine) runGroup(ctx context.Context, p Provider, seq Sequence, plan *Plan) ([]schema.Row, error) {
	rows, err := e.filtered(ctx, p, seq, plan.Predicate)
	if err != nil {
		return nil, err
	}
	g, err := e.aggregator.GroupBy(rows, plan.Record, plan.Group.FieldNames)
	if err != nil {
		return nil, err
	}
	return paginate.Apply(g.Keys(), plan.Output, plan.Query.Pagination), nil
}

func (e *Engine) runAggregate(ctx context.Context, p Provider, seq Sequence, plan *Plan) ([]schema.Row, error) {
	rows, err := e.filtered(ctx, p, seq, plan.Predicate)
	if err != nil {
		return nil, err
	}
	out, err := e.aggregator.Run(plan.Aggregate, rows)
	if err != nil {
		return nil, err
	}
	return paginate.Apply(out, plan.Output, plan.Query.Pagination), nil
}

func (e *Engine) runPairs(ctx context.Context, p Provider, seq Sequence, plan *Plan) ([]aggregate.GroupValuePair, error) {
	rows, err := p.Materialize(ctx, seq)
	if err != nil {
		return nil, err
	}
	return e.aggregator.GroupValuePairs(rows, plan.Record, *plan.Pairs)
}

// filtered pushes pred down to the provider and materializes the result.
func (e *Engine) filtered(ctx context.Context, p Provider, seq Sequence, pred *filter.Predicate) ([]schema.Row, error) {
	var err error
	if !pred.IsTrivial() {
		if seq, err = p.Filter(ctx, seq, pred); err != nil {
			return nil, err
		}
	}
	return p.Materialize(ctx, seq)
}

// Explain renders the plan's pipeline, one stage per line.
func (p *Plan) Explain() string {
	var b strings.Builder
	fmt.Fprintf(&b, "record:  %s\n", p.Record.Name)
	fmt.Fprintf(&b, "kind:    %s\n", p.Kind)
	fmt.Fprintf(&b, "filter:  %s\n", p.Predicate)

	switch p.Kind {
	case KindRows:
		if len(p.OrderKeys) > 0 {
			keys := make([]string, len(p.OrderKeys))
			for i, k := range p.OrderKeys {
				keys[i] = k.Field.Name
				if k.Desc {
					keys[i] += " desc"
				}
			}
			fmt.Fprintf(&b, "order:   %s\n", strings.Join(keys, ", "))
		}
		if pg := p.Query.Pagination; pg.Offset() > 0 || pg.Limit() > 0 {
			fmt.Fprintf(&b, "page:    skip=%d take=%d\n", pg.Offset(), pg.Limit())
		}
		if len(p.Query.DistinctBy) > 0 {
			fmt.Fprintf(&b, "distinct: %s\n", strings.Join(p.Query.DistinctBy, ", "))
		}
		if p.Projection != nil {
			fmt.Fprintf(&b, "project: %s %s (%s)\n", p.Projection.Mode, p.Projection.Shape.Name, strings.Join(p.Projection.Columns(), ", "))
		}
	case KindGroup:
		fmt.Fprintf(&b, "group:   %s -> %s\n", strings.Join(p.Output.FieldNames(), ", "), p.Output.Name)
	case KindAggregate:
		a := p.Aggregate
		fmt.Fprintf(&b, "group:   %s\n", strings.Join(fieldNames(a), ", "))
		fmt.Fprintf(&b, "reduce:  %s(%s) -> %s\n", a.Op, a.Target.Field.Name, a.Output.Name)
	case KindPairs:
		fmt.Fprintf(&b, "pairs:   %s by %s\n", opOrCount(p.Pairs.AggregationOperation), strings.Join(p.Pairs.GroupByFieldNames, ", "))
	}
	if p.Output != nil {
		fmt.Fprintf(&b, "output:  %s\n", p.Output.Signature())
	}
	return b.String()
}

func fieldNames(a *aggregate.Plan) []string {
	names := make([]string, len(a.KeyFields))
	for i, f := range a.KeyFields {
		names[i] = f.Field.Name
	}
	return names
}

func opOrCount(op aggregate.Operation) aggregate.Operation {
	if op == "" {
		return aggregate.Count
	}
	return op
}
