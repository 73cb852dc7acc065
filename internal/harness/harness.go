package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/dynq/internal/coerce"
	"github.com/roach88/dynq/internal/compiler"
	"github.com/roach88/dynq/internal/engine"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/store"
	"github.com/roach88/dynq/internal/testutil"
)

// Harness is the test execution engine.
// It runs one scenario with a fixed run ID and a fresh logical clock.
type Harness struct {
	engine *engine.Engine
	logger *slog.Logger
	record *schema.RecordType
	rows   []schema.Row
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Compile the schema and pick the record type
//  2. Coerce the scenario rows into that record type
//  3. Run the query on every provider
//  4. Evaluate assertions on each outcome
//  5. Require all providers to agree
//
// Query failures are outcomes, not errors: the returned error is reserved
// for scenarios that cannot be set up at all.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	rt, err := scenarioRecord(scenario)
	if err != nil {
		return nil, err
	}
	rows, err := coerce.RowsFromMaps(rt, scenario.Rows)
	if err != nil {
		return nil, fmt.Errorf("scenario rows: %w", err)
	}

	eng, err := engine.New(
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.RunID)),
		engine.WithClock(engine.NewClock()),
		engine.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	h := &Harness{engine: eng, logger: logger, record: rt, rows: rows}

	result := NewResult()
	for _, provider := range scenario.providers() {
		outcome, err := h.run(ctx, provider, &scenario.Query)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", provider, err)
		}
		result.AddOutcome(outcome)

		for _, msg := range EvaluateAssertions(outcome, scenario.assertions()) {
			result.AddError(fmt.Sprintf("[%s] %s", provider, msg))
		}
	}

	if msg := checkAgreement(result.Outcomes); msg != "" {
		result.AddError(msg)
	}
	return result, nil
}

// scenarioRecord compiles the scenario schema and returns its record type.
func scenarioRecord(s *Scenario) (*schema.RecordType, error) {
	var (
		sch *compiler.Schema
		err error
	)
	if s.SchemaFile != "" {
		sch, err = compiler.LoadSchema(s.SchemaFile)
	} else {
		sch, err = compiler.CompileSource(s.Name+".cue", []byte(s.Schema))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	if s.Record == "" {
		if len(sch.Records) != 1 {
			return nil, fmt.Errorf("record is required when the schema declares %d records", len(sch.Records))
		}
		return sch.Records[0], nil
	}
	rt, ok := sch.Record(s.Record)
	if !ok {
		return nil, fmt.Errorf("schema has no record %q (have %s)", s.Record, strings.Join(sch.Names(), ", "))
	}
	return rt, nil
}

// run executes the query on one provider. Query errors are captured in the
// outcome; setup errors are returned.
func (h *Harness) run(ctx context.Context, provider string, q *engine.Query) (Outcome, error) {
	outcome := Outcome{Provider: provider}

	var (
		res *engine.Result
		err error
	)
	switch provider {
	case ProviderMemory:
		res, err = h.engine.ExecuteRows(ctx, h.record, h.rows, q)
	case ProviderSQLite:
		var st *store.Store
		st, err = store.Open(":memory:", store.WithLogger(h.logger))
		if err != nil {
			return outcome, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()

		var table *store.Table
		if table, err = h.loadTable(ctx, st); err != nil {
			return outcome, err
		}
		res, err = h.engine.Execute(ctx, st, table, q)
	default:
		return outcome, fmt.Errorf("unknown provider %q", provider)
	}

	if err != nil {
		outcome.Error = engine.ErrorCode(err)
		if outcome.Error == "" {
			outcome.Error = "ERROR"
		}
		outcome.Message = err.Error()
		outcome.Rows = []map[string]any{}
		h.logger.Info("scenario query failed", "provider", provider, "error", err)
		return outcome, nil
	}

	outcome.RunID = res.RunID
	outcome.Seq = res.Seq
	outcome.Kind = string(res.Kind)
	if res.Shape != nil {
		outcome.Shape = res.Shape.Signature()
	}
	outcome.Rows = res.Maps()
	h.logger.Info("scenario query executed", "provider", provider, "rows", res.Len())
	return outcome, nil
}

// loadTable creates a table for the scenario record and fills it.
func (h *Harness) loadTable(ctx context.Context, st *store.Store) (*store.Table, error) {
	name := strings.ToLower(h.record.Name)
	if err := st.CreateTable(ctx, name, h.record); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	if err := st.Insert(ctx, name, h.rows); err != nil {
		return nil, fmt.Errorf("failed to insert rows: %w", err)
	}
	return st.Table(ctx, name)
}
