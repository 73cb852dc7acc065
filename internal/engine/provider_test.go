package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynq/internal/filter"
	"github.com/roach88/dynq/internal/paginate"
	"github.com/roach88/dynq/internal/qerr"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/shape"
	"github.com/roach88/dynq/internal/testutil"
)

type otherSequence struct{}

func (otherSequence) RecordType() *schema.RecordType {
	return testutil.Employee
}

func TestMemoryProvider_Stages(t *testing.T) {
	ctx := context.Background()
	p := MemoryProvider{}
	rows := testutil.Employees(t)
	seq := Sequence(NewRows(testutil.Employee, rows))

	pred, err := filter.Compile(testutil.Employee, search("Dept", filter.OpEq, "Eng"))
	require.NoError(t, err)
	seq, err = p.Filter(ctx, seq, pred)
	require.NoError(t, err)
	assert.Equal(t, 3, seq.(*Rows).Len())

	keys := paginate.OrderKeys(testutil.Employee, []paginate.SortKey{{FieldName: "Name"}})
	seq, err = p.OrderBy(ctx, seq, keys)
	require.NoError(t, err)

	seq, err = p.SkipTake(ctx, seq, 1, 0)
	require.NoError(t, err)

	proj, err := shape.NewRegistry().Project(testutil.Employee, []string{"Name"}, shape.Options{})
	require.NoError(t, err)
	seq, err = p.Project(ctx, seq, proj)
	require.NoError(t, err)
	assert.Same(t, proj.Shape, seq.RecordType())

	out, err := p.Materialize(ctx, seq)
	require.NoError(t, err)
	assert.Equal(t, []string{"Johanna", "Zed"}, testutil.Strings(t, out, "Name"))
	assert.Len(t, rows, 5, "input rows are not modified")
}

func TestMemoryProvider_Errors(t *testing.T) {
	ctx := context.Background()
	p := MemoryProvider{}

	_, err := p.Materialize(ctx, otherSequence{})
	assert.True(t, IsUnsupportedError(err))

	other := schema.MustRecordType("Other", schema.Field{Name: "Name", Type: schema.String})
	pred := filter.Always(other)
	_, err = p.Filter(ctx, NewRows(testutil.Employee, nil), pred)
	assert.True(t, IsRecordMismatch(err))

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.OrderBy(ctx, NewRows(testutil.Employee, nil), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckRecord(t *testing.T) {
	twin := schema.MustRecordType("Employee", testutil.Employee.Fields...)
	renamed := schema.MustRecordType("Staff", testutil.Employee.Fields...)

	assert.NoError(t, CheckRecord("x", testutil.Employee, testutil.Employee))
	assert.NoError(t, CheckRecord("x", testutil.Employee, twin), "structural twins are accepted")
	assert.True(t, IsRecordMismatch(CheckRecord("x", testutil.Employee, renamed)))
	assert.True(t, IsRecordMismatch(CheckRecord("x", nil, testutil.Employee)))
}

func TestRuntimeError(t *testing.T) {
	err := NewUnsupportedError("filter", "cannot filter on %s", "Tags")
	err.RunID = "run-1"
	assert.Equal(t, "UNSUPPORTED_STAGE: cannot filter on Tags (stage=filter) (run=run-1)", err.Error())

	cause := assert.AnError
	perr := NewProviderError("read", cause)
	assert.ErrorIs(t, perr, cause)
	assert.True(t, IsProviderError(perr))
	assert.False(t, IsUnsupportedError(perr))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "FIELD_NOT_FOUND", ErrorCode(fmt.Errorf("compile: %w", qerr.NewFieldNotFound("Employee", "Nope"))))
	assert.Equal(t, "RECORD_MISMATCH", ErrorCode(NewRecordMismatchError("plan", "A", "B")))
	assert.Equal(t, "", ErrorCode(assert.AnError))
	assert.Equal(t, "", ErrorCode(nil))
}
