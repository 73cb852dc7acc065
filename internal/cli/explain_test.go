package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplainCommand_Text(t *testing.T) {
	query := writeFile(t, "eng.yaml", engQuery)

	out, _, err := execute(NewExplainCommand(testOptions("text")), query)
	require.NoError(t, err)
	assert.Contains(t, out, "record:  Employee")
	assert.Contains(t, out, "kind:    rows")
	assert.Contains(t, out, "order:   Salary desc, Name")
	assert.Contains(t, out, "output:  Name:string;Salary:int64;")
}

func TestExplainCommand_JSON(t *testing.T) {
	query := writeFile(t, "eng.yaml", engQuery)

	out, _, err := execute(NewExplainCommand(testOptions("json")), query)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   ExplainResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Employee", resp.Data.Record)
	assert.Equal(t, "rows", resp.Data.Kind)
	assert.Len(t, resp.Data.Key, 64)
	assert.Equal(t, "Name:string;Salary:int64;", resp.Data.Output)
	assert.Equal(t, "record:  Employee", resp.Data.Stages[0])
}

func TestExplainCommand_FromDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "dynq.db")
	data := writeFile(t, "employees.yaml", employeeRows)

	loadOpts := testOptions("text")
	loadOpts.DB = db
	_, _, err := execute(NewLoadCommand(loadOpts), data)
	require.NoError(t, err)

	opts := testOptions("text")
	opts.Schema = ""
	opts.DB = db
	query := writeFile(t, "eng.yaml", engQuery)
	out, _, err := execute(NewExplainCommand(opts), query)
	require.NoError(t, err)
	assert.Contains(t, out, "record:  Employee")
}

func TestExplainCommand_CompileError(t *testing.T) {
	query := writeFile(t, "q.yaml", "select: [Nope]\nmode: minimal\n")

	out, _, err := execute(NewExplainCommand(testOptions("text")), query)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [")
}
