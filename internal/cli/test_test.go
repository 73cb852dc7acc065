package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenariosDir = filepath.Join("..", "..", "testdata", "scenarios")

// copyScenarios copies the repository scenarios and schemas into a temp
// dir, keeping their relative layout, and returns the scenarios dir.
func copyScenarios(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	dst := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(dst, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "schemas"), 0755))

	schema, err := os.ReadFile(employeeSchema)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "schemas", "employee.cue"), schema, 0644))

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(scenariosDir, name+".yaml"))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst, name+".yaml"), data, 0644))
	}
	return dst
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(NewTestCommand(testOptions("text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, _, err := execute(NewTestCommand(testOptions("text")), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute(NewTestCommand(testOptions("text")), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")

	out, _, err = execute(NewTestCommand(testOptions("json")), dir)
	require.NoError(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommandRepositoryScenarios(t *testing.T) {
	files, err := filepath.Glob(filepath.Join(scenariosDir, "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	out, _, err := execute(NewTestCommand(testOptions("text")), scenariosDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ dept_salary_totals")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, _, err := execute(NewTestCommand(testOptions("json")), scenariosDir, "--filter", "dept_*")
	require.NoError(t, err)

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "dept_salary_totals", resp.Data.Scenarios[0].Name)

	_, _, err = execute(NewTestCommand(testOptions("text")), scenariosDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandGoldenFiles(t *testing.T) {
	dir := copyScenarios(t, "dept_salary_totals", "unknown_field")

	out, _, err := execute(NewTestCommand(testOptions("text")), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ dept_salary_totals (golden updated)")

	golden := filepath.Join(dir, "golden", "dept_salary_totals.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario":"dept_salary_totals"`)
	assert.FileExists(t, filepath.Join(dir, "golden", "unknown_field.golden"))

	out, _, err = execute(NewTestCommand(testOptions("text")), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0644))
	out, _, err = execute(NewTestCommand(testOptions("text")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ dept_salary_totals")
	assert.Contains(t, out, "do not match golden file")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := copyScenarios(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(`
name: wrong
description: "expects a row that is not there"
schema: 'record: R: fields: {A: "int"}'
rows: [{A: 1}]
expect:
  rows: [{A: 2}]
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	out, _, err := execute(NewTestCommand(testOptions("json")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Error  *CLIError  `json:"error"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Failed)
	assert.Equal(t, 0, resp.Data.Passed)

	byName := map[string]ScenarioResult{}
	for _, s := range resp.Data.Scenarios {
		byName[s.Name] = s
	}
	require.Contains(t, byName, "broken.yaml")
	assert.Contains(t, byName["broken.yaml"].Errors[0], "failed to load scenario")
	require.Contains(t, byName, "wrong")
	assert.Contains(t, byName["wrong"].Errors[0], "[memory] Assertion failed: rows")
}
