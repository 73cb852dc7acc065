package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynq/internal/testutil"
)

// employeeSchema is absolute so tests may change directory.
var employeeSchema = mustAbs(filepath.Join("..", "..", "testdata", "schemas", "employee.cue"))

func mustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		panic(err)
	}
	return abs
}

const employeeRows = `
- {Name: John, Dept: Sales, Salary: 5000, Age: 30, Rating: 4.5, Hired: "2020-01-15", Active: true, Manager: Mark}
- {Name: Mark, Dept: Sales, Salary: 7000, Age: 45, Rating: 3.9, Hired: "2018-03-01", Active: true, Manager: null}
- {Name: Johanna, Dept: Eng, Salary: 6500, Age: null, Rating: 4.8, Hired: "2021-06-30", Active: true, Manager: Mark}
- {Name: Zed, Dept: Eng, Salary: 4000, Age: 25, Rating: 2.5, Hired: "2022-11-11", Active: false, Manager: Johanna}
- {Name: Alice, Dept: Eng, Salary: 6500, Age: 38, Rating: 4.8, Hired: "2019-09-09", Active: true, Manager: Johanna}
`

const engQuery = `
select: [Name, Salary]
search:
  filter_groups:
    - filters:
        - {field_name: Dept, operation: eq, value: Eng}
pagination:
  sorts:
    - {field_name: Salary, direction: desc}
    - {field_name: Name}
`

// writeFile writes content to name in a fresh temp dir and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// testOptions returns options for commands built without the root command,
// with a fixed run ID.
func testOptions(format string) *RootOptions {
	return &RootOptions{
		Format:    format,
		Schema:    employeeSchema,
		Delimiter: ",",
		RunIDs:    testutil.NewFixedRunIDGenerator("cli-run"),
	}
}

// execute runs cmd with args and returns stdout and stderr.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
