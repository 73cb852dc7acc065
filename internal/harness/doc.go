// Package harness provides conformance testing for dynq queries.
//
// The harness compiles a CUE schema, loads rows, runs a query against every
// configured provider and checks the results against the scenario's
// expectations. Running the same query through the in-memory provider and
// the SQLite store and requiring identical output is the main guard against
// push-down drift.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema: |
//	  record: Employee: fields: {
//	    Name:   "string"
//	    Salary: "int"
//	  }
//	record: Employee
//	rows:
//	  - {Name: John, Salary: 5000}
//	query:
//	  search:
//	    filter_groups:
//	      - filters:
//	          - {field_name: Salary, operation: gt, value: "4000"}
//	expect:
//	  rows:
//	    - {Name: John, Salary: 5000}
//	assertions:
//	  - type: count
//	    count: 1
//
// schema may be replaced by schema_file, a path relative to the scenario.
// query accepts every field of a query document.
//
// # Assertion Types
//
//   - rows: the result equals expect.rows, in order unless expect.unordered
//   - count: the result has exactly count rows
//   - error: the query fails with the given error code
//   - shape: the result record type has the given signature
//   - contains: some result row matches the given fields (subset match)
//
// expect.rows and expect.error are shorthands for the rows and error
// assertions.
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run ID (scenario.run_id, or
// "test-run-default") and a fresh logical clock, so snapshots are
// byte-identical across runs and suitable for golden comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/dept_totals.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
