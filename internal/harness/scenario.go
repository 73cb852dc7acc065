package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dynq/internal/engine"
)

// Scenario defines a conformance test scenario: a schema, rows, one query
// and what the query must return.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is inline CUE declaring the record types.
	Schema string `yaml:"schema,omitempty"`

	// SchemaFile is a CUE file declaring the record types, relative to the
	// scenario's base path. Exactly one of Schema and SchemaFile is set.
	SchemaFile string `yaml:"schema_file,omitempty"`

	// Record names the record type of Rows. It may be omitted when the
	// schema declares a single record.
	Record string `yaml:"record,omitempty"`

	// Rows are the input rows, keyed by field name.
	Rows []map[string]any `yaml:"rows"`

	// Query is the query under test.
	Query engine.Query `yaml:"query"`

	// Expect is shorthand for the rows and error assertions.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate every provider's outcome.
	// Supported types: rows, count, error, shape, contains
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Providers lists where the query runs. Empty means memory and sqlite.
	Providers []string `yaml:"providers,omitempty"`

	// RunID is the fixed run ID for deterministic snapshots.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// ExpectClause specifies the expected result.
type ExpectClause struct {
	// Rows are the expected result rows (or pairs) in their JSON form.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Unordered compares Rows as a multiset.
	Unordered bool `yaml:"unordered,omitempty"`

	// Error is the expected error code, such as FIELD_NOT_FOUND.
	// When set, Rows must be empty.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates one aspect of an outcome.
type Assertion struct {
	// Type specifies the assertion type:
	// - "rows": result equals Rows
	// - "count": result has exactly Count rows
	// - "error": query fails with code Error
	// - "shape": result record type has signature Shape
	// - "contains": some row matches Fields (subset match)
	Type string `yaml:"type"`

	// Rows are the expected rows (used by rows).
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Unordered compares Rows as a multiset (used by rows).
	Unordered bool `yaml:"unordered,omitempty"`

	// Count is the expected number of rows (used by count).
	Count int `yaml:"count,omitempty"`

	// Error is the expected error code (used by error).
	Error string `yaml:"error,omitempty"`

	// Shape is the expected record signature (used by shape).
	Shape string `yaml:"shape,omitempty"`

	// Fields are the expected field values (used by contains).
	// Subset match - only specified fields are validated.
	Fields map[string]any `yaml:"fields,omitempty"`
}

// Assertion type constants.
const (
	AssertRows     = "rows"
	AssertCount    = "count"
	AssertError    = "error"
	AssertShape    = "shape"
	AssertContains = "contains"
)

// LoadScenario reads and parses a scenario YAML file. schema_file is
// resolved relative to the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving schema_file relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.SchemaFile != "" && !filepath.IsAbs(scenario.SchemaFile) && basePath != "" {
		scenario.SchemaFile = filepath.Join(basePath, scenario.SchemaFile)
	}
	if scenario.SchemaFile != "" {
		if _, err := os.Stat(scenario.SchemaFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: schema file not found: %s", scenario.SchemaFile)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Schema == "" && s.SchemaFile == "":
		return fmt.Errorf("schema or schema_file is required")
	case s.Schema != "" && s.SchemaFile != "":
		return fmt.Errorf("schema and schema_file are mutually exclusive")
	}

	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}
	if s.Expect != nil && s.Expect.Error != "" && len(s.Expect.Rows) > 0 {
		return fmt.Errorf("expect: rows and error are mutually exclusive")
	}

	for i, p := range s.Providers {
		if p != ProviderMemory && p != ProviderSQLite {
			return fmt.Errorf("providers[%d]: unknown provider %q", i, p)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRows:
		if a.Rows == nil {
			return fmt.Errorf("assertions[%d]: rows is required for rows (use [] for none)", index)
		}
	case AssertCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertError:
		if a.Error == "" {
			return fmt.Errorf("assertions[%d]: error code is required for error", index)
		}
	case AssertShape:
		if a.Shape == "" {
			return fmt.Errorf("assertions[%d]: shape is required for shape", index)
		}
	case AssertContains:
		if len(a.Fields) == 0 {
			return fmt.Errorf("assertions[%d]: fields is required for contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// providers returns the providers to run, defaulting to all of them.
func (s *Scenario) providers() []string {
	if len(s.Providers) == 0 {
		return []string{ProviderMemory, ProviderSQLite}
	}
	return s.Providers
}

// assertions returns the explicit assertions plus those implied by Expect.
func (s *Scenario) assertions() []Assertion {
	var out []Assertion
	if s.Expect != nil {
		if s.Expect.Error != "" {
			out = append(out, Assertion{Type: AssertError, Error: s.Expect.Error})
		} else {
			rows := s.Expect.Rows
			if rows == nil {
				rows = []map[string]any{}
			}
			out = append(out, Assertion{Type: AssertRows, Rows: rows, Unordered: s.Expect.Unordered})
		}
	}
	return append(out, s.Assertions...)
}
