package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/dynq/internal/value"
)

// Snapshot captures a scenario's outcomes in canonical JSON, followed by a
// newline. Provider outcomes appear in run order; empty fields are left
// out.
func Snapshot(name string, result *Result) ([]byte, error) {
	outcomes := make([]any, len(result.Outcomes))
	for i, o := range result.Outcomes {
		m := map[string]any{
			"provider": o.Provider,
			"rows":     normalize(o.Rows),
		}
		if o.RunID != "" {
			m["run_id"] = o.RunID
		}
		if o.Seq != 0 {
			m["seq"] = o.Seq
		}
		if o.Kind != "" {
			m["kind"] = o.Kind
		}
		if o.Shape != "" {
			m["shape"] = o.Shape
		}
		if o.Error != "" {
			m["error"] = o.Error
		}
		outcomes[i] = m
	}

	data, err := value.MarshalCanonical(map[string]any{
		"scenario": name,
		"outcomes": outcomes,
	})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}
