package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/dynq/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string           // Assertion type for categorization
	Expected string           // Human-readable expected outcome
	Actual   string           // Human-readable actual outcome
	Rows     []map[string]any // Actual rows for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Rows) > 0 {
		fmt.Fprintf(&buf, "\nRows:\n")
		for i, row := range e.Rows {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, canonical(row))
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against one outcome and returns
// the failure messages. An outcome that failed only satisfies error
// assertions; any other assertion reports the unexpected error once.
func EvaluateAssertions(o Outcome, assertions []Assertion) []string {
	var errs []string
	expectsError := false
	for _, a := range assertions {
		if a.Type == AssertError {
			expectsError = true
		}
	}
	if o.Error != "" && !expectsError {
		return []string{fmt.Sprintf("unexpected error: %s", o.Message)}
	}

	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertRows:
			err = assertRows(o, a)
		case AssertCount:
			err = assertCount(o, a)
		case AssertError:
			err = assertError(o, a)
		case AssertShape:
			err = assertShape(o, a)
		case AssertContains:
			err = assertContains(o, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertRows compares the result rows to the expected rows by canonical
// JSON, so 5000 and 5000.0 are equal and key order is irrelevant.
func assertRows(o Outcome, a Assertion) error {
	want := canonicalRows(a.Rows)
	got := canonicalRows(o.Rows)
	if a.Unordered {
		sort.Strings(want)
		sort.Strings(got)
	}
	if strings.Join(want, "\n") == strings.Join(got, "\n") {
		return nil
	}
	return &AssertionError{
		Type:     AssertRows,
		Expected: fmt.Sprintf("%d row(s): %s", len(want), strings.Join(want, " ")),
		Actual:   fmt.Sprintf("%d row(s): %s", len(got), strings.Join(got, " ")),
	}
}

func assertCount(o Outcome, a Assertion) error {
	if len(o.Rows) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCount,
		Expected: fmt.Sprintf("%d row(s)", a.Count),
		Actual:   fmt.Sprintf("%d row(s)", len(o.Rows)),
		Rows:     o.Rows,
	}
}

func assertError(o Outcome, a Assertion) error {
	if o.Error == a.Error {
		return nil
	}
	actual := "no error"
	if o.Error != "" {
		actual = o.Message
	}
	return &AssertionError{
		Type:     AssertError,
		Expected: fmt.Sprintf("error %s", a.Error),
		Actual:   actual,
		Rows:     o.Rows,
	}
}

func assertShape(o Outcome, a Assertion) error {
	if o.Shape == a.Shape {
		return nil
	}
	return &AssertionError{
		Type:     AssertShape,
		Expected: a.Shape,
		Actual:   o.Shape,
	}
}

// assertContains checks that some row has every field in a.Fields.
func assertContains(o Outcome, a Assertion) error {
	for _, row := range o.Rows {
		if matchFields(row, a.Fields) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertContains,
		Expected: fmt.Sprintf("a row matching %s", canonical(a.Fields)),
		Actual:   "not found",
		Rows:     o.Rows,
	}
}

// matchFields reports whether row has every expected field with an equal
// canonical value.
func matchFields(row, expected map[string]any) bool {
	for k, want := range expected {
		got, ok := row[k]
		if !ok || canonical(got) != canonical(want) {
			return false
		}
	}
	return true
}

// checkAgreement requires every provider to produce the same outcome as the
// first one. Run IDs and sequence numbers are ignored.
func checkAgreement(outcomes []Outcome) string {
	if len(outcomes) < 2 {
		return ""
	}
	base := outcomes[0]
	for _, o := range outcomes[1:] {
		switch {
		case o.Error != base.Error:
			return fmt.Sprintf("providers disagree: %s error %q, %s error %q", base.Provider, base.Error, o.Provider, o.Error)
		case o.Shape != base.Shape:
			return fmt.Sprintf("providers disagree: %s shape %s, %s shape %s", base.Provider, base.Shape, o.Provider, o.Shape)
		}
		want := strings.Join(canonicalRows(base.Rows), "\n")
		got := strings.Join(canonicalRows(o.Rows), "\n")
		if want != got {
			return fmt.Sprintf("providers disagree on rows:\n  %s: %s\n  %s: %s", base.Provider, want, o.Provider, got)
		}
	}
	return ""
}

func canonicalRows(rows []map[string]any) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = canonical(row)
	}
	return out
}

// canonical renders v as canonical JSON, or as %v when v holds a type
// canonical JSON cannot encode.
func canonical(v any) string {
	data, err := value.MarshalCanonical(normalize(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// normalize converts YAML-decoded containers to the forms MarshalCanonical
// accepts.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalize(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalize(elem)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalize(elem)
		}
		return out
	case int32:
		return int64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}
