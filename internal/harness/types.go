package harness

// Provider names.
const (
	ProviderMemory = "memory"
	ProviderSQLite = "sqlite"
)

// Outcome is the result of running a scenario's query on one provider.
type Outcome struct {
	Provider string           `json:"provider"`
	RunID    string           `json:"run_id,omitempty"`
	Seq      int64            `json:"seq,omitempty"`
	Kind     string           `json:"kind,omitempty"`
	Shape    string           `json:"shape,omitempty"`
	Rows     []map[string]any `json:"rows"`
	Error    string           `json:"error,omitempty"`

	// Message is the full error text. It is left out of snapshots, which
	// compare codes only.
	Message string `json:"-"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds on every provider and the providers
	// agree with each other.
	Pass bool `json:"pass"`

	// Outcomes holds one entry per provider, in run order.
	Outcomes []Outcome `json:"outcomes"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Outcomes: []Outcome{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddOutcome records a provider's outcome.
func (r *Result) AddOutcome(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}
