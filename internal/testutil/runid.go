package testutil

// FixedRunIDGenerator returns the same run ID every time.
//
// Golden output embeds run IDs, so a scenario run with a FixedRunIDGenerator
// produces byte-identical results across runs. Unlike engine.FixedGenerator,
// which hands out a list of IDs in order, it never runs out.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator returning id. An empty id
// becomes "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate implements engine.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
