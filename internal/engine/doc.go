// Package engine compiles query documents into plans and executes them
// through a Provider.
//
// ARCHITECTURE:
//
// The engine never touches data itself. A Provider (the in-memory
// MemoryProvider, or the SQLite store) applies each stage to a Sequence:
//
//  1. Filter      compiled search predicate
//  2. OrderBy     resolved sort keys (unresolvable keys already dropped)
//  3. SkipTake    only positive values
//  4. Project     shape synthesized through the shape registry
//  5. Materialize rows out
//
// Grouped queries (group, aggregate, pairs) filter through the provider,
// materialize, and then group and reduce in memory. Queries with distinct
// semantics also finish in memory, because a Provider has no distinct
// stage.
//
// CRITICAL PATTERNS:
//
// Compile once: Engine.Compile resolves every name, coerces every literal
// and synthesizes every shape before any data is read; errors abort the
// whole query. Plans are cached by record identity and canonical query
// document, so repeated identical queries skip compilation.
//
// Deterministic order: without sort keys, rows keep provider order (input
// order in memory, rowid order in SQLite). Sorting is stable.
//
// Run identity: every execution gets a run ID from the configured
// RunIDGenerator and a sequence number from the engine's logical Clock.
package engine
