// Package queryir provides the predicate intermediate representation (IR)
// that compiled searches are expressed in.
//
// ARCHITECTURE:
//
// The IR sits between the filter compiler and the execution providers:
//
//	[search spec] → [filter.Compile] → [queryir.Expr] → Eval (in memory)
//	                                                  → querysql (SQLite)
//
// One compiled Expr is evaluated directly against rows by the memory
// provider and translated to parameterized SQL by the store. Both paths
// share the same null semantics, so a search selects the same rows
// whichever provider runs it.
//
// SEALED INTERFACES:
//
// Expr is a sealed interface using the marker method pattern. Only types in
// this package implement it, which keeps type switches in Eval, Format,
// Validate and the SQL compiler exhaustive:
//
//	switch e := expr.(type) {
//	case Const:
//	case And, Or, Not:
//	case Compare, In, Match:
//	}
//
// NULL SEMANTICS:
//
// Every leaf evaluates to true or false, never unknown:
//   - Compare Eq/Ne treat Null as an ordinary value (Null = Null is true)
//   - ordered comparisons, In and Match are false for a Null field value
//   - Not is plain boolean negation of its operand
//
// PUSH-DOWN FRAGMENT:
//
// Validate reports whether an expression stays within the fragment the SQL
// compiler supports: leaves over scalar fields only. Expressions touching
// list or nested record fields still evaluate in memory.
package queryir
