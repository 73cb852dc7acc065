// Package store provides SQLite-backed tables that queries run against.
//
// The store keeps a catalog of tables, one per record type, and implements
// engine.Provider: filter, order, paging and projection stages compile to
// a single parameterized SELECT through package querysql instead of
// running in memory.
//
// # Critical Patterns
//
// CP-1: Catalog Is Authoritative
//   - dynq_tables records the name, record type and signature of every table
//   - CreateTable is idempotent for an identical signature and fails otherwise
//
// CP-2: Deterministic Query Results
//   - Every SELECT ends with ORDER BY ..., rowid ASC
//   - Ties therefore resolve in insertion order, exactly like the in-memory
//     provider's stable sort
//
// CP-3: Scalar Columns Only
//   - Tables hold scalar record types; list and nested record fields are
//     rejected at CreateTable
//   - Bools are INTEGER 0/1, dates TEXT "2006-01-02", instants fixed-width
//     TEXT in UTC (querysql.TimeLayout) so text order is time order
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
