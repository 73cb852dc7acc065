// Package value defines the typed literals that flow through dynq.
//
// Every field value read from a record, every coerced filter literal and
// every aggregation result is a Value. Value is a sealed interface: only the
// types in this package implement it, so type switches over values are
// exhaustive.
//
// VALUE KINDS:
//
//	Null    absent value of a nullable field
//	Bool    true/false
//	Int     all integer widths, widened to int64
//	Float   float32 and float64, widened to float64
//	String  UTF-8 text
//	Date    calendar date (UTC midnight, time component truncated)
//	Time    instant, normalized to UTC
//	List    ordered list of values
//	Object  nested record (navigation field) as name -> value
//
// IDENTITY:
//
// Group keys, distinct filters and cache keys never compare Go values
// directly. They use MarshalCanonical, an RFC 8785 style encoding with NFC
// normalized strings and UTF-16 key order, so two values are the same key
// exactly when their canonical bytes are equal.
package value
