// Package schema describes record types whose shape is only known at
// runtime, and the rows that carry their values.
//
// A RecordType is an ordered list of named, typed fields. It is built once
// per Go struct type (Of, via reflection, cached), once per CUE record
// declaration (see the compiler package) or synthesized on demand by the
// shape registry. Queries never reflect per request: every component works
// against RecordType and Row.
//
// NAVIGATION FIELDS:
//
// A field of record kind may carry a ForeignKey naming the scalar field that
// holds the referenced record's id. Field resolution uses it so that a
// filter on "Customer" targets "CustomerID".
package schema
