// Package compiler compiles CUE schema files into record types.
//
// A schema declares records under the top-level "record" struct. Each
// field is a type name, a CUE kind, or a struct naming a nested record and
// its foreign key:
//
//	record: Customer: fields: {
//		ID:   "int"
//		Name: string
//	}
//	record: Order: fields: {
//		OrderID:    "int"
//		CustomerID: "int"
//		Customer:   {type: "Customer", foreign_key: "CustomerID"}
//		Lines:      "[]string"
//		Note:       null | string
//	}
//
// Fields keep their declaration order. Records may reference each other in
// any order, but not in a cycle.
package compiler

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/dynq/internal/schema"
)

// RecordDecl is a record as declared in CUE, before type resolution.
type RecordDecl struct {
	Name   string
	Fields []FieldDecl
	Pos    token.Pos
}

// FieldDecl is a declared field. Type is a schema type name ("int32?",
// "[]string") or the name of another record, optionally with "?" or "[]".
type FieldDecl struct {
	Name       string
	Type       string
	ForeignKey string
	Pos        token.Pos
}

// Schema is a compiled set of record types.
type Schema struct {
	// Records holds the record types in declaration order.
	Records []*schema.RecordType

	byName map[string]*schema.RecordType
}

// Record returns the record type with this name. An exact match wins over
// a case-insensitive one.
func (s *Schema) Record(name string) (*schema.RecordType, bool) {
	if rt, ok := s.byName[name]; ok {
		return rt, true
	}
	for _, rt := range s.Records {
		if strings.EqualFold(rt.Name, name) {
			return rt, true
		}
	}
	return nil, false
}

// Names returns the record names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Records))
	for i, rt := range s.Records {
		names[i] = rt.Name
	}
	return names
}

// LoadSchema reads and compiles a CUE schema file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return CompileSource(path, data)
}

// CompileSource compiles CUE source text into a Schema.
func CompileSource(filename string, src []byte) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return CompileSchema(v)
}

// CompileSchema compiles the records of a CUE value into record types.
// Uses CUE SDK's Go API directly (not CLI subprocess).
func CompileSchema(v cue.Value) (*Schema, error) {
	decls, err := ParseRecords(v)
	if err != nil {
		return nil, err
	}
	if errs := Validate(decls); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return build(decls)
}

// ParseRecords extracts record declarations from the "record" struct of v.
func ParseRecords(v cue.Value) ([]RecordDecl, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	recordsVal := v.LookupPath(cue.ParsePath("record"))
	if !recordsVal.Exists() {
		return nil, &CompileError{
			Field:   "record",
			Message: "schema declares no records",
			Pos:     v.Pos(),
		}
	}

	iter, err := recordsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []RecordDecl
	for iter.Next() {
		decl, err := parseRecord(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

func parseRecord(name string, v cue.Value) (RecordDecl, error) {
	decl := RecordDecl{Name: name, Pos: v.Pos()}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return decl, &CompileError{
			Field:   name + ".fields",
			Message: "fields is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return decl, formatCUEError(err)
	}
	for iter.Next() {
		field, err := parseField(iter.Label(), iter.Value())
		if err != nil {
			return decl, err
		}
		decl.Fields = append(decl.Fields, field)
	}
	return decl, nil
}

// parseField accepts a type-name string, a CUE kind, or a struct with type
// and foreign_key.
func parseField(name string, v cue.Value) (FieldDecl, error) {
	field := FieldDecl{Name: name, Pos: v.Pos()}

	if s, err := v.String(); err == nil {
		field.Type = s
		return field, nil
	}

	if v.IncompleteKind() == cue.StructKind {
		typeVal := v.LookupPath(cue.ParsePath("type"))
		typeName, err := typeVal.String()
		if err != nil {
			return field, &CompileError{
				Field:   name + ".type",
				Message: "type must be a string",
				Pos:     v.Pos(),
			}
		}
		field.Type = typeName

		if fkVal := v.LookupPath(cue.ParsePath("foreign_key")); fkVal.Exists() {
			fk, err := fkVal.String()
			if err != nil {
				return field, &CompileError{
					Field:   name + ".foreign_key",
					Message: "foreign_key must be a string",
					Pos:     fkVal.Pos(),
				}
			}
			field.ForeignKey = fk
		}
		return field, nil
	}

	typeName, err := extractTypeName(name, v)
	if err != nil {
		return field, err
	}
	field.Type = typeName
	return field, nil
}

// extractTypeName converts a CUE kind constraint to a type name. A null
// disjunct makes the type nullable.
func extractTypeName(name string, v cue.Value) (string, error) {
	kind := v.IncompleteKind()
	suffix := ""
	if kind&cue.NullKind != 0 && kind != cue.NullKind {
		suffix = "?"
		kind &^= cue.NullKind
	}

	switch kind {
	case cue.StringKind:
		return "string" + suffix, nil
	case cue.IntKind:
		return "int" + suffix, nil
	case cue.FloatKind, cue.NumberKind:
		return "float" + suffix, nil
	case cue.BoolKind:
		return "bool" + suffix, nil
	default:
		return "", &CompileError{
			Field:   name,
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// build resolves declarations into record types. Declarations have been
// validated, so every reference resolves and there are no cycles.
func build(decls []RecordDecl) (*Schema, error) {
	byDecl := make(map[string]*RecordDecl, len(decls))
	for i := range decls {
		byDecl[decls[i].Name] = &decls[i]
	}

	s := &Schema{byName: make(map[string]*schema.RecordType, len(decls))}
	var buildRecord func(name string) (*schema.RecordType, error)
	buildRecord = func(name string) (*schema.RecordType, error) {
		if rt, ok := s.byName[name]; ok {
			return rt, nil
		}
		decl := byDecl[name]
		fields := make([]schema.Field, len(decl.Fields))
		for i, fd := range decl.Fields {
			t, err := resolveType(fd.Type, func(ref string) (*schema.RecordType, error) {
				return buildRecord(ref)
			})
			if err != nil {
				return nil, &CompileError{Field: name + "." + fd.Name, Message: err.Error(), Pos: fd.Pos}
			}
			fields[i] = schema.Field{Name: fd.Name, Type: t, ForeignKey: fd.ForeignKey}
		}
		rt, err := schema.NewRecordType(name, fields...)
		if err != nil {
			return nil, &CompileError{Field: name, Message: err.Error(), Pos: decl.Pos}
		}
		s.byName[name] = rt
		return rt, nil
	}

	for _, decl := range decls {
		rt, err := buildRecord(decl.Name)
		if err != nil {
			return nil, err
		}
		s.Records = append(s.Records, rt)
	}
	return s, nil
}

// resolveType parses a field type, looking up record references with
// lookup. Record references are always nullable, so a "?" on one is
// accepted and ignored.
func resolveType(typeName string, lookup func(string) (*schema.RecordType, error)) (schema.Type, error) {
	if t, err := schema.ParseType(typeName); err == nil {
		return t, nil
	}

	name := strings.TrimSpace(typeName)
	if rest, ok := strings.CutPrefix(name, "[]"); ok {
		elem, err := resolveType(rest, lookup)
		if err != nil {
			return schema.Type{}, err
		}
		return schema.ListOf(elem), nil
	}
	name = strings.TrimSuffix(name, "?")

	rt, err := lookup(name)
	if err != nil {
		return schema.Type{}, err
	}
	return schema.RecordOf(rt), nil
}

// recordRef returns the record named by a field type, or "" for scalar and
// scalar-list types.
func recordRef(typeName string) string {
	if _, err := schema.ParseType(typeName); err == nil {
		return ""
	}
	name := strings.TrimSpace(typeName)
	for {
		rest, ok := strings.CutPrefix(name, "[]")
		if !ok {
			break
		}
		name = rest
	}
	return strings.TrimSuffix(name, "?")
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
