// Package resolve maps logical, case-insensitive field names onto the
// concrete fields of a record type.
//
// Matching order for a name:
//  1. exact match (case-insensitive) on a scalar field
//  2. foreign-key alias: a navigation field with that name resolves to its
//     key field (or, with IncludeParent, to the key and the navigation field)
//  3. prefix match (case-insensitive) on scalar fields, or on any non-list
//     field with IncludeParent
//
// Resolve requires exactly one match. ResolveSet expands each name to every
// match and is used for projections and group keys.
package resolve

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/dynq/internal/qerr"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

// ResolvedField pairs a requested name with the field it resolved to.
// Values are immutable once returned.
type ResolvedField struct {
	// Name is the name as requested by the caller.
	Name string

	// Field is the concrete field.
	Field schema.Field

	// Index is the field's position in its record type.
	Index int
}

// Options tune set resolution.
type Options struct {
	// IncludeParent lets prefix and alias matches return nested record
	// (navigation) fields alongside scalar ones.
	IncludeParent bool
}

// fold returns the case-folded form of s. A Caser carries state, so each
// call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Resolve resolves name to exactly one field of rt.
// It fails with FieldNotFound when nothing matches and AmbiguousField when
// a prefix matches several fields.
func Resolve(rt *schema.RecordType, name string) (ResolvedField, error) {
	if name == "" {
		return ResolvedField{}, qerr.NewFieldNotFound(rt.Name, name)
	}
	key := fold(name)

	if idx, err := exactMatch(rt, name, key); err != nil {
		return ResolvedField{}, err
	} else if idx >= 0 {
		return resolved(rt, name, idx), nil
	}

	if nav := aliasMatch(rt, key); nav >= 0 {
		if idx, ok := rt.Lookup(rt.Fields[nav].ForeignKey); ok {
			return resolved(rt, name, idx), nil
		}
	}

	matches := prefixMatches(rt, key, false)
	switch len(matches) {
	case 0:
		return ResolvedField{}, qerr.NewFieldNotFound(rt.Name, name)
	case 1:
		return resolved(rt, name, matches[0]), nil
	default:
		names := make([]string, len(matches))
		for i, idx := range matches {
			names[i] = rt.Fields[idx].Name
		}
		return ResolvedField{}, qerr.NewAmbiguousField(rt.Name, name, names)
	}
}

// ResolveSet resolves every name to all of its matching fields. Duplicate
// fields are removed, keeping first-seen order. Names that match nothing
// contribute nothing.
func ResolveSet(rt *schema.RecordType, names []string, opts Options) []ResolvedField {
	var out []ResolvedField
	seen := make(map[int]bool)
	add := func(name string, idx int) {
		if seen[idx] {
			return
		}
		seen[idx] = true
		out = append(out, resolved(rt, name, idx))
	}

	for _, name := range names {
		if name == "" {
			continue
		}
		for _, idx := range expand(rt, name, opts) {
			add(name, idx)
		}
	}
	return out
}

// expand applies the matching rules for set resolution.
func expand(rt *schema.RecordType, name string, opts Options) []int {
	key := fold(name)

	if idx, err := exactMatch(rt, name, key); err == nil && idx >= 0 {
		return []int{idx}
	}

	if nav := aliasMatch(rt, key); nav >= 0 {
		keyIdx, ok := rt.Lookup(rt.Fields[nav].ForeignKey)
		if !ok {
			return nil
		}
		if !opts.IncludeParent {
			return []int{keyIdx}
		}
		// Declaration order, as both fields appear in the record type.
		if nav < keyIdx {
			return []int{nav, keyIdx}
		}
		return []int{keyIdx, nav}
	}

	return prefixMatches(rt, key, opts.IncludeParent)
}

// exactMatch returns the scalar field whose folded name equals key, or -1.
// When several fields differ only in case, the byte-exact name wins.
func exactMatch(rt *schema.RecordType, name, key string) (int, error) {
	found := -1
	var candidates []string
	for i, f := range rt.Fields {
		if !f.Type.Scalar() || fold(f.Name) != key {
			continue
		}
		if f.Name == name {
			return i, nil
		}
		if found < 0 {
			found = i
		}
		candidates = append(candidates, f.Name)
	}
	if len(candidates) > 1 {
		return -1, qerr.NewAmbiguousField(rt.Name, name, candidates)
	}
	return found, nil
}

// aliasMatch returns the navigation field whose folded name equals key and
// that declares a foreign key, or -1.
func aliasMatch(rt *schema.RecordType, key string) int {
	for i, f := range rt.Fields {
		if f.ForeignKey != "" && fold(f.Name) == key {
			return i
		}
	}
	return -1
}

// prefixMatches returns fields whose folded names start with key. Scalar
// fields always qualify; nested records qualify with includeParent; lists
// never do.
func prefixMatches(rt *schema.RecordType, key string, includeParent bool) []int {
	var out []int
	for i, f := range rt.Fields {
		switch {
		case f.Type.Kind == value.KindList:
			continue
		case !f.Type.Scalar() && !includeParent:
			continue
		}
		if strings.HasPrefix(fold(f.Name), key) {
			out = append(out, i)
		}
	}
	return out
}

func resolved(rt *schema.RecordType, name string, idx int) ResolvedField {
	return ResolvedField{Name: name, Field: rt.Fields[idx], Index: idx}
}
