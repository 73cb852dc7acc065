package filter

import (
	"fmt"
	"strings"
)

// Operator is a filter operation. The zero value means equality.
type Operator string

const (
	OpEq                  Operator = "eq"
	OpNeq                 Operator = "neq"
	OpGt                  Operator = "gt"
	OpGte                 Operator = "gte"
	OpLt                  Operator = "lt"
	OpLte                 Operator = "lte"
	OpContains            Operator = "contains"
	OpNotContains         Operator = "notcontains"
	OpStartsWith          Operator = "startswith"
	OpEndsWith            Operator = "endswith"
	OpNotStartsWith       Operator = "notstartswith"
	OpNotEndsWith         Operator = "notendswith"
	OpInList              Operator = "inlist"
	OpNotInList           Operator = "notinlist"
	OpContainsInList      Operator = "containsinlist"
	OpNotContainsInList   Operator = "notcontainsinlist"
	OpStartsWithInList    Operator = "startswithinlist"
	OpEndsWithInList      Operator = "endswithinlist"
	OpNotStartsWithInList Operator = "notstartswithinlist"
	OpNotEndsWithInList   Operator = "notendswithinlist"
)

var operators = map[Operator]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpContains: true, OpNotContains: true, OpStartsWith: true, OpEndsWith: true,
	OpNotStartsWith: true, OpNotEndsWith: true, OpInList: true, OpNotInList: true,
	OpContainsInList: true, OpNotContainsInList: true, OpStartsWithInList: true,
	OpEndsWithInList: true, OpNotStartsWithInList: true, OpNotEndsWithInList: true,
}

// ParseOperator parses an operator name case-insensitively. The empty
// string is equality.
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.ToLower(strings.TrimSpace(s)))
	if op == "" {
		return OpEq, nil
	}
	if !operators[op] {
		return "", fmt.Errorf("unknown filter operation %q", s)
	}
	return op, nil
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON and YAML.
func (o *Operator) UnmarshalText(text []byte) error {
	op, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Logic joins a filter or group to what precedes it. The zero value is And.
type Logic string

const (
	And Logic = "and"
	Or  Logic = "or"
)

// ParseLogic parses a logic name case-insensitively. The empty string is And.
func ParseLogic(s string) (Logic, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "and":
		return And, nil
	case "or":
		return Or, nil
	default:
		return "", fmt.Errorf("unknown filter logic %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON and YAML.
func (l *Logic) UnmarshalText(text []byte) error {
	logic, err := ParseLogic(string(text))
	if err != nil {
		return err
	}
	*l = logic
	return nil
}

// IsOr reports whether l is Or.
func (l Logic) IsOr() bool {
	return l == Or
}

// Filter is a single field test. Logic states how the filter joins the
// filter before it on the same field; the first filter's Logic is unused
// there but connects its field's chain to the chains before it.
type Filter struct {
	Operation          Operator `json:"operation,omitempty" yaml:"operation,omitempty"`
	Logic              Logic    `json:"logic,omitempty" yaml:"logic,omitempty"`
	FieldName          string   `json:"field_name" yaml:"field_name"`
	Value              string   `json:"value" yaml:"value"`
	ValueListDelimiter string   `json:"value_list_delimiter,omitempty" yaml:"value_list_delimiter,omitempty"`
}

// FilterGroup is a node of the filter tree. Logic combines the node's child
// groups with its own filters.
type FilterGroup struct {
	Logic       Logic         `json:"logic,omitempty" yaml:"logic,omitempty"`
	ChildGroups []FilterGroup `json:"child_groups,omitempty" yaml:"child_groups,omitempty"`
	Filters     []Filter      `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// SearchSpec is the root of a filter tree. A nil or empty SearchSpec
// matches every row.
type SearchSpec struct {
	FilterGroups []FilterGroup `json:"filter_groups" yaml:"filter_groups"`
}

// Empty reports whether s imposes no constraint structure at all.
func (s *SearchSpec) Empty() bool {
	return s == nil || len(s.FilterGroups) == 0
}

// connector returns the logic joining g to its preceding sibling: the logic
// of g's first filter, or g's own logic when it has no filters.
func (g *FilterGroup) connector() Logic {
	if len(g.Filters) > 0 {
		return g.Filters[0].Logic
	}
	return g.Logic
}

// Walk calls fn for every filter in the tree, depth first, child groups
// before a group's own filters.
func (s *SearchSpec) Walk(fn func(*Filter)) {
	if s == nil {
		return
	}
	for i := range s.FilterGroups {
		s.FilterGroups[i].walk(fn)
	}
}

func (g *FilterGroup) walk(fn func(*Filter)) {
	for i := range g.ChildGroups {
		g.ChildGroups[i].walk(fn)
	}
	for i := range g.Filters {
		fn(&g.Filters[i])
	}
}
