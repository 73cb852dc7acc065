package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dynq/internal/aggregate"
	"github.com/roach88/dynq/internal/filter"
	"github.com/roach88/dynq/internal/paginate"
	"github.com/roach88/dynq/internal/qerr"
	"github.com/roach88/dynq/internal/shape"
)

// Query is a declarative query document. At most one of Group, Aggregate
// and Pairs may be set; without them the query returns rows, projected
// through Select when it is non-empty.
type Query struct {
	Select        []string           `json:"select,omitempty" yaml:"select,omitempty"`
	IncludeParent bool               `json:"include_parent,omitempty" yaml:"include_parent,omitempty"`
	Mode          shape.Mode         `json:"mode,omitempty" yaml:"mode,omitempty"`
	Search        *filter.SearchSpec `json:"search,omitempty" yaml:"search,omitempty"`
	Pagination    *paginate.Spec     `json:"pagination,omitempty" yaml:"pagination,omitempty"`
	DistinctBy    []string           `json:"distinct_by,omitempty" yaml:"distinct_by,omitempty"`

	Group     *aggregate.GroupSpec `json:"group,omitempty" yaml:"group,omitempty"`
	Aggregate *aggregate.Spec      `json:"aggregate,omitempty" yaml:"aggregate,omitempty"`
	Pairs     *aggregate.PairSpec  `json:"pairs,omitempty" yaml:"pairs,omitempty"`
}

// Kind is the shape of a query's result.
type Kind string

const (
	KindRows      Kind = "rows"
	KindGroup     Kind = "group"
	KindAggregate Kind = "aggregate"
	KindPairs     Kind = "pairs"
)

// Kind reports which result the query produces.
func (q *Query) Kind() Kind {
	switch {
	case q.Group != nil:
		return KindGroup
	case q.Aggregate != nil:
		return KindAggregate
	case q.Pairs != nil:
		return KindPairs
	default:
		return KindRows
	}
}

// Validate checks the document structure. Name resolution and literal
// coercion happen later, in Engine.Compile.
func (q *Query) Validate() error {
	set := 0
	for _, present := range []bool{q.Group != nil, q.Aggregate != nil, q.Pairs != nil} {
		if present {
			set++
		}
	}
	if set > 1 {
		return qerr.NewInvalidSpec("only one of group, aggregate and pairs may be set")
	}
	if set == 1 && len(q.Select) > 0 {
		return qerr.NewInvalidSpec("select cannot be combined with %s", q.Kind())
	}
	if set == 1 && len(q.DistinctBy) > 0 {
		return qerr.NewInvalidSpec("distinct_by cannot be combined with %s", q.Kind())
	}
	if q.Group != nil && q.Search != nil && q.Group.Search != nil {
		return qerr.NewInvalidSpec("search given both at top level and in group")
	}
	if q.Aggregate != nil && q.Search != nil && q.Aggregate.Search != nil {
		return qerr.NewInvalidSpec("search given both at top level and in aggregate")
	}
	if q.Pairs != nil && q.Search != nil && q.Pairs.Search != nil {
		return qerr.NewInvalidSpec("search given both at top level and in pairs")
	}
	return nil
}

// Canonical returns the document's canonical JSON form, used as the plan
// cache key.
func (q *Query) Canonical() ([]byte, error) {
	return json.Marshal(q)
}

// ParseQuery decodes a query document. YAML is used unless the document
// starts with '{'; unknown fields are rejected in both forms.
func ParseQuery(data []byte) (*Query, error) {
	var q Query
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&q); err != nil {
			return nil, qerr.NewInvalidSpec("parse query JSON: %v", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&q); err != nil && err != io.EOF {
			return nil, qerr.NewInvalidSpec("parse query YAML: %v", err)
		}
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

// LoadQuery reads a query document from a file. "-" reads standard input.
func LoadQuery(path string) (*Query, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read query %s: %w", path, err)
	}

	q, err := ParseQuery(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return q, nil
}

// SetDefaultDelimiter gives every filter without a value list delimiter
// the delimiter d. An empty d leaves the query unchanged.
func (q *Query) SetDefaultDelimiter(d string) {
	if d == "" {
		return
	}
	set := func(f *filter.Filter) {
		if f.ValueListDelimiter == "" {
			f.ValueListDelimiter = d
		}
	}
	q.Search.Walk(set)
	if q.Group != nil {
		q.Group.Search.Walk(set)
	}
	if q.Aggregate != nil {
		q.Aggregate.Search.Walk(set)
	}
	if q.Pairs != nil {
		q.Pairs.Search.Walk(set)
	}
}

// describe renders a one-line summary for logs.
func (q *Query) describe() string {
	parts := []string{string(q.Kind())}
	if len(q.Select) > 0 {
		parts = append(parts, "select="+strings.Join(q.Select, ","))
	}
	if q.Search != nil {
		parts = append(parts, fmt.Sprintf("groups=%d", len(q.Search.FilterGroups)))
	}
	if q.Pagination != nil {
		parts = append(parts, fmt.Sprintf("sorts=%d", len(q.Pagination.Sorts)))
	}
	return strings.Join(parts, " ")
}
