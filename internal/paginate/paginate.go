// Package paginate orders and pages row sequences.
//
// Order of application is always sort, then skip, then take. Sort keys
// resolve through the field resolver; a key that does not resolve is
// skipped rather than failing the query. Skip and take apply only when
// present and strictly positive.
package paginate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/dynq/internal/queryir"
	"github.com/roach88/dynq/internal/resolve"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

// Direction is a sort direction. The zero value is ascending.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection parses a direction case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Asc, nil
	case "desc", "descending":
		return Desc, nil
	default:
		return "", fmt.Errorf("unknown sort direction %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON and YAML.
func (d *Direction) UnmarshalText(text []byte) error {
	dir, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = dir
	return nil
}

// SortKey orders rows by one field.
type SortKey struct {
	FieldName string    `json:"field_name" yaml:"field_name"`
	Direction Direction `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// Spec is a pagination request. Nil Skip or Take means absent.
type Spec struct {
	Skip  *int      `json:"skip,omitempty" yaml:"skip,omitempty"`
	Take  *int      `json:"take,omitempty" yaml:"take,omitempty"`
	Sorts []SortKey `json:"sorts,omitempty" yaml:"sorts,omitempty"`

	// Distinct drops rows equal to an earlier row before paging.
	Distinct bool `json:"distinct,omitempty" yaml:"distinct,omitempty"`
}

// Offset returns the effective skip, zero when absent or non-positive.
func (s *Spec) Offset() int {
	if s == nil || s.Skip == nil || *s.Skip <= 0 {
		return 0
	}
	return *s.Skip
}

// Limit returns the effective take, zero (no limit) when absent or
// non-positive.
func (s *Spec) Limit() int {
	if s == nil || s.Take == nil || *s.Take <= 0 {
		return 0
	}
	return *s.Take
}

// OrderKeys resolves sort keys against rt, dropping keys that do not
// resolve to exactly one field.
func OrderKeys(rt *schema.RecordType, sorts []SortKey) []queryir.OrderKey {
	keys := make([]queryir.OrderKey, 0, len(sorts))
	for _, s := range sorts {
		rf, err := resolve.Resolve(rt, s.FieldName)
		if err != nil {
			continue
		}
		keys = append(keys, queryir.OrderKey{
			Field: queryir.FieldRef{Name: rf.Field.Name, Index: rf.Index, Type: rf.Field.Type},
			Desc:  s.Direction == Desc,
		})
	}
	return keys
}

// Sort returns rows stably ordered by keys. The first key is the primary
// order; each later key breaks ties. Null sorts first ascending. The input
// slice is not modified.
func Sort(rows []schema.Row, keys []queryir.OrderKey) []schema.Row {
	out := slices.Clone(rows)
	if len(keys) == 0 {
		return out
	}
	slices.SortStableFunc(out, func(a, b schema.Row) int {
		for _, k := range keys {
			c, ok := value.Compare(a.At(k.Field.Index), b.At(k.Field.Index))
			if !ok || c == 0 {
				continue
			}
			if k.Desc {
				return -c
			}
			return c
		}
		return 0
	})
	return out
}

// Page applies skip then take. Absent or non-positive values are no-ops.
func Page(rows []schema.Row, skip, take *int) []schema.Row {
	spec := Spec{Skip: skip, Take: take}
	return window(rows, spec.Offset(), spec.Limit())
}

func window(rows []schema.Row, offset, limit int) []schema.Row {
	if offset >= len(rows) {
		return []schema.Row{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// Apply sorts, optionally removes duplicates, then pages rows of rt.
// A nil spec returns rows unchanged.
func Apply(rows []schema.Row, rt *schema.RecordType, spec *Spec) []schema.Row {
	if spec == nil {
		return rows
	}
	out := Sort(rows, OrderKeys(rt, spec.Sorts))
	if spec.Distinct {
		out = Distinct(out)
	}
	return window(out, spec.Offset(), spec.Limit())
}

// Distinct keeps the first occurrence of every distinct row.
func Distinct(rows []schema.Row) []schema.Row {
	seen := make(map[string]bool, len(rows))
	out := make([]schema.Row, 0, len(rows))
	for _, row := range rows {
		k := row.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row)
	}
	return out
}

// DistinctBy keeps the first row for every distinct combination of the
// named fields. Names resolve like projections; names matching nothing
// are ignored, and with no resolved fields every row is kept.
func DistinctBy(rows []schema.Row, rt *schema.RecordType, names []string) []schema.Row {
	fields := resolve.ResolveSet(rt, names, resolve.Options{})
	if len(fields) == 0 {
		return rows
	}
	seen := make(map[string]bool, len(rows))
	out := make([]schema.Row, 0, len(rows))
	vals := make([]value.Value, len(fields))
	for _, row := range rows {
		for i, f := range fields {
			vals[i] = row.At(f.Index)
		}
		k := value.Key(vals...)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row)
	}
	return out
}
