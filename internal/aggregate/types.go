package aggregate

import (
	"fmt"
	"strings"

	"github.com/roach88/dynq/internal/filter"
	"github.com/roach88/dynq/internal/paginate"
	"github.com/roach88/dynq/internal/value"
)

// Operation is an aggregation operator.
type Operation string

const (
	Count         Operation = "count"
	CountDistinct Operation = "countdistinct"
	Sum           Operation = "sum"
	Min           Operation = "min"
	Max           Operation = "max"
)

// ParseOperation parses an operation name case-insensitively.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(s))); op {
	case Count, CountDistinct, Sum, Min, Max:
		return op, nil
	case "count_distinct":
		return CountDistinct, nil
	default:
		return "", fmt.Errorf("unknown aggregation operation %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON and YAML.
func (o *Operation) UnmarshalText(text []byte) error {
	op, err := ParseOperation(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// GroupSpec is a plain group-by.
type GroupSpec struct {
	FieldNames []string           `json:"field_names" yaml:"field_names"`
	Search     *filter.SearchSpec `json:"search,omitempty" yaml:"search,omitempty"`
}

// Spec is a group-by with an aggregation over one field.
type Spec struct {
	GroupByFieldNames          []string           `json:"group_by_field_names" yaml:"group_by_field_names"`
	AggregationFieldName       string             `json:"aggregation_field_name" yaml:"aggregation_field_name"`
	AggregationResultFieldName string             `json:"aggregation_result_field_name" yaml:"aggregation_result_field_name"`
	AggregationOperation       Operation          `json:"aggregation_operation" yaml:"aggregation_operation"`
	Search                     *filter.SearchSpec `json:"search,omitempty" yaml:"search,omitempty"`
}

// PairSpec asks for one aggregated value per distinct key combination.
// Keys are enumerated over the unfiltered input; Search then narrows the
// rows aggregated for each key. Pagination orders and pages the keys.
type PairSpec struct {
	GroupByFieldNames    []string           `json:"group_by_field_names" yaml:"group_by_field_names"`
	AggregationFieldName string             `json:"aggregation_field_name,omitempty" yaml:"aggregation_field_name,omitempty"`
	AggregationOperation Operation          `json:"aggregation_operation" yaml:"aggregation_operation"`
	Search               *filter.SearchSpec `json:"search,omitempty" yaml:"search,omitempty"`
	Pagination           *paginate.Spec     `json:"pagination,omitempty" yaml:"pagination,omitempty"`
}

// KeyValue is one component of a group key.
type KeyValue struct {
	KeyName  string
	KeyValue value.Value
}

// GroupValuePair is a group key with its aggregated value.
type GroupValuePair struct {
	Keys  []KeyValue
	Value value.Value
}

// Map returns the pair in its JSON output form.
func (p GroupValuePair) Map() map[string]any {
	keys := make([]any, len(p.Keys))
	for i, k := range p.Keys {
		keys[i] = map[string]any{"key_name": k.KeyName, "key_value": value.Native(k.KeyValue)}
	}
	return map[string]any{"keys": keys, "value": value.Native(p.Value)}
}
