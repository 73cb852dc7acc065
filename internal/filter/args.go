package filter

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/roach88/dynq/internal/coerce"
	"github.com/roach88/dynq/internal/qerr"
	"github.com/roach88/dynq/internal/queryir"
	"github.com/roach88/dynq/internal/resolve"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

// Argument keys with special meaning in CompileArgs.
const (
	ArgSearch     = "search"
	ArgPagination = "pagination"
)

// CompileArgs compiles a resolver-style argument map. The "search" entry is
// a SearchSpec (a value, a pointer, or a decoded JSON object); "pagination"
// is ignored; every other entry is an equality test on the field it names.
// All parts are joined with AND. Equality entries are applied in sorted key
// order so the compiled expression is deterministic.
func CompileArgs(rt *schema.RecordType, args map[string]any) (*Predicate, error) {
	var spec *SearchSpec
	var keys []string
	for k, v := range args {
		switch k {
		case ArgSearch:
			s, err := searchArg(v)
			if err != nil {
				return nil, err
			}
			spec = s
		case ArgPagination:
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pred, err := Compile(rt, spec)
	if err != nil {
		return nil, err
	}

	expr := pred.Expr
	for _, k := range keys {
		rf, err := resolve.Resolve(rt, k)
		if err != nil {
			return nil, err
		}
		lit, err := literal(args[k], rf)
		if err != nil {
			return nil, err
		}
		ref := queryir.FieldRef{Name: rf.Field.Name, Index: rf.Index, Type: rf.Field.Type}
		expr = queryir.Combine(false, expr, queryir.Compare{Field: ref, Op: queryir.OpEq, Value: lit})
	}
	return &Predicate{Record: rt, Expr: expr}, nil
}

func searchArg(v any) (*SearchSpec, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case *SearchSpec:
		return s, nil
	case SearchSpec:
		return &s, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, qerr.NewInvalidSpec("search argument: %v", err)
		}
		var spec SearchSpec
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, qerr.NewInvalidSpec("search argument: %v", err)
		}
		return &spec, nil
	}
}

func literal(raw any, rf resolve.ResolvedField) (value.Value, error) {
	if s, ok := raw.(string); ok {
		return coerce.Coerce(s, rf.Field)
	}
	v, err := coerce.Native(raw, rf.Field.Type)
	if err != nil {
		return nil, qerr.NewCoercion(rf.Name, fmt.Sprint(raw), rf.Field.Type.Name(), err)
	}
	return v, nil
}

// WithIDs restricts p to rows whose idField holds one of ids. The id test
// comes first, followed by p's own expression.
func WithIDs(p *Predicate, idField string, ids []any) (*Predicate, error) {
	rf, err := resolve.Resolve(p.Record, idField)
	if err != nil {
		return nil, err
	}
	values := make(value.List, 0, len(ids))
	for _, id := range ids {
		v, err := literal(id, rf)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	ref := queryir.FieldRef{Name: rf.Field.Name, Index: rf.Index, Type: rf.Field.Type}
	expr := queryir.Combine(false, queryir.In{Field: ref, Values: values}, p.Expr)
	return &Predicate{Record: p.Record, Expr: expr}, nil
}
