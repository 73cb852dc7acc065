package queryir

import (
	"strings"

	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

// Eval evaluates e against row. A nil expression is true.
func Eval(e Expr, row schema.Row) bool {
	switch ex := e.(type) {
	case nil:
		return true
	case Const:
		return ex.Value
	case And:
		for _, term := range ex.Terms {
			if !Eval(term, row) {
				return false
			}
		}
		return true
	case Or:
		for _, term := range ex.Terms {
			if Eval(term, row) {
				return true
			}
		}
		return false
	case Not:
		return !Eval(ex.Expr, row)
	case Compare:
		return evalCompare(ex, row.At(ex.Field.Index))
	case In:
		return evalIn(ex, row.At(ex.Field.Index))
	case Match:
		return evalMatch(ex, row.At(ex.Field.Index))
	default:
		return false
	}
}

func evalCompare(c Compare, v value.Value) bool {
	switch c.Op {
	case OpEq:
		return value.Equal(v, c.Value)
	case OpNe:
		return !value.Equal(v, c.Value)
	}

	if value.IsNull(v) || value.IsNull(c.Value) {
		return false
	}
	cmp, ok := value.Compare(v, c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	default:
		return false
	}
}

func evalIn(in In, v value.Value) bool {
	if value.IsNull(v) {
		return false
	}
	for _, candidate := range in.Values {
		if value.Equal(v, candidate) {
			return true
		}
	}
	return false
}

func evalMatch(m Match, v value.Value) bool {
	s, ok := v.(value.String)
	if !ok {
		return false
	}
	switch m.Mode {
	case MatchContains:
		return strings.Contains(string(s), m.Pattern)
	case MatchPrefix:
		return strings.HasPrefix(string(s), m.Pattern)
	case MatchSuffix:
		return strings.HasSuffix(string(s), m.Pattern)
	default:
		return false
	}
}
