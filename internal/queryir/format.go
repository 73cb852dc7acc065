package queryir

import (
	"strconv"
	"strings"

	"github.com/roach88/dynq/internal/value"
)

// Format renders e in a compact, deterministic infix form used by explain
// output and tests, for example:
//
//	(Name startswith "Jo" AND (Amt > 10 OR Amt IN [1, 2]))
func Format(e Expr) string {
	var b strings.Builder
	writeExpr(&b, e, true)
	return b.String()
}

func writeExpr(b *strings.Builder, e Expr, top bool) {
	switch ex := e.(type) {
	case nil:
		b.WriteString("TRUE")
	case Const:
		if ex.Value {
			b.WriteString("TRUE")
		} else {
			b.WriteString("FALSE")
		}
	case And:
		writeJunction(b, "AND", ex.Terms, "TRUE", top)
	case Or:
		writeJunction(b, "OR", ex.Terms, "FALSE", top)
	case Not:
		b.WriteString("NOT ")
		writeExpr(b, ex.Expr, false)
	case Compare:
		b.WriteString(ex.Field.Name)
		b.WriteByte(' ')
		b.WriteString(string(ex.Op))
		b.WriteByte(' ')
		writeLiteral(b, ex.Value)
	case In:
		b.WriteString(ex.Field.Name)
		b.WriteString(" IN [")
		for i, v := range ex.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			writeLiteral(b, v)
		}
		b.WriteByte(']')
	case Match:
		b.WriteString(ex.Field.Name)
		b.WriteByte(' ')
		b.WriteString(string(ex.Mode))
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(ex.Pattern))
	default:
		b.WriteString("?")
	}
}

func writeJunction(b *strings.Builder, op string, terms []Expr, empty string, top bool) {
	if len(terms) == 0 {
		b.WriteString(empty)
		return
	}
	if len(terms) == 1 {
		writeExpr(b, terms[0], top)
		return
	}
	b.WriteByte('(')
	for i, term := range terms {
		if i > 0 {
			b.WriteString(" " + op + " ")
		}
		writeExpr(b, term, false)
	}
	b.WriteByte(')')
}

func writeLiteral(b *strings.Builder, v value.Value) {
	switch val := v.(type) {
	case nil, value.Null:
		b.WriteString("NULL")
	case value.String:
		b.WriteString(strconv.Quote(string(val)))
	case value.Date, value.Time:
		b.WriteString(strconv.Quote(value.Format(val)))
	default:
		b.WriteString(value.Format(val))
	}
}
