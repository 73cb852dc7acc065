// Package querysql compiles queryir selects to parameterized SQLite SQL.
//
// CRITICAL: every literal is bound as a ? parameter, never interpolated.
// CRITICAL: every query ends with a rowid tiebreaker so results are
// deterministic and match in-memory evaluation order.
//
// Every leaf compiles to an expression that yields 0 or 1, never NULL, so
// NOT and OR behave exactly like in-memory evaluation:
//
//	Compare =, !=   "f" IS ?, "f" IS NOT ?      (null-safe)
//	Compare <, ...  coalesce("f" < ?, 0)        (false on NULL)
//	In              coalesce("f" IN (?, ?), 0)  (empty list is 0)
//	Match           coalesce("f" GLOB ?, 0)     (case-sensitive)
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/dynq/internal/queryir"
	"github.com/roach88/dynq/internal/value"
)

// TimeLayout is the fixed-width text form of instants in SQLite, so that
// text order equals time order. Instants are always stored in UTC.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLCompiler compiles queryir selects to SQL for SQLite.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a select to parameterized SQL.
// Returns (sql, params, error).
func (c *SQLCompiler) Compile(q queryir.Select) (string, []any, error) {
	if q.From == "" {
		return "", nil, fmt.Errorf("select has no table")
	}

	where, params, err := c.compileWhere(q.Filter)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(c.compileColumns(q.Columns))
	b.WriteString(" FROM ")
	b.WriteString(QuoteIdent(q.From))
	b.WriteString(where)

	// MANDATORY: rowid tiebreaker after the requested keys.
	b.WriteString(" ORDER BY ")
	for _, k := range q.OrderBy {
		b.WriteString(QuoteIdent(k.Field.Name))
		if k.Desc {
			b.WriteString(" DESC, ")
		} else {
			b.WriteString(" ASC, ")
		}
	}
	b.WriteString("rowid ASC")

	switch {
	case q.Limit > 0:
		b.WriteString(" LIMIT ?")
		params = append(params, int64(q.Limit))
	case q.Offset > 0:
		// SQLite needs a LIMIT before OFFSET; -1 is unbounded.
		b.WriteString(" LIMIT -1")
	}
	if q.Offset > 0 {
		b.WriteString(" OFFSET ?")
		params = append(params, int64(q.Offset))
	}

	return b.String(), params, nil
}

// CompileCount converts a select to a row-count query. Ordering and paging
// are ignored.
func (c *SQLCompiler) CompileCount(q queryir.Select) (string, []any, error) {
	if q.From == "" {
		return "", nil, fmt.Errorf("select has no table")
	}
	where, params, err := c.compileWhere(q.Filter)
	if err != nil {
		return "", nil, err
	}
	return "SELECT count(*) FROM " + QuoteIdent(q.From) + where, params, nil
}

func (c *SQLCompiler) compileWhere(e queryir.Expr) (string, []any, error) {
	if e == nil {
		return "", nil, nil
	}
	if k, ok := e.(queryir.Const); ok && k.Value {
		return "", nil, nil
	}
	sql, params, err := c.compileExpr(e)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return " WHERE " + sql, params, nil
}

// compileColumns renders the select list. No columns selects all.
func (c *SQLCompiler) compileColumns(cols []string) string {
	if len(cols) == 0 {
		return "*"
	}
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = QuoteIdent(col)
	}
	return strings.Join(parts, ", ")
}

// compileExpr compiles an expression to a SQL fragment yielding 0 or 1.
func (c *SQLCompiler) compileExpr(e queryir.Expr) (string, []any, error) {
	switch ex := e.(type) {
	case nil:
		return "1", nil, nil
	case queryir.Const:
		if ex.Value {
			return "1", nil, nil
		}
		return "0", nil, nil
	case queryir.And:
		return c.compileJunction("AND", "1", ex.Terms)
	case queryir.Or:
		return c.compileJunction("OR", "0", ex.Terms)
	case queryir.Not:
		sql, params, err := c.compileExpr(ex.Expr)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
	case queryir.Compare:
		return c.compileCompare(ex)
	case queryir.In:
		return c.compileIn(ex)
	case queryir.Match:
		return c.compileMatch(ex)
	default:
		return "", nil, fmt.Errorf("unsupported expression type: %T", e)
	}
}

func (c *SQLCompiler) compileJunction(op, empty string, terms []queryir.Expr) (string, []any, error) {
	if len(terms) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, len(terms))
	var params []any
	for i, term := range terms {
		sql, p, err := c.compileExpr(term)
		if err != nil {
			return "", nil, err
		}
		parts[i] = sql
		params = append(params, p...)
	}
	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")", params, nil
}

func (c *SQLCompiler) compileCompare(cmp queryir.Compare) (string, []any, error) {
	param, err := Param(cmp.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %s: %w", cmp.Field.Name, err)
	}
	col := QuoteIdent(cmp.Field.Name)

	switch cmp.Op {
	case queryir.OpEq:
		return col + " IS ?", []any{param}, nil
	case queryir.OpNe:
		return col + " IS NOT ?", []any{param}, nil
	case queryir.OpGt, queryir.OpGe, queryir.OpLt, queryir.OpLe:
		if param == nil {
			return "0", nil, nil
		}
		return fmt.Sprintf("coalesce(%s %s ?, 0)", col, cmp.Op), []any{param}, nil
	default:
		return "", nil, fmt.Errorf("unsupported comparison %q", cmp.Op)
	}
}

func (c *SQLCompiler) compileIn(in queryir.In) (string, []any, error) {
	if len(in.Values) == 0 {
		return "0", nil, nil
	}
	marks := make([]string, len(in.Values))
	params := make([]any, len(in.Values))
	for i, v := range in.Values {
		p, err := Param(v)
		if err != nil {
			return "", nil, fmt.Errorf("field %s: %w", in.Field.Name, err)
		}
		marks[i] = "?"
		params[i] = p
	}
	return fmt.Sprintf("coalesce(%s IN (%s), 0)", QuoteIdent(in.Field.Name), strings.Join(marks, ", ")), params, nil
}

func (c *SQLCompiler) compileMatch(m queryir.Match) (string, []any, error) {
	pattern := EscapeGlob(m.Pattern)
	switch m.Mode {
	case queryir.MatchContains:
		pattern = "*" + pattern + "*"
	case queryir.MatchPrefix:
		pattern += "*"
	case queryir.MatchSuffix:
		pattern = "*" + pattern
	default:
		return "", nil, fmt.Errorf("unsupported match mode %q", m.Mode)
	}
	return fmt.Sprintf("coalesce(%s GLOB ?, 0)", QuoteIdent(m.Field.Name)), []any{pattern}, nil
}

// EscapeGlob escapes GLOB metacharacters so s matches literally.
func EscapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// QuoteIdent quotes a SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Param converts a scalar value to its SQL parameter form. Dates are
// DateLayout text and instants TimeLayout text in UTC.
func Param(v value.Value) (any, error) {
	switch val := v.(type) {
	case nil, value.Null:
		return nil, nil
	case value.Bool:
		return bool(val), nil
	case value.Int:
		return int64(val), nil
	case value.Float:
		return float64(val), nil
	case value.String:
		return string(val), nil
	case value.Date:
		return val.Format(value.DateLayout), nil
	case value.Time:
		return val.UTC().Format(TimeLayout), nil
	default:
		return nil, fmt.Errorf("%s value cannot be used as SQL parameter", v.Kind())
	}
}
