package store

import (
	"errors"
	"strings"
	"sync"

	"github.com/shrek82/simplejorm/dialect"
	"github.com/shrek82/simplejorm/query"
)

// ErrNoTable is returned when a statement has no table to read from.
var ErrNoTable = errors.New("store: statement has no table")

// Builder renders a query.Spec into a SELECT or COUNT statement for one
// dialect. Conditions are wrapped in parentheses and joined in the order
// they were added.
type Builder struct {
	dialect dialect.Dialect
	sb      strings.Builder
	where   strings.Builder
	args    []any
}

var builderPool = sync.Pool{
	New: func() any {
		return &Builder{}
	},
}

// NewBuilder takes a Builder from the pool. Return it with PutBuilder.
func NewBuilder(d dialect.Dialect) *Builder {
	b := builderPool.Get().(*Builder)
	b.Reset(d)
	return b
}

// PutBuilder returns a Builder to the pool for reuse.
func PutBuilder(b *Builder) {
	b.Reset(nil)
	builderPool.Put(b)
}

// Reset clears all builder state and prepares it for a new statement with the given dialect.
func (b *Builder) Reset(d dialect.Dialect) {
	b.dialect = d
	b.sb.Reset()
	b.where.Reset()
	b.args = b.args[:0]
}

// BuildSelect renders the SELECT statement for spec and its arguments.
func (b *Builder) BuildSelect(spec query.Spec) (string, []any, error) {
	if spec.Table() == "" {
		return "", nil, ErrNoTable
	}
	b.sb.Reset()
	b.args = b.args[:0]

	b.sb.WriteString("SELECT ")
	cols := spec.Columns()
	if len(cols) == 0 {
		b.sb.WriteString("*")
	}
	for i, col := range cols {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString(dialect.QuoteColumn(b.dialect, col))
	}

	b.sb.WriteString(" FROM ")
	b.sb.WriteString(b.dialect.Quote(spec.Table()))
	b.writeWhere(spec.Predicates())

	orders := spec.Orders()
	if len(orders) > 0 {
		b.sb.WriteString(" ORDER BY ")
		for i, o := range orders {
			if i > 0 {
				b.sb.WriteString(", ")
			}
			b.sb.WriteString(b.orderTerm(o))
		}
	}

	limit, hasLimit := spec.LimitValue()
	offset, hasOffset := spec.OffsetValue()
	window, windowArgs := b.dialect.Window(limit, offset, hasLimit, hasOffset, len(orders) > 0)
	b.sb.WriteString(window)
	b.args = append(b.args, windowArgs...)

	return b.replacePlaceholders(b.sb.String()), b.takeArgs(), nil
}

// BuildCount renders "SELECT COUNT(*)" over the predicates of spec.
// Columns, ordering and the row window are ignored.
func (b *Builder) BuildCount(spec query.Spec) (string, []any, error) {
	if spec.Table() == "" {
		return "", nil, ErrNoTable
	}
	b.sb.Reset()
	b.args = b.args[:0]

	b.sb.WriteString("SELECT COUNT(*) FROM ")
	b.sb.WriteString(b.dialect.Quote(spec.Table()))
	b.writeWhere(spec.Predicates())

	return b.replacePlaceholders(b.sb.String()), b.takeArgs(), nil
}

func (b *Builder) takeArgs() []any {
	if len(b.args) == 0 {
		return nil
	}
	return append([]any(nil), b.args...)
}

func (b *Builder) writeWhere(preds []query.Predicate) {
	b.where.Reset()
	for _, p := range preds {
		cond, args := b.condition(p)
		if cond == "" {
			continue
		}
		if b.where.Len() > 0 {
			if p.Or {
				b.where.WriteString(" OR ")
			} else {
				b.where.WriteString(" AND ")
			}
		}
		b.where.WriteString("(")
		b.where.WriteString(cond)
		b.where.WriteString(")")
		b.args = append(b.args, args...)
	}
	if b.where.Len() > 0 {
		b.sb.WriteString(" WHERE ")
		b.sb.WriteString(b.where.String())
	}
}

func (b *Builder) condition(p query.Predicate) (string, []any) {
	col := dialect.QuoteColumn(b.dialect, p.Column)
	switch p.Op {
	case query.OpRaw:
		return strings.TrimSpace(p.Raw), p.Args
	case query.OpIsNull, query.OpNotNull:
		return col + " " + p.Op.String(), nil
	case query.OpEq, query.OpNe:
		if p.Value == nil {
			if p.Op == query.OpEq {
				return col + " IS NULL", nil
			}
			return col + " IS NOT NULL", nil
		}
	case query.OpIn:
		values, _ := p.Value.([]any)
		if len(values) == 0 {
			return "1 = 0", nil
		}
		placeholders := make([]string, len(values))
		for i := range values {
			placeholders[i] = "?"
		}
		return col + " IN (" + strings.Join(placeholders, ", ") + ")", values
	}
	return col + " " + p.Op.String() + " ?", []any{p.Value}
}

// orderTerm quotes the column of "name", "name ASC" or "name DESC".
// Anything else is passed through.
func (b *Builder) orderTerm(o string) string {
	o = strings.TrimSpace(o)
	fields := strings.Fields(o)
	switch len(fields) {
	case 1:
		return dialect.QuoteColumn(b.dialect, fields[0])
	case 2:
		dir := strings.ToUpper(fields[1])
		if dir == "ASC" || dir == "DESC" {
			return dialect.QuoteColumn(b.dialect, fields[0]) + " " + dir
		}
	}
	return o
}

// replacePlaceholders rewrites each '?' bind marker into the dialect's
// placeholder. A '?' inside a quoted literal or identifier is text and
// is left alone; a doubled quote inside a literal toggles twice and so
// stays inside it.
func (b *Builder) replacePlaceholders(sql string) string {
	if !strings.Contains(sql, "?") {
		return sql
	}

	// sql came from b.sb, so it is safe to reuse it here.
	b.sb.Reset()

	index := 1
	var quote byte
	start := 0
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '?':
			b.sb.WriteString(sql[start:i])
			b.sb.WriteString(b.dialect.Placeholder(index))
			start = i + 1
			index++
		}
	}
	b.sb.WriteString(sql[start:])
	return b.sb.String()
}
