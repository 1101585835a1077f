package dialect

import (
	"fmt"
	"strings"
)

type sqlserver struct{}

func init() {
	Register("sqlserver", &sqlserver{})
	Register("mssql", &sqlserver{})
}

func (d *sqlserver) Name() string { return "sqlserver" }

func (d *sqlserver) Quote(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *sqlserver) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index)
}

// Window uses OFFSET ... FETCH, which SQL Server only allows after an
// ORDER BY.
func (d *sqlserver) Window(limit, offset int, hasLimit, hasOffset, ordered bool) (string, []any) {
	if !hasLimit && !hasOffset {
		return "", nil
	}
	var sb strings.Builder
	if !ordered {
		sb.WriteString(" ORDER BY (SELECT NULL)")
	}
	sb.WriteString(" OFFSET ? ROWS")
	args := []any{offset}
	if hasLimit {
		sb.WriteString(" FETCH NEXT ? ROWS ONLY")
		args = append(args, limit)
	}
	return sb.String(), args
}
