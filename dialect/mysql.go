package dialect

import "strings"

// MySQL dialect implementation
type mysql struct{}

func init() {
	Register("mysql", &mysql{})
}

func (d *mysql) Name() string { return "mysql" }

func (d *mysql) Quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *mysql) Placeholder(index int) string {
	return "?"
}

func (d *mysql) Window(limit, offset int, hasLimit, hasOffset, ordered bool) (string, []any) {
	switch {
	case hasLimit && hasOffset:
		return " LIMIT ? OFFSET ?", []any{limit, offset}
	case hasLimit:
		return " LIMIT ?", []any{limit}
	case hasOffset:
		return " LIMIT 18446744073709551615 OFFSET ?", []any{offset}
	}
	return "", nil
}
