package dialect

import "strings"

// SQLite dialect implementation
type sqlite3 struct{}

func init() {
	Register("sqlite3", &sqlite3{})
	Register("sqlite", &sqlite3{})
}

func (d *sqlite3) Name() string { return "sqlite3" }

func (d *sqlite3) Quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *sqlite3) Placeholder(index int) string {
	return "?"
}

func (d *sqlite3) Window(limit, offset int, hasLimit, hasOffset, ordered bool) (string, []any) {
	switch {
	case hasLimit && hasOffset:
		return " LIMIT ? OFFSET ?", []any{limit, offset}
	case hasLimit:
		return " LIMIT ?", []any{limit}
	case hasOffset:
		// SQLite only accepts OFFSET after a LIMIT; -1 means no limit.
		return " LIMIT -1 OFFSET ?", []any{offset}
	}
	return "", nil
}
