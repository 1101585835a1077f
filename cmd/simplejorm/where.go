package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shrek82/simplejorm/query"
)

var whereRegex = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_.]*)\s*(<=|>=|<>|!=|=|<|>|~|\s(?i:in|like|is null|is not null)\b)\s*(.*)$`)

// parseWhere turns "age>=18", "name~al%", "id in 1,2,3" or
// "deleted_at is null" into a predicate. Values that look like integers
// or floats are passed as numbers and "null" as nil.
func parseWhere(expr string) (query.Predicate, error) {
	m := whereRegex.FindStringSubmatch(expr)
	if m == nil {
		return query.Predicate{}, fmt.Errorf("invalid --where %q", expr)
	}
	column, sym, raw := m[1], strings.ToUpper(strings.TrimSpace(m[2])), strings.TrimSpace(m[3])

	switch sym {
	case "~":
		return query.Cmp(column, query.OpLike, raw), nil
	case "IS NULL":
		return query.Cmp(column, query.OpIsNull, nil), nil
	case "IS NOT NULL":
		return query.Cmp(column, query.OpNotNull, nil), nil
	case "IN":
		parts := strings.Split(raw, ",")
		values := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, parseValue(p))
			}
		}
		return query.In(column, values), nil
	}

	op, ok := query.ParseOp(sym)
	if !ok {
		return query.Predicate{}, fmt.Errorf("invalid operator %q in --where %q", sym, expr)
	}
	return query.Cmp(column, op, parseValue(raw)), nil
}

func parseValue(s string) any {
	if strings.EqualFold(s, "null") {
		return nil
	}
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
