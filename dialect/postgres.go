package dialect

import (
	"fmt"

	"github.com/lib/pq"
)

// PostgreSQL dialect implementation
type postgres struct{}

func init() {
	Register("postgres", &postgres{})
	Register("pgx", &postgres{})
}

func (d *postgres) Name() string { return "postgres" }

func (d *postgres) Quote(name string) string {
	// PostgreSQL uses double quotes for identifiers
	return pq.QuoteIdentifier(name)
}

func (d *postgres) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *postgres) Window(limit, offset int, hasLimit, hasOffset, ordered bool) (string, []any) {
	var (
		clause string
		args   []any
	)
	if hasLimit {
		clause += " LIMIT ?"
		args = append(args, limit)
	}
	if hasOffset {
		clause += " OFFSET ?"
		args = append(args, offset)
	}
	return clause, args
}
