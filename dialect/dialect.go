package dialect

import (
	"strings"
	"sync"
)

// Dialect covers the database-specific parts of rendering a read
// statement: identifier quoting, placeholders and the row window.
type Dialect interface {
	// Name returns the driver name the dialect is registered under
	Name() string
	// Quote wraps a single identifier (table or column) in database-specific quotes
	Quote(name string) string
	// Placeholder returns the bind parameter for the 1-based argument index
	Placeholder(index int) string
	// Window renders the LIMIT/OFFSET clause using '?' for its arguments.
	// ordered reports whether the statement already has an ORDER BY.
	Window(limit, offset int, hasLimit, hasOffset, ordered bool) (string, []any)
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// Register registers a new dialect for a given driver name
func Register(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// Get retrieves a registered dialect by driver name
func Get(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}

// QuoteColumn quotes a possibly qualified column such as "users.id".
// "*" and expressions (anything with spaces or parentheses) are returned
// unchanged.
func QuoteColumn(d Dialect, name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == "*" || strings.ContainsAny(name, " ()`\"[") {
		return name
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p != "*" {
			parts[i] = d.Quote(p)
		}
	}
	return strings.Join(parts, ".")
}
