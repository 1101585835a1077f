// Package query holds the immutable description of a read query.
//
// A Spec is a value. Every builder method returns a new Spec and never
// touches the receiver, so a base Spec can be shared and refined freely.
package query

import (
	"fmt"
	"reflect"
	"strings"
)

// Constraint refines the Spec used to load a relation.
type Constraint func(Spec) Spec

// Eager names a relation to load alongside the main result.
type Eager struct {
	Name        string
	Constraints []Constraint
}

// Apply runs the eager constraints over s in order.
func (e Eager) Apply(s Spec) Spec {
	for _, c := range e.Constraints {
		if c != nil {
			s = c(s)
		}
	}
	return s
}

// Spec describes what to read: table, columns, predicates, ordering,
// window and relations to eager load.
type Spec struct {
	table      string
	columns    []string
	predicates []Predicate
	orders     []string
	limitSet   bool
	limit      int
	offsetSet  bool
	offset     int
	eager      []Eager
}

// New creates a Spec reading from table.
func New(table string) Spec {
	return Spec{table: table}
}

func (s Spec) Table() string { return s.table }

func (s Spec) Columns() []string { return append([]string(nil), s.columns...) }

func (s Spec) Predicates() []Predicate {
	out := make([]Predicate, len(s.predicates))
	for i, p := range s.predicates {
		out[i] = p.clone()
	}
	return out
}

func (s Spec) Orders() []string { return append([]string(nil), s.orders...) }

// LimitValue returns the row limit and whether one is set.
func (s Spec) LimitValue() (int, bool) { return s.limit, s.limitSet }

// OffsetValue returns the row offset and whether one is set.
func (s Spec) OffsetValue() (int, bool) { return s.offset, s.offsetSet }

func (s Spec) Eager() []Eager { return append([]Eager(nil), s.eager...) }

// HasOrder reports whether any ORDER BY column is set.
func (s Spec) HasOrder() bool { return len(s.orders) > 0 }

func (s Spec) copy() Spec {
	n := s
	n.columns = append([]string(nil), s.columns...)
	n.predicates = append([]Predicate(nil), s.predicates...)
	n.orders = append([]string(nil), s.orders...)
	n.eager = append([]Eager(nil), s.eager...)
	return n
}

// From returns a copy reading from another table.
func (s Spec) From(table string) Spec {
	n := s.copy()
	n.table = table
	return n
}

// Select appends columns to retrieve. No columns means all of them.
func (s Spec) Select(columns ...string) Spec {
	n := s.copy()
	n.columns = append(n.columns, columns...)
	return n
}

// Filter appends predicates joined with AND, or OR for those marked so.
func (s Spec) Filter(ps ...Predicate) Spec {
	n := s.copy()
	for _, p := range ps {
		n.predicates = append(n.predicates, p.clone())
	}
	return n
}

// Where appends a raw AND condition.
func (s Spec) Where(cond string, args ...any) Spec {
	if cond == "" {
		return s.copy()
	}
	return s.Filter(Raw(cond, args...))
}

// OrWhere appends a raw OR condition.
func (s Spec) OrWhere(cond string, args ...any) Spec {
	if cond == "" {
		return s.copy()
	}
	p := Raw(cond, args...)
	p.Or = true
	return s.Filter(p)
}

// WhereEq appends "column = value".
func (s Spec) WhereEq(column string, value any) Spec {
	return s.Filter(Eq(column, value))
}

// WhereIn appends "column IN (values)". values may be any slice or array.
func (s Spec) WhereIn(column string, values any) Spec {
	return s.Filter(In(column, toSlice(values)))
}

// OrderBy appends ORDER BY columns such as "id DESC".
func (s Spec) OrderBy(columns ...string) Spec {
	n := s.copy()
	n.orders = append(n.orders, columns...)
	return n
}

// Limit sets the maximum number of rows.
func (s Spec) Limit(limit int) Spec {
	n := s.copy()
	n.limitSet = true
	n.limit = limit
	return n
}

// Offset sets the number of rows to skip.
func (s Spec) Offset(offset int) Spec {
	n := s.copy()
	n.offsetSet = true
	n.offset = offset
	return n
}

// ForPage sets the window for a 1-based page of perPage rows.
func (s Spec) ForPage(page, perPage int) Spec {
	if page < 1 {
		page = 1
	}
	return s.Offset((page - 1) * perPage).Limit(perPage)
}

// With appends a relation to eager load. Constraints refine the relation
// query.
func (s Spec) With(name string, constraints ...Constraint) Spec {
	n := s.copy()
	for i, e := range n.eager {
		if e.Name == name {
			n.eager[i] = Eager{
				Name:        name,
				Constraints: append(append([]Constraint(nil), e.Constraints...), constraints...),
			}
			return n
		}
	}
	n.eager = append(n.eager, Eager{Name: name, Constraints: constraints})
	return n
}

// Without drops relations from the eager list.
func (s Spec) Without(names ...string) Spec {
	n := s.copy()
	n.eager = n.eager[:0]
	for _, e := range s.eager {
		drop := false
		for _, name := range names {
			if e.Name == name {
				drop = true
				break
			}
		}
		if !drop {
			n.eager = append(n.eager, e)
		}
	}
	return n
}

// Unbounded drops limit and offset.
func (s Spec) Unbounded() Spec {
	n := s.copy()
	n.limitSet, n.limit = false, 0
	n.offsetSet, n.offset = false, 0
	return n
}

// ForCount keeps only what affects the number of matching rows: table and
// predicates.
func (s Spec) ForCount() Spec {
	n := s.Unbounded()
	n.columns = nil
	n.orders = nil
	n.eager = nil
	return n
}

// String describes the Spec with everything that reaches the store.
// Eager relations are not part of it.
func (s Spec) String() string {
	var sb strings.Builder
	sb.WriteString("table=")
	sb.WriteString(s.table)
	if len(s.columns) > 0 {
		sb.WriteString(" columns=")
		sb.WriteString(strings.Join(s.columns, ","))
	}
	for _, p := range s.predicates {
		sb.WriteString(" ")
		sb.WriteString(p.String())
	}
	if len(s.orders) > 0 {
		sb.WriteString(" order=")
		sb.WriteString(strings.Join(s.orders, ","))
	}
	if s.limitSet {
		fmt.Fprintf(&sb, " limit=%d", s.limit)
	}
	if s.offsetSet {
		fmt.Fprintf(&sb, " offset=%d", s.offset)
	}
	return sb.String()
}

func toSlice(values any) []any {
	if vs, ok := values.([]any); ok {
		return append([]any(nil), vs...)
	}
	v := reflect.ValueOf(values)
	if !v.IsValid() {
		return nil
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return []any{values}
	}
	out := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = v.Index(i).Interface()
	}
	return out
}
