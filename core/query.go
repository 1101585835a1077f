package core

import (
	"context"

	"github.com/shrek82/simplejorm/model"
	"github.com/shrek82/simplejorm/query"
	"github.com/shrek82/simplejorm/record"
)

// Query is an immutable query on one entity. Builder methods return a new
// Query and leave the receiver untouched, so a Query can be shared and
// refined from several goroutines.
type Query struct {
	db    *DB
	model *model.Model
	spec  query.Spec
	ctx   context.Context
	err   error
}

func newQuery(db *DB, m *model.Model) *Query {
	q := &Query{db: db, model: m, ctx: context.Background()}
	if m != nil {
		q.spec = query.New(m.Table)
	}
	return q
}

func (q *Query) with(fn func(query.Spec) query.Spec) *Query {
	n := *q
	if n.err == nil {
		n.spec = fn(n.spec)
	}
	return &n
}

// Model returns the entity metadata the query runs against.
func (q *Query) Model() *model.Model { return q.model }

// Spec returns the current query description.
func (q *Query) Spec() query.Spec { return q.spec }

// Err returns the error recorded while building the query, if any.
func (q *Query) Err() error { return q.err }

// WithContext sets the context for the query execution.
func (q *Query) WithContext(ctx context.Context) *Query {
	n := *q
	n.ctx = ctx
	return &n
}

// WithSpec replaces the query description. The table of spec wins over
// the entity table when set.
func (q *Query) WithSpec(spec query.Spec) *Query {
	return q.with(func(query.Spec) query.Spec {
		if spec.Table() == "" {
			return spec.From(q.model.Table)
		}
		return spec
	})
}

// Apply runs constraint over the query description.
func (q *Query) Apply(c query.Constraint) *Query {
	return q.with(func(s query.Spec) query.Spec { return c(s) })
}

// Select restricts the returned columns.
func (q *Query) Select(columns ...string) *Query {
	return q.with(func(s query.Spec) query.Spec { return s.Select(columns...) })
}

// Where adds a raw AND condition, e.g. Where("age > ?", 18).
func (q *Query) Where(cond string, args ...any) *Query {
	return q.with(func(s query.Spec) query.Spec { return s.Where(cond, args...) })
}

// OrWhere adds a raw OR condition.
func (q *Query) OrWhere(cond string, args ...any) *Query {
	return q.with(func(s query.Spec) query.Spec { return s.OrWhere(cond, args...) })
}

// WhereEq adds "column = value".
func (q *Query) WhereEq(column string, value any) *Query {
	return q.with(func(s query.Spec) query.Spec { return s.WhereEq(column, value) })
}

// WhereIn adds "column IN (values...)". values may be any slice.
func (q *Query) WhereIn(column string, values any) *Query {
	return q.with(func(s query.Spec) query.Spec { return s.WhereIn(column, values) })
}

// Filter adds predicates.
func (q *Query) Filter(ps ...query.Predicate) *Query {
	return q.with(func(s query.Spec) query.Spec { return s.Filter(ps...) })
}

// OrderBy adds an ORDER BY clause.
func (q *Query) OrderBy(columns ...string) *Query {
	return q.with(func(s query.Spec) query.Spec { return s.OrderBy(columns...) })
}

// Limit sets the LIMIT clause.
func (q *Query) Limit(n int) *Query {
	return q.with(func(s query.Spec) query.Spec { return s.Limit(n) })
}

// Offset sets the OFFSET clause.
func (q *Query) Offset(n int) *Query {
	return q.with(func(s query.Spec) query.Spec { return s.Offset(n) })
}

// With eager loads the named relation. Constraints refine the related query.
func (q *Query) With(name string, constraints ...query.Constraint) *Query {
	return q.with(func(s query.Spec) query.Spec { return s.With(name, constraints...) })
}

// Without drops eager loads added earlier.
func (q *Query) Without(names ...string) *Query {
	return q.with(func(s query.Spec) query.Spec { return s.Without(names...) })
}

// Get runs the query and returns every matching record with its relations.
func (q *Query) Get() ([]*record.Record, error) {
	if q.err != nil {
		return nil, q.err
	}
	ctx, qid := ensureQueryID(q.ctx)
	return q.materialize(ctx, qid, q.spec)
}

// First returns the first matching record, or nil when there is none.
func (q *Query) First() (*record.Record, error) {
	if q.err != nil {
		return nil, q.err
	}
	ctx, qid := ensureQueryID(q.ctx)
	rows, err := q.materialize(ctx, qid, q.spec.Limit(1))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// FirstOrFail is First that fails with a NotFoundError when nothing matches.
func (q *Query) FirstOrFail() (*record.Record, error) {
	r, err := q.First()
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, &NotFoundError{Entity: q.model.Name}
	}
	return r, nil
}

// Count returns the number of records matching the query. Columns,
// ordering, the row window and eager loads are ignored.
func (q *Query) Count() (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	ctx, qid := ensureQueryID(q.ctx)
	return q.count(ctx, qid, q.spec)
}

func (q *Query) count(ctx context.Context, qid string, spec query.Spec) (int64, error) {
	res, err := q.db.handler()(ctx, q.operation(OpCount, qid, "", q.model.Name, spec.ForCount()))
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}
