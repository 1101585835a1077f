package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/shrek82/simplejorm/query"
	"github.com/shrek82/simplejorm/record"
	"github.com/shrek82/simplejorm/store"
)

func (q *Query) operation(kind OpKind, qid, relation, entity string, spec query.Spec) *Operation {
	stmt := store.NewStatement(entity, spec)
	stmt.QueryID = qid
	return &Operation{
		Kind:     kind,
		Entity:   entity,
		Relation: relation,
		QueryID:  qid,
		Stmt:     stmt,
	}
}

// materialize fetches the rows of spec and stitches its eager relations
// onto them.
func (q *Query) materialize(ctx context.Context, qid string, spec query.Spec) ([]*record.Record, error) {
	rows, err := q.fetch(ctx, qid, "", q.model.Name, spec)
	if err != nil {
		return nil, err
	}
	if err := q.stitchAll(ctx, qid, rows, spec.Eager()); err != nil {
		return nil, err
	}
	return rows, nil
}

// fetch runs one select through the middleware chain and decodes JSON
// columns of every returned record.
func (q *Query) fetch(ctx context.Context, qid, relation, entity string, spec query.Spec) ([]*record.Record, error) {
	res, err := q.db.handler()(ctx, q.operation(OpSelect, qid, relation, entity, spec))
	if err != nil {
		return nil, err
	}
	rows := res.Records
	if rows == nil {
		rows = make([]*record.Record, 0)
	}
	for _, r := range rows {
		record.DecodeJSONColumns(r)
	}
	return rows, nil
}

func (q *Query) stitchAll(ctx context.Context, qid string, rows []*record.Record, eager []query.Eager) error {
	for _, e := range eager {
		if strings.Contains(e.Name, ".") {
			// Nested paths are not loaded.
			q.db.Logger().Warn("skipping nested relation %s on %s", e.Name, q.model.Name)
			continue
		}
		rel, ok := q.model.Relation(e.Name)
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrRelationNotFound, q.model.Name, e.Name)
		}
		s := &stitcher{q: q, qid: qid, rel: rel, eager: e}
		if err := s.stitch(ctx, rows); err != nil {
			return err
		}
	}
	return nil
}
