package core

import (
	"context"

	"github.com/shrek82/simplejorm/model"
	"github.com/shrek82/simplejorm/query"
	"github.com/shrek82/simplejorm/record"
)

// stitcher loads one relation for a set of parent records and attaches
// the related records under the relation name. Parents keep their order
// and their own columns; only the relation slot is written.
type stitcher struct {
	q     *Query
	qid   string
	rel   *model.Relation
	eager query.Eager

	// used tracks related records already attached to a parent. A record
	// that matches several parents is cloned for every further parent.
	used map[*record.Record]struct{}
}

func (s *stitcher) stitch(ctx context.Context, parents []*record.Record) error {
	s.initSlots(parents)
	if len(parents) == 0 {
		return nil
	}

	keys := newKeySet(len(parents))
	for _, p := range parents {
		keys.add(p.Value(s.rel.LocalKey))
	}
	if keys.len() == 0 {
		return nil
	}

	var (
		groups map[string][]*record.Record
		err    error
	)
	if s.rel.Kind == model.RelationManyToMany {
		groups, err = s.loadThroughPivot(ctx, keys.values)
	} else {
		groups, err = s.loadDirect(ctx, keys.values)
	}
	if err != nil {
		return err
	}

	s.used = make(map[*record.Record]struct{})
	for _, p := range parents {
		k, ok := keyOf(p.Value(s.rel.LocalKey))
		if !ok {
			continue
		}
		group := groups[k]
		if len(group) == 0 {
			continue
		}
		if s.rel.Kind.ToMany() {
			attached := make([]*record.Record, len(group))
			for i, r := range group {
				attached[i] = s.take(r)
			}
			p.Set(s.rel.Name, attached)
		} else {
			p.Set(s.rel.Name, s.take(group[0]))
		}
	}
	return nil
}

// initSlots gives every parent the relation key before anything is loaded.
func (s *stitcher) initSlots(parents []*record.Record) {
	for _, p := range parents {
		if s.rel.Kind.ToMany() {
			p.Set(s.rel.Name, []*record.Record{})
		} else {
			p.Set(s.rel.Name, (*record.Record)(nil))
		}
	}
}

func (s *stitcher) take(r *record.Record) *record.Record {
	if _, ok := s.used[r]; ok {
		return r.Clone()
	}
	s.used[r] = struct{}{}
	return r
}

// relatedSpec is the query on the related table for keys, refined by the
// caller's constraints.
func (s *stitcher) relatedSpec(keys []any) query.Spec {
	return s.eager.Apply(query.New(s.rel.Table).WhereIn(s.rel.ForeignKey, keys))
}

// loadDirect covers has_many, has_one and belongs_to, which all match
// parent.LocalKey against related.ForeignKey. Groups keep the order of the
// related query.
func (s *stitcher) loadDirect(ctx context.Context, keys []any) (map[string][]*record.Record, error) {
	related, err := s.q.fetch(ctx, s.qid, s.rel.Name, s.rel.Table, s.relatedSpec(keys))
	if err != nil {
		return nil, err
	}
	groups := make(map[string][]*record.Record)
	for _, r := range related {
		k, ok := keyOf(r.Value(s.rel.ForeignKey))
		if !ok {
			continue
		}
		groups[k] = append(groups[k], r)
	}
	return groups, nil
}

// loadThroughPivot resolves parent keys to related keys with the join
// table first, then loads the related rows and groups them per parent key
// in the order the related query returned them.
func (s *stitcher) loadThroughPivot(ctx context.Context, keys []any) (map[string][]*record.Record, error) {
	pivotSpec := query.New(s.rel.JoinTable).
		Select(s.rel.JoinFK, s.rel.JoinRef).
		WhereIn(s.rel.JoinFK, keys)
	pivots, err := s.q.fetch(ctx, s.qid, s.rel.Name, s.rel.JoinTable, pivotSpec)
	if err != nil {
		return nil, err
	}

	refs := newKeySet(len(pivots))
	owners := make(map[string][]string)
	linked := make(map[[2]string]struct{})
	for _, pv := range pivots {
		parentKey, ok := keyOf(pv.Value(s.rel.JoinFK))
		if !ok {
			continue
		}
		ref := pv.Value(s.rel.JoinRef)
		refKey, ok := keyOf(ref)
		if !ok {
			continue
		}
		link := [2]string{parentKey, refKey}
		if _, dup := linked[link]; dup {
			continue
		}
		linked[link] = struct{}{}
		owners[refKey] = append(owners[refKey], parentKey)
		refs.add(ref)
	}

	groups := make(map[string][]*record.Record)
	if refs.len() == 0 {
		return groups, nil
	}

	related, err := s.q.fetch(ctx, s.qid, s.rel.Name, s.rel.Table, s.relatedSpec(refs.values))
	if err != nil {
		return nil, err
	}
	for _, r := range related {
		refKey, ok := keyOf(r.Value(s.rel.ForeignKey))
		if !ok {
			continue
		}
		for _, parentKey := range owners[refKey] {
			groups[parentKey] = append(groups[parentKey], r)
		}
	}
	return groups, nil
}
