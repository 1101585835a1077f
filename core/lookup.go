package core

import (
	"reflect"

	"github.com/shrek82/simplejorm/record"
)

// Find returns the record whose primary key equals id, or nil.
func (q *Query) Find(id any) (*record.Record, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.WhereEq(q.model.PrimaryKey, id).First()
}

// FindOrFail is Find that fails with a NotFoundError carrying id.
func (q *Query) FindOrFail(id any) (*record.Record, error) {
	r, err := q.Find(id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, &NotFoundError{Entity: q.model.Name, Keys: []any{id}}
	}
	return r, nil
}

// FindMany returns the records whose primary key is in ids, which may be
// any slice. An empty ids returns an empty result without querying.
func (q *Query) FindMany(ids any) ([]*record.Record, error) {
	if q.err != nil {
		return nil, q.err
	}
	keys := toKeys(ids)
	if len(keys) == 0 {
		return make([]*record.Record, 0), nil
	}
	return q.WhereIn(q.model.PrimaryKey, keys).Get()
}

// FindManyOrFail is FindMany that fails with a NotFoundError when fewer
// records come back than there are distinct ids. The error lists the ids
// that were not found.
func (q *Query) FindManyOrFail(ids any) ([]*record.Record, error) {
	rows, err := q.FindMany(ids)
	if err != nil {
		return nil, err
	}

	keys := toKeys(ids)
	distinct := newKeySet(len(keys))
	nilKeys := 0
	for _, k := range keys {
		if _, ok := keyOf(k); !ok {
			nilKeys++
			continue
		}
		distinct.add(k)
	}
	if nilKeys > 0 {
		nilKeys = 1
	}
	if len(rows) == distinct.len()+nilKeys {
		return rows, nil
	}

	found := newKeySet(len(rows))
	for _, r := range rows {
		found.add(r.Value(q.model.PrimaryKey))
	}
	missing := make([]any, 0)
	for _, k := range distinct.values {
		if !found.has(k) {
			missing = append(missing, k)
		}
	}
	if nilKeys > 0 {
		missing = append(missing, nil)
	}
	if len(missing) == 0 {
		missing = keys
	}
	return nil, &NotFoundError{Entity: q.model.Name, Keys: missing}
}

func toKeys(ids any) []any {
	if vs, ok := ids.([]any); ok {
		return vs
	}
	v := reflect.ValueOf(ids)
	if !v.IsValid() {
		return nil
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return []any{ids}
	}
	out := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = v.Index(i).Interface()
	}
	return out
}
