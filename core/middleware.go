package core

import (
	"context"
	"fmt"

	"github.com/shrek82/simplejorm/record"
	"github.com/shrek82/simplejorm/store"
)

// Component is the base interface for all simplejorm components/middleware.
type Component interface {
	Name() string
	Init(db *DB) error
	Shutdown() error
}

// OpKind tells a middleware whether an operation fetches rows or counts them.
type OpKind int

const (
	OpSelect OpKind = iota
	OpCount
)

func (k OpKind) String() string {
	if k == OpCount {
		return "count"
	}
	return "select"
}

// Operation is one statement sent to the store. Relation is set for the
// queries that load a relation. Every operation of a single top-level call
// carries the same QueryID.
type Operation struct {
	Kind     OpKind
	Entity   string
	Relation string
	QueryID  string
	Stmt     *store.Statement
}

// Key identifies the operation by what it reads, for caching.
func (op *Operation) Key() string {
	return fmt.Sprintf("%s:%s:%s", op.Kind, op.Entity, op.Stmt.Spec.Key())
}

// Result represents the result of a single store operation.
type Result struct {
	Records []*record.Record
	Count   int64
	Cached  bool
}

// QueryFunc is the function type for the next step in the middleware chain.
type QueryFunc func(ctx context.Context, op *Operation) (*Result, error)

// QueryMiddleware is the interface for query interceptors.
type QueryMiddleware interface {
	Component
	Process(ctx context.Context, op *Operation, next QueryFunc) (*Result, error)
}

// chain wraps final with mws so that mws[0] runs first.
func chain(mws []QueryMiddleware, final QueryFunc) QueryFunc {
	next := final
	for i := len(mws) - 1; i >= 0; i-- {
		mw, inner := mws[i], next
		next = func(ctx context.Context, op *Operation) (*Result, error) {
			return mw.Process(ctx, op, inner)
		}
	}
	return next
}
