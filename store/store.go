// Package store is the backing store client: it turns a query.Spec into a
// statement, runs it and hands back rows as records.
package store

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shrek82/simplejorm/dialect"
	"github.com/shrek82/simplejorm/logger"
	"github.com/shrek82/simplejorm/pool"
	"github.com/shrek82/simplejorm/query"
	"github.com/shrek82/simplejorm/record"
)

// Statement is one read against the store. SQL and Args are filled in by
// the store when it renders Spec.
type Statement struct {
	Entity  string
	QueryID string
	Spec    query.Spec
	SQL     string
	Args    []any
}

// NewStatement creates an unrendered statement for spec.
func NewStatement(entity string, spec query.Spec) *Statement {
	return &Statement{Entity: entity, Spec: spec}
}

// Store runs statements. Implementations return their own errors
// unchanged.
type Store interface {
	Select(ctx context.Context, stmt *Statement) ([]*record.Record, error)
	Count(ctx context.Context, stmt *Statement) (int64, error)
}

// SQLStore is a Store over a database/sql pool.
type SQLStore struct {
	pool    pool.Pool
	dialect dialect.Dialect

	mu     sync.RWMutex
	logger logger.Logger
}

// NewSQLStore creates a store reading through p with dialect d. A nil
// logger discards SQL lines.
func NewSQLStore(p pool.Pool, d dialect.Dialect, l logger.Logger) *SQLStore {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &SQLStore{pool: p, dialect: d, logger: l}
}

func (s *SQLStore) Dialect() dialect.Dialect { return s.dialect }

// SetLogger swaps the logger. It is safe to call while queries run.
func (s *SQLStore) SetLogger(l logger.Logger) {
	s.mu.Lock()
	s.logger = l
	s.mu.Unlock()
}

// RenderSelect fills stmt.SQL and stmt.Args for a row fetch.
func (s *SQLStore) RenderSelect(stmt *Statement) error {
	b := NewBuilder(s.dialect)
	defer PutBuilder(b)
	sql, args, err := b.BuildSelect(stmt.Spec)
	if err != nil {
		return err
	}
	stmt.SQL, stmt.Args = sql, args
	return nil
}

// RenderCount fills stmt.SQL and stmt.Args for a row count.
func (s *SQLStore) RenderCount(stmt *Statement) error {
	b := NewBuilder(s.dialect)
	defer PutBuilder(b)
	sql, args, err := b.BuildCount(stmt.Spec)
	if err != nil {
		return err
	}
	stmt.SQL, stmt.Args = sql, args
	return nil
}

// Select runs stmt and scans every row into a record with the columns in
// result order.
func (s *SQLStore) Select(ctx context.Context, stmt *Statement) ([]*record.Record, error) {
	if err := s.RenderSelect(stmt); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.pool.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		s.logError(stmt, err)
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	kinds := make([]columnKind, len(columns))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			kinds[i] = kindOf(ct.DatabaseTypeName())
		}
	}

	out := make([]*record.Record, 0)
	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			s.logError(stmt, err)
			return nil, err
		}
		r := record.New(len(columns))
		for i, col := range columns {
			r.Set(col, normalize(values[i], kinds[i]))
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		s.logError(stmt, err)
		return nil, err
	}
	s.log(stmt).SQL(stmt.SQL, time.Since(start), stmt.Args...)
	return out, nil
}

// Count runs stmt as "SELECT COUNT(*)".
func (s *SQLStore) Count(ctx context.Context, stmt *Statement) (int64, error) {
	if err := s.RenderCount(stmt); err != nil {
		return 0, err
	}

	start := time.Now()
	rows, err := s.pool.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		s.logError(stmt, err)
		return 0, err
	}
	defer rows.Close()

	var total int64
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			s.logError(stmt, err)
			return 0, err
		}
	}
	if err := rows.Err(); err != nil {
		s.logError(stmt, err)
		return 0, err
	}
	s.log(stmt).SQL(stmt.SQL, time.Since(start), stmt.Args...)
	return total, nil
}

func (s *SQLStore) log(stmt *Statement) logger.Logger {
	s.mu.RLock()
	l := s.logger
	s.mu.RUnlock()
	if stmt.QueryID == "" {
		return l
	}
	return l.WithFields(map[string]any{"query_id": stmt.QueryID, "entity": stmt.Entity})
}

func (s *SQLStore) logError(stmt *Statement, err error) {
	s.log(stmt).Error("query failed: %v | sql: %s | args: %v", err, stmt.SQL, stmt.Args)
}

type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindFloat
)

func kindOf(dbType string) columnKind {
	t := strings.ToUpper(dbType)
	switch {
	case t == "":
		return kindText
	case strings.Contains(t, "INT"), t == "SERIAL", t == "BIGSERIAL", t == "YEAR":
		return kindInt
	case t == "FLOAT", t == "DOUBLE", t == "REAL", t == "FLOAT4", t == "FLOAT8", t == "DOUBLE PRECISION":
		return kindFloat
	}
	return kindText
}

// normalize turns driver bytes into strings, or numbers when the column
// type is numeric, so the same row reads the same across drivers.
func normalize(v any, kind columnKind) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	s := string(b)
	switch kind {
	case kindInt:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case kindFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}
