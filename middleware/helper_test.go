package middleware

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/shrek82/simplejorm/core"
	"github.com/shrek82/simplejorm/logger"
	"github.com/shrek82/simplejorm/model"
	"github.com/shrek82/simplejorm/query"
	"github.com/shrek82/simplejorm/record"
	"github.com/shrek82/simplejorm/store"
)

var errBackend = errors.New("backend down")

func selectOp(entity string) *core.Operation {
	spec := query.New(entity).WhereEq("id", 1)
	stmt := store.NewStatement(entity, spec)
	stmt.SQL = "SELECT * FROM `" + entity + "` WHERE (`id` = ?)"
	stmt.Args = []any{1}
	return &core.Operation{Kind: core.OpSelect, Entity: entity, QueryID: "q-1", Stmt: stmt}
}

func countOp(entity string) *core.Operation {
	op := selectOp(entity)
	op.Kind = core.OpCount
	op.Stmt.Spec = op.Stmt.Spec.ForCount()
	return op
}

// counter is a terminal QueryFunc that counts its calls.
type counter struct {
	calls int
	err   error
	rows  []*record.Record
	count int64
}

func (c *counter) next(ctx context.Context, op *core.Operation) (*core.Result, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if op.Kind == core.OpCount {
		return &core.Result{Count: c.count}, nil
	}
	out := make([]*record.Record, len(c.rows))
	for i, r := range c.rows {
		out[i] = r.Clone()
	}
	return &core.Result{Records: out}, nil
}

func sampleRows() []*record.Record {
	return []*record.Record{
		record.FromPairs("id", int64(1), "name", "alice", "tags", `["a","b"]`),
	}
}

// setupDB opens an in-memory sqlite database with a users/posts schema.
func setupDB(t *testing.T) (*core.DB, *sql.DB) {
	t.Helper()
	sqlDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, tags TEXT)",
		"CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER, title TEXT)",
		`INSERT INTO users (id, name, tags) VALUES (1, 'alice', '["a","b"]'), (2, 'bob', NULL)`,
		"INSERT INTO posts (id, user_id, title) VALUES (1, 1, 'hello'), (2, 1, 'again'), (3, 2, 'bye')",
	} {
		_, err := sqlDB.Exec(stmt)
		require.NoError(t, err)
	}

	db, err := core.New(sqlDB, "sqlite3")
	require.NoError(t, err)
	db.SetLogger(logger.NewNopLogger())
	require.NoError(t, db.Register(
		model.New("users", "users", model.HasMany("posts", "posts", "user_id", "id")),
	))
	t.Cleanup(func() { db.Close() })
	return db, sqlDB
}
