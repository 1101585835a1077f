package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrek82/simplejorm/core"
	"github.com/shrek82/simplejorm/record"
)

const testConfig = `
driver: sqlite3
log:
  level: silent
entities:
  - name: users
    per_page: 2
    relations:
      - name: posts
        kind: has_many
        table: posts
        foreign_key: user_id
      - name: roles
        kind: many_to_many
        table: roles
        join_table: user_roles
        join_fk: user_id
        join_ref: role_id
  - name: posts
    relations:
      - name: user
        kind: belongs_to
        table: users
`

func setup(t *testing.T) (cfgPath, dsn string) {
	t.Helper()
	dir := t.TempDir()
	dsn = filepath.Join(dir, "app.db")

	sqlDB, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer sqlDB.Close()
	for _, stmt := range []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, prefs TEXT)",
		"CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER, title TEXT)",
		"CREATE TABLE roles (id INTEGER PRIMARY KEY, name TEXT)",
		"CREATE TABLE user_roles (user_id INTEGER, role_id INTEGER)",
		`INSERT INTO users (id, name, prefs) VALUES (1, 'alice', '{"theme":"dark"}'), (2, 'bob', NULL), (3, 'carol', NULL)`,
		"INSERT INTO posts (id, user_id, title) VALUES (1, 1, 'p1'), (2, 1, 'p2'), (3, 2, 'p3')",
		"INSERT INTO roles (id, name) VALUES (1, 'admin'), (2, 'editor')",
		"INSERT INTO user_roles (user_id, role_id) VALUES (1, 1), (1, 2), (2, 2)",
	} {
		_, err := sqlDB.Exec(stmt)
		require.NoError(t, err)
	}

	cfgPath = filepath.Join(dir, "simplejorm.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig), 0o644))
	return cfgPath, dsn
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGet(t *testing.T) {
	cfg, dsn := setup(t)

	out, err := run(t, "get", "--config", cfg, "--dsn", dsn, "-e", "users", "--with", "posts,roles", "--order", "id")
	require.NoError(t, err)

	rows, err := record.UnmarshalRecords([]byte(out))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	alice := rows[0]
	assert.Equal(t, []string{"id", "name", "prefs", "posts", "roles"}, alice.Keys())
	prefs, ok := alice.Value("prefs").(*record.Record)
	require.True(t, ok, "JSON columns are printed decoded")
	assert.Equal(t, "dark", prefs.Value("theme"))
	assert.Len(t, alice.Value("posts"), 2)
	assert.Len(t, alice.Value("roles"), 2)

	carol := rows[2]
	assert.Equal(t, []any{}, carol.Value("posts"))
}

func TestGet_Filters(t *testing.T) {
	cfg, dsn := setup(t)

	out, err := run(t, "get", "--config", cfg, "--dsn", dsn, "-e", "posts",
		"--where", "user_id=1", "--where", "title~p%", "--columns", "id,title", "--order", "id DESC", "--limit", "1")
	require.NoError(t, err)

	rows, err := record.UnmarshalRecords([]byte(out))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"id", "title"}, rows[0].Keys())
	assert.Equal(t, "p2", rows[0].Value("title"))

	// Tables without a definition can still be read.
	out, err = run(t, "get", "--config", cfg, "--dsn", dsn, "-e", "roles", "--where", "name=admin")
	require.NoError(t, err)
	rows, err = record.UnmarshalRecords([]byte(out))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = run(t, "get", "--config", cfg, "--dsn", dsn, "-e", "users", "--with", "nope")
	assert.ErrorIs(t, err, core.ErrRelationNotFound)

	_, err = run(t, "get", "--config", cfg, "--dsn", dsn, "-e", "users", "--where", "??")
	assert.Error(t, err)

	_, err = run(t, "get", "--config", cfg, "--dsn", dsn, "-e", "users", "--where", "id>9", "--first-or-fail")
	assert.ErrorIs(t, err, core.ErrRecordNotFound)
}

func TestFind(t *testing.T) {
	cfg, dsn := setup(t)

	out, err := run(t, "find", "2", "--config", cfg, "--dsn", dsn, "-e", "posts", "--with", "user")
	require.NoError(t, err)
	var post record.Record
	require.NoError(t, json.Unmarshal([]byte(out), &post))
	assert.Equal(t, int64(2), post.Value("id"))
	user := post.Value("user").(*record.Record)
	assert.Equal(t, "alice", user.Value("name"))

	out, err = run(t, "find", "42", "--config", cfg, "--dsn", dsn, "-e", "posts")
	require.NoError(t, err)
	assert.Equal(t, "null\n", out)

	out, err = run(t, "find", "1", "3", "--config", cfg, "--dsn", dsn, "-e", "users")
	require.NoError(t, err)
	rows, err := record.UnmarshalRecords([]byte(out))
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = run(t, "find", "1", "7", "--or-fail", "--config", cfg, "--dsn", dsn, "-e", "users")
	var nf *core.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "users", nf.Entity)
	assert.Equal(t, []any{int64(7)}, nf.Keys)
}

func TestCount(t *testing.T) {
	cfg, dsn := setup(t)
	out, err := run(t, "count", "--config", cfg, "--dsn", dsn, "-e", "posts", "--where", "user_id in 1,2")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestPaginate(t *testing.T) {
	cfg, dsn := setup(t)

	out, err := run(t, "paginate", "--config", cfg, "--dsn", dsn, "-e", "users", "--order", "id", "--page", "2")
	require.NoError(t, err)

	var page struct {
		Records   []json.RawMessage `json:"records"`
		Total     int64             `json:"total"`
		Page      int               `json:"page"`
		PerPage   int               `json:"per_page"`
		TotalPage int               `json:"total_page"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.PerPage, "per_page comes from the entity")
	assert.Equal(t, 2, page.TotalPage)
	assert.Len(t, page.Records, 1)

	out, err = run(t, "simple-paginate", "--config", cfg, "--dsn", dsn, "-e", "users", "--order", "id", "--per-page", "2")
	require.NoError(t, err)
	var simple struct {
		Records []json.RawMessage `json:"records"`
		HasMore bool              `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &simple))
	assert.True(t, simple.HasMore)
	assert.Len(t, simple.Records, 2)
}

func TestSchema(t *testing.T) {
	cfg, dsn := setup(t)

	out, err := run(t, "schema", "--config", cfg, "--dsn", dsn)
	require.NoError(t, err)

	var got struct {
		Entities []struct {
			Name       string `json:"name"`
			PrimaryKey string `json:"primary_key"`
			Relations  []struct {
				Name      string `json:"name"`
				Kind      string `json:"kind"`
				JoinTable string `json:"join_table"`
			} `json:"relations"`
		} `json:"entities"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Entities, 4)

	users := got.Entities[3]
	assert.Equal(t, "users", users.Name)
	assert.Equal(t, "id", users.PrimaryKey)
	var kinds []string
	for _, r := range users.Relations {
		kinds = append(kinds, r.Name+":"+r.Kind)
	}
	assert.ElementsMatch(t, []string{"posts:has_many", "roles:many_to_many"}, kinds)

	path := filepath.Join(t.TempDir(), "entities.yaml")
	_, err = run(t, "schema", "--config", cfg, "--dsn", dsn, "--out", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "join_table: user_roles")
}
