package core

import (
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/shrek82/simplejorm/logger"
	"github.com/shrek82/simplejorm/model"
)

var fixture = []string{
	`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, meta TEXT)`,
	`CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER, title TEXT, tags TEXT)`,
	`CREATE TABLE profiles (id INTEGER PRIMARY KEY, user_id INTEGER, bio TEXT)`,
	`CREATE TABLE roles (id INTEGER PRIMARY KEY, name TEXT)`,
	`CREATE TABLE user_roles (user_id INTEGER, role_id INTEGER)`,
	`CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT)`,

	`INSERT INTO users (id, name, meta) VALUES
		(1, 'alice', '{"age":30,"tags":["a","b"]}'),
		(2, 'bob', '{bad json'),
		(3, 'carol', NULL)`,
	`INSERT INTO posts (id, user_id, title, tags) VALUES
		(1, 1, 'p1', '[1,2]'),
		(2, 1, 'p2', '[]'),
		(3, 2, 'p3', 'plain'),
		(4, 9, 'orphan', NULL)`,
	`INSERT INTO profiles (id, user_id, bio) VALUES (1, 2, 'bob bio')`,
	`INSERT INTO roles (id, name) VALUES (1, 'admin'), (2, 'editor'), (3, 'viewer')`,
	`INSERT INTO user_roles (user_id, role_id) VALUES (1, 2), (1, 1), (2, 2), (1, 2)`,
}

func testModels() []*model.Model {
	users := model.New("users", "users",
		model.HasMany("posts", "posts", "user_id", "id"),
		model.HasOne("profile", "profiles", "user_id", "id"),
		model.ManyToMany("roles", "roles", "user_roles", "user_id", "role_id"),
	)
	users.PerPage = 2
	posts := model.New("posts", "posts", model.BelongsTo("author", "users", "user_id", "id"))
	items := model.New("items", "items")
	return []*model.Model{users, posts, items}
}

// setupTestDB opens an in-memory sqlite database loaded with the fixture.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range fixture {
		_, err := sqlDB.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	for i := 1; i <= 11; i++ {
		_, err := sqlDB.Exec(`INSERT INTO items (id, label) VALUES (?, ?)`, i, fmt.Sprintf("item%d", i))
		require.NoError(t, err)
	}

	db, err := New(sqlDB, "sqlite3")
	require.NoError(t, err)
	db.SetLogger(logger.NewNopLogger())
	require.NoError(t, db.Register(testModels()...))

	t.Cleanup(func() { _ = db.Close() })
	return db
}
