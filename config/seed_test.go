package config

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, dsn string) {
	t.Helper()
	sqlDB, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer sqlDB.Close()

	for _, stmt := range []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)",
		"CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER, title TEXT)",
		"INSERT INTO users (id, name) VALUES (1, 'alice'), (2, 'bob')",
		"INSERT INTO posts (id, user_id, title) VALUES (1, 1, 'hello'), (2, 2, 'bye')",
	} {
		_, err := sqlDB.Exec(stmt)
		require.NoError(t, err)
	}
}
