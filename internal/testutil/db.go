package testutil

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbfixture/internal/config"
)

// MemoryURL returns a fresh shared-cache in-memory SQLite URL. Every call
// names a new database, so tests never see each other's tables.
func MemoryURL() string {
	return "file:" + uuid.NewString() + "?mode=memory&cache=shared"
}

// MemoryProperties returns connection properties for a fresh in-memory
// SQLite database.
func MemoryProperties() config.Properties {
	return config.Properties{
		Driver:   config.DefaultDriver,
		URL:      MemoryURL(),
		Username: config.DefaultUsername,
	}
}

// FileProperties returns connection properties for a SQLite file in a
// per-test temp directory. params are appended to the URL query, e.g.
// "mode=rw" or "_busy_timeout=10"; without a mode the file is created on
// first connection.
func FileProperties(t testing.TB, params ...string) config.Properties {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")

	hasMode := false
	for _, p := range params {
		if strings.HasPrefix(p, "mode=") {
			hasMode = true
		}
	}
	if !hasMode {
		params = append([]string{"mode=rwc"}, params...)
	}
	return config.Properties{
		Driver:   config.DefaultDriver,
		URL:      "file:" + filepath.ToSlash(path) + "?" + strings.Join(params, "&"),
		Username: config.DefaultUsername,
	}
}

// Execer is satisfied by *sql.DB, *sql.Tx, *sql.Conn and their sqlx
// counterparts.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Exec runs each statement, failing the test on the first error.
func Exec(t testing.TB, db Execer, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		_, err := db.ExecContext(context.Background(), s)
		require.NoError(t, err, s)
	}
}

// Count returns SELECT COUNT(*) of table.
func Count(t testing.TB, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// WriteFile writes content to path, creating its directory.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
