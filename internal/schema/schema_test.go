package schema

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbfixture/internal/config"
	"github.com/roach88/dbfixture/internal/conn"
	"github.com/roach88/dbfixture/internal/locate"
	"github.com/roach88/dbfixture/internal/testutil"
)

const ddl = `
-- customers
CREATE TABLE customer (
    id INTEGER PRIMARY KEY,
    name TEXT
);

  -- orders reference customers
CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER REFERENCES customer(id));
;
`

func TestParseDDL(t *testing.T) {
	stmts, err := ParseDDL(strings.NewReader(ddl))
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE customer (\nid INTEGER PRIMARY KEY,\nname TEXT\n)", stmts[0])
	assert.True(t, strings.HasPrefix(stmts[1], "CREATE TABLE orders"))

	stmts, err = ParseDDL(strings.NewReader("-- nothing\n\n"))
	require.NoError(t, err)
	assert.Empty(t, stmts)
}

func writeDDL(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCreateAndInitialize(t *testing.T) {
	ddlDir := t.TempDir()
	writeDDL(t, ddlDir, DDLFileName, ddl)

	dbPath := filepath.Join(t.TempDir(), "nested", "test.sqlite")
	props := config.Properties{Driver: "sqlite3", URL: "file:" + filepath.ToSlash(dbPath) + "?mode=rw"}
	ctx := context.Background()

	mgr := conn.New(props)
	t.Cleanup(func() { mgr.Close() })
	_, err := mgr.DB(ctx)
	require.Error(t, err, "the database does not exist yet")

	c := New(mgr, locate.New(locate.WithDefaultDir(ddlDir)))
	require.NoError(t, c.CreateAndInitialize(ctx))

	after := conn.New(props)
	t.Cleanup(func() { after.Close() })
	db, err := after.DB(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, testutil.Count(t, db.DB, "orders"))
}

func TestCreateAndInitialize_MissingScript(t *testing.T) {
	props := testutil.FileProperties(t)
	c := New(conn.New(props), locate.New(locate.WithDefaultDir(t.TempDir()), locate.WithSearchPath()))

	err := c.CreateAndInitialize(context.Background())
	require.Error(t, err)
	var ce *CreateError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, locate.ErrResourceNotFound)
	assert.Equal(t, DDLFileName, ce.DDLFile)
	assert.NotEmpty(t, ce.WorkDir)
}

func TestLoadDDL_RollsBackOnError(t *testing.T) {
	dir := t.TempDir()
	writeDDL(t, dir, "broken.ddl", "CREATE TABLE a (id INTEGER);\nCREATE TABLE oops (;\n")

	mgr := conn.New(testutil.MemoryProperties())
	t.Cleanup(func() { mgr.Close() })
	c := New(mgr, locate.New(locate.WithDefaultDir(dir)))

	ctx := context.Background()
	err := c.LoadDDL(ctx, "broken.ddl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 2")

	db, err := mgr.DB(ctx)
	require.NoError(t, err)
	var n int
	require.NoError(t, db.GetContext(ctx, &n, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'a'"))
	assert.Equal(t, 0, n)
}
