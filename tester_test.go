package dbfixture

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbfixture/internal/config"
	"github.com/roach88/dbfixture/internal/conn"
	"github.com/roach88/dbfixture/internal/fixture"
	"github.com/roach88/dbfixture/internal/locate"
	"github.com/roach88/dbfixture/internal/testutil"
)

// createTestTester returns a Tester on a fresh in-memory database holding
// the schema in testdata/schema.ddl.
func createTestTester(t *testing.T, opts ...Option) *Tester {
	t.Helper()
	opts = append([]Option{
		WithProperty(KeyURL, testutil.MemoryURL()),
		WithDDL("schema.ddl"),
	}, opts...)
	return Setup(t, opts...)
}

func count(t *testing.T, tr *Tester, table string) int {
	t.Helper()
	db, err := tr.DB(context.Background())
	require.NoError(t, err)
	return testutil.Count(t, db.DB, table)
}

func TestSetup_AppliesDefaultFixture(t *testing.T) {
	tr := createTestTester(t)
	ctx := context.Background()

	assert.Equal(t, StateReady, tr.State())
	assert.Equal(t, DefaultFixture, tr.Store().Name())

	c, err := tr.CheckSelect(ctx, "SELECT id, name FROM customer ORDER BY id")
	require.NoError(t, err)
	require.NoError(t, c.AssertRowCount(2))
	require.NoError(t, c.AssertNext(1, "Ada"))
	require.NoError(t, c.AssertNextStrings("2", "Grace"))

	c, err = tr.CheckSelect(ctx, "SELECT id, total, note FROM orders WHERE customer_id = ? ORDER BY id", 2)
	require.NoError(t, err)
	require.NoError(t, c.AssertNext(11, 20.0, "gift"))
}

func TestSetup_IsRepeatable(t *testing.T) {
	tr := createTestTester(t)
	ctx := context.Background()

	require.NoError(t, tr.OnSetup(ctx))
	require.NoError(t, tr.OnSetup(ctx))
	assert.Equal(t, 2, count(t, tr, "customer"))
	assert.Equal(t, 2, count(t, tr, "orders"))
}

func TestReplaceFiles_SwapsTheWholeFixture(t *testing.T) {
	tr := createTestTester(t)
	ctx := context.Background()

	require.NoError(t, tr.ReplaceFiles(ctx, "orders.yaml"))
	assert.Equal(t, "orders.yaml", tr.Store().Name())

	c, err := tr.CheckSelect(ctx, "SELECT o.id, c.name, o.total, o.note FROM orders o JOIN customer c ON c.id = o.customer_id")
	require.NoError(t, err)
	require.NoError(t, c.AssertRowCount(1))
	require.NoError(t, c.AssertNext(12, "Linus", 12.5, nil))
}

func TestReplace_ProgrammaticStore(t *testing.T) {
	tr := createTestTester(t)
	ctx := context.Background()

	orders := NewTable("orders")
	customers := NewTable("CUSTOMER", Column{Name: "ID"}, Column{Name: "NAME"})
	require.NoError(t, customers.AddRow(int64(7), "Barbara"))
	require.NoError(t, customers.AddRow(int64(8), "Edsger"))

	require.NoError(t, tr.Replace(ctx, Compose(&Document{Name: "inline", Tables: []*Table{customers, orders}})))

	assert.Equal(t, 0, count(t, tr, "orders"), "an empty table is cleared")
	c, err := tr.CheckSelect(ctx, "SELECT id, name FROM customer ORDER BY id")
	require.NoError(t, err)
	require.NoError(t, c.AssertNext(7, Matches("^Barb")))
	require.NoError(t, c.AssertNext(Is("an even id", func(v int64) bool { return v%2 == 0 }), NotNull()))
}

func TestWithStore(t *testing.T) {
	customers := NewTable("customer", Column{Name: "id"}, Column{Name: "name"})
	require.NoError(t, customers.AddRow(int64(5), "Ken"))

	tr := createTestTester(t, WithStore(Compose(&fixture.Document{Name: "one", Tables: []*Table{customers}})))
	assert.Equal(t, 1, count(t, tr, "customer"))
	assert.Equal(t, 0, count(t, tr, "orders"))
}

func TestClearTable(t *testing.T) {
	tr := createTestTester(t)

	n, err := tr.ClearTable(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 0, count(t, tr, "orders"))
	assert.Equal(t, 2, count(t, tr, "customer"))
}

func TestOnTeardown(t *testing.T) {
	ctx := context.Background()

	tr := createTestTester(t)
	require.NoError(t, tr.OnTeardown(ctx))
	assert.Equal(t, 2, count(t, tr, "customer"), "tear-down does nothing by default")

	tr = createTestTester(t, WithTearDownOperation(OpDeleteAll))
	require.NoError(t, tr.OnTeardown(ctx))
	assert.Equal(t, 0, count(t, tr, "customer"))
	assert.Equal(t, 0, count(t, tr, "orders"))
}

func TestSetUpOperation_Insert(t *testing.T) {
	tr := createTestTester(t, WithSetUpOperation(OpInsert))

	err := tr.OnSetup(context.Background())
	require.Error(t, err, "inserting the same keys twice")

	var ae *ApplyError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, OpInsert, ae.Operation)
	assert.Contains(t, ae.Description, "customer(2)")
	assert.Equal(t, 2, count(t, tr, "customer"), "the failed insert is rolled back")
}

func TestSetSchema_Unsupported(t *testing.T) {
	tr := createTestTester(t)
	assert.ErrorIs(t, tr.SetSchema("APP"), conn.ErrUnsupportedOperation)
}

func TestDataSource(t *testing.T) {
	tr := createTestTester(t)

	db, err := tr.DataSource().DB(context.Background())
	require.NoError(t, err)
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM customer").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestCheckSelect_Misuse(t *testing.T) {
	tr := createTestTester(t)

	c, err := tr.CheckSelect(context.Background(), "SELECT id FROM customer ORDER BY id")
	require.NoError(t, err)
	assert.ErrorIs(t, c.AssertNext(1, "extra"), ErrMisuse)
	require.NoError(t, c.AssertNext(1))
	require.NoError(t, c.AssertNext(2))
	assert.ErrorIs(t, c.AssertNext(3), ErrMisuse)
}

func TestCheckSelect_QueryError(t *testing.T) {
	tr := createTestTester(t)

	_, err := tr.CheckSelect(context.Background(), "SELECT * FROM missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestNew_UnknownProperty(t *testing.T) {
	_, err := New(WithProperty(Key("dbfixture.schema"), "APP"))
	assert.ErrorIs(t, err, config.ErrUnknownConfigKey)
}

func TestNew_PropertiesFile(t *testing.T) {
	dir := t.TempDir()
	url := testutil.MemoryURL()
	testutil.WriteFile(t, filepath.Join(dir, "custom.properties"),
		"# test database\ndbfixture.url="+url+"\ndbfixture.username=tester\n")

	tr, err := New(
		WithPropertiesFile("custom.properties"),
		WithLocator(NewLocator(t.TempDir(), dir)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })

	props := tr.Properties()
	assert.Equal(t, url, props.URL)
	assert.Equal(t, "tester", props.Username)
	assert.Equal(t, config.DefaultDriver, props.Driver)
}

func TestOnSetup_MissingDefaultFixture(t *testing.T) {
	tr, err := New(
		WithProperty(KeyURL, testutil.MemoryURL()),
		WithLocator(NewLocator(t.TempDir())),
	)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })

	err = tr.OnSetup(context.Background())
	assert.ErrorIs(t, err, locate.ErrResourceNotFound)
	assert.Contains(t, err.Error(), DefaultFixture)
}

func TestWithCallerHint(t *testing.T) {
	hint := t.TempDir()
	testutil.WriteFile(t, filepath.Join(hint, "hinted.yaml"), "customer:\n  - id: 42\n    name: Hinted\n")

	tr := createTestTester(t,
		WithLocator(NewLocator(filepath.Join(t.TempDir(), "none"), "testdata")),
		WithCallerHint(hint),
		WithFixture("hinted.yaml"),
	)
	c, err := tr.CheckSelect(context.Background(), "SELECT name FROM customer")
	require.NoError(t, err)
	require.NoError(t, c.AssertNext(Matches(regexp.QuoteMeta("Hinted"))))
}

func TestOnSetup_LockTimeoutIsExplained(t *testing.T) {
	props := testutil.FileProperties(t, "_busy_timeout=1")
	ctx := context.Background()

	holder, err := New(WithProperty(KeyURL, props.URL), WithStore(Compose()))
	require.NoError(t, err)
	t.Cleanup(func() { holder.Close() })
	db, err := holder.DB(ctx)
	require.NoError(t, err)
	testutil.Exec(t, db, "CREATE TABLE customer (id INTEGER PRIMARY KEY, name TEXT)")

	tx, err := db.Begin()
	require.NoError(t, err)
	t.Cleanup(func() { tx.Rollback() })
	_, err = tx.Exec("INSERT INTO customer (id, name) VALUES (99, 'lock')")
	require.NoError(t, err)

	customers := NewTable("customer", Column{Name: "id"})
	require.NoError(t, customers.AddRow(int64(1)))
	tr, err := New(WithProperty(KeyURL, props.URL), WithStore(Compose(&Document{Name: "locked", Tables: []*Table{customers}})))
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })

	err = tr.OnSetup(ctx)
	require.Error(t, err)
	assert.True(t, IsLockError(err))
	assert.Equal(t, StateFailed, tr.State())
}

func TestClearTable_HeldTransactionIsALockError(t *testing.T) {
	props := testutil.FileProperties(t, "_busy_timeout=10")
	tr := createTestTester(t, WithProperty(KeyURL, props.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := tr.DB(ctx)
	require.NoError(t, err)

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { tx.Rollback() })
	_, err = tx.ExecContext(ctx, "INSERT INTO customer (id, name) VALUES (99, 'held')")
	require.NoError(t, err)

	_, err = tr.ClearTable(ctx, "orders")
	require.Error(t, err)
	assert.True(t, IsLockError(err), "got %v", err)
	assert.NoError(t, ctx.Err())

	require.NoError(t, tx.Rollback())
	n, err := tr.ClearTable(ctx, "orders")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestFindDuplicates(t *testing.T) {
	orders := NewTable("orders", Column{Name: "id"}, Column{Name: "note"})
	for _, id := range []int64{100, 222, 100} {
		require.NoError(t, orders.AddRow(id, "x"))
	}

	assert.Equal(t, []string{"100"}, FindDuplicates(orders, []string{"id"}))
	assert.Equal(t, []string{"100|x"}, FindDuplicates(orders, []string{"id", "note"}))
	assert.Empty(t, FindDuplicates(orders, nil))
}

func TestComparatorFromTable(t *testing.T) {
	orders := NewTable("orders", Column{Name: "id"}, Column{Name: "note"})
	require.NoError(t, orders.AddRow(int64(100), "gift"))
	require.NoError(t, orders.AddRow(int64(222), nil))

	c := ComparatorFromTable(orders)
	require.NoError(t, c.AssertRowCount(2))
	require.NoError(t, c.AssertNext(100, "gift"))
	require.NoError(t, c.AssertNext(222, nil))

	c = NewComparator(NewResult([]string{"id"}, []any{int64(1)}))
	var ae *AssertionError
	require.ErrorAs(t, c.AssertNext(2), &ae)
	assert.Equal(t, "id", ae.Column)
}
