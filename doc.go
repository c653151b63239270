// Package dbfixture puts a database into a known state before a test and
// checks what a test left in it.
//
// A Tester loads fixture documents (XML or YAML) and applies them with a
// clean-insert: every table a fixture names is emptied, in reverse order,
// and refilled with the fixture's rows, in order, inside one transaction.
// Tables the fixture does not name are left alone. Table names may be
// qualified as schema.table.
//
//	func TestOrders(t *testing.T) {
//		tr := dbfixture.Setup(t, dbfixture.WithFixture("orders.xml"))
//		...
//		c, err := tr.CheckSelect(ctx, "SELECT id, total FROM orders ORDER BY id")
//		require.NoError(t, err)
//		require.NoError(t, c.AssertRowCount(2))
//		require.NoError(t, c.AssertNext(1, 9.5))
//	}
//
// Connection properties come from dbfixture.properties on the search path
// (DBFIXTURE_PATH, or the working directory) and fall back to a SQLite file
// at testdata/testdb.sqlite. Fixture files are searched in testdata/, then in
// the directories given with WithCallerHint, then on the search path.
package dbfixture
