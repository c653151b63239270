// Package engine applies fixtures to the test database.
//
// The default operation is clean-insert: every table a fixture names is
// emptied, then the fixture's rows are inserted, all in one transaction.
// Tables the fixture doesn't name are left alone. Applying the same fixture
// twice leaves the database in the same state, so there is no "already
// applied" guard.
//
// Failures are returned as *ApplyError, carrying the explanation the
// database family's dberr.Interpreter gives, the connection URL and a
// description of the fixture including duplicated primary keys, which is
// the usual cause of a constraint violation in a hand-written fixture.
package engine
