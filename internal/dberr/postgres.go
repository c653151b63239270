package dberr

import (
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres returns the interpreter for github.com/jackc/pgx. State codes are
// SQLSTATE values.
func Postgres() *Interpreter {
	return &Interpreter{
		family:   "postgres",
		classify: classifyPostgres,
		codes: map[string]Explanation{
			"55P03": {
				Kind: KindLockTimeout,
				Message: "A lock could not be obtained in time, perhaps your test code has not committed or" +
					" rolled back a transaction it began, or has not closed a *sql.Rows.",
				Hint: "Make sure every transaction is committed or rolled back before the fixture is applied.",
			},
			"40P01": {
				Kind:    KindLockTable,
				Message: "Deadlock detected.",
				Hint:    "Query pg_locks, or set DBFIXTURE_LOCK_DIAGNOSTICS=true, to see which backends hold the locks.",
			},
			"57P03": {
				Kind:    KindAlreadyBooted,
				Message: "The database system is starting up or recovering and cannot accept connections yet.",
				Hint:    "Wait for the server to finish starting, or make sure no other process is restoring it.",
			},
			"55006": {
				Kind:    KindAlreadyBooted,
				Message: "The database is being accessed by other users.",
				Hint:    "Close other sessions connected to the test database.",
			},
			"3D000": {
				Kind:    KindNotCreated,
				Message: "Failed to connect to the test database, it seems it hasn't been created yet.",
				Hint:    "Create it with `dbfixture create` or createdb before running the tests.",
			},
			"3F000": {
				Kind:    KindMissingSchema,
				Message: "The schema named by a table does not exist.",
				Hint:    "Check the schema prefix of the fixture's table names and the search_path of the connection.",
			},
			"28P01": {
				Kind:    KindAccessDenied,
				Message: "Password authentication failed for the configured user.",
				Hint:    "Check the dbfixture.username and dbfixture.password properties.",
			},
		},
	}
}

func classifyPostgres(err error) (string, bool) {
	pe, ok := err.(*pgconn.PgError)
	if !ok || pe == nil {
		return "", false
	}
	return pe.Code, true
}
