package dberr

import (
	"strconv"

	"github.com/mattn/go-sqlite3"
)

// SQLite result code names, primary and extended.
var sqliteCodeNames = map[int]string{
	1:    "SQLITE_ERROR",
	5:    "SQLITE_BUSY",
	6:    "SQLITE_LOCKED",
	8:    "SQLITE_READONLY",
	14:   "SQLITE_CANTOPEN",
	19:   "SQLITE_CONSTRAINT",
	26:   "SQLITE_NOTADB",
	261:  "SQLITE_BUSY_RECOVERY",
	517:  "SQLITE_BUSY_SNAPSHOT",
	773:  "SQLITE_BUSY_TIMEOUT",
	262:  "SQLITE_LOCKED_SHAREDCACHE",
	270:  "SQLITE_CANTOPEN_NOTEMPDIR",
	526:  "SQLITE_CANTOPEN_ISDIR",
	782:  "SQLITE_CANTOPEN_FULLPATH",
	1555: "SQLITE_CONSTRAINT_PRIMARYKEY",
	2067: "SQLITE_CONSTRAINT_UNIQUE",
	787:  "SQLITE_CONSTRAINT_FOREIGNKEY",
}

const (
	sqliteLockTimeout = "The database is locked, perhaps your test code has not cleaned up the DB resources" +
		" that it used (such as committing or rolling back a transaction it began, or closing *sql.Rows)."
	sqliteLockHint = "Make sure every transaction is committed or rolled back and every result set is closed" +
		" before the fixture is applied; the driver's _busy_timeout URL parameter controls how long a writer waits."
)

// SQLite returns the interpreter for github.com/mattn/go-sqlite3.
func SQLite() *Interpreter {
	return &Interpreter{
		family:   "sqlite",
		classify: classifySQLite,
		codes: map[string]Explanation{
			"SQLITE_BUSY": {
				Kind: KindLockTimeout, Message: sqliteLockTimeout, Hint: sqliteLockHint,
			},
			"SQLITE_BUSY_TIMEOUT": {
				Kind: KindLockTimeout, Message: sqliteLockTimeout, Hint: sqliteLockHint,
			},
			"SQLITE_BUSY_SNAPSHOT": {
				Kind: KindLockTimeout, Message: sqliteLockTimeout, Hint: sqliteLockHint,
			},
			"SQLITE_LOCKED": {
				Kind:    KindLockTable,
				Message: "A table is locked by another statement on the same connection or shared cache.",
				Hint: "Close open *sql.Rows before modifying the tables they read;" +
					" set DBFIXTURE_LOCK_DIAGNOSTICS=true to log a lock report.",
			},
			"SQLITE_LOCKED_SHAREDCACHE": {
				Kind:    KindLockTable,
				Message: "A table is locked by another connection sharing the same cache.",
				Hint:    "Commit or roll back the other connection's transaction before the fixture is applied.",
			},
			"SQLITE_BUSY_RECOVERY": {
				Kind: KindAlreadyBooted,
				Message: "Failed to start the database, it seems that it is in use by another process" +
					" or was not shut down correctly the last time.",
				Hint: "Make sure that no other process accesses it; if the last run was killed, delete the" +
					" stale -journal, -wal and -shm files next to the database file and rerun the test.",
			},
			"SQLITE_CANTOPEN": {
				Kind:    KindNotCreated,
				Message: "Failed to connect to the test database, it seems it hasn't been created yet.",
				Hint: "Create it with `dbfixture create` (or schema.Creator.CreateAndInitialize);" +
					" relative paths in the URL are resolved against the working directory.",
			},
			"SQLITE_CANTOPEN_ISDIR": {
				Kind:    KindNotCreated,
				Message: "Failed to connect to the test database, the configured path is a directory.",
				Hint:    "Point dbfixture.url at a database file, not at the folder containing it.",
			},
		},
	}
}

func classifySQLite(err error) (string, bool) {
	var se sqlite3.Error
	switch e := err.(type) {
	case sqlite3.Error:
		se = e
	case *sqlite3.Error:
		if e == nil {
			return "", false
		}
		se = *e
	case sqlite3.ErrNo:
		se = sqlite3.Error{Code: e}
	case sqlite3.ErrNoExtended:
		se = sqlite3.Error{Code: sqlite3.ErrNo(int(e) & 0xff), ExtendedCode: e}
	default:
		return "", false
	}

	if se.ExtendedCode != 0 {
		if name, ok := sqliteCodeNames[int(se.ExtendedCode)]; ok {
			return name, true
		}
	}
	primary := int(se.Code) & 0xff
	if name, ok := sqliteCodeNames[primary]; ok {
		return name, true
	}
	return "SQLITE_" + strconv.Itoa(primary), true
}
