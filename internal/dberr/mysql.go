package dberr

import (
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// MySQL returns the interpreter for github.com/go-sql-driver/mysql. State
// codes are the server's numeric error numbers.
func MySQL() *Interpreter {
	return &Interpreter{
		family:   "mysql",
		classify: classifyMySQL,
		codes: map[string]Explanation{
			"1205": {
				Kind: KindLockTimeout,
				Message: "Lock wait timeout exceeded, perhaps your test code has not committed or rolled back" +
					" a transaction it began, or has not closed a *sql.Rows.",
				Hint: "Make sure every transaction is committed or rolled back before the fixture is applied.",
			},
			"1213": {
				Kind:    KindLockTable,
				Message: "Deadlock found when trying to get a lock.",
				Hint: "Run SHOW ENGINE INNODB STATUS, or set DBFIXTURE_LOCK_DIAGNOSTICS=true," +
					" to see which transactions hold the locks.",
			},
			"1040": {
				Kind:    KindAlreadyBooted,
				Message: "The server refuses new connections, other processes or leaked test connections hold them all.",
				Hint:    "Close the databases your tests open and check max_connections.",
			},
			"1049": {
				Kind:    KindNotCreated,
				Message: "Failed to connect to the test database, it seems it hasn't been created yet.",
				Hint:    "Create it with `dbfixture create` or CREATE DATABASE before running the tests.",
			},
			"1045": {
				Kind:    KindAccessDenied,
				Message: "Access denied for the configured user.",
				Hint:    "Check the dbfixture.username and dbfixture.password properties.",
			},
		},
	}
}

func classifyMySQL(err error) (string, bool) {
	me, ok := err.(*mysql.MySQLError)
	if !ok || me == nil {
		return "", false
	}
	return strconv.Itoa(int(me.Number)), true
}
