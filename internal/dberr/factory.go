package dberr

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

// ForDriver picks the interpreter for a database/sql driver name.
func ForDriver(name string) *Interpreter {
	switch strings.ToLower(name) {
	case "sqlite3", "sqlite":
		return SQLite()
	case "mysql":
		return MySQL()
	case "pgx", "pgx/v5", "postgres", "postgresql":
		return Postgres()
	default:
		return Noop()
	}
}

// ForProduct picks the interpreter from a database product or version
// string, as reported by the server.
func ForProduct(product string) *Interpreter {
	p := strings.ToLower(product)
	switch {
	case strings.Contains(p, "sqlite"):
		return SQLite()
	case strings.Contains(p, "mysql"), strings.Contains(p, "mariadb"):
		return MySQL()
	case strings.Contains(p, "postgres"):
		return Postgres()
	default:
		return Noop()
	}
}

// ForDB picks the interpreter for an open database, first from its driver
// and then by asking the server for its version. Anything that can't be
// identified gets the no-op interpreter.
func ForDB(ctx context.Context, db *sql.DB) *Interpreter {
	if db == nil {
		return Noop()
	}
	switch db.Driver().(type) {
	case *sqlite3.SQLiteDriver:
		return SQLite()
	case *mysql.MySQLDriver:
		return MySQL()
	case *stdlib.Driver:
		return Postgres()
	}

	var version string
	if err := db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return Noop()
	}
	return ForProduct(version)
}
