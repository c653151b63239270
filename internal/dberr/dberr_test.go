package dberr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplainCode_UnknownCode(t *testing.T) {
	for _, in := range []*Interpreter{SQLite(), MySQL(), Postgres(), Noop(), nil} {
		_, ok := in.ExplainCode("XX000")
		assert.False(t, ok, in.Family())
	}
}

func TestExplainCode_LockTimeout(t *testing.T) {
	tests := []struct {
		in   *Interpreter
		code string
	}{
		{SQLite(), "SQLITE_BUSY"},
		{SQLite(), "sqlite_busy"},
		{MySQL(), "1205"},
		{Postgres(), "55P03"},
	}
	for _, tt := range tests {
		t.Run(tt.in.Family()+"/"+tt.code, func(t *testing.T) {
			exp, ok := tt.in.ExplainCode(tt.code)
			require.True(t, ok)
			assert.Equal(t, KindLockTimeout, exp.Kind)
			assert.True(t, exp.IsLock())
			assert.Equal(t, tt.code, exp.Code)
			assert.Contains(t, exp.Message, "lock")
			assert.Contains(t, exp.String(), "committ")
		})
	}
}

func TestExplainChain_WalksWrappedErrors(t *testing.T) {
	driverErr := sqlite3.Error{Code: sqlite3.ErrBusy}
	err := fmt.Errorf("apply fixture: %w", fmt.Errorf("insert into T: %w", driverErr))

	exp, ok := SQLite().ExplainChain(err)
	require.True(t, ok)
	assert.Equal(t, "SQLITE_BUSY", exp.Code)
	assert.Equal(t, KindLockTimeout, exp.Kind)

	_, ok = SQLite().Explain(err)
	assert.False(t, ok, "Explain looks at the error itself only")
}

func TestExplainChain_JoinedErrors(t *testing.T) {
	err := errors.Join(errors.New("rollback failed"), &mysql.MySQLError{Number: 1213, Message: "Deadlock"})

	exp, ok := MySQL().ExplainChain(err)
	require.True(t, ok)
	assert.Equal(t, "1213", exp.Code)
	assert.Equal(t, KindLockTable, exp.Kind)
}

func TestExplainChain_StopsAtFirstClassified(t *testing.T) {
	inner := &pgconn.PgError{Code: "55P03"}
	outer := &pgconn.PgError{Code: "42P01"}
	err := fmt.Errorf("%w: %w", outer, inner)

	code, ok := Postgres().CodeInChain(err)
	require.True(t, ok)
	assert.Equal(t, "42P01", code)

	_, ok = Postgres().ExplainChain(err)
	assert.False(t, ok)
}

func TestExplainChain_OtherFamily(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "55P03"})
	_, ok := SQLite().ExplainChain(err)
	assert.False(t, ok)
	_, ok = Noop().ExplainChain(err)
	assert.False(t, ok)
}

func TestClassifySQLite_ExtendedCodes(t *testing.T) {
	code, ok := SQLite().Classify(sqlite3.Error{Code: sqlite3.ErrBusy, ExtendedCode: sqlite3.ErrBusyRecovery})
	require.True(t, ok)
	assert.Equal(t, "SQLITE_BUSY_RECOVERY", code)

	exp, ok := SQLite().ExplainCode(code)
	require.True(t, ok)
	assert.Equal(t, KindAlreadyBooted, exp.Kind)

	code, ok = SQLite().Classify(sqlite3.ErrLocked)
	require.True(t, ok)
	assert.Equal(t, "SQLITE_LOCKED", code)
}

func TestForDriver(t *testing.T) {
	assert.Equal(t, "sqlite", ForDriver("sqlite3").Family())
	assert.Equal(t, "mysql", ForDriver("mysql").Family())
	assert.Equal(t, "postgres", ForDriver("pgx").Family())
	assert.Equal(t, "none", ForDriver("sqlmock").Family())
}

func TestForProduct(t *testing.T) {
	assert.Equal(t, "postgres", ForProduct("PostgreSQL 16.2 on x86_64").Family())
	assert.Equal(t, "mysql", ForProduct("10.11.6-MariaDB").Family())
	assert.Equal(t, "none", ForProduct("").Family())
}

func TestForDB_SQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "probe.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	assert.Equal(t, "sqlite", ForDB(context.Background(), db).Family())
	assert.Equal(t, "none", ForDB(context.Background(), nil).Family())
}

func TestForDB_CantOpen(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "missing.sqlite") + "?mode=rw"
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	err = db.PingContext(context.Background())
	require.Error(t, err)

	exp, ok := ForDB(context.Background(), db).ExplainChain(err)
	require.True(t, ok)
	assert.Equal(t, KindNotCreated, exp.Kind)
}
