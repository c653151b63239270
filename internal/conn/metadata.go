package conn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/dbfixture/internal/fixture"
)

// ErrNoSuchTable is returned when a table is not in the live schema.
var ErrNoSuchTable = errors.New("no such table")

// NoSuchTableError names the missing table.
type NoSuchTableError struct {
	Table string
}

func (e *NoSuchTableError) Error() string {
	return fmt.Sprintf("no such table: %s", e.Table)
}

func (e *NoSuchTableError) Unwrap() error {
	return ErrNoSuchTable
}

// ColumnInfo describes a live column.
type ColumnInfo struct {
	Name string
	Type string
	// KeySeq is the column's position in the primary key, 1-based, or 0.
	KeySeq int
}

// TableInfo describes a live table. Columns is nil when the driver's schema
// can't be inspected, in which case fixture column names are used as given.
type TableInfo struct {
	Schema  string
	Name    string
	Columns []ColumnInfo
}

// Column finds a column case-insensitively.
func (t TableInfo) Column(name string) (ColumnInfo, bool) {
	for _, c := range t.Columns {
		if fixture.SameName(c.Name, name) {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

// PrimaryKeys returns the primary-key columns in key order.
func (t TableInfo) PrimaryKeys() []string {
	var keys []ColumnInfo
	for _, c := range t.Columns {
		if c.KeySeq > 0 {
			keys = append(keys, c)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].KeySeq < keys[j].KeySeq })
	names := make([]string, len(keys))
	for i, c := range keys {
		names[i] = c.Name
	}
	return names
}

// Metadata inspects the live schema. Implementations take the queryer to use
// so lookups can run inside the caller's transaction.
type Metadata interface {
	Table(ctx context.Context, q sqlx.QueryerContext, name string) (TableInfo, error)
	LockReport(ctx context.Context, q sqlx.QueryerContext) (string, error)
}

// MetadataFor returns the schema inspector for a driver.
func MetadataFor(driver string) Metadata {
	switch normalizeDriver(driver) {
	case DriverSQLite:
		return sqliteMetadata{}
	case DriverMySQL:
		return mysqlMetadata{}
	case DriverPostgres:
		return postgresMetadata{}
	default:
		return passthroughMetadata{}
	}
}

type sqliteMetadata struct{}

type sqliteColumn struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull bool           `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

func (sqliteMetadata) Table(ctx context.Context, q sqlx.QueryerContext, name string) (TableInfo, error) {
	d := DialectFor(DriverSQLite)
	schema, table := fixture.SplitQualified(name)
	if schema == "" {
		schema = "main"
	}

	var actual string
	query := "SELECT name FROM " + d.QuoteIdent(schema) + ".sqlite_master" +
		" WHERE type IN ('table', 'view') AND name = ? COLLATE NOCASE"
	if err := sqlx.GetContext(ctx, q, &actual, query, table); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TableInfo{}, &NoSuchTableError{Table: name}
		}
		return TableInfo{}, fmt.Errorf("look up table %s: %w", name, err)
	}

	var cols []sqliteColumn
	pragma := "PRAGMA " + d.QuoteIdent(schema) + ".table_info(" + d.QuoteIdent(actual) + ")"
	if err := sqlx.SelectContext(ctx, q, &cols, pragma); err != nil {
		return TableInfo{}, fmt.Errorf("read columns of %s: %w", name, err)
	}

	info := TableInfo{Schema: schema, Name: actual, Columns: make([]ColumnInfo, len(cols))}
	for i, c := range cols {
		info.Columns[i] = ColumnInfo{Name: c.Name, Type: c.Type, KeySeq: c.PK}
	}
	return info, nil
}

type sqliteDatabase struct {
	Seq  int    `db:"seq"`
	Name string `db:"name"`
	File string `db:"file"`
}

func (sqliteMetadata) LockReport(ctx context.Context, q sqlx.QueryerContext) (string, error) {
	var buf strings.Builder

	var dbs []sqliteDatabase
	if err := sqlx.SelectContext(ctx, q, &dbs, "PRAGMA database_list"); err != nil {
		return "", err
	}
	for _, db := range dbs {
		var mode string
		if err := sqlx.GetContext(ctx, q, &mode, "PRAGMA "+DialectFor(DriverSQLite).QuoteIdent(db.Name)+".journal_mode"); err != nil {
			mode = "unknown"
		}
		fmt.Fprintf(&buf, "database %s (%s): journal_mode=%s\n", db.Name, db.File, mode)
	}

	var timeout int
	if err := sqlx.GetContext(ctx, q, &timeout, "PRAGMA busy_timeout"); err == nil {
		fmt.Fprintf(&buf, "busy_timeout=%dms\n", timeout)
	}
	return buf.String(), nil
}

type infoColumn struct {
	Name   string `db:"name"`
	Type   string `db:"type"`
	KeySeq int    `db:"key_seq"`
}

type infoTable struct {
	Schema string `db:"table_schema"`
	Name   string `db:"table_name"`
}

type mysqlMetadata struct{}

func (mysqlMetadata) Table(ctx context.Context, q sqlx.QueryerContext, name string) (TableInfo, error) {
	schema, table := fixture.SplitQualified(name)

	var t infoTable
	err := sqlx.GetContext(ctx, q, &t,
		`SELECT TABLE_SCHEMA AS table_schema, TABLE_NAME AS table_name
		FROM information_schema.TABLES
		WHERE LOWER(TABLE_NAME) = LOWER(?) AND TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())`,
		table, schema)
	if errors.Is(err, sql.ErrNoRows) {
		return TableInfo{}, &NoSuchTableError{Table: name}
	}
	if err != nil {
		return TableInfo{}, fmt.Errorf("look up table %s: %w", name, err)
	}

	var cols []infoColumn
	err = sqlx.SelectContext(ctx, q, &cols,
		`SELECT c.COLUMN_NAME AS name, c.DATA_TYPE AS type, COALESCE(k.ORDINAL_POSITION, 0) AS key_seq
		FROM information_schema.COLUMNS c
		LEFT JOIN information_schema.KEY_COLUMN_USAGE k
			ON k.TABLE_SCHEMA = c.TABLE_SCHEMA AND k.TABLE_NAME = c.TABLE_NAME
			AND k.COLUMN_NAME = c.COLUMN_NAME AND k.CONSTRAINT_NAME = 'PRIMARY'
		WHERE c.TABLE_SCHEMA = ? AND c.TABLE_NAME = ?
		ORDER BY c.ORDINAL_POSITION`,
		t.Schema, t.Name)
	if err != nil {
		return TableInfo{}, fmt.Errorf("read columns of %s: %w", name, err)
	}
	return infoToTable(t, cols), nil
}

func (mysqlMetadata) LockReport(ctx context.Context, q sqlx.QueryerContext) (string, error) {
	rows, err := q.QueryxContext(ctx, "SHOW ENGINE INNODB STATUS")
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var buf strings.Builder
	for rows.Next() {
		cols, err := rows.SliceScan()
		if err != nil {
			return "", err
		}
		if len(cols) > 0 {
			buf.WriteString(asText(cols[len(cols)-1]))
		}
	}
	return buf.String(), rows.Err()
}

type postgresMetadata struct{}

func (postgresMetadata) Table(ctx context.Context, q sqlx.QueryerContext, name string) (TableInfo, error) {
	schema, table := fixture.SplitQualified(name)

	var t infoTable
	err := sqlx.GetContext(ctx, q, &t,
		`SELECT table_schema, table_name FROM information_schema.tables
		WHERE lower(table_name) = lower($1)
			AND (($2 = '' AND table_schema = current_schema()) OR lower(table_schema) = lower($2))
		ORDER BY table_schema LIMIT 1`,
		table, schema)
	if errors.Is(err, sql.ErrNoRows) {
		return TableInfo{}, &NoSuchTableError{Table: name}
	}
	if err != nil {
		return TableInfo{}, fmt.Errorf("look up table %s: %w", name, err)
	}

	var cols []infoColumn
	err = sqlx.SelectContext(ctx, q, &cols,
		`SELECT c.column_name AS name, c.data_type AS type, COALESCE(k.ordinal_position, 0) AS key_seq
		FROM information_schema.columns c
		LEFT JOIN information_schema.table_constraints tc
			ON tc.table_schema = c.table_schema AND tc.table_name = c.table_name
			AND tc.constraint_type = 'PRIMARY KEY'
		LEFT JOIN information_schema.key_column_usage k
			ON k.constraint_name = tc.constraint_name AND k.table_schema = c.table_schema
			AND k.table_name = c.table_name AND k.column_name = c.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`,
		t.Schema, t.Name)
	if err != nil {
		return TableInfo{}, fmt.Errorf("read columns of %s: %w", name, err)
	}
	return infoToTable(t, cols), nil
}

func (postgresMetadata) LockReport(ctx context.Context, q sqlx.QueryerContext) (string, error) {
	rows, err := q.QueryxContext(ctx,
		`SELECT l.pid, l.locktype, l.mode, l.granted, COALESCE(l.relation::regclass::text, '')
		FROM pg_locks l WHERE l.pid <> pg_backend_pid() ORDER BY l.pid`)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var buf strings.Builder
	for rows.Next() {
		cols, err := rows.SliceScan()
		if err != nil {
			return "", err
		}
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = asText(c)
		}
		buf.WriteString(strings.Join(parts, " "))
		buf.WriteByte('\n')
	}
	return buf.String(), rows.Err()
}

func infoToTable(t infoTable, cols []infoColumn) TableInfo {
	info := TableInfo{Schema: t.Schema, Name: t.Name, Columns: make([]ColumnInfo, len(cols))}
	for i, c := range cols {
		info.Columns[i] = ColumnInfo{Name: c.Name, Type: c.Type, KeySeq: c.KeySeq}
	}
	return info
}

// passthroughMetadata trusts the fixture for drivers it can't inspect.
type passthroughMetadata struct{}

func (passthroughMetadata) Table(_ context.Context, _ sqlx.QueryerContext, name string) (TableInfo, error) {
	schema, table := fixture.SplitQualified(name)
	return TableInfo{Schema: schema, Name: table}, nil
}

func (passthroughMetadata) LockReport(context.Context, sqlx.QueryerContext) (string, error) {
	return "", nil
}

func asText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
