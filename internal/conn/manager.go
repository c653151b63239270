package conn

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/roach88/dbfixture/internal/config"
	"github.com/roach88/dbfixture/internal/dberr"
)

// Manager owns the connection a fixture engine and its tests share. The
// database is opened on first use and cached until Replace or Close.
//
// A Manager is not meant to be shared between goroutines that each expect
// their own session; give every consumer its own Manager.
type Manager struct {
	props  config.Properties
	log    zerolog.Logger
	interp *dberr.Interpreter
	meta   Metadata

	attach          []attachment
	lockDiagnostics bool

	mu     sync.Mutex
	db     *sqlx.DB
	driver string
}

type attachment struct {
	schema string
	dsn    string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithInterpreter overrides the error interpreter picked from the driver.
func WithInterpreter(in *dberr.Interpreter) Option {
	return func(m *Manager) {
		m.interp = in
	}
}

// WithMetadata overrides the schema inspector picked from the driver.
func WithMetadata(md Metadata) Option {
	return func(m *Manager) {
		m.meta = md
	}
}

// WithAttach attaches another SQLite database under schema, so fixtures can
// name its tables as schema.table.
func WithAttach(schema, dsn string) Option {
	return func(m *Manager) {
		m.attach = append(m.attach, attachment{schema: schema, dsn: dsn})
	}
}

// WithLockDiagnostics makes lock failures log a report of the locks held.
func WithLockDiagnostics(on bool) Option {
	return func(m *Manager) {
		m.lockDiagnostics = on
	}
}

// WithDB hands the Manager an already open database, registered under
// driverName. Properties are then only used for messages.
func WithDB(db *sql.DB, driverName string) Option {
	return func(m *Manager) {
		m.db = sqlx.NewDb(db, driverName)
		m.driver = driverName
	}
}

// New creates a Manager for props. Nothing is opened until DB is called.
func New(props config.Properties, opts ...Option) *Manager {
	m := &Manager{
		props: props,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Properties returns the properties the Manager was created with.
func (m *Manager) Properties() config.Properties {
	return m.props
}

// URL returns the configured connection URL.
func (m *Manager) URL() string {
	return m.props.URL
}

// Driver returns the database/sql driver name in use, resolving the
// properties when nothing has been opened yet.
func (m *Manager) Driver() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.driverLocked()
}

func (m *Manager) driverLocked() string {
	if m.driver != "" {
		return m.driver
	}
	if t, err := Resolve(m.props); err == nil {
		return t.Driver
	}
	return m.props.Driver
}

// Dialect returns the SQL dialect of the driver.
func (m *Manager) Dialect() Dialect {
	return DialectFor(m.Driver())
}

// Metadata returns the schema inspector of the driver.
func (m *Manager) Metadata() Metadata {
	if m.meta != nil {
		return m.meta
	}
	return MetadataFor(m.Driver())
}

// Interpreter returns the error interpreter of the driver. When the driver
// name is not recognised and a database is open, the database is asked.
func (m *Manager) Interpreter(ctx context.Context) *dberr.Interpreter {
	if m.interp != nil {
		return m.interp
	}
	m.mu.Lock()
	driver, db := m.driverLocked(), m.db
	m.mu.Unlock()

	in := dberr.ForDriver(driver)
	if in == dberr.Noop() && db != nil {
		in = dberr.ForDB(ctx, db.DB)
	}
	return in
}

// LockDiagnostics reports whether lock failures should log a lock report.
func (m *Manager) LockDiagnostics() bool {
	return m.lockDiagnostics
}

// SetSchema always fails: tables are always referenced by qualified name.
func (m *Manager) SetSchema(schema string) error {
	return fmt.Errorf("set default schema %q: %w", schema, ErrUnsupportedOperation)
}

// DB returns the cached database, opening and pinging it on first use.
//
// A failure the interpreter can explain is returned as a *ConnectionError;
// anything else is returned as is.
func (m *Manager) DB(ctx context.Context) (*sqlx.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return m.db, nil
	}

	t, err := Resolve(m.props)
	if err != nil {
		return nil, err
	}
	db, err := m.open(ctx, t)
	if err != nil {
		return nil, m.connectionFailure(t, err)
	}
	m.db = db
	m.driver = t.Driver
	return db, nil
}

func (m *Manager) open(ctx context.Context, t Target) (*sqlx.DB, error) {
	m.log.Debug().Str("driver", t.Driver).Str("url", t.URL).Msg("opening test database")

	var db *sqlx.DB
	if t.Driver == DriverSQLite {
		db = sqlx.NewDb(sql.OpenDB(m.sqliteConnector(t.DSN)), DriverSQLite)
		if privateMemory(t.DSN) {
			// Every connection to a private in-memory database sees its own
			// empty database.
			db.SetMaxOpenConns(1)
		}
	} else {
		var err error
		if db, err = sqlx.Open(t.Driver, t.DSN); err != nil {
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		closeQuietly(m.log, db)
		return nil, err
	}
	return db, nil
}

// sqliteConnector opens SQLite connections that all carry the foreign key
// PRAGMA and the configured ATTACHes, so the pool may hold more than one.
func (m *Manager) sqliteConnector(dsn string) driver.Connector {
	attach := slices.Clone(m.attach)
	return &sqliteConnector{
		dsn: dsn,
		driver: &sqlite3.SQLiteDriver{
			ConnectHook: func(c *sqlite3.SQLiteConn) error {
				return configureSQLite(c, attach)
			},
		},
	}
}

type sqliteConnector struct {
	dsn    string
	driver *sqlite3.SQLiteDriver
}

func (c *sqliteConnector) Connect(context.Context) (driver.Conn, error) {
	return c.driver.Open(c.dsn)
}

func (c *sqliteConnector) Driver() driver.Driver {
	return c.driver
}

func configureSQLite(c *sqlite3.SQLiteConn, attach []attachment) error {
	if _, err := c.Exec("PRAGMA foreign_keys = ON", nil); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	d := DialectFor(DriverSQLite)
	for _, a := range attach {
		if _, err := c.Exec("ATTACH DATABASE ? AS "+d.QuoteIdent(a.schema), []driver.Value{a.dsn}); err != nil {
			return fmt.Errorf("attach %s as %s: %w", a.dsn, a.schema, err)
		}
	}
	return nil
}

func (m *Manager) connectionFailure(t Target, err error) error {
	in := m.interp
	if in == nil {
		in = dberr.ForDriver(t.Driver)
	}
	if exp, ok := in.ExplainChain(err); ok {
		cerr := &ConnectionError{URL: t.URL, Explanation: exp, Err: err}
		m.log.Error().Err(err).Str("url", t.URL).Str("code", exp.Code).Msg(exp.Message)
		return cerr
	}
	if _, ok := in.CodeInChain(err); ok {
		m.log.Warn().Err(err).Str("url", t.URL).
			Msg("connecting to the test database failed with a SQL error; check that the configured database and schema exist")
	}
	return err
}

// Replace swaps the cached database for db. The previous one is closed.
func (m *Manager) Replace(db *sql.DB, driverName string) {
	m.mu.Lock()
	old := m.db
	m.db = sqlx.NewDb(db, driverName)
	m.driver = driverName
	m.mu.Unlock()

	if old != nil && old.DB != db {
		closeQuietly(m.log, old)
	}
}

// DataSource returns an adapter for code that wants a connection factory.
func (m *Manager) DataSource() *DataSource {
	return &DataSource{m: m}
}

// Close closes the cached database, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// EnsureSQLiteDir creates the directory of a file-backed SQLite database.
func EnsureSQLiteDir(props config.Properties) error {
	t, err := Resolve(props)
	if err != nil || t.Driver != DriverSQLite {
		return err
	}
	p := SQLitePath(t.DSN)
	if p == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create directory for %s: %w", p, err)
	}
	return nil
}

type closer interface {
	Close() error
}

func closeQuietly(log zerolog.Logger, c closer) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close database")
	}
}
