package dbfixture

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/roach88/dbfixture/internal/config"
	"github.com/roach88/dbfixture/internal/conn"
	"github.com/roach88/dbfixture/internal/engine"
	"github.com/roach88/dbfixture/internal/locate"
	"github.com/roach88/dbfixture/internal/schema"
	"github.com/roach88/dbfixture/internal/verify"
)

type property struct {
	key   Key
	value string
}

// Tester applies fixtures to one test database and checks its contents.
// It is used by one test at a time.
type Tester struct {
	log       zerolog.Logger
	loc       *locate.Locator
	settings  config.Settings
	propsFile string
	props     []property
	hints     []string
	fixtures  []string
	store     *Store
	ddl       []string
	connOpts  []conn.Option
	setup     Operation
	teardown  Operation

	resolver *config.Resolver
	mgr      *conn.Manager
	eng      *engine.Engine

	ddlOnce sync.Once
	ddlErr  error
}

// Option configures a Tester.
type Option func(*Tester)

// WithPropertiesFile replaces dbfixture.properties as the name of the
// connection properties file looked up on the search path.
func WithPropertiesFile(name string) Option {
	return func(t *Tester) {
		t.propsFile = name
	}
}

// WithProperty sets a connection property, taking precedence over the
// properties file.
func WithProperty(key Key, value string) Option {
	return func(t *Tester) {
		t.props = append(t.props, property{key: key, value: value})
	}
}

// WithFixture sets the fixture files applied on set-up, composed in order.
func WithFixture(names ...string) Option {
	return func(t *Tester) {
		t.fixtures = names
		t.store = nil
	}
}

// WithStore sets a programmatically built fixture applied on set-up.
func WithStore(s *Store) Option {
	return func(t *Tester) {
		t.store = s
		t.fixtures = nil
	}
}

// WithCallerHint adds directories searched for fixture and DDL files after
// testdata/, typically the calling test's package directory.
func WithCallerHint(dirs ...string) Option {
	return func(t *Tester) {
		t.hints = append(t.hints, dirs...)
	}
}

// WithDDL runs DDL files, in order, before the first set-up.
func WithDDL(names ...string) Option {
	return func(t *Tester) {
		t.ddl = append(t.ddl, names...)
	}
}

// WithLogger sets the logger. The default logs nothing.
func WithLogger(log zerolog.Logger) Option {
	return func(t *Tester) {
		t.log = log
	}
}

// WithLocator replaces the file locator built from DBFIXTURE_PATH.
func WithLocator(l *Locator) Option {
	return func(t *Tester) {
		t.loc = l
	}
}

// WithSetUpOperation sets what OnSetup does with the fixture. Default
// OpCleanInsert.
func WithSetUpOperation(op Operation) Option {
	return func(t *Tester) {
		t.setup = op
	}
}

// WithTearDownOperation sets what OnTeardown does with the fixture. Default
// OpNone.
func WithTearDownOperation(op Operation) Option {
	return func(t *Tester) {
		t.teardown = op
	}
}

// WithAttach attaches another SQLite database under schema.
func WithAttach(schema, dsn string) Option {
	return func(t *Tester) {
		t.connOpts = append(t.connOpts, conn.WithAttach(schema, dsn))
	}
}

// WithDB uses an already open database instead of connecting.
func WithDB(db *sql.DB, driverName string) Option {
	return func(t *Tester) {
		t.connOpts = append(t.connOpts, conn.WithDB(db, driverName))
	}
}

// New creates a Tester. Nothing is connected until a method needs the
// database. An unknown property key is an error.
func New(opts ...Option) (*Tester, error) {
	t := &Tester{
		log:      zerolog.Nop(),
		settings: config.LoadSettings(),
		setup:    OpCleanInsert,
		teardown: OpNone,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.loc == nil {
		t.loc = locate.FromSettings(t.settings, locate.WithLogger(t.log))
	}
	if t.store == nil && len(t.fixtures) == 0 {
		t.fixtures = []string{DefaultFixture}
	}

	if t.propsFile == "" && len(t.props) == 0 {
		t.resolver = config.Default(t.loc, config.WithLogger(t.log))
	} else {
		t.resolver = config.Load(t.loc, t.propsFile, config.WithLogger(t.log))
		for _, p := range t.props {
			if _, _, err := t.resolver.Override(p.key, p.value); err != nil {
				return nil, err
			}
		}
	}

	connOpts := append([]conn.Option{
		conn.WithLogger(t.log),
		conn.WithLockDiagnostics(t.settings.LockDiagnostics),
	}, t.connOpts...)
	t.mgr = conn.New(t.resolver.Properties(), connOpts...)

	t.eng = engine.New(t.mgr,
		engine.WithLogger(t.log),
		engine.WithLocator(t.loc),
		engine.WithSettings(t.settings),
		engine.WithSetUpOperation(t.setup),
		engine.WithTearDownOperation(t.teardown),
	)
	return t, nil
}

// Setup creates a Tester, runs OnSetup and registers OnTeardown and Close
// as cleanups. Any failure fails the test.
func Setup(tb testing.TB, opts ...Option) *Tester {
	tb.Helper()
	t, err := New(opts...)
	if err != nil {
		tb.Fatalf("dbfixture: %v", err)
	}
	tb.Cleanup(func() {
		if err := t.OnTeardown(context.Background()); err != nil {
			tb.Errorf("dbfixture: teardown: %v", err)
		}
		if err := t.Close(); err != nil {
			tb.Errorf("dbfixture: close: %v", err)
		}
	})
	if err := t.OnSetup(context.Background()); err != nil {
		tb.Fatalf("dbfixture: %v", err)
	}
	return t
}

// OnSetup runs the DDL files once, then loads the configured fixture and
// applies the set-up operation.
func (t *Tester) OnSetup(ctx context.Context) error {
	if err := t.runDDL(ctx); err != nil {
		return err
	}
	store := t.store
	if store == nil {
		var err error
		if store, err = t.eng.Load(t.fixtures, t.hints...); err != nil {
			return err
		}
	}
	return t.eng.Apply(ctx, store)
}

func (t *Tester) runDDL(ctx context.Context) error {
	t.ddlOnce.Do(func() {
		c := schema.New(t.mgr, t.loc, schema.WithLogger(t.log))
		for _, name := range t.ddl {
			if t.ddlErr = c.LoadDDL(ctx, name, t.hints...); t.ddlErr != nil {
				t.ddlErr = fmt.Errorf("run %s: %w", name, t.ddlErr)
				return
			}
		}
	})
	return t.ddlErr
}

// OnTeardown runs the tear-down operation on the active fixture.
func (t *Tester) OnTeardown(ctx context.Context) error {
	return t.eng.Teardown(ctx)
}

// Replace clean-inserts store and makes it the active fixture.
func (t *Tester) Replace(ctx context.Context, store *Store) error {
	return t.eng.Replace(ctx, store)
}

// ReplaceFiles loads names and clean-inserts them as the active fixture.
func (t *Tester) ReplaceFiles(ctx context.Context, names ...string) error {
	return t.eng.ReplaceFiles(ctx, names, t.hints...)
}

// ClearTable deletes every row of table and returns how many there were.
func (t *Tester) ClearTable(ctx context.Context, table string) (int64, error) {
	return t.eng.ClearTable(ctx, table)
}

// CheckSelect runs query and returns a Comparator over its rows. A failing
// query is explained when the database family recognises the error.
func (t *Tester) CheckSelect(ctx context.Context, query string, args ...any) (*Comparator, error) {
	db, err := t.mgr.DB(ctx)
	if err != nil {
		return nil, err
	}
	return verify.FromQuery(ctx, db, t.mgr.Interpreter(ctx), query, args...)
}

// Store returns the active fixture, or nil before the first set-up.
func (t *Tester) Store() *Store {
	return t.eng.Store()
}

// State returns where the fixture engine is in applying its fixture.
func (t *Tester) State() State {
	return t.eng.State()
}

// Properties returns the resolved connection properties.
func (t *Tester) Properties() Properties {
	return t.mgr.Properties()
}

// DB returns the cached connection, opening it on first use.
func (t *Tester) DB(ctx context.Context) (*sqlx.DB, error) {
	return t.mgr.DB(ctx)
}

// DataSource returns a connection factory backed by the same connection
// logic.
func (t *Tester) DataSource() *DataSource {
	return t.mgr.DataSource()
}

// SetSchema always fails: table names must be qualified instead.
func (t *Tester) SetSchema(name string) error {
	return t.mgr.SetSchema(name)
}

// Close closes the connection.
func (t *Tester) Close() error {
	return t.mgr.Close()
}
