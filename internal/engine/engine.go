package engine

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/roach88/dbfixture/internal/config"
	"github.com/roach88/dbfixture/internal/conn"
	"github.com/roach88/dbfixture/internal/dberr"
	"github.com/roach88/dbfixture/internal/fixture"
	"github.com/roach88/dbfixture/internal/locate"
)

// Connector is what the engine needs from a connection manager.
// *conn.Manager implements it.
type Connector interface {
	DB(ctx context.Context) (*sqlx.DB, error)
	Dialect() conn.Dialect
	Metadata() conn.Metadata
	Interpreter(ctx context.Context) *dberr.Interpreter
	LockDiagnostics() bool
	URL() string
}

// Resetter resets a database to a fixture.
type Resetter interface {
	Apply(ctx context.Context, store *fixture.Store) error
}

// TableClearer empties one table.
type TableClearer interface {
	ClearTable(ctx context.Context, name string) (int64, error)
}

var (
	_ Connector    = (*conn.Manager)(nil)
	_ Resetter     = (*Engine)(nil)
	_ TableClearer = (*Engine)(nil)
)

// Engine applies fixture stores to a database.
//
// State machine:
//
//	Idle -> Applying -> Ready
//	Idle -> Applying -> Failed
//
// Apply may be called again from Ready or Failed; it simply runs again.
// Every operation runs in one transaction, so a failure leaves the database
// as it was before the call. ClearTable and Teardown don't move the state.
//
// An Engine is used by one test at a time.
type Engine struct {
	conn     Connector
	loc      *locate.Locator
	log      zerolog.Logger
	settings config.Settings
	setup    Operation
	teardown Operation

	mu    sync.Mutex
	state State
	store *fixture.Store
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithLocator sets the locator used by Load.
func WithLocator(l *locate.Locator) Option {
	return func(e *Engine) {
		e.loc = l
	}
}

// WithSettings sets the process-wide settings (fixture dumping).
func WithSettings(s config.Settings) Option {
	return func(e *Engine) {
		e.settings = s
	}
}

// WithSetUpOperation sets the operation Apply performs. Default OpCleanInsert.
func WithSetUpOperation(op Operation) Option {
	return func(e *Engine) {
		e.setup = op
	}
}

// WithTearDownOperation sets the operation Teardown performs. Default OpNone.
func WithTearDownOperation(op Operation) Option {
	return func(e *Engine) {
		e.teardown = op
	}
}

// New creates an idle Engine on c.
func New(c Connector, opts ...Option) *Engine {
	e := &Engine{
		conn:     c,
		log:      zerolog.Nop(),
		setup:    OpCleanInsert,
		teardown: OpNone,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.loc == nil {
		e.loc = locate.New(locate.WithLogger(e.log))
	}
	return e
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Store returns the store last applied or replaced.
func (e *Engine) Store() *fixture.Store {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store
}

// LoadDocument locates and parses one fixture file.
func (e *Engine) LoadDocument(name string, hints ...string) (*fixture.Document, error) {
	res, err := e.loc.Locate(name, hints...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := res.Close(); cerr != nil {
			e.log.Warn().Err(cerr).Str("file", res.Location).Msg("failed to close fixture file")
		}
	}()

	doc, err := fixture.Load(res, res.Name)
	if err != nil {
		return nil, err
	}
	if e.settings.DumpDataSet {
		e.dump(doc)
	}
	return doc, nil
}

// Load locates and parses fixture files and composes them in order.
func (e *Engine) Load(names []string, hints ...string) (*fixture.Store, error) {
	docs := make([]*fixture.Document, 0, len(names))
	for _, name := range names {
		doc, err := e.LoadDocument(name, hints...)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return fixture.Compose(docs...), nil
}

func (e *Engine) dump(doc *fixture.Document) {
	var buf bytes.Buffer
	if err := fixture.WriteXML(&buf, doc.Tables); err != nil {
		e.log.Warn().Err(err).Str("fixture", doc.Name).Msg("failed to dump fixture")
		return
	}
	e.log.Info().Str("fixture", doc.Name).Msg("loaded fixture:\n" + buf.String())
}

// Apply runs the set-up operation (clean-insert unless configured) for store
// and makes store the active one.
func (e *Engine) Apply(ctx context.Context, store *fixture.Store) error {
	return e.apply(ctx, e.setup, store)
}

// Replace makes store the active one and clean-inserts it, whatever the
// set-up operation. The previous store is dropped entirely; tables are not
// merged by name.
func (e *Engine) Replace(ctx context.Context, store *fixture.Store) error {
	return e.apply(ctx, OpCleanInsert, store)
}

// ReplaceFiles loads names and replaces the active store with them.
func (e *Engine) ReplaceFiles(ctx context.Context, names []string, hints ...string) error {
	store, err := e.Load(names, hints...)
	if err != nil {
		return err
	}
	return e.Replace(ctx, store)
}

func (e *Engine) apply(ctx context.Context, op Operation, store *fixture.Store) error {
	if store == nil {
		store = fixture.Compose()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := store.Validate(); err != nil {
		// Nothing was sent to the database; the active store is kept.
		e.state = StateFailed
		return e.failure(ctx, op, store, err)
	}

	e.state = StateApplying
	e.store = store
	e.log.Debug().Stringer("operation", op).Str("fixture", store.Name()).Msg("applying fixture")

	if err := e.execute(ctx, op, store.Tables()); err != nil {
		e.state = StateFailed
		return e.failure(ctx, op, store, err)
	}

	e.state = StateReady
	e.log.Debug().Stringer("operation", op).Str("fixture", store.Name()).Msg("fixture applied")
	return nil
}

// Teardown runs the tear-down operation on the active store. With the
// default OpNone it does nothing.
func (e *Engine) Teardown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.teardown == OpNone || e.store == nil {
		return nil
	}
	if err := e.execute(ctx, e.teardown, e.store.Tables()); err != nil {
		return e.failure(ctx, e.teardown, e.store, err)
	}
	return nil
}

// ClearTable deletes every row of one table and returns how many there were.
func (e *Engine) ClearTable(ctx context.Context, name string) (int64, error) {
	db, err := e.conn.DB(ctx)
	if err != nil {
		return 0, err
	}

	info, err := e.conn.Metadata().Table(ctx, db, name)
	if err != nil {
		return 0, e.failure(ctx, OpDeleteAll, nil, &tableError{table: name, err: err})
	}
	res, err := db.ExecContext(ctx, "DELETE FROM "+e.qualified(info))
	if err != nil {
		return 0, e.failure(ctx, OpDeleteAll, nil, &tableError{table: name, err: err})
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear %s: %w", name, err)
	}
	e.log.Debug().Str("table", name).Int64("rows", n).Msg("table cleared")
	return n, nil
}

// execute runs op over tables in one transaction. Deletes go in reverse
// document order, each table once, so children are emptied before their
// parents; inserts go in document order.
func (e *Engine) execute(ctx context.Context, op Operation, tables []*fixture.Table) (err error) {
	if op == OpNone {
		return nil
	}

	db, err := e.conn.DB(ctx)
	if err != nil {
		return err
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			e.log.Warn().Err(rerr).Msg("failed to roll back fixture transaction")
		}
	}()

	infos := make(map[string]conn.TableInfo)
	lookup := func(name string) (conn.TableInfo, error) {
		key := fixture.Fold(name)
		if info, ok := infos[key]; ok {
			return info, nil
		}
		info, err := e.conn.Metadata().Table(ctx, tx, name)
		if err != nil {
			return conn.TableInfo{}, err
		}
		infos[key] = info
		return info, nil
	}

	if op.deletes() {
		names := distinctNames(tables)
		for i := len(names) - 1; i >= 0; i-- {
			info, err := lookup(names[i])
			if err != nil {
				return &tableError{table: names[i], err: err}
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+e.qualified(info)); err != nil {
				return &tableError{table: names[i], err: err}
			}
		}
	}

	if op.inserts() {
		for _, t := range tables {
			info, err := lookup(t.Name)
			if err != nil {
				return &tableError{table: t.Name, err: err}
			}
			if err := e.insert(ctx, tx, info, t); err != nil {
				return &tableError{table: t.Name, err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (e *Engine) insert(ctx context.Context, tx *sqlx.Tx, info conn.TableInfo, t *fixture.Table) error {
	if len(t.Rows) == 0 {
		return nil
	}
	d := e.conn.Dialect()

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		name := c.Name
		if info.Columns != nil {
			live, ok := info.Column(c.Name)
			if !ok {
				return fmt.Errorf("no column %q in %s", c.Name, e.qualified(info))
			}
			name = live.Name
		}
		cols[i] = d.QuoteIdent(name)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		e.qualified(info), strings.Join(cols, ", "), d.Placeholders(len(cols)))
	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			e.log.Warn().Err(cerr).Str("table", t.Name).Msg("failed to close insert statement")
		}
	}()

	for i, row := range t.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

func (e *Engine) qualified(info conn.TableInfo) string {
	return e.conn.Dialect().QuoteTable(info.Schema, info.Name)
}

// failure turns err into an *ApplyError, logging what is known about it.
func (e *Engine) failure(ctx context.Context, op Operation, store *fixture.Store, err error) error {
	ae := &ApplyError{Operation: op, URL: e.conn.URL(), Err: err}

	var te *tableError
	if errors.As(err, &te) {
		ae.Table = te.table
	}
	if store != nil {
		ae.Document = store.Name()
		ae.Description = fixture.DescribeWithKeys(store.Tables(), e.primaryKeys(ctx))
	}

	in := e.conn.Interpreter(ctx)
	exp, explained := in.ExplainChain(err)
	if explained {
		ae.Explanation = &exp
	}

	switch {
	case errors.Is(err, conn.ErrNoSuchTable):
		wd, _ := os.Getwd()
		ae.Hint = fmt.Sprintf("the table does not exist; create the test database with `dbfixture create`"+
			" (the working directory is %s)", wd)
	case !explained:
		if _, ok := in.CodeInChain(err); ok {
			e.log.Warn().Err(err).Msg("the fixture failed with a SQL error; check that the schemas its qualified table names use exist")
		}
	}

	ev := e.log.Error().Err(err).Stringer("operation", op)
	if ae.Table != "" {
		ev = ev.Str("table", ae.Table)
	}
	if ae.Description != "" {
		ev = ev.Str("fixture", ae.Document).Str("description", ae.Description)
	}
	ev.Msg("fixture operation failed")

	if explained && exp.IsLock() && e.conn.LockDiagnostics() {
		e.logLockReport(ctx)
	}
	return ae
}

// primaryKeys looks primary keys up outside any transaction. Lookups that
// fail yield no keys.
func (e *Engine) primaryKeys(ctx context.Context) fixture.KeyLookup {
	db, err := e.conn.DB(ctx)
	if err != nil {
		return nil
	}
	md := e.conn.Metadata()
	return func(table string) []string {
		info, err := md.Table(ctx, db, table)
		if err != nil {
			return nil
		}
		return info.PrimaryKeys()
	}
}

func (e *Engine) logLockReport(ctx context.Context) {
	db, err := e.conn.DB(ctx)
	if err != nil {
		return
	}
	report, err := e.conn.Metadata().LockReport(ctx, db)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to read lock report")
		return
	}
	if report != "" {
		e.log.Error().Msg("lock report:\n" + report)
	}
}

func distinctNames(tables []*fixture.Table) []string {
	seen := make(map[string]bool, len(tables))
	var names []string
	for _, t := range tables {
		f := fixture.Fold(t.Name)
		if seen[f] {
			continue
		}
		seen[f] = true
		names = append(names, t.Name)
	}
	return names
}
