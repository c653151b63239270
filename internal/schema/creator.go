package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/roach88/dbfixture/internal/conn"
	"github.com/roach88/dbfixture/internal/locate"
)

// DDLFileName is the script CreateAndInitialize runs.
const DDLFileName = "create_db_content.ddl"

// CreateError is a failed attempt to create and initialize the test
// database.
type CreateError struct {
	URL     string
	WorkDir string
	DDLFile string
	Err     error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("failed to create the test database at %s from %s (working directory %s): %v",
		e.URL, e.DDLFile, e.WorkDir, e.Err)
}

func (e *CreateError) Unwrap() error {
	return e.Err
}

// Creator runs DDL scripts against the test database.
type Creator struct {
	mgr *conn.Manager
	loc *locate.Locator
	log zerolog.Logger
}

// Option configures a Creator.
type Option func(*Creator)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Creator) {
		c.log = log
	}
}

// New creates a Creator that connects through mgr and finds scripts
// through loc.
func New(mgr *conn.Manager, loc *locate.Locator, opts ...Option) *Creator {
	c := &Creator{mgr: mgr, loc: loc, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.loc == nil {
		c.loc = locate.New(locate.WithLogger(c.log))
	}
	return c
}

// Execute runs statements in order in one transaction.
func (c *Creator) Execute(ctx context.Context, stmts []string) error {
	return execute(ctx, c.mgr, stmts, c.log)
}

func execute(ctx context.Context, mgr *conn.Manager, stmts []string, log zerolog.Logger) (err error) {
	db, err := mgr.DB(ctx)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			log.Warn().Err(rerr).Msg("failed to roll back DDL transaction")
		}
	}()

	for i, s := range stmts {
		log.Debug().Int("statement", i+1).Msg(s)
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("statement %d (%s): %w", i+1, firstLine(s), err)
		}
	}
	return tx.Commit()
}

// LoadDDL locates a DDL script and executes it.
func (c *Creator) LoadDDL(ctx context.Context, name string, hints ...string) error {
	return c.load(ctx, c.mgr, name, hints)
}

func (c *Creator) load(ctx context.Context, mgr *conn.Manager, name string, hints []string) error {
	res, err := c.loc.Locate(name, hints...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := res.Close(); cerr != nil {
			c.log.Warn().Err(cerr).Str("file", res.Location).Msg("failed to close DDL file")
		}
	}()

	stmts, err := ParseDDL(res)
	if err != nil {
		return fmt.Errorf("read %s: %w", res.Location, err)
	}
	c.log.Info().Str("file", res.Location).Int("statements", len(stmts)).Msg("executing DDL")
	return execute(ctx, mgr, stmts, c.log)
}

// CreateAndInitialize creates the test database, asking the driver to create
// it on connection, and runs DDLFileName against it.
func (c *Creator) CreateAndInitialize(ctx context.Context, hints ...string) error {
	props := conn.ForCreate(c.mgr.Properties())
	wd, _ := os.Getwd()
	fail := func(err error) error {
		return &CreateError{URL: props.URL, WorkDir: wd, DDLFile: DDLFileName, Err: err}
	}

	if err := conn.EnsureSQLiteDir(props); err != nil {
		return fail(err)
	}
	creating := conn.New(props, conn.WithLogger(c.log))
	defer func() {
		if err := creating.Close(); err != nil {
			c.log.Warn().Err(err).Msg("failed to close database after creating it")
		}
	}()

	c.log.Info().Str("url", props.URL).Msg("creating test database")
	if err := c.load(ctx, creating, DDLFileName, hints); err != nil {
		return fail(err)
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i] + " ..."
		}
	}
	return s
}
