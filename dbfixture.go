package dbfixture

import (
	"github.com/roach88/dbfixture/internal/config"
	"github.com/roach88/dbfixture/internal/conn"
	"github.com/roach88/dbfixture/internal/engine"
	"github.com/roach88/dbfixture/internal/fixture"
	"github.com/roach88/dbfixture/internal/locate"
	"github.com/roach88/dbfixture/internal/verify"
)

// DefaultFixture is applied when no fixture is configured.
const DefaultFixture = "dbfixture-test_data_set.xml"

// Connection property keys accepted by WithProperty.
const (
	KeyDriver   = config.KeyDriver
	KeyURL      = config.KeyURL
	KeyUsername = config.KeyUsername
	KeyPassword = config.KeyPassword
)

type (
	Key        = config.Key
	Properties = config.Properties
	Operation  = engine.Operation
	State      = engine.State
	DataSource = conn.DataSource
	Locator    = locate.Locator

	Store    = fixture.Store
	Document = fixture.Document
	Table    = fixture.Table
	Column   = fixture.Column

	Result         = verify.Result
	Comparator     = verify.Comparator
	ValueChecker   = verify.ValueChecker
	CheckerFunc    = verify.CheckerFunc
	AssertionError = verify.AssertionError
	MisuseError    = verify.MisuseError
	ApplyError     = engine.ApplyError
)

// Operations a Tester can run on set-up and tear-down.
const (
	OpNone        = engine.OpNone
	OpInsert      = engine.OpInsert
	OpDeleteAll   = engine.OpDeleteAll
	OpCleanInsert = engine.OpCleanInsert
)

// Engine states reported by Tester.State.
const (
	StateIdle     = engine.StateIdle
	StateApplying = engine.StateApplying
	StateReady    = engine.StateReady
	StateFailed   = engine.StateFailed
)

// ErrMisuse is wrapped by every error caused by checking a result the wrong
// way (too many expected values, reading past the last row, a checker
// applied to the wrong type).
var ErrMisuse = verify.ErrMisuse

// IsLockError reports whether err is a fixture failure caused by a lock.
func IsLockError(err error) bool {
	return engine.IsLockError(err)
}

// NewLocator creates a file locator that searches dir, then the caller
// hints, then the searchPath directories. An empty dir keeps the default,
// testdata.
func NewLocator(dir string, searchPath ...string) *Locator {
	roots := make([]locate.Root, 0, len(searchPath))
	for _, p := range searchPath {
		roots = append(roots, locate.DirRoot(p))
	}
	opts := []locate.Option{locate.WithSearchPath(roots...)}
	if dir != "" {
		opts = append(opts, locate.WithDefaultDir(dir))
	}
	return locate.New(opts...)
}

// Compose concatenates documents into a store. Tables are not merged by name.
func Compose(docs ...*Document) *Store {
	return fixture.Compose(docs...)
}

// NewTable creates an empty table with the given columns.
func NewTable(name string, columns ...Column) *Table {
	return fixture.NewTable(name, columns...)
}

// FindDuplicates returns the primary keys that occur more than once in t.
// Composite keys are joined with "|".
func FindDuplicates(t *Table, keys []string) []string {
	return fixture.FindDuplicates(t, keys)
}

// NewResult builds an in-memory result from literal rows.
func NewResult(columns []string, rows ...[]any) *Result {
	return verify.NewResult(columns, rows...)
}

// NewComparator checks the rows of a result built without a query.
func NewComparator(res *Result) *Comparator {
	return verify.New(res)
}

// ComparatorFromTable checks the rows of a fixture table.
func ComparatorFromTable(t *Table) *Comparator {
	return verify.New(verify.FromTable(t))
}

// Is accepts values of type T that accept approves.
func Is[T any](desc string, accept func(T) bool) ValueChecker {
	return verify.Is(desc, accept)
}

// NotNull accepts any non-NULL value.
func NotNull() ValueChecker {
	return verify.NotNull()
}

// Anything accepts every value, NULL included.
func Anything() ValueChecker {
	return verify.Anything()
}

// Matches accepts values whose text matches pattern.
func Matches(pattern string) ValueChecker {
	return verify.Matches(pattern)
}
