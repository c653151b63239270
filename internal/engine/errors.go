package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/dbfixture/internal/dberr"
)

// ApplyError is a fixture operation that failed partway. Nothing it did was
// committed.
type ApplyError struct {
	Operation Operation

	// Table is the table being processed when the failure happened, if any.
	Table string

	// Document names the fixture documents, joined with "+".
	Document string

	// Description lists the fixture's tables, row counts and duplicated
	// primary keys.
	Description string

	// URL is the configured connection URL.
	URL string

	// Explanation is set when the database family recognised the failure.
	Explanation *dberr.Explanation

	// Hint suggests a fix for failures that have no explanation.
	Hint string

	Err error
}

func (e *ApplyError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s failed", e.Operation)
	if e.Document != "" {
		fmt.Fprintf(&buf, " for %s", e.Document)
	}
	if e.Table != "" {
		fmt.Fprintf(&buf, " at table %s", e.Table)
	}
	fmt.Fprintf(&buf, ": %v", e.Err)
	if e.Explanation != nil {
		fmt.Fprintf(&buf, "; %s (the URL used was %s)", e.Explanation, e.URL)
	}
	if e.Hint != "" {
		fmt.Fprintf(&buf, "; %s", e.Hint)
	}
	return buf.String()
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// IsLockError reports whether err is an ApplyError explained as a lock
// conflict.
func IsLockError(err error) bool {
	var ae *ApplyError
	if errors.As(err, &ae) {
		return ae.Explanation != nil && ae.Explanation.IsLock()
	}
	return false
}

// tableError records which table a failure happened on.
type tableError struct {
	table string
	err   error
}

func (e *tableError) Error() string {
	return fmt.Sprintf("table %s: %v", e.table, e.err)
}

func (e *tableError) Unwrap() error {
	return e.err
}
