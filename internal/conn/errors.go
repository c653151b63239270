package conn

import (
	"errors"
	"fmt"

	"github.com/roach88/dbfixture/internal/dberr"
)

// ErrUnsupportedOperation is returned by SetSchema: every table reference
// goes through its qualified name, so there is no default schema to set.
var ErrUnsupportedOperation = errors.New("unsupported operation")

// ConnectionError is a failed connection attempt that the database family's
// interpreter could explain.
type ConnectionError struct {
	URL         string
	Explanation dberr.Explanation
	Err         error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s (the URL used was %s): %v", e.Explanation, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
