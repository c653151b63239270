package verify

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMisuse marks mistakes in the test itself rather than in the data:
// reading past the last row, passing more values than there are columns, or
// a checker given a value of a type it can't handle.
var ErrMisuse = errors.New("verification misuse")

// MisuseError is a mistake in how a Comparator was used.
type MisuseError struct {
	Message string
	Cause   error
}

func (e *MisuseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *MisuseError) Is(target error) bool {
	return target == ErrMisuse
}

func (e *MisuseError) Unwrap() error {
	return e.Cause
}

// AssertionError is a row count or value that differs from what was
// expected.
type AssertionError struct {
	// Prefix holds the custom messages set on the Comparator.
	Prefix string

	// Row is the 0-based row, or -1 for a row count failure.
	Row    int
	Column string

	Expected any
	Actual   any

	// ExpectedType and ActualType are set when the types differ.
	ExpectedType string
	ActualType   string

	// Message describes the failure when it is not a plain value mismatch,
	// e.g. the text a ValueChecker returned.
	Message string

	// Diff is the whole row, -expected +actual.
	Diff string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	if e.Prefix != "" {
		buf.WriteString(e.Prefix)
		buf.WriteString(": ")
	}
	if e.Row >= 0 {
		fmt.Fprintf(&buf, "row %d, column %s: ", e.Row, e.Column)
	}
	if e.Message != "" {
		buf.WriteString(e.Message)
	} else {
		fmt.Fprintf(&buf, "expected <%v> but was <%v>", e.Expected, e.Actual)
	}
	if e.ExpectedType != "" || e.ActualType != "" {
		fmt.Fprintf(&buf, " (expected type: %s, actual type: %s)", e.ExpectedType, e.ActualType)
	}
	if e.Diff != "" {
		buf.WriteString("\nrow diff (-expected +actual):\n")
		buf.WriteString(e.Diff)
	}
	return buf.String()
}
