package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"text/tabwriter"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"

	"github.com/roach88/dbfixture/internal/dberr"
)

// Comparator checks a result row by row.
//
// The cursor starts before the first row. Every AssertNext or
// AssertNextStrings call moves it forward by one, whether the row matches
// or not. Asking for a row past the last one is a misuse and leaves the
// cursor where it is.
type Comparator struct {
	res     *Result
	cursor  int
	message string
	oneTime string
}

// New creates a Comparator over res.
func New(res *Result) *Comparator {
	if res == nil {
		res = &Result{}
	}
	return &Comparator{res: res, cursor: -1}
}

// FromQuery runs query on q and creates a Comparator over its rows. A query
// error the interpreter can explain is returned with the explanation
// prepended.
func FromQuery(ctx context.Context, q sqlx.QueryerContext, in *dberr.Interpreter, query string, args ...any) (*Comparator, error) {
	res, err := Query(ctx, q, query, args...)
	if err != nil {
		if exp, ok := in.ExplainChain(err); ok {
			return nil, fmt.Errorf("%s: query %q: %w", exp, query, err)
		}
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	return New(res), nil
}

// Result returns the rows being checked.
func (c *Comparator) Result() *Result {
	return c.res
}

// RowCount returns the number of rows.
func (c *Comparator) RowCount() int {
	return len(c.res.Rows)
}

// Cursor returns the index of the last row checked, -1 before the first.
func (c *Comparator) Cursor() int {
	return c.cursor
}

// WithMessage sets a message prefixed to every later failure.
func (c *Comparator) WithMessage(msg string) *Comparator {
	c.message = msg
	return c
}

// WithOneTimeMessage sets a message prefixed to the failure of the next
// assertion only. It is cleared by that assertion whatever its outcome.
func (c *Comparator) WithOneTimeMessage(msg string) *Comparator {
	c.oneTime = msg
	return c
}

func (c *Comparator) prefix() string {
	switch {
	case c.message != "" && c.oneTime != "":
		return c.message + ": " + c.oneTime
	case c.oneTime != "":
		return c.oneTime
	default:
		return c.message
	}
}

// AssertRowCount checks the number of rows.
func (c *Comparator) AssertRowCount(n int) error {
	defer c.clearOneTime()
	if got := c.RowCount(); got != n {
		return &AssertionError{
			Prefix:   c.prefix(),
			Row:      -1,
			Expected: n,
			Actual:   got,
			Message:  fmt.Sprintf("there shall be %d rows in total, expected <%d> but was <%d>", n, n, got),
		}
	}
	return nil
}

// AssertNext moves to the next row and compares it with expected,
// positionally. Values must be equal and of the same kind: integers of any
// Go size are compared as int64 and floats as float64, but an integer never
// equals a float or a string. An expected ValueChecker is run on the actual
// value instead. Fewer values than columns check the leading columns.
func (c *Comparator) AssertNext(expected ...any) error {
	return c.next(expected, false)
}

// AssertNextStrings is AssertNext comparing text: every non-NULL actual
// value is turned into a string first, and NULL stays NULL. expected holds
// strings, nils and ValueCheckers.
func (c *Comparator) AssertNextStrings(expected ...any) error {
	return c.next(expected, true)
}

func (c *Comparator) next(expected []any, asText bool) error {
	defer c.clearOneTime()

	if c.cursor+1 >= c.RowCount() {
		return &MisuseError{Message: c.withPrefix(fmt.Sprintf(
			"there is no next row, the row count is %d and row %d was already checked", c.RowCount(), c.cursor))}
	}
	if len(expected) > len(c.res.Columns) {
		return &MisuseError{Message: c.withPrefix(fmt.Sprintf(
			"%d values given but the result has only %d columns %v", len(expected), len(c.res.Columns), c.res.Columns))}
	}
	if asText {
		for i, e := range expected {
			switch e.(type) {
			case nil, string, ValueChecker:
			default:
				return &MisuseError{Message: c.withPrefix(fmt.Sprintf(
					"value %d for column %s is a %T; text comparison takes strings, nil and checkers", i, c.res.Columns[i], e))}
			}
		}
	}

	c.cursor++
	row := c.res.Rows[c.cursor]

	for i, exp := range expected {
		var actual any
		if i < len(row) {
			actual = row[i]
		}
		if asText && actual != nil {
			actual = stringify(actual)
		}
		if err := c.compare(i, exp, actual, expected, row, asText); err != nil {
			return err
		}
	}
	return nil
}

func (c *Comparator) compare(col int, exp, actual any, expectedRow []any, row []any, asText bool) error {
	column := c.res.Columns[col]

	if checker, ok := exp.(ValueChecker); ok {
		err := runCheck(checker, actual)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrMisuse) {
			return &MisuseError{Message: c.withPrefix(fmt.Sprintf("row %d, column %s", c.cursor, column)), Cause: err}
		}
		return &AssertionError{
			Prefix: c.prefix(), Row: c.cursor, Column: column,
			Expected: exp, Actual: actual, Message: err.Error(),
		}
	}

	e, a := normalize(exp), normalize(actual)
	if cmp.Equal(e, a) {
		return nil
	}

	ae := &AssertionError{
		Prefix: c.prefix(), Row: c.cursor, Column: column,
		Expected: exp, Actual: actual,
		Diff: rowDiff(expectedRow, row, asText),
	}
	if e != nil && a != nil && reflect.TypeOf(e) != reflect.TypeOf(a) {
		ae.ExpectedType = fmt.Sprintf("%T", exp)
		ae.ActualType = fmt.Sprintf("%T", actual)
	}
	return ae
}

// rowDiff diffs the compared part of a row, with checkers replaced by the
// value they were given so only literal mismatches show.
func rowDiff(expected, row []any, asText bool) string {
	want := make([]any, len(expected))
	got := make([]any, len(expected))
	for i := range expected {
		var actual any
		if i < len(row) {
			actual = row[i]
		}
		if asText && actual != nil {
			actual = stringify(actual)
		}
		got[i] = normalize(actual)
		if _, ok := expected[i].(ValueChecker); ok {
			want[i] = got[i]
		} else {
			want[i] = normalize(expected[i])
		}
	}
	return cmp.Diff(want, got)
}

func (c *Comparator) withPrefix(msg string) string {
	if p := c.prefix(); p != "" {
		return p + ": " + msg
	}
	return msg
}

func (c *Comparator) clearOneTime() {
	c.oneTime = ""
}

// Print writes the column names and every row as a table.
func (c *Comparator) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, col := range c.res.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, col)
	}
	fmt.Fprintln(tw)
	for _, row := range c.res.Rows {
		for i, v := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			if v == nil {
				fmt.Fprint(tw, "null")
			} else {
				fmt.Fprint(tw, stringify(v))
			}
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// normalize widens numbers so 3 and int64(3) compare equal. Unsigned
// values above MaxInt64 stay uint64.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint:
		return normalize(uint64(x))
	case uint64:
		if x > math.MaxInt64 {
			return x
		}
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
