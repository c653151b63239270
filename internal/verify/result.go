package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/dbfixture/internal/fixture"
)

// Result is a query result held in memory: named columns and positional
// rows.
type Result struct {
	Columns []string
	Rows    [][]any
}

// NewResult builds a Result from literal rows.
func NewResult(columns []string, rows ...[]any) *Result {
	return &Result{Columns: columns, Rows: rows}
}

// FromTable builds a Result from a fixture table.
func FromTable(t *fixture.Table) *Result {
	res := &Result{Columns: t.ColumnNames(), Rows: make([][]any, len(t.Rows))}
	for i, r := range t.Rows {
		res.Rows[i] = []any(r)
	}
	return res
}

// ColumnIndex finds a column case-insensitively, or returns -1.
func (r *Result) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if fixture.SameName(c, name) {
			return i
		}
	}
	return -1
}

// Query runs query and reads every row. Text that the driver hands back as
// []byte becomes a string; binary columns stay []byte.
func Query(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (*Result, error) {
	rows, err := q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	binary := make([]bool, len(cols))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, t := range types {
			binary[i] = isBinaryType(t.DatabaseTypeName())
		}
	}

	res := &Result{Columns: cols}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(res.Rows), err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok && !binary[i] {
				values[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func isBinaryType(name string) bool {
	n := strings.ToUpper(name)
	return strings.Contains(n, "BLOB") || strings.Contains(n, "BINARY") || n == "BYTEA"
}
