package fixture

import (
	"errors"
	"fmt"
)

// ErrArity is returned when a row does not have one value per column.
var ErrArity = errors.New("row arity does not match column count")

// DataType is the declared type of a column. Values loaded from XML are all
// text and carry TypeUnknown; typed documents record what they saw.
type DataType string

const (
	TypeUnknown   DataType = ""
	TypeString    DataType = "string"
	TypeInteger   DataType = "integer"
	TypeFloat     DataType = "float"
	TypeBoolean   DataType = "boolean"
	TypeTimestamp DataType = "timestamp"
	TypeBinary    DataType = "binary"
)

// Column is a named, typed column of a fixture table.
type Column struct {
	Name string
	Type DataType
}

// Row holds one value per column, positionally. nil is SQL NULL.
type Row []any

// Table is an ordered set of rows under an ordered set of columns.
type Table struct {
	// Name may be schema-qualified.
	Name    string
	Columns []Column
	Rows    []Row
}

// NewTable creates an empty table.
func NewTable(name string, columns ...Column) *Table {
	return &Table{Name: name, Columns: columns}
}

// AddRow appends a row. It fails with ErrArity when len(values) differs from
// the column count.
func (t *Table) AddRow(values ...any) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("table %s: %w: %d columns, %d values", t.Name, ErrArity, len(t.Columns), len(values))
	}
	t.Rows = append(t.Rows, Row(values))
	return nil
}

// ColumnIndex returns the position of the named column, matched
// case-insensitively, or -1.
func (t *Table) ColumnIndex(name string) int {
	folded := Fold(name)
	for i, c := range t.Columns {
		if Fold(c.Name) == folded {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in declared order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Value returns the value of column in row.
func (t *Table) Value(row int, column string) (any, error) {
	if row < 0 || row >= len(t.Rows) {
		return nil, fmt.Errorf("table %s: row %d out of range [0,%d)", t.Name, row, len(t.Rows))
	}
	i := t.ColumnIndex(column)
	if i < 0 {
		return nil, fmt.Errorf("table %s: no column %q", t.Name, column)
	}
	return t.Rows[row][i], nil
}

// Validate checks every row's arity.
func (t *Table) Validate() error {
	for i, r := range t.Rows {
		if len(r) != len(t.Columns) {
			return fmt.Errorf("table %s row %d: %w: %d columns, %d values", t.Name, i, ErrArity, len(t.Columns), len(r))
		}
	}
	return nil
}

// addColumn appends a column and pads existing rows with NULL.
func (t *Table) addColumn(c Column) int {
	t.Columns = append(t.Columns, c)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], nil)
	}
	return len(t.Columns) - 1
}

// Document is one fixture file: tables in declared order.
type Document struct {
	// Name is where the document came from, for diagnostics.
	Name   string
	Tables []*Table
}

// Table returns the named table, matched case-insensitively.
func (d *Document) Table(name string) (*Table, bool) {
	for _, t := range d.Tables {
		if SameName(t.Name, name) {
			return t, true
		}
	}
	return nil, false
}

// table returns the named table, appending a new one when it is not there yet.
func (d *Document) table(name string) *Table {
	if t, ok := d.Table(name); ok {
		return t
	}
	t := NewTable(name)
	d.Tables = append(d.Tables, t)
	return t
}

// Store holds the documents a fixture engine applies together.
type Store struct {
	docs []*Document
}

// Compose concatenates documents. Tables keep their document order and
// later documents' tables follow; tables sharing a name are not merged.
func Compose(docs ...*Document) *Store {
	s := &Store{}
	for _, d := range docs {
		if d != nil {
			s.docs = append(s.docs, d)
		}
	}
	return s
}

// Documents returns the composed documents.
func (s *Store) Documents() []*Document {
	if s == nil {
		return nil
	}
	return s.docs
}

// Tables returns every table of every document, in order.
func (s *Store) Tables() []*Table {
	if s == nil {
		return nil
	}
	var out []*Table
	for _, d := range s.docs {
		out = append(out, d.Tables...)
	}
	return out
}

// TableNames returns each distinct table name once, in first-appearance order.
func (s *Store) TableNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range s.Tables() {
		f := Fold(t.Name)
		if seen[f] {
			continue
		}
		seen[f] = true
		names = append(names, t.Name)
	}
	return names
}

// Name joins the document names.
func (s *Store) Name() string {
	var name string
	for i, d := range s.Documents() {
		if i > 0 {
			name += "+"
		}
		name += d.Name
	}
	return name
}

// Validate checks every table.
func (s *Store) Validate() error {
	for _, t := range s.Tables() {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}
