package fixture

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrMalformed is returned for documents that can't be read as a fixture.
var ErrMalformed = errors.New("malformed fixture document")

// Load reads a fixture document, choosing the format from the extension of
// name: .yaml and .yml are YAML, anything else is flat XML.
func Load(r io.Reader, name string) (*Document, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return LoadYAML(r, name)
	default:
		return LoadXML(r, name)
	}
}

// LoadXML reads a flat XML fixture. Each child of the root element is one
// row of the table named by its tag. Columns are given either as attributes
// or as child elements; a column that is absent from a row is NULL, as is a
// column element carrying null="true". An element with no columns at all
// declares the table without adding a row.
func LoadXML(r io.Reader, name string) (*Document, error) {
	dec := xml.NewDecoder(r)
	doc := &Document{Name: name}

	root, err := nextStart(dec)
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w: no root element", name, ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, ErrMalformed, err)
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", name, ErrMalformed, err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if err := readRow(dec, doc, el); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		case xml.EndElement:
			if el.Name.Local != root.Name.Local {
				return nil, fmt.Errorf("%s: %w: unexpected </%s>", name, ErrMalformed, el.Name.Local)
			}
			return doc, nil
		}
	}
}

func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if el, ok := tok.(xml.StartElement); ok {
			return el, nil
		}
	}
}

// readRow consumes one table element, up to and including its end tag.
func readRow(dec *xml.Decoder, doc *Document, el xml.StartElement) error {
	tableName := qualifiedName(el.Name)
	var names []string
	var values []any

	for _, a := range el.Attr {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		names = append(names, a.Name.Local)
		values = append(values, a.Value)
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: table %s: %v", ErrMalformed, tableName, err)
		}
		switch c := tok.(type) {
		case xml.StartElement:
			v, err := readColumn(dec, c)
			if err != nil {
				return fmt.Errorf("table %s: %w", tableName, err)
			}
			names = append(names, c.Name.Local)
			values = append(values, v)
		case xml.EndElement:
			t := doc.table(tableName)
			if len(names) == 0 {
				return nil
			}
			return appendSensed(t, names, values)
		}
	}
}

// readColumn consumes one column element and returns its text, or nil for
// null="true".
func readColumn(dec *xml.Decoder, el xml.StartElement) (any, error) {
	isNull := false
	for _, a := range el.Attr {
		if a.Name.Local == "null" && strings.EqualFold(a.Value, "true") {
			isNull = true
		}
	}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: column %s: %v", ErrMalformed, el.Name.Local, err)
		}
		switch c := tok.(type) {
		case xml.CharData:
			text.Write(c)
		case xml.StartElement:
			return nil, fmt.Errorf("%w: column %s has nested element <%s>", ErrMalformed, el.Name.Local, c.Name.Local)
		case xml.EndElement:
			if isNull {
				return nil, nil
			}
			return text.String(), nil
		}
	}
}

// appendSensed adds a row whose columns may differ from the rows before it.
// Unknown columns are appended to the table and missing ones are NULL.
func appendSensed(t *Table, names []string, values []any) error {
	row := make(Row, len(t.Columns))
	for i, n := range names {
		idx := t.ColumnIndex(n)
		if idx < 0 {
			idx = t.addColumn(Column{Name: n})
			row = append(row, nil)
		}
		row[idx] = values[i]
	}
	if len(row) != len(t.Columns) {
		return fmt.Errorf("table %s: %w", t.Name, ErrArity)
	}
	t.Rows = append(t.Rows, row)
	return nil
}

func qualifiedName(n xml.Name) string {
	// "schema:table" is accepted as an alternative spelling of "schema.table".
	if n.Space != "" && !strings.Contains(n.Space, "/") {
		return n.Space + "." + n.Local
	}
	return n.Local
}
