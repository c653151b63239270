package fixture

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a YAML fixture: a mapping from table name to a list of rows,
// each row a mapping from column name to value. Mapping order is kept, so
// tables apply in the order they are written.
//
//	customer:
//	  - id: 1
//	    name: Ada
//	orders: []   # clear only
func LoadYAML(r io.Reader, name string) (*Document, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return &Document{Name: name}, nil
		}
		return nil, fmt.Errorf("%s: %w: %v", name, ErrMalformed, err)
	}

	doc := &Document{Name: name}
	body := &root
	if body.Kind == yaml.DocumentNode && len(body.Content) > 0 {
		body = body.Content[0]
	}
	if body.Kind == yaml.ScalarNode && body.Tag == "!!null" {
		return doc, nil
	}
	if body.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: %w: line %d: expected a mapping of tables", name, ErrMalformed, body.Line)
	}

	for i := 0; i+1 < len(body.Content); i += 2 {
		key, rows := body.Content[i], body.Content[i+1]
		t := doc.table(key.Value)
		if err := readYAMLRows(t, rows); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return doc, nil
}

func readYAMLRows(t *Table, rows *yaml.Node) error {
	if rows.Kind == yaml.ScalarNode && rows.Tag == "!!null" {
		return nil
	}
	if rows.Kind != yaml.SequenceNode {
		return fmt.Errorf("%w: line %d: table %s must be a list of rows", ErrMalformed, rows.Line, t.Name)
	}

	for _, row := range rows.Content {
		if row.Kind != yaml.MappingNode {
			return fmt.Errorf("%w: line %d: row of %s must be a mapping", ErrMalformed, row.Line, t.Name)
		}
		var names []string
		var values []any
		for i := 0; i+1 < len(row.Content); i += 2 {
			col, cell := row.Content[i], row.Content[i+1]
			v, typ, err := scalar(cell)
			if err != nil {
				return fmt.Errorf("%w: line %d: %s.%s: %v", ErrMalformed, cell.Line, t.Name, col.Value, err)
			}
			if idx := t.ColumnIndex(col.Value); idx < 0 {
				t.addColumn(Column{Name: col.Value, Type: typ})
			} else if t.Columns[idx].Type == TypeUnknown {
				t.Columns[idx].Type = typ
			}
			names = append(names, col.Value)
			values = append(values, v)
		}
		if err := appendSensed(t, names, values); err != nil {
			return err
		}
	}
	return nil
}

func scalar(n *yaml.Node) (any, DataType, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, TypeUnknown, fmt.Errorf("cell must be a scalar")
	}
	switch n.Tag {
	case "!!null":
		return nil, TypeUnknown, nil
	case "!!int":
		var v int64
		err := n.Decode(&v)
		return v, TypeInteger, err
	case "!!float":
		var v float64
		err := n.Decode(&v)
		return v, TypeFloat, err
	case "!!bool":
		var v bool
		err := n.Decode(&v)
		return v, TypeBoolean, err
	case "!!binary":
		var v string
		err := n.Decode(&v)
		return []byte(v), TypeBinary, err
	case "!!timestamp":
		var v time.Time
		err := n.Decode(&v)
		return v, TypeTimestamp, err
	default:
		return n.Value, TypeString, nil
	}
}
