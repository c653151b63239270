package fixture

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// WriteXML writes tables as a flat XML document in the child-element form
// LoadXML reads. NULL cells are left out.
func WriteXML(w io.Writer, tables []*Table) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: "dataset"}}
	if err := enc.EncodeToken(root); err != nil {
		return err
	}
	for _, t := range tables {
		if err := writeTable(enc, t); err != nil {
			return fmt.Errorf("dump %s: %w", t.Name, err)
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func writeTable(enc *xml.Encoder, t *Table) error {
	el := xml.StartElement{Name: xml.Name{Local: t.Name}}
	if len(t.Rows) == 0 {
		if err := enc.EncodeToken(el); err != nil {
			return err
		}
		return enc.EncodeToken(el.End())
	}
	for _, row := range t.Rows {
		if err := enc.EncodeToken(el); err != nil {
			return err
		}
		for i, v := range row {
			if v == nil || i >= len(t.Columns) {
				continue
			}
			if err := enc.EncodeElement(FormatValue(v), xml.StartElement{Name: xml.Name{Local: t.Columns[i].Name}}); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(el.End()); err != nil {
			return err
		}
	}
	return nil
}

// FormatValue renders a cell as text. Binary values are base64, timestamps
// RFC 3339.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
