package fixture

import (
	"fmt"
	"strings"
)

// KeySeparator joins the values of a composite primary key.
const KeySeparator = "|"

// FindDuplicates returns the primary keys that occur more than once in t, in
// the order their second occurrence appears. keys are the primary-key column
// names in key order. The result is empty, never nil, when keys is empty.
func FindDuplicates(t *Table, keys []string) []string {
	dups := []string{}
	if t == nil || len(keys) == 0 {
		return dups
	}

	idx := make([]int, len(keys))
	for i, k := range keys {
		idx[i] = t.ColumnIndex(k)
	}

	seen := make(map[string]bool, len(t.Rows))
	reported := make(map[string]bool)
	parts := make([]string, len(keys))
	for _, row := range t.Rows {
		for i, j := range idx {
			var v any
			if j >= 0 && j < len(row) {
				v = row[j]
			}
			parts[i] = FormatValue(v)
		}
		key := strings.Join(parts, KeySeparator)
		if seen[key] && !reported[key] {
			reported[key] = true
			dups = append(dups, key)
		}
		seen[key] = true
	}
	return dups
}

// KeyLookup returns the primary-key columns of a table as the live schema
// declares them.
type KeyLookup func(table string) []string

// Describe summarises tables for a failure log: every table with its row
// count.
func Describe(tables []*Table) string {
	return DescribeWithKeys(tables, nil)
}

// DescribeWithKeys is Describe followed by the duplicated primary keys of
// each table that has any. A nil keys skips the duplicate check.
func DescribeWithKeys(tables []*Table, keys KeyLookup) string {
	var buf strings.Builder
	buf.WriteString("tables(row count):")
	for i, t := range tables {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, " %s(%d)", t.Name, len(t.Rows))
	}
	if len(tables) == 0 {
		buf.WriteString(" none")
	}
	buf.WriteByte('\n')

	if keys == nil {
		return buf.String()
	}
	for _, t := range tables {
		pk := keys(t.Name)
		dups := FindDuplicates(t, pk)
		if len(dups) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "duplicated primary keys in %s(%s): [%s]\n",
			t.Name, strings.Join(pk, ", "), strings.Join(dups, ", "))
	}
	return buf.String()
}
