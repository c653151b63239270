package conn

import (
	"strconv"
	"strings"
)

// Dialect holds the SQL spelling differences the engine cares about.
type Dialect struct {
	Name     string
	quote    string
	numbered bool
}

// DialectFor returns the dialect of a driver. Unknown drivers get double
// quotes and "?" placeholders.
func DialectFor(driver string) Dialect {
	switch normalizeDriver(driver) {
	case DriverMySQL:
		return Dialect{Name: DriverMySQL, quote: "`"}
	case DriverPostgres:
		return Dialect{Name: DriverPostgres, quote: `"`, numbered: true}
	case DriverSQLite:
		return Dialect{Name: DriverSQLite, quote: `"`}
	default:
		return Dialect{Name: driver, quote: `"`}
	}
}

// QuoteIdent quotes one identifier.
func (d Dialect) QuoteIdent(name string) string {
	q := d.quote
	if q == "" {
		q = `"`
	}
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// QuoteTable quotes a table name, qualified by schema when there is one.
func (d Dialect) QuoteTable(schema, table string) string {
	if schema == "" {
		return d.QuoteIdent(table)
	}
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

// Placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Placeholders returns n comma-separated bind parameters.
func (d Dialect) Placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.Placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}
