package fixture

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the case-folded form of an identifier. Table and column names
// are compared in folded form so a fixture written in one case matches a
// live schema that reports another.
func Fold(name string) string {
	// A Caser carries state and must not be shared.
	return cases.Fold().String(name)
}

// SameName reports whether two identifiers match case-insensitively.
func SameName(a, b string) bool {
	return Fold(a) == Fold(b)
}

// SplitQualified splits "schema.table" into its parts. An unqualified name
// has an empty schema.
func SplitQualified(name string) (schema, table string) {
	if i := strings.IndexByte(name, '.'); i > 0 && i < len(name)-1 {
		return name[:i], name[i+1:]
	}
	return "", name
}
