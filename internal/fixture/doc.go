// Package fixture models fixture documents: ordered tables of named columns
// with positional row values.
//
// Documents are read from flat XML or YAML, composed into a Store for one
// application, written back out as XML for diagnostics, and checked for
// duplicated primary keys before they reach a database.
package fixture
