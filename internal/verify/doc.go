// Package verify compares query results with expected rows.
package verify
