// Package schema bootstraps the test database from DDL scripts.
package schema
