// Package conn manages the connection to the test database.
//
// Properties resolve to a driver and DSN (URL-form strings go through
// dburl). The Manager opens the database lazily, configures SQLite for a
// single writer, explains connection failures through dberr and refuses to
// set a default schema: the engine always names tables by their qualified
// name, so one fixture can span schemas. Metadata reads live columns and
// primary keys for SQLite, MySQL and PostgreSQL.
package conn
