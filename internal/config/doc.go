// Package config resolves database connection properties and process-wide
// settings.
//
// Connection properties resolve through a cascade, first hit wins:
//
//  1. a value set explicitly with Resolver.Override
//  2. a value from the dbfixture.properties file found on the search path
//  3. a built-in default (an SQLite database under testdata/)
//
// Only the four keys in Keys are recognised. Resolving or overriding any
// other key fails with ErrUnknownConfigKey so that a typo never silently
// connects to the default database.
//
// Loading the properties file is best-effort: a missing or unparsable file
// is logged and the resolver falls back to defaults.
//
// A Resolver is snapshotted into an immutable Properties value before a
// connection is opened; nothing here touches process-global state.
package config
