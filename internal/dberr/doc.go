// Package dberr turns driver errors into explanations a test author can act
// on.
//
// Each database family has an Interpreter that knows how to pull a state
// code out of its driver's error type and which of those codes deserve a
// message: lock timeouts, lock conflicts, a database still in use by another
// process, a database that was never created, a missing schema and rejected
// credentials. Errors are usually wrapped several times before they reach
// the fixture engine, so ExplainChain walks the whole chain, including
// errors.Join trees, and stops at the first error the family recognises.
package dberr
