package dberr

import (
	"fmt"
	"strings"
)

// Kind groups state codes by what went wrong.
type Kind string

const (
	KindLockTimeout   Kind = "LOCK_TIMEOUT"
	KindLockTable     Kind = "LOCK_TABLE"
	KindAlreadyBooted Kind = "ALREADY_BOOTED"
	KindNotCreated    Kind = "NOT_CREATED"
	KindMissingSchema Kind = "MISSING_SCHEMA"
	KindAccessDenied  Kind = "ACCESS_DENIED"
)

// Explanation describes a classified driver error in human terms.
type Explanation struct {
	// Code is the driver-specific state code that was recognised.
	Code    string
	Kind    Kind
	Message string
	Hint    string
}

// IsLock reports whether the explanation is about a lock conflict.
func (e Explanation) IsLock() bool {
	return e.Kind == KindLockTimeout || e.Kind == KindLockTable
}

func (e Explanation) String() string {
	if e.Hint == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s %s", e.Code, e.Message, e.Hint)
}

// Interpreter maps the state codes of one database family to explanations.
//
// The zero value and a nil *Interpreter both behave as the no-op
// interpreter: nothing is classified and nothing is explained.
type Interpreter struct {
	family   string
	codes    map[string]Explanation
	classify func(err error) (string, bool)
}

var noop = &Interpreter{family: "none"}

// Noop returns the interpreter that explains nothing.
func Noop() *Interpreter {
	return noop
}

// Family names the database family, e.g. "sqlite".
func (in *Interpreter) Family() string {
	if in == nil || in.family == "" {
		return noop.family
	}
	return in.family
}

// Classify extracts the state code from err itself, without unwrapping.
func (in *Interpreter) Classify(err error) (string, bool) {
	if in == nil || in.classify == nil || err == nil {
		return "", false
	}
	return in.classify(err)
}

// ExplainCode looks up a state code.
func (in *Interpreter) ExplainCode(code string) (Explanation, bool) {
	if in == nil || in.codes == nil {
		return Explanation{}, false
	}
	exp, ok := in.codes[strings.ToUpper(code)]
	if !ok {
		return Explanation{}, false
	}
	exp.Code = code
	return exp, true
}

// Explain classifies err itself and explains its state code.
func (in *Interpreter) Explain(err error) (Explanation, bool) {
	code, ok := in.Classify(err)
	if !ok {
		return Explanation{}, false
	}
	return in.ExplainCode(code)
}

// ExplainChain walks err and the errors it wraps, depth first, and explains
// the first one that can be classified. Errors further down the chain are
// not consulted once a classifiable error is found, even when its code has
// no explanation.
func (in *Interpreter) ExplainChain(err error) (Explanation, bool) {
	code, ok := in.CodeInChain(err)
	if !ok {
		return Explanation{}, false
	}
	return in.ExplainCode(code)
}

// CodeInChain returns the state code of the first classifiable error in the
// chain of err.
func (in *Interpreter) CodeInChain(err error) (string, bool) {
	var code string
	found := false
	walk(err, func(e error) bool {
		if c, ok := in.Classify(e); ok {
			code, found = c, true
			return true
		}
		return false
	})
	return code, found
}

// walk visits err and everything it wraps until visit returns true.
func walk(err error, visit func(error) bool) bool {
	for err != nil {
		if visit(err) {
			return true
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				if walk(inner, visit) {
					return true
				}
			}
			return false
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		default:
			return false
		}
	}
	return false
}
