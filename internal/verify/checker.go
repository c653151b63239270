package verify

import (
	"fmt"
	"regexp"
	"runtime"
)

// ValueChecker stands in for a literal expected value. Check returns nil to
// accept actual. An error wrapping ErrMisuse reports a checker that can't
// handle the value it was given; any other error is an assertion failure
// and its text becomes the failure message.
type ValueChecker interface {
	Check(actual any) error
}

// CheckerFunc adapts a function to ValueChecker.
type CheckerFunc func(actual any) error

func (f CheckerFunc) Check(actual any) error {
	return f(actual)
}

// Is accepts values of type T for which accept returns true. Values of any
// other type are a misuse. desc names what is expected.
func Is[T any](desc string, accept func(T) bool) ValueChecker {
	return CheckerFunc(func(actual any) error {
		v, ok := actual.(T)
		if !ok {
			var zero T
			return &MisuseError{Message: fmt.Sprintf("checker for %s expects %T, got %T (%v)", desc, zero, actual, actual)}
		}
		if !accept(v) {
			return fmt.Errorf("expected %s but was <%v>", desc, actual)
		}
		return nil
	})
}

// NotNull accepts any non-NULL value.
func NotNull() ValueChecker {
	return CheckerFunc(func(actual any) error {
		if actual == nil {
			return fmt.Errorf("expected a non-null value")
		}
		return nil
	})
}

// Anything accepts every value, NULL included.
func Anything() ValueChecker {
	return CheckerFunc(func(any) error { return nil })
}

// Matches accepts values whose text form matches the regular expression.
func Matches(pattern string) ValueChecker {
	re := regexp.MustCompile(pattern)
	return CheckerFunc(func(actual any) error {
		if actual == nil {
			return fmt.Errorf("expected a value matching %s but was null", pattern)
		}
		if s := stringify(actual); !re.MatchString(s) {
			return fmt.Errorf("expected a value matching %s but was <%s>", pattern, s)
		}
		return nil
	})
}

// runCheck calls c, turning a failed type assertion inside it into a
// misuse.
func runCheck(c ValueChecker, actual any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if te, ok := r.(*runtime.TypeAssertionError); ok {
				err = &MisuseError{Message: fmt.Sprintf("checker %T can't handle %T", c, actual), Cause: te}
				return
			}
			panic(r)
		}
	}()
	return c.Check(actual)
}
