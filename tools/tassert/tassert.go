// Package tassert provides small test-assertion helpers in the style the
// teacher's own tools/tassert package uses across its suites: terse
// wrappers around *testing.T rather than a separate assertion framework.
package tassert

import (
	"errors"
	"fmt"
	"testing"
)

// CheckFatal calls t.Fatalf if err is non-nil.
func CheckFatal(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// CheckError calls t.Errorf if err is non-nil.
func CheckError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// SelectErr asserts err is non-nil and, when kind is non-nil, that it
// matches kind via errors.As.
func SelectErr(t *testing.T, err error, desc string, kind any) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected an error, got none", desc)
	}
	if kind == nil {
		return
	}
	if !errors.As(err, kind) {
		t.Fatalf("%s: error %v does not match expected kind", desc, err)
	}
}

// Fatalf formats and fails immediately.
func Fatalf(t *testing.T, format string, a ...any) {
	t.Helper()
	t.Fatalf("%s", fmt.Sprintf(format, a...))
}

// Errorf formats and records a failure without stopping the test.
func Errorf(t *testing.T, format string, a ...any) {
	t.Helper()
	t.Errorf("%s", fmt.Sprintf(format, a...))
}
