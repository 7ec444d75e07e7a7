//go:build !debug

// Package debug provides build-tag-gated invariant assertions. In release
// builds (the default, no "debug" build tag) every call is a zero-cost
// no-op; compile with -tags debug to enable them during development and
// in tests that want to catch invariant violations (spec.md §3, §8).
package debug

func ON() bool { return false }

func Assert(_ bool, _ ...any)            {}
func Assertf(_ bool, _ string, _ ...any) {}
func AssertNoErr(_ error)                {}
func AssertFunc(_ func() bool, _ ...any) {}
