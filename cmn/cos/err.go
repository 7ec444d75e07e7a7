// Package cos provides small error- and id-related utilities shared across
// the watchlist core packages, adapted from the teacher's cmn/cos error
// conventions: typed errors for common conditions plus a bounded
// multi-error accumulator for rollback paths.
package cos

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a lookup by id/name finds nothing; most
// watchlist callers treat this as a recoverable, not-yet-available state
// rather than an exception.
type ErrNotFound struct {
	what string
}

func NewErrNotFound(format string, a ...any) *ErrNotFound {
	return &ErrNotFound{fmt.Sprintf(format, a...)}
}

func (e *ErrNotFound) Error() string { return e.what + " does not exist" }

func IsErrNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

// Errs accumulates up to maxErrs distinct errors, used by batch-expansion
// rollback (spec.md §4.8.7) to report every sibling failure without
// growing unbounded on a pathological input.
type Errs struct {
	mu   sync.Mutex
	errs []error
}

const maxErrs = 8

func (e *Errs) Add(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
	}
}

func (e *Errs) Cnt() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

func (e *Errs) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return nil
	}
	return errors.Join(e.errs...)
}
