package future

import (
	"errors"
	"fmt"
)

// Sentinel errors, matching the std::future_error-adjacent taxonomy named
// in spec.md §6 for promise/future misuse.
var (
	ErrNoState                 = errors.New("future: no shared state")
	ErrFutureAlreadyRetrieved  = errors.New("future: future already retrieved")
	ErrPromiseAlreadySatisfied = errors.New("future: promise already satisfied")
	ErrBrokenPromise           = errors.New("future: broken promise")
)

// ArgumentError reports a caller mistake (e.g. a nil exception) distinct
// from the above state-machine errors.
type ArgumentError struct {
	Reason string
}

func (e *ArgumentError) Error() string { return "future: invalid argument: " + e.Reason }

func newArgumentError(reason string) error { return &ArgumentError{Reason: reason} }

// errPanic wraps a recovered panic value as an error, for the few places a
// caller-supplied callable is allowed to panic without crashing the
// process (it has somewhere — a shared state's exception slot — to go).
func errPanic(op string, r any) error {
	return fmt.Errorf("future: %s panicked: %v", op, r)
}
