package workq

import (
	"errors"
	"fmt"
)

// Sentinel errors, matching the std::future_error-adjacent taxonomy named
// in spec.md §6 for scheduler misuse.
var (
	ErrInvalidArgument = errors.New("workq: invalid argument")
	ErrDeadlock        = errors.New("workq: operation would deadlock")
	ErrStackError      = errors.New("workq: stack discipline violated")
)

// ArgumentError wraps ErrInvalidArgument with the offending value.
type ArgumentError struct {
	Reason string
}

func (e *ArgumentError) Error() string { return "workq: invalid argument: " + e.Reason }
func (e *ArgumentError) Unwrap() error { return ErrInvalidArgument }

func newArgumentError(reason string) error { return &ArgumentError{Reason: reason} }

// DeadlockError reports a workq_switch that would violate stack
// discipline: the target work-queue is already held RUN_SINGLE by an
// enclosing frame on the calling goroutine.
type DeadlockError struct {
	Target *WorkQ
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("workq: switching to %p would deadlock against an enclosing RUN_SINGLE frame", e.Target)
}
func (e *DeadlockError) Unwrap() error { return ErrDeadlock }

// StackError reports an operation (e.g. Switch) attempted outside of any
// workq run-lock frame on the calling goroutine.
type StackError struct {
	Op string
}

func (e *StackError) Error() string { return "workq: " + e.Op + ": no active run-lock frame" }
func (e *StackError) Unwrap() error { return ErrStackError }
