package future

import "runtime"

// Promise is the write side of a shared state, per spec.md §4.7.1. The
// zero value is not usable; construct with NewPromise.
type Promise[T any] struct {
	state *sharedState[T]
}

// NewPromise constructs an unsatisfied promise. A finalizer is attached so
// that, if the promise is garbage-collected while still unsatisfied and no
// value/exception has ever been set, any future retrieved from it resolves
// to ErrBrokenPromise rather than hanging forever — the GC-compatible
// translation of the broken_promise destructor behavior named in spec.md
// §4.7.1's edge cases.
func NewPromise[T any]() *Promise[T] {
	s := newSharedState[T]()
	p := &Promise[T]{state: s}
	runtime.SetFinalizer(p, finalizePromise[T])
	return p
}

// WithLogger attaches a structured logger to this promise's shared state.
func (p *Promise[T]) WithLogger(l Logger) *Promise[T] {
	p.state.mu.Lock()
	p.state.log = l
	p.state.mu.Unlock()
	return p
}

func finalizePromise[T any](p *Promise[T]) {
	s := p.state
	s.mu.Lock()
	unsatisfied := !s.state.ready()
	s.mu.Unlock()
	if unsatisfied {
		_ = s.setException(ErrBrokenPromise)
	}
}

// GetFuture returns the Future attached to this promise's shared state.
// Calling it a second time on the same promise returns
// ErrFutureAlreadyRetrieved, matching std::promise::get_future's "future
// already retrieved" error.
func (p *Promise[T]) GetFuture() (*Future[T], error) {
	s := p.state
	s.mu.Lock()
	if s.sharedWithFuture {
		s.mu.Unlock()
		return nil, ErrFutureAlreadyRetrieved
	}
	s.sharedWithFuture = true
	s.mu.Unlock()
	return &Future[T]{state: s}, nil
}

// SetValue satisfies the promise with v. Returns ErrPromiseAlreadySatisfied
// if called more than once.
func (p *Promise[T]) SetValue(v T) error {
	runtime.SetFinalizer(p, nil)
	return p.state.setValue(v)
}

// SetException satisfies the promise with exc. exc must not be nil; a nil
// exc is reported as an *ArgumentError rather than silently satisfying the
// promise, resolving spec.md §4.7.1's open question on promise::set
// _exception(nullptr).
func (p *Promise[T]) SetException(exc error) error {
	if exc == nil {
		return newArgumentError("nil exception")
	}
	runtime.SetFinalizer(p, nil)
	return p.state.setException(exc)
}
