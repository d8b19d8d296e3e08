package future

import "time"

// Future is the single-retrieval read side of a shared state, per spec.md
// §4.7.1. Get and Share consume it (WaitFor/WaitUntil do not, even on
// timeout); a Future holding a nil state is invalid (Valid reports
// false), matching a default-constructed std::future.
type Future[T any] struct {
	state *sharedState[T]
}

// Valid reports whether this future still refers to a shared state. Get
// and Share both invalidate the future they are called on.
func (f *Future[T]) Valid() bool { return f != nil && f.state != nil }

// Start triggers evaluation of a deferred future (AsyncLazy, an
// Async(..., LaunchDefer, ...), or a Convert/Combine chain), per spec.md
// §6 "future::start". It does not wait for a job-backed evaluation to
// finish, but an AsyncLazy body, or a Convert transform or Combine
// function whose inputs are already ready, runs inline before Start
// returns.
func (f *Future[T]) Start() {
	if !f.Valid() {
		return
	}
	f.state.startDeferred(true)
}

// Wait blocks until the future is ready, triggering deferred evaluation
// first if necessary.
func (f *Future[T]) Wait() {
	if !f.Valid() {
		return
	}
	f.state.wait()
}

// WaitFor blocks for at most d, reporting the future's status. It does not
// itself trigger deferred evaluation — per spec.md §8's boundary case, an
// unstarted deferred future reports StatusDeferred immediately rather than
// blocking or forcing its body to run.
func (f *Future[T]) WaitFor(d time.Duration) Status {
	return f.WaitUntil(time.Now().Add(d))
}

// WaitUntil is WaitFor expressed as an absolute deadline.
func (f *Future[T]) WaitUntil(deadline time.Time) Status {
	if !f.Valid() {
		return StatusReady
	}
	return f.state.waitDeadline(deadline)
}

// Get blocks until ready and returns the result, invalidating this future.
// Calling Get on an invalid future returns ErrNoState.
func (f *Future[T]) Get() (T, error) {
	var zero T
	if !f.Valid() {
		return zero, ErrNoState
	}
	s := f.state
	f.state = nil
	s.wait()
	v, exc := s.snapshot()
	if exc != nil {
		return zero, exc
	}
	return v, nil
}

// Share converts this future into a SharedFuture, which — unlike Future —
// may be read (via Get/Wait) any number of times and from any number of
// copies. Invalidates this future. Calling Share on an invalid future
// returns ErrNoState.
func (f *Future[T]) Share() (SharedFuture[T], error) {
	if !f.Valid() {
		return SharedFuture[T]{}, ErrNoState
	}
	s := f.state
	f.state = nil
	return SharedFuture[T]{state: s}, nil
}

// SharedFuture is the repeatable-read counterpart to Future, per spec.md
// §4.7.1's shared_future. Copies of a SharedFuture (by value assignment)
// refer to the same underlying shared state. The zero value is invalid.
type SharedFuture[T any] struct {
	state *sharedState[T]
}

// Valid reports whether this shared future still refers to a shared
// state (it always does once constructed via Future.Share; only the zero
// value is invalid).
func (sf SharedFuture[T]) Valid() bool { return sf.state != nil }

// Start is Future.Start for a shared future.
func (sf SharedFuture[T]) Start() {
	if sf.state == nil {
		return
	}
	sf.state.startDeferred(true)
}

// Wait is Future.Wait for a shared future.
func (sf SharedFuture[T]) Wait() {
	if sf.state == nil {
		return
	}
	sf.state.wait()
}

// WaitFor is Future.WaitFor for a shared future.
func (sf SharedFuture[T]) WaitFor(d time.Duration) Status {
	return sf.WaitUntil(time.Now().Add(d))
}

// WaitUntil is Future.WaitUntil for a shared future.
func (sf SharedFuture[T]) WaitUntil(deadline time.Time) Status {
	if sf.state == nil {
		return StatusReady
	}
	return sf.state.waitDeadline(deadline)
}

// Get blocks until ready and returns the result. Unlike Future.Get, it may
// be called repeatedly (and concurrently, by copies of the same
// SharedFuture) without invalidating anything.
func (sf SharedFuture[T]) Get() (T, error) {
	var zero T
	if sf.state == nil {
		return zero, ErrNoState
	}
	sf.state.wait()
	v, exc := sf.state.snapshot()
	if exc != nil {
		return zero, exc
	}
	return v, nil
}
