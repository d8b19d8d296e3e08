package future

import (
	"sync/atomic"

	"github.com/joeycumines/go-workq/workq"
)

// LaunchMode configures Async, per spec.md §4.7.5's launch policy bits.
type LaunchMode uint8

const (
	// LaunchAid permits the job to run inline on a thread that aids its
	// work-queue (workq.ActImmed); absent, the job is workq.NoAid.
	LaunchAid LaunchMode = 1 << iota
	// LaunchParallel marks the job workq.Parallel.
	LaunchParallel
	// LaunchDefer postpones activation until the returned future's Start,
	// Wait, or Get is first called, instead of activating immediately.
	LaunchDefer
)

// LaunchDefault is an eagerly-started, inline-aid-eligible, non-parallel
// launch — the common case.
const LaunchDefault = LaunchAid

// Async schedules fn as a Once job on wq, returning a future for its
// result, per spec.md §4.7.5. Unless launch includes LaunchDefer, the job
// is activated immediately (inline, if the calling goroutine may aid wq
// and LaunchAid is set); with LaunchDefer, activation is postponed until
// the returned future is started, waited upon, or retrieved.
func Async[T any](wq *workq.WorkQ, launch LaunchMode, fn func() (T, error)) *Future[T] {
	s := newSharedState[T]()

	typ := workq.Once
	if launch&LaunchParallel != 0 {
		typ |= workq.Parallel
	}
	if launch&LaunchAid == 0 {
		typ |= workq.NoAid
	}

	job, err := workq.NewJob(wq, typ, asyncBody(s, fn))
	if err != nil {
		s.state = stateReadyExc
		s.exc = err
		return &Future[T]{state: s}
	}
	s.job = job

	if launch&LaunchDefer != 0 {
		s.state = stateUninitDeferred
	} else {
		s.state = stateUninit
		job.Activate(workq.ActImmed)
	}
	return &Future[T]{state: s}
}

// asyncBody wraps fn as a workq.Body that captures both its return value
// and any panic as the shared state's terminal result — jobs are declared
// non-throwing (spec.md §4.6.6), but a future-backed job is the one place
// that contract is relaxed, since the result has somewhere to go.
func asyncBody[T any](s *sharedState[T], fn func() (T, error)) workq.Body {
	return func(*workq.Job) {
		v, err := func() (v T, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errPanic("async body", r)
				}
			}()
			return fn()
		}()
		if err != nil {
			_ = s.setException(err)
		} else {
			_ = s.setValue(v)
		}
	}
}

// AsyncLazy constructs a future whose body runs inline, on whichever
// goroutine first calls Start, Wait, or Get, per spec.md §4.7.5's
// deferred-launch policy (std::launch::deferred). Unlike Async, it is not
// backed by any work-queue.
func AsyncLazy[T any](fn func() (T, error)) *Future[T] {
	s := newSharedState[T]()
	s.state = stateUninitDeferred
	s.deferredFn = fn
	return &Future[T]{state: s}
}

// PackagedTask pairs a callable with a shared state, letting the caller
// choose the thread that evaluates it, per spec.md §6 "packaged_task" —
// unlike Async/AsyncLazy, nothing runs until Run is called explicitly.
type PackagedTask[T any] struct {
	fn    func() (T, error)
	state *sharedState[T]
	ran   atomic.Bool
}

// NewPackagedTask wraps fn for later execution via Run.
func NewPackagedTask[T any](fn func() (T, error)) *PackagedTask[T] {
	s := newSharedState[T]()
	s.state = stateUninit
	return &PackagedTask[T]{fn: fn, state: s}
}

// GetFuture returns the future attached to this task's shared state.
// Calling it more than once returns ErrFutureAlreadyRetrieved.
func (t *PackagedTask[T]) GetFuture() (*Future[T], error) {
	t.state.mu.Lock()
	if t.state.sharedWithFuture {
		t.state.mu.Unlock()
		return nil, ErrFutureAlreadyRetrieved
	}
	t.state.sharedWithFuture = true
	t.state.mu.Unlock()
	return &Future[T]{state: t.state}, nil
}

// Run evaluates the wrapped callable and satisfies the shared state.
// Subsequent calls are no-ops: a packaged task runs at most once.
func (t *PackagedTask[T]) Run() {
	if !t.ran.CompareAndSwap(false, true) {
		return
	}
	v, err := func() (v T, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errPanic("packaged task", r)
			}
		}()
		return t.fn()
	}()
	if err != nil {
		_ = t.state.setException(err)
	} else {
		_ = t.state.setValue(v)
	}
}
