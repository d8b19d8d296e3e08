package future

import (
	"sync"
	"time"

	"github.com/joeycumines/go-workq/workq"
)

// state is the shared-state lifecycle, mirroring spec.md §4.7.1's
// uninit/uninit_deferred/uninit_convert/ready_value/ready_exc machine.
type state uint8

const (
	stateUninit state = iota
	stateUninitDeferred
	stateUninitConvert
	stateReadyValue
	stateReadyExc
)

func (s state) ready() bool { return s == stateReadyValue || s == stateReadyExc }

// converter runs the transform installed by Convert once its source future
// becomes ready, delivering the result to the (possibly already abandoned)
// target via a weak reference — see convert.go.
type converter struct {
	run func()
}

// sharedState is the value/exception/callback cell a Promise, Future, and
// SharedFuture jointly reference, per spec.md §4.7.1-§4.7.4. One instance
// backs exactly one logical result; Promise/Future/SharedFuture differ only
// in which operations their public API exposes against it.
type sharedState[T any] struct {
	mu   sync.Mutex
	cond sync.Cond

	state state
	value T
	exc   error

	sharedWithFuture bool // GetFuture/PackagedTask.GetFuture already called

	// deferred-evaluation bookkeeping (§4.7.2).
	startDeferredCalled bool
	startDeferredAsync  bool
	deferredFn          func() (T, error) // set by AsyncLazy
	job                 *workq.Job        // set by Async; activated here only if LaunchDefer left the state deferred
	converter           *converter        // set by Convert
	onStart             func()            // set by Combine's self-start term

	// ready-callback dispatch (§4.7.4): at most one "unshared" callback,
	// plus any number of "shared" callbacks installed after the first.
	readyCB   func(T, error)
	sharedCBs []func(T, error)

	// dependants are plain continuations (no result of their own) run once
	// this state becomes ready, used internally by Convert/Combine.
	dependants []func()

	log Logger
}

func newSharedState[T any]() *sharedState[T] {
	s := &sharedState[T]{}
	s.cond.L = &s.mu
	return s
}

// setValue transitions to ready_value, per spec.md §4.7.1. Returns
// ErrPromiseAlreadySatisfied if the state was already ready.
func (s *sharedState[T]) setValue(v T) error {
	s.mu.Lock()
	if s.state.ready() {
		s.mu.Unlock()
		return ErrPromiseAlreadySatisfied
	}
	s.value = v
	s.state = stateReadyValue
	s.cond.Broadcast()
	deps, readyCB, shared := s.swapCallbacksLocked()
	s.mu.Unlock()
	s.log.Debug().Str("op", "set_value").Log("shared state ready")
	s.dispatch(deps, readyCB, shared)
	return nil
}

// setException transitions to ready_exc, per spec.md §4.7.1. Returns
// ErrPromiseAlreadySatisfied if the state was already ready.
func (s *sharedState[T]) setException(exc error) error {
	if exc == nil {
		return newArgumentError("nil exception")
	}
	s.mu.Lock()
	if s.state.ready() {
		s.mu.Unlock()
		return ErrPromiseAlreadySatisfied
	}
	s.exc = exc
	s.state = stateReadyExc
	s.cond.Broadcast()
	deps, readyCB, shared := s.swapCallbacksLocked()
	s.mu.Unlock()
	s.log.Debug().Str("op", "set_exception").Err(exc).Log("shared state ready")
	s.dispatch(deps, readyCB, shared)
	return nil
}

// swapCallbacksLocked removes and returns the registered callbacks/
// dependants, called under s.mu immediately after a ready transition so
// dispatch can run them outside the lock.
func (s *sharedState[T]) swapCallbacksLocked() ([]func(), func(T, error), []func(T, error)) {
	deps := s.dependants
	s.dependants = nil
	cb := s.readyCB
	s.readyCB = nil
	shared := s.sharedCBs
	s.sharedCBs = nil
	return deps, cb, shared
}

// dispatch invokes callbacks in the order fixed by spec.md §4.7.4: the
// unshared callback, then each shared callback in registration order, then
// each dependant continuation.
func (s *sharedState[T]) dispatch(deps []func(), readyCB func(T, error), shared []func(T, error)) {
	v, exc := s.snapshot()
	if readyCB != nil {
		readyCB(v, exc)
	}
	for _, cb := range shared {
		cb(v, exc)
	}
	for _, d := range deps {
		d()
	}
}

// snapshot returns the current value/exception under lock.
func (s *sharedState[T]) snapshot() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.exc
}

// registerDependant runs fn once this state becomes ready — immediately,
// inline, if it already is.
func (s *sharedState[T]) registerDependant(fn func()) {
	s.mu.Lock()
	if s.state.ready() {
		s.mu.Unlock()
		fn()
		return
	}
	s.dependants = append(s.dependants, fn)
	s.mu.Unlock()
}

// startDeferred triggers a deferred body, converter, or self-start hook
// exactly once, per spec.md §4.7.2. The async flag records whether the
// trigger came from an explicit Start() (true) versus Wait()/Get() (false).
// A job-backed deferred evaluation is activated with workq.ActImmed either
// way, which runs it inline when the job permits aid and the aid stack is
// shallow enough. For Wait()/Get() the calling goroutine then also aids the
// job's work-queue (possibly running jobs queued ahead of it) until this
// state is ready, so the wait does not depend on an attached worker; after
// Start() a NoAid job runs wherever its work-queue is next driven.
func (s *sharedState[T]) startDeferred(async bool) {
	s.mu.Lock()
	if s.startDeferredCalled {
		s.mu.Unlock()
		return
	}
	s.startDeferredCalled = true
	s.startDeferredAsync = async
	st := s.state
	fn := s.deferredFn
	job := s.job
	conv := s.converter
	onStart := s.onStart
	s.mu.Unlock()

	switch st {
	case stateUninitDeferred:
		switch {
		case onStart != nil:
			onStart()
		case job != nil:
			job.Activate(workq.ActImmed)
			if !async {
				wq := job.WorkQ()
				for {
					s.mu.Lock()
					done := s.state.ready()
					s.mu.Unlock()
					if done || wq.Aid(1) == 0 {
						break
					}
				}
			}
		case fn != nil:
			s.runInline(fn)
		}
	case stateUninitConvert:
		if conv != nil {
			conv.run()
		}
	}
}

// runInline evaluates fn on the calling goroutine, capturing both its
// return and any panic as the shared state's terminal result.
func (s *sharedState[T]) runInline(fn func() (T, error)) {
	v, err := func() (v T, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errPanic("deferred body", r)
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

// wait blocks until ready, first ensuring evaluation has been triggered.
func (s *sharedState[T]) wait() {
	s.startDeferred(false)
	s.mu.Lock()
	for !s.state.ready() {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// waitDeadline blocks until ready or deadline, without triggering deferred
// evaluation — per spec.md §8's boundary case, a time-bounded wait reports
// the current state rather than forcing a lazy body to run.
func (s *sharedState[T]) waitDeadline(deadline time.Time) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateUninitDeferred && !s.startDeferredCalled {
		return StatusDeferred
	}
	if s.state.ready() {
		return StatusReady
	}
	timer := time.AfterFunc(time.Until(deadline), func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()
	for !s.state.ready() {
		if !time.Now().Before(deadline) {
			return StatusTimeout
		}
		s.cond.Wait()
	}
	return StatusReady
}

// Status is the outcome of a time-bounded future wait, per spec.md §6
// (future_status-equivalent).
type Status uint8

const (
	StatusReady Status = iota
	StatusTimeout
	StatusDeferred
)

func (st Status) String() string {
	switch st {
	case StatusReady:
		return "ready"
	case StatusTimeout:
		return "timeout"
	case StatusDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}
