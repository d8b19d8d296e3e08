package future

import "weak"

// Convert installs a transform that runs once src becomes ready, producing
// a new future for the transformed result, per spec.md §4.7.3's converter
// chain. The target holds src's state strongly (through its converter);
// the dependant registered on src once the target is started holds the
// target only through a weak.Pointer — if the target has been collected
// by the time src resolves, fn is not called and nothing is delivered,
// rather than src's chain keeping the target alive for no reader.
//
// fn receives src's value and error exactly as Future.Get would; returning
// a non-nil error (including src's own, passed straight through) sets the
// target's exception instead of its value.
func Convert[T, R any](src *Future[T], fn func(T, error) (R, error)) *Future[R] {
	target := newSharedState[R]()
	target.state = stateUninitConvert

	if !src.Valid() {
		target.state = stateReadyExc
		target.exc = ErrNoState
		return &Future[R]{state: target}
	}
	srcState := src.state
	src.state = nil // Convert consumes its source future, like .then().

	weakTarget := weak.Make(target)
	target.converter = &converter{run: func() {
		srcState.startDeferred(false)
		srcState.registerDependant(func() {
			tgt := weakTarget.Value()
			if tgt == nil {
				return
			}
			v, exc := srcState.snapshot()
			rv, rerr := runConvert(fn, v, exc)
			if rerr != nil {
				_ = tgt.setException(rerr)
			} else {
				_ = tgt.setValue(rv)
			}
		})
	}}
	return &Future[R]{state: target}
}

func runConvert[T, R any](fn func(T, error) (R, error), v T, exc error) (rv R, rerr error) {
	defer func() {
		if r := recover(); r != nil {
			rerr = errPanic("convert", r)
		}
	}()
	return fn(v, exc)
}

// Callback installs fn to be invoked with the eventual value/error of f,
// without producing a new future, per spec.md §6 "callback". It is invoked
// immediately, inline, if f is already ready. A future may carry at most
// one such "unshared" callback at a time (§4.7.4); installing a second
// falls back to the shared-callback chain so it is not silently dropped.
func Callback[T any](f *Future[T], fn func(T, error)) {
	if !f.Valid() {
		return
	}
	s := f.state
	s.mu.Lock()
	if s.state.ready() {
		v, exc := s.value, s.exc
		s.mu.Unlock()
		fn(v, exc)
		return
	}
	if s.readyCB == nil {
		s.readyCB = fn
		s.mu.Unlock()
		return
	}
	s.sharedCBs = append(s.sharedCBs, fn)
	s.mu.Unlock()
}
