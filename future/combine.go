package future

import (
	"sync/atomic"

	"github.com/joeycumines/go-workq/workq"
)

// Combine joins the results of futures into a single future, per spec.md
// §4.7.6: fn runs once every input is ready and the combined future has
// itself been started (via Start, Wait, or Get) — the "self-start" term
// guards against a combiner that nobody ever asked for running fn
// speculatively. If wq is non-nil, fn runs as a job of the given type;
// otherwise it runs inline on whichever goroutine's decrement happens to
// bring the count to zero.
//
// If any input future is invalid or resolves to an exception, fn is not
// called at all: the combined future resolves to the first such exception
// in futures' order, matching how a single failed dependency would abort
// a fan-in pipeline.
func Combine[T, R any](wq *workq.WorkQ, typ workq.JobType, fn func([]T) (R, error), futures ...*Future[T]) *Future[R] {
	target := newSharedState[R]()
	target.state = stateUninitDeferred

	n := len(futures)
	results := make([]T, n)
	errs := make([]error, n)

	var countdown atomic.Int32
	countdown.Store(int32(n) + 1) // +1 for the combined future's own start

	finish := func() {
		rv, rerr := func() (rv R, rerr error) {
			defer func() {
				if r := recover(); r != nil {
					rerr = errPanic("combine", r)
				}
			}()
			for _, e := range errs {
				if e != nil {
					rerr = e
					return
				}
			}
			return fn(results)
		}()
		if rerr != nil {
			_ = target.setException(rerr)
		} else {
			_ = target.setValue(rv)
		}
	}

	decrement := func() {
		if countdown.Add(-1) != 0 {
			return
		}
		if wq != nil {
			job, err := workq.NewJob(wq, typ|workq.Once, func(*workq.Job) { finish() })
			if err == nil {
				job.Activate(workq.ActImmed)
				return
			}
		}
		finish()
	}

	for i, f := range futures {
		i := i
		if !f.Valid() {
			errs[i] = ErrNoState
			decrement()
			continue
		}
		src := f.state
		f.state = nil
		src.startDeferred(false)
		src.registerDependant(func() {
			v, exc := src.snapshot()
			results[i] = v
			errs[i] = exc
			decrement()
		})
	}

	target.onStart = decrement
	return &Future[R]{state: target}
}
