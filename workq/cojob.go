package workq

import (
	"sync/atomic"

	"github.com/joeycumines/go-workq/lflist"
)

// CoBody is invoked by the scheduler for each sub-invocation slot of a
// CoJob's current run, identified by index i in [0,N).
type CoBody func(c *CoJob, i int)

// CountFunc returns the number of sub-invocations (N) a CoJob's next run
// should fan out into. Called once at the start of each run.
type CountFunc func() int

// CoJob is a job whose body produces N sub-invocations that may proceed
// in parallel on distinct goroutines, per spec.md §4.6.4 ("co-runnable").
// Its run steals the work-queue's run-lock for the duration of the whole
// fan-out rather than releasing it when the triggering goroutine's call
// to Run returns.
type CoJob struct {
	*Job

	countFn CountFunc
	body    CoBody

	elemCoRun *lflist.Element

	n         atomic.Int32
	next      atomic.Int32
	remaining atomic.Int32
	removed   atomic.Bool
	mode      RunMode
}

// NewCoJob constructs a coroutine-style job owned by wq. countFn is
// called at the start of each run to determine that run's sub-invocation
// count; body is invoked once per slot, possibly from several goroutines
// concurrently.
func NewCoJob(wq *WorkQ, typ JobType, countFn CountFunc, body CoBody) (*CoJob, error) {
	if countFn == nil {
		return nil, newArgumentError("nil co-job count function")
	}
	if body == nil {
		return nil, newArgumentError("nil co-job body")
	}
	c := &CoJob{countFn: countFn, body: body}
	j, err := NewJob(wq, typ, c.run)
	if err != nil {
		return nil, err
	}
	c.Job = j
	c.elemCoRun = wq.svc.coRunnableList().NewElement(c)
	return c, nil
}

// run is this CoJob's Job.Body: it determines this run's slot count,
// publishes it, and — unless there is nothing to do — steals the
// run-lock from the calling goroutine's aid-stack frame by enqueuing
// itself onto the service's coroutine run-queue, per spec.md §4.6.4
// steps 1-2. CoRun, called by any participating worker thereafter, drives
// the fan-out to completion.
func (c *CoJob) run(j *Job) {
	n := c.countFn()
	if n <= 0 {
		return // nothing to fan out; complete normally, like any other job
	}
	c.n.Store(int32(n))
	c.next.Store(0)
	c.remaining.Store(int32(n))
	c.removed.Store(false)
	c.mode = j.curMode
	j.coStolen.Store(true)
	_ = j.wq.svc.coRunnableList().PushBack(c.elemCoRun)
}

// CoRun is called by the scheduler (see Service.driveCoRunnable) on
// behalf of one participating goroutine: it claims and executes slots
// until none remain, then releases its share of the run-count. Returns
// true iff it executed at least one slot.
func (c *CoJob) CoRun() bool {
	var iterations int32
	for {
		i := c.next.Add(1) - 1
		if i >= c.n.Load() {
			break
		}
		c.body(c, int(i))
		iterations++
	}
	if iterations > 0 {
		c.release(iterations)
	}
	return iterations > 0
}

// release accounts for k completed slots, per spec.md §4.6.4 step 3: the
// first caller to observe the coroutine run-queue entry removes it (all
// later callers no-op on that), and the last caller to bring the shared
// run-count to zero unlocks the run-lock stolen by run, completing the
// job as if its body had returned normally.
func (c *CoJob) release(k int32) {
	if c.removed.CompareAndSwap(false, true) {
		_ = c.Job.wq.svc.coRunnableList().Erase(c.elemCoRun)
	}
	if c.remaining.Add(-k) <= 0 {
		c.Job.unlockRun()
		c.Job.wq.releaseMode(c.mode)
	}
}
