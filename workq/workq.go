package workq

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-workq/lflist"
)

// RunMode identifies how a WorkQ's run-lock is currently held.
type RunMode uint8

const (
	RunNone RunMode = iota
	// RunSingle is exclusive: at most one holder, running at most one
	// non-Parallel job at a time.
	RunSingle
	// RunParallel is shared: any number of concurrent holders, so long as
	// no RunSingle holder exists.
	RunParallel
)

// WorkQ is a FIFO-ish collection of jobs with single-/parallel-lock modes
// controlling concurrent job execution, per spec.md §3/§4.6.2.
type WorkQ struct {
	svc      *Service
	serial   *lflist.List
	parallel *lflist.List

	singleLock    atomic.Bool
	parallelCount atomic.Int32

	pendingMu sync.Mutex
	pending   bool // whether this WorkQ is currently linked on svc.pending
	elem      *lflist.Element

	runCond   sync.Cond
	runCondMu sync.Mutex
}

func newWorkQ(svc *Service) *WorkQ {
	wq := &WorkQ{
		svc:      svc,
		serial:   lflist.New(svc.hazardReg(), svc.hazardOwner()),
		parallel: lflist.New(svc.hazardReg(), svc.hazardOwner()),
	}
	wq.runCond.L = &wq.runCondMu
	wq.elem = svc.pendingList().NewElement(wq)
	return wq
}

// enqueue links job onto the serial (and, if Parallel, parallel) run-queue
// and ensures this WorkQ is itself linked on the service's pending list,
// waking the attached client.
func (wq *WorkQ) enqueue(j *Job) {
	_ = wq.serial.PushBack(j.elemSerial)
	if j.typ&Parallel != 0 {
		_ = wq.parallel.PushBack(j.elemParallel)
	}
	wq.markPending()
}

func (wq *WorkQ) markPending() {
	wq.pendingMu.Lock()
	wasPending := wq.pending
	wq.pending = true
	wq.pendingMu.Unlock()
	if !wasPending {
		_ = wq.svc.pendingList().PushBack(wq.elem)
	}
	wq.svc.wakeup(1)
}

func (wq *WorkQ) clearPendingIfDrained() {
	if wq.serial.Empty() && wq.parallel.Empty() {
		wq.pendingMu.Lock()
		if wq.pending {
			wq.pending = false
			wq.pendingMu.Unlock()
			_ = wq.svc.pendingList().Erase(wq.elem)
			return
		}
		wq.pendingMu.Unlock()
	}
}

func (wq *WorkQ) tryRunSingle() bool { return wq.singleLock.CompareAndSwap(false, true) }

func (wq *WorkQ) tryRunParallel() bool {
	wq.parallelCount.Add(1)
	if wq.singleLock.Load() {
		wq.parallelCount.Add(-1)
		return false
	}
	return true
}

func (wq *WorkQ) downgrade() {
	wq.parallelCount.Add(1)
	wq.singleLock.Store(false)
}

func (wq *WorkQ) releaseSingle() {
	wq.singleLock.Store(false)
	wq.broadcastRunComplete()
}

func (wq *WorkQ) releaseParallel() {
	wq.parallelCount.Add(-1)
	wq.broadcastRunComplete()
}

func (wq *WorkQ) broadcastRunComplete() {
	wq.runCondMu.Lock()
	wq.runCond.Broadcast()
	wq.runCondMu.Unlock()
}

func (wq *WorkQ) waitRunComplete(j *Job) {
	wq.runCondMu.Lock()
	for jobState(j.state.Load())&stateRunning != 0 {
		wq.runCond.Wait()
	}
	wq.runCondMu.Unlock()
}

// pickJob acquires a run-lock and pops one runnable job, per spec.md
// §4.6.2 "Picking a job under run-lock". It returns ok=false if the
// work-queue currently has nothing runnable (having released whatever
// lock it opportunistically took).
func (wq *WorkQ) pickJob() (job *Job, mode RunMode, ok bool) {
	if wq.tryRunSingle() {
		for {
			elem := wq.serial.PopFront()
			if elem == nil {
				wq.releaseSingle()
				wq.clearPendingIfDrained()
				return nil, RunNone, false
			}
			j := elem.Value().(*Job)
			if j.typ&Parallel != 0 {
				_ = wq.parallel.Erase(j.elemParallel)
				wq.downgrade()
				if j.lockRun() {
					return j, RunParallel, true
				}
				// busy: we're now RunParallel-held; keep draining serial
				// under that mode is not valid, so release and retry.
				wq.releaseParallel()
				if wq.tryRunSingle() {
					continue
				}
				return nil, RunNone, false
			}
			if j.lockRun() {
				return j, RunSingle, true
			}
			// busy; try the next serial entry under the same single lock.
		}
	}
	if wq.tryRunParallel() {
		for {
			elem := wq.parallel.PopFront()
			if elem == nil {
				wq.releaseParallel()
				return nil, RunNone, false
			}
			j := elem.Value().(*Job)
			_ = wq.serial.Erase(j.elemSerial)
			if j.lockRun() {
				return j, RunParallel, true
			}
		}
	}
	return nil, RunNone, false
}

func (wq *WorkQ) releaseMode(mode RunMode) {
	switch mode {
	case RunSingle:
		wq.releaseSingle()
	case RunParallel:
		wq.releaseParallel()
	}
}

// runInlineIfPicked is used by Job.Activate(ActImmed): it attempts to pick
// and run one job inline — whichever pickJob yields, which need not be the
// just-activated one — and falls through silently if nothing is runnable
// (the job still gets scheduled normally via the run-queue in that case).
func (wq *WorkQ) runInlineIfPicked(want *Job) {
	job, mode, ok := wq.pickJob()
	if !ok {
		return
	}
	if job != want {
		// picked a different job than the one just activated; run it
		// anyway (it is, after all, runnable work) and let the original
		// caller's job run through the normal aid/worker path.
	}
	wq.runJob(job, mode)
}

// runJob executes job's body with the run-lock held in mode, maintaining
// the calling goroutine's aid-stack frame for reentrancy and deadlock
// detection.
//
// A CoJob's body (see cojob.go) may "steal" the run-lock by setting
// coStolen before returning: completion (unlockRun, releaseMode) is then
// deferred to whichever participant drives the coroutine's last slot,
// per spec.md §4.6.4, rather than happening when this call returns.
//
// A plain job's body may also give up its frame early via Switch, either
// releasing it outright (Switch(nil, ...), popping the frame) or trading
// it for a different work-queue's (pushing a new frame in its place): in
// either case the frame this call pushed is no longer the current one
// when the body returns, so the lock it originally acquired has already
// been released and must not be released again here.
func (wq *WorkQ) runJob(job *Job, mode RunMode) {
	f := pushFrame(wq, mode, job)
	job.curMode = mode
	job.body(job)
	if job.coStolen.CompareAndSwap(true, false) {
		popFrame()
		return
	}
	job.unlockRun()
	if currentFrame() == f {
		wq.releaseMode(f.mode)
		popFrame()
	}
}

// Aid opportunistically executes up to n runnable jobs from this
// work-queue only, returning the number actually run.
func (wq *WorkQ) Aid(n int) int {
	done := 0
	for done < n {
		job, mode, ok := wq.pickJob()
		if !ok {
			break
		}
		wq.runJob(job, mode)
		done++
	}
	return done
}

// HasWork reports, advisorily, whether this work-queue currently has
// runnable jobs queued.
func (wq *WorkQ) HasWork() bool {
	return !wq.serial.Empty() || !wq.parallel.Empty()
}
