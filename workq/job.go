// Package workq implements the work-queue scheduler: jobs, per-work-queue
// serialization, parallel and coroutine-style jobs, aid stacking, and the
// thread-pool binding that drives them forward.
package workq

import (
	"sync/atomic"

	"github.com/joeycumines/go-workq/lflist"
)

// JobType is a bitset of job construction flags.
type JobType uint8

const (
	// Once marks a job as terminal after its first run.
	Once JobType = 1 << iota
	// Persist keeps ACTIVE set across runs until explicitly deactivated
	// rather than being cleared when a run starts.
	Persist
	// Parallel allows the job to run on multiple goroutines concurrently
	// on a parallel-locked work-queue.
	Parallel
	// NoAid suppresses inline execution on Activate(ActImmed).
	NoAid
)

// jobState is the job's single atomic bitset.
type jobState uint32

const (
	stateActive jobState = 1 << iota
	stateRunning
	stateHasRun
)

// Body is the callable executed by a run of Job.
type Body func(j *Job)

// ActivateFlag configures Activate.
type ActivateFlag uint8

// ActImmed requests inline execution on the calling goroutine if the aid
// stack is shallow enough and the job permits it (no NoAid).
const ActImmed ActivateFlag = 1 << iota

// maxAidDepth bounds recursive inline execution via ActImmed.
const maxAidDepth = 64

// Job is a reference-counted unit of work attached to exactly one WorkQ.
type Job struct {
	wq           *WorkQ
	typ          JobType
	state        atomic.Uint32
	runGeneration atomic.Uint64
	body         Body
	elemSerial   *lflist.Element
	elemParallel *lflist.Element
	retainer     atomic.Pointer[Job] // self-reference, cleared at run start (§9 "once self-reference trick")

	curMode  RunMode     // set by WorkQ.runJob for the duration of the current run; read by CoJob.run
	coStolen atomic.Bool // set by CoJob.run to defer unlockRun/releaseMode to the coroutine's last participant
}

// NewJob constructs a Job owned by wq. body must not panic; exceptions
// (panics) escaping a non-future-backed job's body are, per spec.md
// §4.6.6, not caught — the process terminates, matching "jobs are
// declared non-throwing in design".
func NewJob(wq *WorkQ, typ JobType, body Body) (*Job, error) {
	if wq == nil {
		return nil, newArgumentError("nil work-queue")
	}
	if typ&Once != 0 && typ&Persist != 0 {
		return nil, newArgumentError("ONCE and PERSIST are mutually exclusive")
	}
	if body == nil {
		return nil, newArgumentError("nil job body")
	}
	j := &Job{wq: wq, typ: typ, body: body}
	j.elemSerial = wq.serial.NewElement(j)
	if typ&Parallel != 0 {
		j.elemParallel = wq.parallel.NewElement(j)
	}
	return j, nil
}

// WorkQ returns the owning work-queue.
func (j *Job) WorkQ() *WorkQ { return j.wq }

// Type returns the job's construction flags.
func (j *Job) Type() JobType { return j.typ }

// RunGeneration returns the monotonic run counter, incremented on every
// successful lockRun. Not overflow-checked — per the open question
// preserved from spec.md §9, the counter is documented as non-overflow
// -safe within a single process lifetime.
func (j *Job) RunGeneration() uint64 { return j.runGeneration.Load() }

// IsActive reports whether the job is currently scheduled to run.
func (j *Job) IsActive() bool { return jobState(j.state.Load())&stateActive != 0 }

// HasRun reports whether the job has completed at least one run.
func (j *Job) HasRun() bool { return jobState(j.state.Load())&stateHasRun != 0 }

// Activate sets ACTIVE, enqueuing the job on its work-queue's run-queue(s)
// if it was neither active nor running. With ActImmed, and absent NoAid,
// it additionally attempts to run the job inline on the calling goroutine
// if the current aid-stack depth is below maxAidDepth.
func (j *Job) Activate(flags ActivateFlag) {
	if j.wq.svc.detached.Load() {
		return // the service has detached from its client; submission is a no-op
	}
	enqueued := false
	for {
		old := jobState(j.state.Load())
		if j.typ&Once != 0 && old&stateHasRun != 0 {
			return // terminal; activation after first run is a no-op
		}
		next := old | stateActive
		if j.state.CompareAndSwap(uint32(old), uint32(next)) {
			enqueued = old&(stateActive|stateRunning) == 0
			break
		}
	}
	if enqueued {
		j.retain()
		j.wq.enqueue(j)
		j.wq.svc.log.Debug().Str("op", "activate").Uint64("generation", j.RunGeneration()).Log("job enqueued")
	}
	if flags&ActImmed != 0 && j.typ&NoAid == 0 && depth() < maxAidDepth {
		j.wq.runInlineIfPicked(j)
	}
}

// Deactivate clears ACTIVE. If the job is currently running and the
// calling goroutine is not itself executing this job, Deactivate blocks
// until the run completes; self-deactivation from within the job's own
// body is a no-op on the running bit (the job still finishes its current
// run, it simply will not be re-enqueued afterward).
func (j *Job) Deactivate() {
	for {
		old := jobState(j.state.Load())
		next := old &^ stateActive
		if j.state.CompareAndSwap(uint32(old), uint32(next)) {
			old = next
			break
		}
	}
	if jobState(j.state.Load())&stateRunning == 0 {
		return
	}
	if currentlyRunning(j) {
		return
	}
	j.wq.waitRunComplete(j)
}

// retain pins a self-reference so the job outlives a caller dropping its
// own handle between activation and the run actually starting.
func (j *Job) retain() { j.retainer.Store(j) }

// release drops the self-reference, called at the start of the job's run.
func (j *Job) release() { j.retainer.Store(nil) }

// lockRun attempts the ACTIVE,!RUNNING,!(ONCE&HAS_RUN) -> RUNNING
// transition. Returns true on success, false if the job is presently not
// runnable (BUSY in spec terms).
func (j *Job) lockRun() bool {
	for {
		old := jobState(j.state.Load())
		if old&stateRunning != 0 || old&stateActive == 0 {
			j.wq.svc.log.Debug().Str("op", "lock_run").Log("busy")
			return false
		}
		if j.typ&Once != 0 && old&stateHasRun != 0 {
			return false
		}
		next := old | stateRunning | stateHasRun
		if j.typ&Persist == 0 {
			next &^= stateActive
		}
		if j.state.CompareAndSwap(uint32(old), uint32(next)) {
			j.runGeneration.Add(1)
			return true
		}
	}
}

// unlockRun clears RUNNING, re-enqueuing the job if it is not ONCE and
// was re-activated by a concurrent Activate while it ran.
func (j *Job) unlockRun() {
	var after jobState
	for {
		old := jobState(j.state.Load())
		next := old &^ stateRunning
		if j.state.CompareAndSwap(uint32(old), uint32(next)) {
			after = next
			break
		}
	}
	if j.typ&Once == 0 && after&stateActive != 0 {
		j.wq.enqueue(j)
	}
	j.release()
}
