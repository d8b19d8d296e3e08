package workq

import (
	"sync"

	"github.com/joeycumines/go-workq/internal/goroutineid"
)

// frame is one entry of a goroutine's run-lock stack: which work-queue is
// held, in which mode, and (while a job's body is executing) which job.
type frame struct {
	wq   *WorkQ
	mode RunMode
	job  *Job
	prev *frame
}

// stacks maps goroutine id -> top frame. Go has no per-OS-thread storage
// usable by goroutines (see internal/goroutineid's doc comment), so this
// stands in for the spec's TLS-stored run-lock stack, scoped to the
// lifetime of a single Aid/DoWork call chain.
var stacks sync.Map // uint64 -> *frame

func currentFrame() *frame {
	v, ok := stacks.Load(goroutineid.Current())
	if !ok {
		return nil
	}
	return v.(*frame)
}

func pushFrame(wq *WorkQ, mode RunMode, job *Job) *frame {
	id := goroutineid.Current()
	f := &frame{wq: wq, mode: mode, job: job, prev: currentFrame()}
	stacks.Store(id, f)
	return f
}

func popFrame() {
	id := goroutineid.Current()
	v, ok := stacks.Load(id)
	if !ok {
		return
	}
	f := v.(*frame)
	if f.prev == nil {
		stacks.Delete(id)
	} else {
		stacks.Store(id, f.prev)
	}
}

// depth returns the calling goroutine's current aid-stack depth.
func depth() int {
	n := 0
	for f := currentFrame(); f != nil; f = f.prev {
		n++
	}
	return n
}

// currentlyRunning reports whether the calling goroutine's stack has a
// frame executing job j.
func currentlyRunning(j *Job) bool {
	for f := currentFrame(); f != nil; f = f.prev {
		if f.job == j {
			return true
		}
	}
	return false
}

// holdsSingle reports whether any frame on the calling goroutine's stack
// holds wq in RunSingle mode.
func holdsSingle(wq *WorkQ) bool {
	for f := currentFrame(); f != nil; f = f.prev {
		if f.wq == wq && f.mode == RunSingle {
			return true
		}
	}
	return false
}
