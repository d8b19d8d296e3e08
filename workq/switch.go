package workq

import "runtime"

// Switch implements workq_switch (spec.md §4.6.5): adjusts the calling
// goroutine's current run-lock frame.
//
//   - target == nil releases the current frame's work-queue lock entirely
//     (the frame is popped).
//   - target == the work-queue already held by the current frame adjusts
//     mode in place: RunSingle -> RunParallel is a downgrade; RunParallel
//     -> RunSingle is checked against every enclosing frame and fails
//     with a *DeadlockError if any of them holds that work-queue
//     RunSingle.
//   - target a different work-queue: if mode is RunSingle and any
//     enclosing frame already holds target RunSingle, fails with a
//     *DeadlockError; otherwise the current frame's lock is dropped and
//     the new one acquired.
//
// Switch must be called from within some WorkQ run (i.e. on the calling
// goroutine's aid-stack); otherwise it returns a *StackError.
func Switch(target *WorkQ, mode RunMode) error {
	f := currentFrame()
	if f == nil {
		return &StackError{Op: "Switch"}
	}

	if target == nil {
		f.wq.releaseMode(f.mode)
		popFrame()
		return nil
	}

	if target == f.wq {
		switch {
		case f.mode == RunSingle && mode == RunParallel:
			f.wq.downgrade()
			f.mode = RunParallel
			return nil
		case f.mode == RunParallel && mode == RunSingle:
			if holdsSingle(target) {
				return &DeadlockError{Target: target}
			}
			f.wq.releaseParallel()
			for !f.wq.tryRunSingle() {
				runtime.Gosched()
			}
			f.mode = RunSingle
			return nil
		default:
			return nil
		}
	}

	if mode == RunSingle && holdsSingle(target) {
		return &DeadlockError{Target: target}
	}

	switch mode {
	case RunSingle:
		for !target.tryRunSingle() {
			runtime.Gosched()
		}
	case RunParallel:
		for !target.tryRunParallel() {
			runtime.Gosched()
		}
	}

	f.wq.releaseMode(f.mode)
	popFrame()
	pushFrame(target, mode, nil)
	return nil
}
