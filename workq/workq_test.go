package workq

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *WorkQ) {
	svc := NewService()
	return svc, svc.NewWorkQ()
}

func TestJobActivateRunsInline(t *testing.T) {
	_, wq := newTestService()

	var ran atomic.Bool
	j, err := NewJob(wq, Once, func(*Job) { ran.Store(true) })
	require.NoError(t, err)

	j.Activate(ActImmed)
	require.True(t, ran.Load())
	require.True(t, j.HasRun())
	require.False(t, j.IsActive())
}

func TestJobOnceDoesNotRerun(t *testing.T) {
	_, wq := newTestService()

	var calls atomic.Int32
	j, err := NewJob(wq, Once, func(*Job) { calls.Add(1) })
	require.NoError(t, err)

	j.Activate(ActImmed)
	j.Activate(ActImmed)
	require.EqualValues(t, 1, calls.Load())
}

func TestJobPersistRerunsAfterReactivate(t *testing.T) {
	_, wq := newTestService()

	var calls atomic.Int32
	j, err := NewJob(wq, Persist, func(*Job) { calls.Add(1) })
	require.NoError(t, err)

	j.Activate(ActImmed)
	require.EqualValues(t, 1, calls.Load())

	j.Activate(ActImmed)
	require.EqualValues(t, 2, calls.Load())
}

func TestNewJobRejectsOncePersist(t *testing.T) {
	_, wq := newTestService()
	_, err := NewJob(wq, Once|Persist, func(*Job) {})
	require.Error(t, err)
}

func TestWorkQOnceHelper(t *testing.T) {
	_, wq := newTestService()
	var ran atomic.Bool
	j, err := wq.Once(func(*Job) { ran.Store(true) })
	require.NoError(t, err)
	require.NotNil(t, j)
	require.True(t, ran.Load())
}

func TestCoJobFanOutCompletesAllSlots(t *testing.T) {
	svc, wq := newTestService()

	const n = 8
	var seen [n]atomic.Bool
	co, err := NewCoJob(wq, Once, func() int { return n }, func(c *CoJob, i int) {
		seen[i].Store(true)
	})
	require.NoError(t, err)

	co.Activate(ActImmed)

	// The triggering goroutine's inline run only starts the fan-out (it
	// steals the run-lock); drain it explicitly, as a worker thread would.
	for i := 0; i < n; i++ {
		svc.DoWork()
	}

	for i := 0; i < n; i++ {
		require.True(t, seen[i].Load(), "slot %d not run", i)
	}
}

func TestCoJobZeroCountCompletesNormally(t *testing.T) {
	_, wq := newTestService()
	var ran atomic.Bool
	co, err := NewCoJob(wq, Once, func() int { return 0 }, func(c *CoJob, i int) {
		ran.Store(true)
	})
	require.NoError(t, err)
	co.Activate(ActImmed)
	require.False(t, ran.Load())
	require.True(t, co.HasRun())
}

func TestSwitchOutsideFrameReturnsStackError(t *testing.T) {
	_, wq := newTestService()
	err := Switch(wq, RunSingle)
	var stackErr *StackError
	require.ErrorAs(t, err, &stackErr)
}

func TestSwitchNilReleasesFrame(t *testing.T) {
	_, wq := newTestService()

	var switchErr error
	var sawFrame bool
	j, err := NewJob(wq, Once, func(*Job) {
		sawFrame = currentFrame() != nil
		switchErr = Switch(nil, RunNone)
	})
	require.NoError(t, err)

	j.Activate(ActImmed)
	require.True(t, sawFrame)
	require.NoError(t, switchErr)
}

func TestParallelJobsEachRunUnderRunParallel(t *testing.T) {
	svc, wq := newTestService()

	const n = 4
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		j, err := NewJob(wq, Once|Parallel, func(*Job) { wg.Done() })
		require.NoError(t, err)
		j.Activate(0) // enqueue only; drive via DoWork below
	}

	for i := 0; i < n; i++ {
		require.True(t, svc.DoWork())
	}
	wg.Wait()
}

func TestDeactivateStopsFutureRuns(t *testing.T) {
	_, wq := newTestService()
	var calls atomic.Int32
	j, err := NewJob(wq, Persist, func(*Job) { calls.Add(1) })
	require.NoError(t, err)

	j.Activate(ActImmed)
	require.EqualValues(t, 1, calls.Load())

	j.Deactivate()
	require.False(t, j.IsActive())

	wq.Aid(1)
	require.EqualValues(t, 1, calls.Load())
}
