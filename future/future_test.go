package future

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-workq/workq"
	"github.com/stretchr/testify/require"
)

func TestPromiseGetFutureOnce(t *testing.T) {
	p := NewPromise[int]()
	f, err := p.GetFuture()
	require.NoError(t, err)
	require.True(t, f.Valid())

	_, err = p.GetFuture()
	require.ErrorIs(t, err, ErrFutureAlreadyRetrieved)
}

func TestPromiseSetValueThenGet(t *testing.T) {
	p := NewPromise[int]()
	f, err := p.GetFuture()
	require.NoError(t, err)

	require.NoError(t, p.SetValue(42))
	require.ErrorIs(t, p.SetValue(43), ErrPromiseAlreadySatisfied)

	v, err := f.Get()
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.False(t, f.Valid())
}

func TestPromiseSetExceptionNilIsArgumentError(t *testing.T) {
	p := NewPromise[int]()
	err := p.SetException(nil)
	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
}

func TestPromiseSetExceptionThenGet(t *testing.T) {
	p := NewPromise[string]()
	f, err := p.GetFuture()
	require.NoError(t, err)

	boom := errors.New("boom")
	require.NoError(t, p.SetException(boom))

	_, err = f.Get()
	require.ErrorIs(t, err, boom)
}

func TestBrokenPromiseOnAbandon(t *testing.T) {
	// Simulate what a finalizer would observe without depending on GC
	// timing: drop the promise's only reference and invoke the same path
	// the finalizer runs, against a future that was already retrieved.
	p := NewPromise[int]()
	f, err := p.GetFuture()
	require.NoError(t, err)

	finalizePromise(p)

	_, err = f.Get()
	require.ErrorIs(t, err, ErrBrokenPromise)
}

func TestAsyncLazyRunsOnGet(t *testing.T) {
	var ran atomic.Bool
	f := AsyncLazy(func() (int, error) {
		ran.Store(true)
		return 7, nil
	})
	require.False(t, ran.Load())

	v, err := f.Get()
	require.NoError(t, err)
	require.Equal(t, 7, v)
	require.True(t, ran.Load())
}

func TestAsyncLazyWaitForDeferredDoesNotBlock(t *testing.T) {
	f := AsyncLazy(func() (int, error) {
		time.Sleep(time.Hour)
		return 0, nil
	})
	status := f.WaitFor(time.Millisecond)
	require.Equal(t, StatusDeferred, status)
}

func TestAsyncLazyPropagatesPanicAsError(t *testing.T) {
	f := AsyncLazy(func() (int, error) {
		panic("kaboom")
	})
	_, err := f.Get()
	require.Error(t, err)
}

func newTestWorkQ() (*workq.Service, *workq.WorkQ) {
	svc := workq.NewService()
	return svc, svc.NewWorkQ()
}

func TestAsyncEagerCompletesViaInlineAid(t *testing.T) {
	svc, wq := newTestWorkQ()
	f := Async(wq, LaunchDefault, func() (int, error) { return 9, nil })
	_ = svc

	v, err := f.Get()
	require.NoError(t, err)
	require.Equal(t, 9, v)
}

func TestAsyncDeferredRequiresStart(t *testing.T) {
	_, wq := newTestWorkQ()
	var ran atomic.Bool
	f := Async(wq, LaunchDefer, func() (int, error) {
		ran.Store(true)
		return 1, nil
	})

	status := f.WaitFor(time.Millisecond)
	require.Equal(t, StatusDeferred, status)
	require.False(t, ran.Load())

	v, err := f.Get()
	require.NoError(t, err)
	require.Equal(t, 1, v)
	require.True(t, ran.Load())
}

func TestPackagedTaskRunsOnce(t *testing.T) {
	var calls atomic.Int32
	task := NewPackagedTask(func() (int, error) {
		calls.Add(1)
		return 5, nil
	})
	f, err := task.GetFuture()
	require.NoError(t, err)

	_, err = task.GetFuture()
	require.ErrorIs(t, err, ErrFutureAlreadyRetrieved)

	task.Run()
	task.Run() // no-op

	v, err := f.Get()
	require.NoError(t, err)
	require.Equal(t, 5, v)
	require.EqualValues(t, 1, calls.Load())
}

func TestConvertTransformsValue(t *testing.T) {
	p := NewPromise[int]()
	f, err := p.GetFuture()
	require.NoError(t, err)

	converted := Convert(f, func(v int, err error) (string, error) {
		require.NoError(t, err)
		return "value", nil
	})

	require.NoError(t, p.SetValue(3))

	v, err := converted.Get()
	require.NoError(t, err)
	require.Equal(t, "value", v)
}

func TestConvertPropagatesSourceException(t *testing.T) {
	p := NewPromise[int]()
	f, err := p.GetFuture()
	require.NoError(t, err)

	boom := errors.New("boom")
	converted := Convert(f, func(v int, err error) (string, error) {
		if err != nil {
			return "", err
		}
		return "unreachable", nil
	})

	require.NoError(t, p.SetException(boom))

	_, err = converted.Get()
	require.ErrorIs(t, err, boom)
}

func TestCallbackInvokedOnReady(t *testing.T) {
	p := NewPromise[int]()
	f, err := p.GetFuture()
	require.NoError(t, err)

	var got int
	done := make(chan struct{})
	Callback(f, func(v int, err error) {
		got = v
		close(done)
	})

	require.NoError(t, p.SetValue(11))
	<-done
	require.Equal(t, 11, got)
}

func TestCallbackInvokedImmediatelyIfAlreadyReady(t *testing.T) {
	p := NewPromise[int]()
	f, err := p.GetFuture()
	require.NoError(t, err)
	require.NoError(t, p.SetValue(1))

	called := false
	Callback(f, func(v int, err error) { called = true })
	require.True(t, called)
}

func TestCombineSumsValuesOnlyAfterStart(t *testing.T) {
	_, wq := newTestWorkQ()

	p1 := NewPromise[int]()
	f1, _ := p1.GetFuture()
	p2 := NewPromise[int]()
	f2, _ := p2.GetFuture()

	combined := Combine(wq, workq.JobType(0), func(vs []int) (int, error) {
		sum := 0
		for _, v := range vs {
			sum += v
		}
		return sum, nil
	}, f1, f2)

	require.NoError(t, p1.SetValue(2))
	require.NoError(t, p2.SetValue(3))

	// Not started yet: must not have resolved even though both inputs are
	// ready.
	require.Equal(t, StatusDeferred, combined.WaitFor(time.Millisecond))

	v, err := combined.Get()
	require.NoError(t, err)
	require.Equal(t, 5, v)
}

func TestCombineZeroFuturesCompletesOnStart(t *testing.T) {
	_, wq := newTestWorkQ()
	combined := Combine[int, int](wq, workq.JobType(0), func(vs []int) (int, error) {
		return 99, nil
	})
	v, err := combined.Get()
	require.NoError(t, err)
	require.Equal(t, 99, v)
}

func TestCombinePropagatesFirstError(t *testing.T) {
	_, wq := newTestWorkQ()

	p1 := NewPromise[int]()
	f1, _ := p1.GetFuture()
	p2 := NewPromise[int]()
	f2, _ := p2.GetFuture()

	boom := errors.New("boom")
	var called atomic.Bool
	combined := Combine(wq, workq.JobType(0), func(vs []int) (int, error) {
		called.Store(true)
		return 0, nil
	}, f1, f2)

	require.NoError(t, p1.SetException(boom))
	require.NoError(t, p2.SetValue(1))

	_, err := combined.Get()
	require.ErrorIs(t, err, boom)
	require.False(t, called.Load())
}

func TestShareAllowsRepeatedGet(t *testing.T) {
	p := NewPromise[int]()
	f, err := p.GetFuture()
	require.NoError(t, err)

	sf, err := f.Share()
	require.NoError(t, err)
	require.False(t, f.Valid())

	require.NoError(t, p.SetValue(6))

	v1, err := sf.Get()
	require.NoError(t, err)
	v2, err := sf.Get()
	require.NoError(t, err)
	require.Equal(t, 6, v1)
	require.Equal(t, 6, v2)
}

func TestFutureGetOnInvalidFutureReturnsErrNoState(t *testing.T) {
	var f Future[int]
	_, err := f.Get()
	require.ErrorIs(t, err, ErrNoState)
}
