package workq

import (
	"sync/atomic"
	"testing"

	"github.com/joeycumines/go-workq/threadpool"
	"github.com/stretchr/testify/require"
)

// fakeClient is a minimal threadpool.Client used to observe whether
// Service.wakeup actually reaches an attached client.
type fakeClient struct {
	wakeups  atomic.Int32
	detached atomic.Bool
}

func (c *fakeClient) Wakeup(n int)     { c.wakeups.Add(int32(n)) }
func (c *fakeClient) OnServiceDetach() { c.detached.Store(true) }

func TestThreadpoolAttachWiresServiceClient(t *testing.T) {
	svc := NewService()
	wq := svc.NewWorkQ()
	client := &fakeClient{}

	detach, err := threadpool.Attach(client, svc)
	require.NoError(t, err)
	require.NotNil(t, detach)

	j, err := NewJob(wq, Once, func(*Job) {})
	require.NoError(t, err)
	j.Activate(0)

	require.Greater(t, client.wakeups.Load(), int32(0), "attached client should be woken when work is enqueued")

	detach()
	require.True(t, client.detached.Load())

	before := client.wakeups.Load()
	j2, err := NewJob(wq, Once, func(*Job) {})
	require.NoError(t, err)
	j2.Activate(0)
	require.Equal(t, before, client.wakeups.Load(), "a detached service must not keep waking its former client")
}
