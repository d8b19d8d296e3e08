package llqueue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := New(nil, 0)

	a := q.NewNode("a")
	b := q.NewNode("b")
	c := q.NewNode("c")
	q.PushBack(a)
	q.PushBack(b)
	q.PushBack(c)
	require.EqualValues(t, 3, q.Size())

	got := q.PopFront()
	require.NotNil(t, got)
	require.Equal(t, "a", got.Value())

	got = q.PopFront()
	require.NotNil(t, got)
	require.Equal(t, "b", got.Value())

	got = q.PopFront()
	require.NotNil(t, got)
	require.Equal(t, "c", got.Value())

	require.True(t, q.Empty())
	require.Nil(t, q.PopFront())
}

func TestQueuePushFrontPriority(t *testing.T) {
	q := New(nil, 0)

	q.PushBack(q.NewNode("back"))
	q.PushFront(q.NewNode("front"))

	got := q.PopFront()
	require.Equal(t, "front", got.Value())

	got = q.PopFront()
	require.Equal(t, "back", got.Value())
}
