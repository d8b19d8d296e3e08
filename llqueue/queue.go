// Package llqueue implements an intrusive, multi-producer/multi-consumer
// lock-free FIFO: a Michael-Scott queue variant protected by the hazard
// registry in package hazard, used for fan-in work submission paths that
// don't need the ordering machinery of package lflist's doubly-linked
// list.
package llqueue

import (
	"runtime"
	"sync/atomic"

	"github.com/joeycumines/go-workq/hazard"
	"github.com/joeycumines/go-workq/llptr"
)

// dequeued marks a node's succ pointer as logically popped, distinguishing
// "no successor yet" from "this node has been consumed".
const dequeued llptr.Flags = 1

// Node is the intrusive queue element. Embed it (by value, as a field) in
// your own node type is not supported here — instead construct Nodes via
// Queue.NewNode and retrieve the payload with Value.
type Node struct {
	succ  *llptr.Ptr[Node]
	value any
}

// Value returns the payload carried by the node.
func (n *Node) Value() any { return n.value }

// Queue is a FIFO of Nodes with a dummy head sentinel, per Michael & Scott.
type Queue struct {
	reg   *hazard.Registry
	owner hazard.Owner
	head  *llptr.Ptr[Node]
	tail  *llptr.Ptr[Node]
	size  atomic.Int64
}

// New constructs an empty Queue. reg may be nil for single-goroutine use.
func New(reg *hazard.Registry, owner hazard.Owner) *Queue {
	dummy := &Node{}
	dummy.succ = llptr.New[Node](reg, owner, nil, 0)
	q := &Queue{reg: reg, owner: owner}
	q.head = llptr.New[Node](reg, owner, dummy, 0)
	q.tail = llptr.New[Node](reg, owner, dummy, 0)
	return q
}

// NewNode constructs a detached node carrying value, ready for PushBack.
func (q *Queue) NewNode(value any) *Node {
	n := &Node{value: value}
	n.succ = llptr.New[Node](q.reg, q.owner, nil, 0)
	return n
}

// PushBack appends e to the tail of the queue.
func (q *Queue) PushBack(e *Node) {
	for {
		tail, _ := q.tail.Load()
		next, flags := tail.succ.Load()
		if next == nil {
			if tail.succ.CompareAndSwapStrong(nil, 0, e, 0) {
				q.tail.CompareAndSwapStrong(tail, 0, e, 0)
				q.size.Add(1)
				return
			}
		} else if flags&dequeued == 0 {
			// another producer linked but hasn't swung tail yet; help it.
			q.tail.CompareAndSwapStrong(tail, 0, next, 0)
		}
		runtime.Gosched()
	}
}

// PushFront inserts e immediately after the head sentinel. Used by
// package workq to give a job priority re-entry onto a run-queue.
func (q *Queue) PushFront(e *Node) {
	for {
		head, _ := q.head.Load()
		next, flags := head.succ.Load()
		e.succ.Store(next, flags&^dequeued)
		if head.succ.CompareAndSwapStrong(next, flags, e, flags&^dequeued) {
			q.size.Add(1)
			return
		}
		runtime.Gosched()
	}
}

// PopFront removes and returns the first node, or nil if the queue is
// empty. Per Michael & Scott, swinging head to next makes next the new
// dummy sentinel, so next stays in the queue; the value it carried is
// copied onto the old head node, which is detached and returned instead.
// The returned node's succ is marked dequeued and must not be reused via
// PushBack/PushFront until the hazard registry reports no reader is still
// publishing it (see Queue.Retire).
func (q *Queue) PopFront() *Node {
	for {
		head, _ := q.head.Load()
		tail, _ := q.tail.Load()
		next, _ := head.succ.Load()
		if head == tail {
			if next == nil {
				return nil
			}
			// tail lagging; help it catch up.
			q.tail.CompareAndSwapStrong(tail, 0, next, 0)
			continue
		}
		if next == nil {
			continue
		}
		value := next.value
		if q.head.CompareAndSwapStrong(head, 0, next, 0) {
			head.value = value
			head.succ.FetchOr(dequeued) // best-effort mark; harmless if racing with a fresh push
			q.size.Add(-1)
			return head
		}
	}
}

// Retire blocks until no hazard reader is still publishing n, then the
// node may be safely returned to a pool for reuse.
func (q *Queue) Retire(n *Node) {
	if q.reg == nil {
		return
	}
	q.reg.WaitUnused(q.owner, hazard.Value(nodeIdentity(n)))
}

// Size returns the approximate current length of the queue, maintained by
// a relaxed counter as the spec permits.
func (q *Queue) Size() int64 { return q.size.Load() }

// Empty reports whether the queue currently has no elements.
func (q *Queue) Empty() bool {
	head, _ := q.head.Load()
	next, _ := head.succ.Load()
	return next == nil
}
