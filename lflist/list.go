// Package lflist implements an intrusive, lock-free, doubly-linked list.
//
// The list supports concurrent insert, unlink, and iteration without a
// coarse lock, following the Sundell & Tsigas style of marking a node's
// predecessor link before splicing it out so concurrent traversers can
// detect and help complete an in-flight unlink ("aiding"). It underpins
// the run-queues in package workq.
//
// Elements are intrusive: callers embed *Element in their own node type
// and use List to manage the pred/succ/link-count bookkeeping, mirroring
// the teacher's chunked/pooled node style (eventloop/ingress.go) rather
// than allocating a wrapper node per push.
package lflist

import (
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/joeycumines/go-workq/hazard"
	"github.com/joeycumines/go-workq/llptr"
)

// Kind distinguishes the sentinel head from ordinary elements and the
// element-pair cursors used to implement stable iterators.
type Kind uint8

const (
	KindElement Kind = iota
	KindHead
	KindIterForward
	KindIterBackward
)

// Flags carried on the pred/succ llptr of an Element.
const (
	// Marked, on pred, means the element is being (or has been) unlinked.
	Marked llptr.Flags = 1 << iota
	// SMarked, on succ, means the holder participates in unlinking its
	// successor: a.succ == (x, SMarked) means a is mid-unlink of x.
	SMarked
	// DMarked, on succ, flags a "deleted-cascade" marker used while aiding
	// a chain of consecutive unlinks.
	DMarked
)

// Element is the intrusive list node. Embed it in a user type and use
// List's push/pop/erase/iterator operations rather than touching these
// fields directly.
type Element struct {
	kind      Kind
	pred      *llptr.Ptr[Element]
	succ      *llptr.Ptr[Element]
	linkCount atomic.Int32
	linking   atomic.Bool
	value     any
}

func newElement(reg *hazard.Registry, owner hazard.Owner, kind Kind, value any) *Element {
	e := &Element{kind: kind, value: value}
	e.pred = llptr.New[Element](reg, owner, nil, 0)
	e.succ = llptr.New[Element](reg, owner, nil, 0)
	return e
}

// Value returns the payload stored in the element.
func (e *Element) Value() any { return e.value }

// LinkCount returns the number of structural references currently held on
// the element: one per neighbor whose succ/pred points at it, plus one per
// iterator straddling it. Zero is terminal — nothing but the caller's own
// external handle keeps it alive.
func (e *Element) LinkCount() int32 { return e.linkCount.Load() }

// Errors returned by the link/unlink primitives, matching the tri-state
// result the spec requires so callers can choose whether to retry.
var (
	ErrLinkTwice   = errors.New("lflist: element is already linked or being linked")
	ErrLinkRetry   = errors.New("lflist: anchor changed, caller should re-resolve and retry")
	ErrLinkLostA   = errors.New("lflist: lost race updating predecessor's successor link")
	ErrLinkLostB   = errors.New("lflist: lost race updating successor's predecessor link")
	ErrUnlinkRetry = errors.New("lflist: preconditions changed, caller should retry")
	ErrUnlinkFail  = errors.New("lflist: element was already unlinked")
)

// List is the reference-counted, user-facing wrapper around a run of
// Elements anchored by a sentinel head.
type List struct {
	reg   *hazard.Registry
	owner hazard.Owner
	head  *Element
}

// New constructs an empty list. reg may be nil for single-goroutine use
// (iteration then uses LoadNoAcquire); owner must be non-zero with its LSB
// clear when reg is non-nil (see package hazard).
func New(reg *hazard.Registry, owner hazard.Owner) *List {
	l := &List{reg: reg, owner: owner}
	l.head = newElement(reg, owner, KindHead, nil)
	l.head.pred.Store(l.head, 0)
	l.head.succ.Store(l.head, 0)
	l.head.linkCount.Store(2)
	return l
}

// NewElement constructs a detached element carrying value, ready to be
// linked into this list.
func (l *List) NewElement(value any) *Element {
	return newElement(l.reg, l.owner, KindElement, value)
}

func isUnlinked(x *Element) bool {
	_, f := x.pred.Load()
	return f&Marked != 0
}

// Succ returns the first non-s-marked successor of x, aiding any
// in-progress unlinks it encounters along the way.
func (l *List) Succ(x *Element) *Element {
	for {
		n, f := x.succ.Load()
		if n == nil {
			return l.head
		}
		if f&SMarked != 0 {
			l.unlinkAid(x, n)
			continue
		}
		if isUnlinked(n) {
			x = n
			continue
		}
		return n
	}
}

// Pred returns the first non-marked predecessor of x, helping fix stale
// pred links by CASing towards a validated predecessor where possible.
func (l *List) Pred(x *Element) *Element {
	p, _ := x.pred.Load()
	if p == nil {
		return l.head
	}
	for isUnlinked(p) {
		gp, _ := p.pred.Load()
		if gp == nil {
			return l.head
		}
		x.pred.CompareAndSwapStrong(p, 0, gp, 0)
		p = gp
	}
	return p
}

// LinkBetween lock-free-inserts x between the caller's last-known
// predecessor a and successor b.
func (l *List) LinkBetween(a, x, b *Element) error {
	if !x.linking.CompareAndSwap(false, true) {
		return ErrLinkTwice
	}
	defer x.linking.Store(false)

	x.pred.Store(a, 0)
	x.succ.Store(b, 0)
	x.linkCount.Store(2)

	if !a.succ.CompareAndSwapStrong(b, 0, x, 0) {
		return ErrLinkLostA
	}
	if !b.pred.CompareAndSwapStrong(a, 0, x, 0) {
		// best-effort only: b's pred link is advisory and gets fixed up
		// lazily by Pred/unlinkAid, so a failed CAS here is not fatal,
		// but is reported so callers that require a firm link can retry.
		return ErrLinkLostB
	}
	return nil
}

// LinkAfter inserts x immediately after a, looping to find the current
// successor of a until it succeeds.
func (l *List) LinkAfter(a, x *Element) error {
	for {
		b := l.Succ(a)
		err := l.LinkBetween(a, x, b)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrLinkTwice):
			return err
		case a.kind == KindHead:
			// the head is never unlinked; a lost race here means a
			// transient neighbor changed, which is a programming
			// invariant violation if it persists.
			return err
		default:
			runtime.Gosched()
		}
	}
}

// LinkBefore inserts x immediately before b, looping to find the current
// predecessor of b until it succeeds.
func (l *List) LinkBefore(b, x *Element) error {
	for {
		a := l.Pred(b)
		err := l.LinkBetween(a, x, b)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrLinkTwice):
			return err
		default:
			runtime.Gosched()
		}
	}
}

// PushBack links x at the end of the list.
func (l *List) PushBack(x *Element) error { return l.LinkBefore(l.head, x) }

// PushFront links x at the front of the list.
func (l *List) PushFront(x *Element) error { return l.LinkAfter(l.head, x) }

// Unlink removes x, whose current predecessor is known to be a, from the
// list, waiting for x's link-count to fall to expectLinkCount (i.e. for
// every other structural reference, such as an iterator straddling x, to
// release it) before detaching x's predecessor link.
func (l *List) Unlink(a, x *Element, expectLinkCount int32) error {
	if !a.succ.CompareAndSwapStrong(x, 0, x, SMarked) {
		return ErrUnlinkRetry
	}
	for {
		p, f := x.pred.Load()
		if f&Marked != 0 {
			break
		}
		if x.pred.CompareAndSwapStrong(p, f, p, f|Marked) {
			break
		}
	}
	l.unlinkAid(a, x)
	for x.linkCount.Load() > expectLinkCount {
		runtime.Gosched()
	}
	x.pred.Store(nil, Marked)
	return nil
}

// unlinkAid cooperatively drives an in-progress unlink of x (known to be
// a's successor, s-marked) to completion: splice a.succ forward past x,
// cascading through any further s-marked successors, then fix up the
// landing node's pred link.
func (l *List) unlinkAid(a, x *Element) {
	n, f := x.succ.Load()
	if f&SMarked != 0 {
		// x is itself being unlinked from the far side; help that one
		// first so the chain resolves node-by-node.
		l.unlinkAid(x, n)
		n, _ = x.succ.Load()
	}
	if n == nil {
		return
	}
	if a.succ.CompareAndSwapStrong(x, SMarked, n, 0) {
		x.linkCount.Add(-1)
	}
	for {
		p, f := n.pred.Load()
		if f&Marked != 0 {
			return
		}
		if p == x {
			if n.pred.CompareAndSwapStrong(x, f, a, f) {
				x.linkCount.Add(-1)
			}
			return
		}
		return
	}
}

// Erase removes x from the list; x must currently be linked (its caller
// is responsible for supplying its live predecessor, typically obtained
// via Pred or retained from a prior PushBack/PushFront).
func (l *List) Erase(x *Element) error {
	for {
		a := l.Pred(x)
		err := l.Unlink(a, x, 0)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrUnlinkRetry) {
			return err
		}
		runtime.Gosched()
	}
}

// PopFront removes and returns the first element, or nil if empty.
func (l *List) PopFront() *Element {
	for {
		x := l.Succ(l.head)
		if x == l.head {
			return nil
		}
		if err := l.Unlink(l.head, x, 0); err == nil {
			return x
		}
	}
}

// PopBack removes and returns the last element, or nil if empty.
func (l *List) PopBack() *Element {
	for {
		x := l.Pred(l.head)
		if x == l.head {
			return nil
		}
		a := l.Pred(x)
		if err := l.Unlink(a, x, 0); err == nil {
			return x
		}
	}
}

// Front returns the first element without removing it, or nil if empty.
func (l *List) Front() *Element {
	x := l.Succ(l.head)
	if x == l.head {
		return nil
	}
	return x
}

// Empty reports whether the list currently has no elements. Advisory
// under concurrent mutation, like every other snapshot operation here.
func (l *List) Empty() bool {
	return l.Succ(l.head) == l.head
}

// Size walks the list and counts elements. O(n) and only a snapshot under
// concurrent mutation, as the spec requires.
func (l *List) Size() int {
	n := 0
	for x := l.Succ(l.head); x != l.head; x = l.Succ(x) {
		n++
	}
	return n
}

// Clear pops every element until the list is empty, calling dispose (if
// non-nil) on each after it is fully detached.
func (l *List) Clear(dispose func(*Element)) {
	for {
		x := l.PopFront()
		if x == nil {
			return
		}
		if dispose != nil {
			dispose(x)
		}
	}
}

// Range calls fn for each element from front to back, stopping early if
// fn returns false. Safe under concurrent insert/unlink: it observes a
// snapshot walk via Succ, which aids in-flight unlinks rather than
// tripping over them.
func (l *List) Range(fn func(*Element) bool) {
	for x := l.Succ(l.head); x != l.head; x = l.Succ(x) {
		if !fn(x) {
			return
		}
	}
}
