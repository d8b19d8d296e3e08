package lflist

import "errors"

// Iterator is a stable "between-element" cursor, represented — per the
// spec — as a pair of sentinel elements (back, front) linked into the list
// straddling the logical position. Stepping unlinks the rear sentinel and
// relinks it past the next non-iterator element, so the cursor survives
// concurrent insert/erase around it instead of dangling.
type Iterator struct {
	list  *List
	back  *Element
	front *Element
}

// ErrIteratorBusy is returned by IteratorTo when the target element is
// currently being linked by another goroutine (its linking flag is held),
// per the spec's documented edge case.
var ErrIteratorBusy = errors.New("lflist: element is being linked by another goroutine")

// IteratorTo constructs an Iterator positioned immediately before target.
// Fails with ErrIteratorBusy if target is mid-link.
func (l *List) IteratorTo(target *Element) (*Iterator, error) {
	if target.linking.Load() {
		return nil, ErrIteratorBusy
	}
	back := newElement(l.reg, l.owner, KindIterBackward, nil)
	front := newElement(l.reg, l.owner, KindIterForward, nil)
	a := l.Pred(target)
	if err := l.LinkBetween(a, back, target); err != nil {
		return nil, err
	}
	if err := l.LinkBetween(back, front, target); err != nil {
		_ = l.Erase(back)
		return nil, err
	}
	return &Iterator{list: l, back: back, front: front}, nil
}

// Begin returns an iterator positioned before the list's first element.
func (l *List) Begin() *Iterator {
	it, _ := l.IteratorTo(l.Succ(l.head))
	return it
}

// End returns an iterator positioned at the list's tail sentinel.
func (l *List) End() *Iterator {
	it, _ := l.IteratorTo(l.head)
	return it
}

// Equal reports whether two iterators occupy the same position: no
// non-iterator element lies between their back sentinels.
func (it *Iterator) Equal(other *Iterator) bool {
	if it == other {
		return true
	}
	for x := it.list.Succ(it.back); ; x = it.list.Succ(x) {
		switch x.kind {
		case KindIterBackward, KindIterForward:
			if x == other.back {
				return true
			}
		default:
			return false
		}
		if x == it.list.head {
			return false
		}
	}
}

// Element returns the element immediately after the iterator's position,
// or nil if the iterator sits at the tail.
func (it *Iterator) Element() *Element {
	x := it.list.Succ(it.front)
	if x == it.list.head {
		return nil
	}
	return x
}

// Next advances the iterator past the next non-iterator element,
// unlinking the rear sentinel and relinking it after the element that was
// just stepped over.
func (it *Iterator) Next() bool {
	e := it.Element()
	if e == nil {
		return false
	}
	if err := it.list.Erase(it.back); err != nil {
		return false
	}
	if err := it.list.LinkAfter(e, it.back); err != nil {
		return false
	}
	return true
}

// Prev steps the iterator backward, symmetric to Next.
func (it *Iterator) Prev() bool {
	e := it.list.Pred(it.back)
	if e == it.list.head {
		return false
	}
	if err := it.list.Erase(it.front); err != nil {
		return false
	}
	if err := it.list.LinkBefore(e, it.front); err != nil {
		return false
	}
	return true
}

// Close removes both sentinel elements of the iterator from the list.
func (it *Iterator) Close() {
	_ = it.list.Erase(it.back)
	_ = it.list.Erase(it.front)
}
