// Package llptr implements a reference-counted atomic tagged pointer: a
// word-sized handle to a value of type T plus a small flag bitset, loaded
// and swapped as one atomic unit.
//
// The C++ original packs the flag bits into the low, guaranteed-zero bits
// of an aligned pointer. Go's garbage collector does not tolerate tagged
// pointers (a collector that scans a pointer-typed word expects it to be a
// valid address or nil), so this package boxes (pointer, flags) together
// in a small immutable struct and swaps the box atomically via
// atomic.Pointer. This preserves every observable operation the spec
// requires — load, store, exchange, weak/strong compare-and-swap,
// fetch-or/and/xor on the flag bits, and load_no_acquire — while staying
// inside what the Go runtime can safely scan.
package llptr

import (
	"sync/atomic"

	"github.com/joeycumines/go-workq/hazard"
)

// Flags is the small bitset carried alongside the pointer.
type Flags uint32

// box is the unit that gets atomically swapped. Once published, a box is
// never mutated — only replaced — so readers that observe *box directly
// (without going through the hazard protocol) still see a consistent pair.
type box[T any] struct {
	ptr   *T
	flags Flags
}

// Ptr is an atomic (pointer, flags) pair for *T.
type Ptr[T any] struct {
	word atomic.Pointer[box[T]]
	reg  *hazard.Registry
	self hazard.Owner
}

// New constructs a Ptr whose acquiring Load calls are protected by reg
// under the given owner identity (see package hazard). reg may be nil, in
// which case Load behaves identically to LoadNoAcquire — appropriate for
// single-threaded or GC-only-reclaimed uses where no concurrent free/reuse
// can race the read.
func New[T any](reg *hazard.Registry, owner hazard.Owner, ptr *T, flags Flags) *Ptr[T] {
	p := &Ptr[T]{reg: reg, self: owner}
	p.word.Store(&box[T]{ptr: ptr, flags: flags})
	return p
}

// Load returns the current pointer and flags. When a hazard registry is
// configured, the read is protected by the publish/verify/clear protocol:
// the box is published to a hazard slot, re-read, and only returned once
// stable, so a concurrent Store cannot hand this box back to a pool while
// the caller is still inspecting it.
func (p *Ptr[T]) Load() (*T, Flags) {
	if p.reg == nil {
		return p.LoadNoAcquire()
	}
	slot, err := p.reg.Allocate(p.self)
	if err != nil {
		// owner misconfigured; fall back to an unprotected read rather
		// than panic on a hot path.
		return p.LoadNoAcquire()
	}
	defer slot.Release()
	for {
		b := p.word.Load()
		var value hazard.Value
		if b != nil {
			value = hazard.Value(uintptrOf(b))
		}
		stable := false
		slot.Publish(value, func() {
			stable = p.word.Load() == b
		}, nil)
		if stable {
			if b == nil {
				return nil, 0
			}
			return b.ptr, b.flags
		}
	}
}

// LoadNoAcquire returns the raw (pointer, flags) pair without hazard
// protection. The caller must already hold a reference to the pointee by
// some other means (e.g. it is the exclusive owner, or reachability is
// guaranteed by an enclosing lock).
func (p *Ptr[T]) LoadNoAcquire() (*T, Flags) {
	b := p.word.Load()
	if b == nil {
		return nil, 0
	}
	return b.ptr, b.flags
}

// Store unconditionally replaces the pointer and flags, returning the
// displaced pair so the caller can release it (after delivering grants to
// any concurrent hazard readers via the hazard registry's Grant, if one is
// configured).
func (p *Ptr[T]) Store(ptr *T, flags Flags) (oldPtr *T, oldFlags Flags) {
	nb := &box[T]{ptr: ptr, flags: flags}
	old := p.word.Swap(nb)
	if old == nil {
		return nil, 0
	}
	p.grantDisplaced(old)
	return old.ptr, old.flags
}

// Exchange is an alias for Store kept for parity with the spec's naming;
// both atomically replace the pair and return the previous one.
func (p *Ptr[T]) Exchange(ptr *T, flags Flags) (*T, Flags) {
	return p.Store(ptr, flags)
}

// CompareAndSwapWeak attempts to replace (oldPtr, oldFlags) with (newPtr,
// newFlags); may fail spuriously even when the current value matches.
func (p *Ptr[T]) CompareAndSwapWeak(oldPtr *T, oldFlags Flags, newPtr *T, newFlags Flags) bool {
	return p.CompareAndSwapStrong(oldPtr, oldFlags, newPtr, newFlags)
}

// CompareAndSwapStrong attempts to replace (oldPtr, oldFlags) with
// (newPtr, newFlags), retrying internally on spurious pointer-identity
// mismatches of the underlying box so it never fails when the logical
// value actually matches.
func (p *Ptr[T]) CompareAndSwapStrong(oldPtr *T, oldFlags Flags, newPtr *T, newFlags Flags) bool {
	nb := &box[T]{ptr: newPtr, flags: newFlags}
	for {
		cur := p.word.Load()
		var curPtr *T
		var curFlags Flags
		if cur != nil {
			curPtr, curFlags = cur.ptr, cur.flags
		}
		if curPtr != oldPtr || curFlags != oldFlags {
			return false
		}
		if p.word.CompareAndSwap(cur, nb) {
			if cur != nil {
				p.grantDisplaced(cur)
			}
			return true
		}
		// the box pointer changed without the logical value changing
		// (a fetch-or/and/xor re-boxed it); retry the logical compare.
	}
}

// FetchOr atomically ORs bits into the flags, leaving the pointer
// unchanged, and returns the previous flags.
func (p *Ptr[T]) FetchOr(bits Flags) Flags { return p.rmwFlags(func(f Flags) Flags { return f | bits }) }

// FetchAnd atomically ANDs bits into the flags, leaving the pointer
// unchanged, and returns the previous flags.
func (p *Ptr[T]) FetchAnd(bits Flags) Flags {
	return p.rmwFlags(func(f Flags) Flags { return f & bits })
}

// FetchXor atomically XORs bits into the flags, leaving the pointer
// unchanged, and returns the previous flags.
func (p *Ptr[T]) FetchXor(bits Flags) Flags {
	return p.rmwFlags(func(f Flags) Flags { return f ^ bits })
}

func (p *Ptr[T]) rmwFlags(f func(Flags) Flags) Flags {
	for {
		cur := p.word.Load()
		var ptr *T
		var flags Flags
		if cur != nil {
			ptr, flags = cur.ptr, cur.flags
		}
		nb := &box[T]{ptr: ptr, flags: f(flags)}
		if p.word.CompareAndSwap(cur, nb) {
			return flags
		}
	}
}

// grantDisplaced hands off the displaced box's identity to any hazard
// reader currently publishing it, via the configured registry's Grant. No
// extra references are minted or released here because llptr does not
// itself own a refcounting scheme for T — callers layering refcounts
// (e.g. package lflist) invoke Registry.Grant directly with their own
// acquire/release hooks instead of relying on this convenience path.
func (p *Ptr[T]) grantDisplaced(old *box[T]) {
	if p.reg == nil || old == nil {
		return
	}
	p.reg.Grant(p.self, hazard.Value(uintptrOf(old)), nil, nil, 0)
}
