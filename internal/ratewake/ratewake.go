// Package ratewake throttles advisory wakeup callbacks using a sliding
// window rate limiter, so a burst of producers does not turn every
// Wakeup(n) call into a syscall/condvar-broadcast storm.
//
// The spec is explicit that wakeups are advisory and false wakeups (or
// dropped ones) are permitted (a thread may always call do_work even
// after observing has_work return false), which is exactly the contract a
// rate limiter provides for free: coalesced wakeups are correct, not a
// bug.
package ratewake

import (
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// Limiter coalesces wakeup calls for a single category within a window.
type Limiter struct {
	rate *catrate.Limiter
	cat  any
}

// New constructs a Limiter allowing at most max wakeups per window for a
// given category key.
func New(window time.Duration, max int, category any) *Limiter {
	return &Limiter{
		rate: catrate.NewLimiter(map[time.Duration]int{window: max}),
		cat:  category,
	}
}

// Allow reports whether a wakeup should actually fire right now.
func (l *Limiter) Allow() bool {
	if l == nil || l.rate == nil {
		return true
	}
	_, ok := l.rate.Allow(l.cat)
	return ok
}
