package threadpool

import (
	"time"

	"github.com/joeycumines/go-workq/internal/ratewake"
)

// AidService adapts a plain callback into a Client, for use without a
// dedicated worker pool: every Wakeup invokes the callback inline
// (rate-limited, since the spec treats wakeups as advisory and permits
// them to be dropped or coalesced under load).
type AidService struct {
	callback func(n int)
	limiter  *ratewake.Limiter
}

// NewAidService constructs a Client whose Wakeup calls callback directly,
// throttled to at most max calls per window so a hot producer loop cannot
// turn every activation into a synchronous callback invocation.
func NewAidService(callback func(n int), window time.Duration, max int) *AidService {
	return &AidService{
		callback: callback,
		limiter:  ratewake.New(window, max, "aid-service"),
	}
}

// Wakeup invokes the configured callback, subject to rate limiting.
func (a *AidService) Wakeup(n int) {
	if a.callback == nil {
		return
	}
	if !a.limiter.Allow() {
		return
	}
	a.callback(n)
}

// OnServiceDetach is a no-op: AidService holds no per-service state.
func (a *AidService) OnServiceDetach() {}
