package workq

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-workq/hazard"
	"github.com/joeycumines/go-workq/internal/goroutineid"
	"github.com/joeycumines/go-workq/lflist"
	"github.com/joeycumines/go-workq/threadpool"
)

// Option configures a Service.
type Option func(*options)

type options struct {
	hazardSlots int
	logger      Logger
}

// WithHazardSlots sizes the hazard registry backing this service's
// lock-free run-queues. Defaults to a modest constant sized for typical
// worker-pool widths; oversize it if you expect many more concurrent
// aiders than dedicated workers.
func WithHazardSlots(n int) Option {
	return func(o *options) { o.hazardSlots = n }
}

// WithLogger attaches a structured logger (see Logger) for job lifecycle
// and scheduling diagnostics. The default is a no-op logger.
func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

// Service is the work-queue service: a run-queue of work-queues with
// pending jobs, a run-queue of coroutine-style jobs, and a handle to the
// external wakeup callback supplied by a thread-pool adapter.
type Service struct {
	reg      *hazard.Registry
	owner    hazard.Owner
	pending  *lflist.List
	coRun    *lflist.List
	log      Logger
	client   atomic.Pointer[threadpool.Client]
	detached atomic.Bool

	cursors sync.Map // uint64 goroutine id -> *lflist.Element (last position tried)
}

const defaultHazardSlots = 256

// selfOwner is a fixed, process-wide owner identity for hazard slots
// allocated on behalf of structures internal to this package (as opposed
// to per-goroutine owners, which the llptr/lflist layers use when a
// caller supplies one). Must satisfy hazard's non-zero/LSB-clear rule.
const selfOwner hazard.Owner = 2

// NewService constructs a work-queue service.
func NewService(opts ...Option) *Service {
	cfg := options{hazardSlots: defaultHazardSlots}
	for _, o := range opts {
		o(&cfg)
	}
	s := &Service{
		reg:   hazard.New(cfg.hazardSlots),
		owner: selfOwner,
		log:   cfg.logger,
	}
	s.pending = lflist.New(s.reg, s.owner)
	s.coRun = lflist.New(s.reg, s.owner)
	return s
}

func (s *Service) hazardReg() *hazard.Registry   { return s.reg }
func (s *Service) hazardOwner() hazard.Owner     { return s.owner }
func (s *Service) pendingList() *lflist.List     { return s.pending }
func (s *Service) coRunnableList() *lflist.List  { return s.coRun }

// NewWorkQ creates a new work-queue bound to this service.
func (s *Service) NewWorkQ() *WorkQ { return newWorkQ(s) }

// wakeup advisorily asks the attached client to wake up to n workers. A
// no-op if no client is attached, or this service has detached.
func (s *Service) wakeup(n int) {
	if s.detached.Load() {
		return
	}
	if c := s.client.Load(); c != nil {
		(*c).Wakeup(n)
	}
}

// --- threadpool.Service ---

// DoWork performs at most one unit of work, preferring an in-flight
// coroutine job (per spec.md §4.6.3 step 1) before picking a fresh job
// from a pending work-queue.
func (s *Service) DoWork() bool {
	if s.detached.Load() {
		return false
	}
	if s.driveCoRunnable() {
		return true
	}
	return s.driveOneWorkQ()
}

// HasWork reports, advisorily, whether DoWork could presently make
// progress.
func (s *Service) HasWork() bool {
	if !s.coRun.Empty() {
		return true
	}
	hasWork := false
	s.pending.Range(func(e *lflist.Element) bool {
		if e.Value().(*WorkQ).HasWork() {
			hasWork = true
			return false
		}
		return true
	})
	return hasWork
}

// OnClientDetach marks the service detached: submitting further work
// becomes a no-op, matching spec.md §4.6.6.
func (s *Service) OnClientDetach() {
	s.detached.Store(true)
	s.client.Store(nil)
}

// AttachCounterpart/DetachCounterpart implement threadpool.Attachable, so
// threadpool.Attach can bind this service to its client directly rather
// than only through Service.OnClientDetach/wakeup.
func (s *Service) AttachCounterpart(counterpart any) error {
	c := counterpart.(threadpool.Client)
	s.client.Store(&c)
	s.detached.Store(false)
	return nil
}

func (s *Service) DetachCounterpart() { s.OnClientDetach() }

func (s *Service) driveOneWorkQ() bool {
	start := s.pending.Front()
	if start == nil {
		return false
	}
	cur := s.cursorFor()
	if cur == nil {
		cur = start
	}
	first := cur
	wrapped := false
	for {
		if wq, ok := cur.Value().(*WorkQ); ok {
			job, mode, pickOK := wq.pickJob()
			if pickOK {
				s.setCursor(s.pending.Succ(cur))
				wq.runJob(job, mode)
				return true
			}
		}
		next := s.pending.Succ(cur)
		if next == cur || next == nil || next == first {
			break
		}
		if next.Value() == nil { // the list's head sentinel: wrap once
			if wrapped {
				break
			}
			wrapped = true
		}
		cur = next
	}
	s.setCursor(nil)
	return false
}

func (s *Service) cursorFor() *lflist.Element {
	v, ok := s.cursors.Load(goroutineid.Current())
	if !ok {
		return nil
	}
	return v.(*lflist.Element)
}

func (s *Service) setCursor(e *lflist.Element) {
	id := goroutineid.Current()
	if e == nil {
		s.cursors.Delete(id)
		return
	}
	s.cursors.Store(id, e)
}

// driveCoRunnable joins the front coroutine-style job, if any are queued,
// running its remaining unclaimed slots via CoRun.
func (s *Service) driveCoRunnable() bool {
	elem := s.coRun.Front()
	if elem == nil {
		return false
	}
	co, ok := elem.Value().(*CoJob)
	if !ok {
		return false
	}
	return co.CoRun()
}

// Aid performs up to count units of work, per spec.md §4.6.3.
func (s *Service) Aid(count int) int {
	done := 0
	for done < count {
		if !s.DoWork() {
			break
		}
		done++
	}
	return done
}
