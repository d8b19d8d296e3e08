// Package threadpool defines the pluggable worker-binding abstraction that
// drives a workq.Service forward: a Service/Client pair, symmetric attach,
// and multiplexers that let many services share one client or vice versa.
//
// The package never creates goroutines itself — goroutines are supplied
// by whatever Client implementation a caller attaches (a fixed worker
// pool, a single background goroutine, or a purely callback-driven
// adapter for use without a dedicated pool).
package threadpool

import (
	"errors"
	"sync"
)

// Service is implemented by the work source (typically a *workq.Service).
type Service interface {
	// DoWork performs at most one unit of work and reports whether it
	// made progress.
	DoWork() bool
	// HasWork reports, advisorily, whether calling DoWork could make
	// progress. A false result does not forbid a subsequent DoWork call.
	HasWork() bool
	// OnClientDetach is called when the attached Client is detaching,
	// e.g. to stop issuing wakeups that would go nowhere.
	OnClientDetach()
}

// Client is implemented by the worker-binding adapter.
type Client interface {
	// Wakeup asks up to n worker threads to call DoWork soon. Advisory:
	// false wakeups are permitted, and wakeups may be coalesced or
	// dropped.
	Wakeup(n int)
	// OnServiceDetach is called when the attached Service is detaching.
	OnServiceDetach()
}

// ErrAlreadyAttached is returned by Attach when either side already has a
// counterpart bound.
var ErrAlreadyAttached = errors.New("threadpool: already attached")

// Attachable is implemented by Service/Client pairs that want to observe
// their counterpart directly (as opposed to through the multiplexers). The
// methods are exported so implementations can live in any package (e.g.
// workq.Service) and still be asserted against here: an interface with
// unexported methods can only be satisfied by types in its declaring
// package, which would make this assertion always fail for counterparts
// declared elsewhere.
type Attachable interface {
	AttachCounterpart(counterpart any) error
	DetachCounterpart()
}

// Attach performs symmetric binding between client and service: each side
// learns about the other, atomically, with the binding fully unwound if
// either half's attach hook fails.
func Attach(client Client, service Service) (detach func(), err error) {
	var clientAttached, serviceAttached bool
	if ac, ok := client.(Attachable); ok {
		if err := ac.AttachCounterpart(service); err != nil {
			return nil, err
		}
		clientAttached = true
	}
	if as, ok := service.(Attachable); ok {
		if err := as.AttachCounterpart(client); err != nil {
			if clientAttached {
				client.(Attachable).DetachCounterpart()
			}
			return nil, err
		}
		serviceAttached = true
	}
	return func() {
		if serviceAttached {
			service.(Attachable).DetachCounterpart()
		} else {
			service.OnClientDetach()
		}
		if clientAttached {
			client.(Attachable).DetachCounterpart()
		} else {
			client.OnServiceDetach()
		}
	}, nil
}

// ServiceMultiplexer lets many services share a single Client. Each
// service with pending work is tracked in an "active" set; DoWork swaps
// through them round-robin.
type ServiceMultiplexer struct {
	mu     sync.Mutex
	active []Service
	cursor int
}

// NewServiceMultiplexer constructs a multiplexer presenting as a single
// Service to an attached Client.
func NewServiceMultiplexer() *ServiceMultiplexer {
	return &ServiceMultiplexer{}
}

// Add registers svc as a component service.
func (m *ServiceMultiplexer) Add(svc Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = append(m.active, svc)
}

// Remove unregisters svc, calling its OnClientDetach hook.
func (m *ServiceMultiplexer) Remove(svc Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.active {
		if s == svc {
			m.active = append(m.active[:i], m.active[i+1:]...)
			break
		}
	}
	svc.OnClientDetach()
}

// DoWork tries each registered service starting from the round-robin
// cursor until one makes progress or all have been tried.
func (m *ServiceMultiplexer) DoWork() bool {
	m.mu.Lock()
	n := len(m.active)
	if n == 0 {
		m.mu.Unlock()
		return false
	}
	start := m.cursor % n
	services := append([]Service(nil), m.active...)
	m.mu.Unlock()

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if services[idx].DoWork() {
			m.mu.Lock()
			m.cursor = (idx + 1) % max(n, 1)
			m.mu.Unlock()
			return true
		}
	}
	return false
}

// HasWork reports whether any component service has advisory pending work.
func (m *ServiceMultiplexer) HasWork() bool {
	m.mu.Lock()
	services := append([]Service(nil), m.active...)
	m.mu.Unlock()
	for _, s := range services {
		if s.HasWork() {
			return true
		}
	}
	return false
}

// OnClientDetach forwards the detach notification to every component.
func (m *ServiceMultiplexer) OnClientDetach() {
	m.mu.Lock()
	services := append([]Service(nil), m.active...)
	m.active = nil
	m.mu.Unlock()
	for _, s := range services {
		s.OnClientDetach()
	}
}

// ClientMultiplexer lets many clients share a single Service by fanning
// Wakeup out to every registered client.
type ClientMultiplexer struct {
	mu     sync.Mutex
	active []Client
}

// NewClientMultiplexer constructs a multiplexer presenting as a single
// Client to an attached Service.
func NewClientMultiplexer() *ClientMultiplexer { return &ClientMultiplexer{} }

// Add registers c as a component client.
func (m *ClientMultiplexer) Add(c Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = append(m.active, c)
}

// Remove unregisters c, calling its OnServiceDetach hook.
func (m *ClientMultiplexer) Remove(c Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cl := range m.active {
		if cl == c {
			m.active = append(m.active[:i], m.active[i+1:]...)
			break
		}
	}
	c.OnServiceDetach()
}

// Wakeup fans out to every registered client.
func (m *ClientMultiplexer) Wakeup(n int) {
	m.mu.Lock()
	clients := append([]Client(nil), m.active...)
	m.mu.Unlock()
	for _, c := range clients {
		c.Wakeup(n)
	}
}

// OnServiceDetach forwards the detach notification to every component.
func (m *ClientMultiplexer) OnServiceDetach() {
	m.mu.Lock()
	clients := append([]Client(nil), m.active...)
	m.active = nil
	m.mu.Unlock()
	for _, c := range clients {
		c.OnServiceDetach()
	}
}
