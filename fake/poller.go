// File: fake/poller.go
// Author: momentics <momentics@gmail.com>
//
// In-memory api.Poller with one-shot semantics.

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-reactor/api"
)

// Registration is the poller's view of one registered descriptor.
type Registration struct {
	Tag     uint32
	Events  api.Events
	OneShot bool
	Armed   bool
}

// Poller is a fake implementation of api.Poller. Events are queued with
// Inject or Fire and returned by Wait in order.
type Poller struct {
	mu      sync.Mutex
	regs    map[int]Registration
	queue   []api.Event
	woken   bool
	closed  bool
	notify  chan struct{}
	removed []int

	addError  error
	waitError error
}

var _ api.Poller = (*Poller)(nil)

// NewPoller creates an empty fake poller.
func NewPoller() *Poller {
	return &Poller{
		regs:   make(map[int]Registration),
		notify: make(chan struct{}, 1),
	}
}

// Add registers fd.
func (p *Poller) Add(fd int, tag uint32, ev api.Events, oneShot bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.addError != nil {
		return p.addError
	}
	p.regs[fd] = Registration{Tag: tag, Events: ev, OneShot: oneShot, Armed: true}
	return nil
}

// Modify re-arms fd with a new tag and interest mask.
func (p *Poller) Modify(fd int, tag uint32, ev api.Events, oneShot bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.regs[fd]; !ok {
		return api.ErrNotRegistered
	}
	p.regs[fd] = Registration{Tag: tag, Events: ev, OneShot: oneShot, Armed: true}
	return nil
}

// Remove deregisters fd.
func (p *Poller) Remove(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removed = append(p.removed, fd)
	if _, ok := p.regs[fd]; !ok {
		return api.ErrNotRegistered
	}
	delete(p.regs, fd)
	return nil
}

// Wait returns queued events. With nothing queued it blocks until an event
// is queued, Wake is called or timeoutMs elapses (negative = forever).
func (p *Poller) Wait(events []api.Event, timeoutMs int) (int, error) {
	var timer <-chan time.Time
	if timeoutMs >= 0 {
		timer = time.After(time.Duration(timeoutMs) * time.Millisecond)
	}
	for {
		p.mu.Lock()
		if p.waitError != nil {
			err := p.waitError
			p.mu.Unlock()
			return 0, err
		}
		if len(p.queue) > 0 {
			n := copy(events, p.queue)
			p.queue = p.queue[n:]
			p.mu.Unlock()
			return n, nil
		}
		if p.woken {
			p.woken = false
			p.mu.Unlock()
			return 0, nil
		}
		p.mu.Unlock()

		select {
		case <-p.notify:
		case <-timer:
			return 0, nil
		}
	}
}

// Wake interrupts a blocked Wait.
func (p *Poller) Wake() error {
	p.mu.Lock()
	p.woken = true
	p.mu.Unlock()
	p.signal()
	return nil
}

// Close marks the poller closed.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Inject queues a raw event regardless of registration state.
func (p *Poller) Inject(ev api.Event) {
	p.mu.Lock()
	p.queue = append(p.queue, ev)
	p.mu.Unlock()
	p.signal()
}

// Fire queues ev for fd if fd is registered and armed, tagging it with the
// current registration. A one-shot registration is disarmed by delivery.
func (p *Poller) Fire(fd int, ev api.Events) bool {
	p.mu.Lock()
	reg, ok := p.regs[fd]
	if !ok || !reg.Armed {
		p.mu.Unlock()
		return false
	}
	if reg.OneShot {
		reg.Armed = false
		p.regs[fd] = reg
	}
	p.queue = append(p.queue, api.Event{Fd: fd, Tag: reg.Tag, Events: ev})
	p.mu.Unlock()
	p.signal()
	return true
}

// Registered returns the registration for fd.
func (p *Poller) Registered(fd int) (Registration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	reg, ok := p.regs[fd]
	return reg, ok
}

// Removed returns every descriptor passed to Remove, in call order.
func (p *Poller) Removed() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.removed...)
}

// Closed reports whether Close was called.
func (p *Poller) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// SetAddError makes subsequent Add calls fail with err.
func (p *Poller) SetAddError(err error) {
	p.mu.Lock()
	p.addError = err
	p.mu.Unlock()
}

// SetWaitError makes subsequent Wait calls fail with err.
func (p *Poller) SetWaitError(err error) {
	p.mu.Lock()
	p.waitError = err
	p.mu.Unlock()
	p.signal()
}

func (p *Poller) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}
