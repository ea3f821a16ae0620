// File: reactor/table.go
// Author: momentics <momentics@gmail.com>
//
// Fixed-capacity connection table indexed by descriptor number. Slots and
// their connection objects are reused; only the reactor thread mutates it.

package reactor

import (
	"sync/atomic"

	"github.com/momentics/hioload-reactor/api"
)

// listenerTag is the registration tag of the listening socket. Connection
// generations start at 1.
const listenerTag uint32 = 0

type slot struct {
	conn     api.Connection
	gen      uint32
	live     bool
	deferred bool

	// handoff is bumped by every Rearm before the registration is re-armed
	// and loaded by the reactor before it touches conn again. It orders the
	// worker's writes to the connection before the reactor's next access.
	handoff atomic.Uint32
}

type table struct {
	slots   []slot
	factory func() api.Connection
}

func newTable(size int, factory func() api.Connection) *table {
	return &table{
		slots:   make([]slot, size),
		factory: factory,
	}
}

func (t *table) size() int { return len(t.slots) }

// acquire marks slot fd live under a fresh generation, creating the slot's
// connection object on first use.
func (t *table) acquire(fd int) (*slot, uint32) {
	s := &t.slots[fd]
	if s.conn == nil {
		s.conn = t.factory()
	}
	s.gen++
	if s.gen == listenerTag {
		s.gen++
	}
	s.live = true
	s.deferred = false
	return s, s.gen
}

// lookup resolves a readiness event to its live slot. Stale events (wrong
// generation, freed slot, out of range) resolve to nil.
func (t *table) lookup(fd int, gen uint32) *slot {
	if fd < 0 || fd >= len(t.slots) {
		return nil
	}
	s := &t.slots[fd]
	if !s.live || s.gen != gen {
		return nil
	}
	return s
}

// release returns slot fd to the free pool. The connection object is kept
// for the next accept on the same descriptor.
func (t *table) release(fd int) {
	s := &t.slots[fd]
	s.live = false
	s.deferred = false
}

// each visits every live slot.
func (t *table) each(fn func(fd int, s *slot)) {
	for fd := range t.slots {
		if t.slots[fd].live {
			fn(fd, &t.slots[fd])
		}
	}
}
