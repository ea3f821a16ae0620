// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Contracts between the reactor, the worker pool and the protocol layer.

package api

import "net"

// Events is a readiness mask reported by, or requested from, the poller.
type Events uint32

const (
	// EventRead indicates the descriptor is ready for reading.
	EventRead Events = 1 << iota
	// EventWrite indicates the descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// String renders the mask for logs.
func (e Events) String() string {
	if e == 0 {
		return "none"
	}
	names := [...]string{"read", "write", "error", "hangup"}
	out := ""
	for i, n := range names {
		if e&(1<<i) == 0 {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += n
	}
	return out
}

// Task is a unit of work executed by a pool worker.
type Task interface {
	Process()
}

// Registration is the connection's handle on its readiness registration.
// Rearm is the only registration call a worker may make; it is safe to call
// concurrently with the reactor's readiness wait. Rearm hands the connection
// back to the reactor, so the caller must not touch it afterwards.
type Registration interface {
	Rearm(ev Events) error
}

// Connection is the capability set the reactor drives. Implementations belong
// to the protocol layer; the reactor never inspects protocol content.
//
// Init, Read, Write and Close run on the reactor thread. Process runs on a
// worker and must end by re-arming the registration, or by shutting the
// socket down so the reactor observes a hangup and closes the slot.
type Connection interface {
	Task
	Init(fd int, peer net.Addr, reg Registration)
	Read() bool
	Write() bool
	Close()
}
