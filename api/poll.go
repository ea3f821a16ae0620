// Package api
// Author: momentics
//
// Readiness facility and accept-path contracts consumed by the reactor.

package api

import (
	"errors"
	"net"
)

// ErrNoPending is returned by Acceptor.Accept when no connection is waiting.
var ErrNoPending = errors.New("no pending connection")

// Event is one readiness notification.
type Event struct {
	Fd     int    // descriptor that became ready
	Tag    uint32 // registration tag supplied to Add/Modify
	Events Events // reported conditions
}

// Poller is the readiness-multiplexing facility.
//
// Add, Remove and Wait are called from the reactor thread only. Modify
// re-arms a one-shot registration and must be safe to call from a worker
// while the reactor is blocked in Wait.
type Poller interface {
	// Add registers fd. oneShot disables the registration after each
	// delivered event until Modify re-arms it.
	Add(fd int, tag uint32, ev Events, oneShot bool) error

	// Modify replaces the interest mask and re-arms a one-shot registration.
	Modify(fd int, tag uint32, ev Events, oneShot bool) error

	// Remove deregisters fd.
	Remove(fd int) error

	// Wait blocks up to timeoutMs (negative blocks indefinitely) and fills
	// events. An interrupted wait returns (0, nil).
	Wait(events []Event, timeoutMs int) (int, error)

	// Wake makes a concurrent or subsequent Wait return early.
	Wake() error

	// Close releases the facility.
	Close() error
}

// Acceptor is the listening side of the accept path.
type Acceptor interface {
	// Fd returns the listening descriptor to register with the poller.
	Fd() int

	// Accept returns a new non-blocking connection descriptor, or
	// ErrNoPending when the backlog is empty.
	Accept() (fd int, peer net.Addr, err error)

	// Refuse closes a descriptor that was accepted but will not be served.
	Refuse(fd int)

	// Close stops listening.
	Close() error
}
