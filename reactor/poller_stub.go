//go:build !linux

// File: reactor/poller_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for platforms without epoll.

package reactor

import (
	"net"

	"github.com/momentics/hioload-reactor/api"
)

// NewPoller returns an error on unsupported platforms.
func NewPoller(maxEvents int) (api.Poller, error) {
	return nil, api.ErrNotSupported
}

// Listener is unavailable on this platform.
type Listener struct{}

// Listen returns an error on unsupported platforms.
func Listen(address string, backlog int) (*Listener, error) {
	return nil, api.ErrNotSupported
}

// Fd returns -1.
func (l *Listener) Fd() int { return -1 }

// Addr returns nil.
func (l *Listener) Addr() net.Addr { return nil }

// Accept always fails.
func (l *Listener) Accept() (int, net.Addr, error) { return -1, nil, api.ErrNotSupported }

// Refuse does nothing.
func (l *Listener) Refuse(fd int) {}

// Close does nothing.
func (l *Listener) Close() error { return nil }
