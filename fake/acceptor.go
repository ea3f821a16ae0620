// File: fake/acceptor.go
// Author: momentics <momentics@gmail.com>

package fake

import (
	"fmt"
	"net"
	"sync"

	"github.com/momentics/hioload-reactor/api"
)

// Acceptor is a fake listening socket. Pending connections are queued with
// Enqueue and handed out by Accept in order.
type Acceptor struct {
	mu      sync.Mutex
	fd      int
	pending []int
	refused []int
	closed  bool
}

var _ api.Acceptor = (*Acceptor)(nil)

// NewAcceptor creates a fake listener with descriptor fd.
func NewAcceptor(fd int) *Acceptor {
	return &Acceptor{fd: fd}
}

// Fd returns the listener descriptor.
func (a *Acceptor) Fd() int { return a.fd }

// Enqueue adds pending connections.
func (a *Acceptor) Enqueue(fds ...int) {
	a.mu.Lock()
	a.pending = append(a.pending, fds...)
	a.mu.Unlock()
}

// Accept pops the oldest pending connection.
func (a *Acceptor) Accept() (int, net.Addr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) == 0 {
		return -1, nil, api.ErrNoPending
	}
	fd := a.pending[0]
	a.pending = a.pending[1:]
	return fd, Addr(fmt.Sprintf("peer-%d", fd)), nil
}

// Refuse records a refused descriptor.
func (a *Acceptor) Refuse(fd int) {
	a.mu.Lock()
	a.refused = append(a.refused, fd)
	a.mu.Unlock()
}

// Refused returns every refused descriptor in order.
func (a *Acceptor) Refused() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int(nil), a.refused...)
}

// Close marks the listener closed.
func (a *Acceptor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// Closed reports whether Close was called.
func (a *Acceptor) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Addr is a string net.Addr.
type Addr string

// Network returns "fake".
func (a Addr) Network() string { return "fake" }

func (a Addr) String() string { return string(a) }
