//go:build linux

// File: reactor/listener_linux.go
// Author: momentics <momentics@gmail.com>
//
// Non-blocking TCP listening socket driven by the reactor's accept path.

package reactor

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reactor/api"
)

// Listener is a raw non-blocking listening socket.
type Listener struct {
	fd   int
	addr net.Addr
}

var _ api.Acceptor = (*Listener)(nil)

// Listen binds address ("host:port") with SO_REUSEADDR and starts listening.
func Listen(address string, backlog int) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, api.NewError(api.ErrCodeInvalidConfig, "resolve listen address").
			WithContext("address", address).WithCause(err)
	}

	family := unix.AF_INET
	var sa unix.Sockaddr
	if ip4 := tcpAddr.IP.To4(); ip4 != nil || tcpAddr.IP == nil {
		in4 := &unix.SockaddrInet4{Port: tcpAddr.Port}
		copy(in4.Addr[:], ip4)
		sa = in4
	} else {
		family = unix.AF_INET6
		in6 := &unix.SockaddrInet6{Port: tcpAddr.Port}
		copy(in6.Addr[:], tcpAddr.IP.To16())
		sa = in6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, api.NewError(api.ErrCodeResourceInit, "socket create").WithCause(err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, api.NewError(api.ErrCodeResourceInit, "setsockopt SO_REUSEADDR").WithCause(err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, api.NewError(api.ErrCodeResourceInit, "bind").
			WithContext("address", address).WithCause(err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, api.NewError(api.ErrCodeResourceInit, "listen").WithCause(err)
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, api.NewError(api.ErrCodeResourceInit, "getsockname").WithCause(err)
	}
	return &Listener{fd: fd, addr: sockaddrToTCP(bound)}, nil
}

// Fd returns the listening descriptor.
func (l *Listener) Fd() int { return l.fd }

// Addr returns the bound address, with the kernel-chosen port if 0 was asked.
func (l *Listener) Addr() net.Addr { return l.addr }

// Accept takes one pending connection off the backlog.
func (l *Listener) Accept() (int, net.Addr, error) {
	nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return -1, nil, api.ErrNoPending
		}
		return -1, nil, fmt.Errorf("accept4: %w", err)
	}
	_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return nfd, sockaddrToTCP(sa), nil
}

// Refuse closes a descriptor the reactor will not serve.
func (l *Listener) Refuse(fd int) {
	_ = unix.Close(fd)
}

// Close closes the listening socket.
func (l *Listener) Close() error {
	return unix.Close(l.fd)
}

func sockaddrToTCP(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, a.Addr[:])
		return &net.TCPAddr{IP: ip, Port: a.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, a.Addr[:])
		return &net.TCPAddr{IP: ip, Port: a.Port}
	default:
		return nil
	}
}
