//go:build linux

// File: reactor/epoll_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7) poller. The registration tag travels in the event payload;
// an eventfd is registered to wake a blocked Wait.

package reactor

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reactor/api"
)

// epollPoller implements api.Poller using Linux epoll.
type epollPoller struct {
	epfd   int
	wakefd int
	raw    []unix.EpollEvent
	closed atomic.Bool
}

// NewPoller creates an epoll instance able to report maxEvents per wait.
func NewPoller(maxEvents int) (api.Poller, error) {
	if maxEvents <= 0 {
		return nil, api.NewError(api.ErrCodeInvalidConfig, "max events must be positive").
			WithContext("max_events", maxEvents)
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, api.NewError(api.ErrCodeResourceInit, "epoll create").WithCause(err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, api.NewError(api.ErrCodeResourceInit, "eventfd create").WithCause(err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, api.NewError(api.ErrCodeResourceInit, "register wake fd").WithCause(err)
	}
	return &epollPoller{
		epfd:   epfd,
		wakefd: wakefd,
		raw:    make([]unix.EpollEvent, maxEvents),
	}, nil
}

// eventsToEpoll converts an interest mask. Peer half-close is always watched.
func eventsToEpoll(ev api.Events, oneShot bool) uint32 {
	out := uint32(unix.EPOLLRDHUP)
	if ev&api.EventRead != 0 {
		out |= unix.EPOLLIN
	}
	if ev&api.EventWrite != 0 {
		out |= unix.EPOLLOUT
	}
	if oneShot {
		out |= unix.EPOLLONESHOT
	}
	return out
}

// epollToEvents converts reported epoll flags.
func epollToEvents(flags uint32) api.Events {
	var ev api.Events
	if flags&unix.EPOLLIN != 0 {
		ev |= api.EventRead
	}
	if flags&unix.EPOLLOUT != 0 {
		ev |= api.EventWrite
	}
	if flags&unix.EPOLLERR != 0 {
		ev |= api.EventError
	}
	if flags&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		ev |= api.EventHangup
	}
	return ev
}

func (p *epollPoller) ctl(op, fd int, tag uint32, ev api.Events, oneShot bool) error {
	e := unix.EpollEvent{
		Events: eventsToEpoll(ev, oneShot),
		Fd:     int32(fd),
		Pad:    int32(tag),
	}
	return unix.EpollCtl(p.epfd, op, fd, &e)
}

// Add registers fd with the epoll instance.
func (p *epollPoller) Add(fd int, tag uint32, ev api.Events, oneShot bool) error {
	if err := p.ctl(unix.EPOLL_CTL_ADD, fd, tag, ev, oneShot); err != nil {
		return fmt.Errorf("epoll ctl add fd %d: %w", fd, err)
	}
	return nil
}

// Modify re-arms fd. epoll_ctl is safe against a concurrent epoll_wait.
func (p *epollPoller) Modify(fd int, tag uint32, ev api.Events, oneShot bool) error {
	if err := p.ctl(unix.EPOLL_CTL_MOD, fd, tag, ev, oneShot); err != nil {
		if err == unix.ENOENT {
			return fmt.Errorf("epoll ctl mod fd %d: %w", fd, api.ErrNotRegistered)
		}
		return fmt.Errorf("epoll ctl mod fd %d: %w", fd, err)
	}
	return nil
}

// Remove deregisters fd.
func (p *epollPoller) Remove(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		if err == unix.ENOENT {
			return fmt.Errorf("epoll ctl del fd %d: %w", fd, api.ErrNotRegistered)
		}
		return fmt.Errorf("epoll ctl del fd %d: %w", fd, err)
	}
	return nil
}

// Wait blocks for readiness and converts up to len(events) notifications.
func (p *epollPoller) Wait(events []api.Event, timeoutMs int) (int, error) {
	limit := len(events)
	if limit > len(p.raw) {
		limit = len(p.raw)
	}
	if timeoutMs < 0 {
		timeoutMs = -1
	}
	n, err := unix.EpollWait(p.epfd, p.raw[:limit], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil // interrupted by signal, normal
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	out := 0
	for i := 0; i < n; i++ {
		raw := &p.raw[i]
		if int(raw.Fd) == p.wakefd {
			p.drainWake()
			continue
		}
		events[out] = api.Event{
			Fd:     int(raw.Fd),
			Tag:    uint32(raw.Pad),
			Events: epollToEvents(raw.Events),
		}
		out++
	}
	return out, nil
}

// Wake signals the eventfd so a blocked Wait returns.
func (p *epollPoller) Wake() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(p.wakefd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

func (p *epollPoller) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(p.wakefd, buf[:])
}

// Close releases the eventfd and the epoll instance.
func (p *epollPoller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = unix.Close(p.wakefd)
	return unix.Close(p.epfd)
}
