//go:build linux

package reactor

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reactor/api"
)

func socketpair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func newTestPoller(t *testing.T) api.Poller {
	t.Helper()
	p, err := NewPoller(16)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewPollerRejectsZeroEvents(t *testing.T) {
	_, err := NewPoller(0)
	assert.ErrorIs(t, err, api.ErrInvalidConfig)
}

func TestEpollOneShotCarriesTag(t *testing.T) {
	p := newTestPoller(t)
	a, b := socketpair(t)
	require.NoError(t, p.Add(a, 7, api.EventRead, true))

	_, err := unix.Write(b, []byte("x"))
	require.NoError(t, err)

	events := make([]api.Event, 4)
	n, err := p.Wait(events, 1000)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, a, events[0].Fd)
	assert.Equal(t, uint32(7), events[0].Tag)
	assert.NotZero(t, events[0].Events&api.EventRead)

	// Disarmed until modified, even though data is still pending.
	n, err = p.Wait(events, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, p.Modify(a, 8, api.EventRead, true))
	n, err = p.Wait(events, 1000)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, uint32(8), events[0].Tag)
}

func TestEpollHangup(t *testing.T) {
	p := newTestPoller(t)
	a, b := socketpair(t)
	require.NoError(t, p.Add(a, 1, api.EventRead, true))
	require.NoError(t, unix.Shutdown(b, unix.SHUT_WR))

	events := make([]api.Event, 4)
	n, err := p.Wait(events, 1000)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.NotZero(t, events[0].Events&api.EventHangup)
}

func TestEpollWakeInterruptsWait(t *testing.T) {
	p := newTestPoller(t)
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = p.Wake()
	}()
	start := time.Now()
	n, err := p.Wait(make([]api.Event, 4), -1)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "wake fd is not reported")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestEpollRemoveAndModifyUnknown(t *testing.T) {
	p := newTestPoller(t)
	a, _ := socketpair(t)
	require.NoError(t, p.Add(a, 1, api.EventRead, true))
	require.NoError(t, p.Remove(a))
	assert.ErrorIs(t, p.Remove(a), api.ErrNotRegistered)
	assert.ErrorIs(t, p.Modify(a, 1, api.EventRead, true), api.ErrNotRegistered)
}

func TestEpollCloseIdempotent(t *testing.T) {
	p, err := NewPoller(4)
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}

func TestListenerAcceptAndRefuse(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", 16)
	require.NoError(t, err)
	defer ln.Close()

	_, _, err = ln.Accept()
	assert.ErrorIs(t, err, api.ErrNoPending)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	var fd int
	var peer net.Addr
	require.Eventually(t, func() bool {
		fd, peer, err = ln.Accept()
		return err == nil
	}, time.Second, time.Millisecond)
	assert.Equal(t, conn.LocalAddr().String(), peer.String())

	ln.Refuse(fd)
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err, "refused connection is closed")
}

func TestListenRejectsBadAddress(t *testing.T) {
	_, err := Listen("not-an-address", 16)
	assert.ErrorIs(t, err, api.ErrInvalidConfig)
}
