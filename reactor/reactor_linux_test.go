//go:build linux

package reactor_test

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/internal/concurrency"
	"github.com/momentics/hioload-reactor/pool"
	"github.com/momentics/hioload-reactor/protocol/echo"
	"github.com/momentics/hioload-reactor/reactor"
)

// TestReactorLoopback drives the real poller, listener and worker pool with
// concurrent clients whose lines must come back in order.
func TestReactorLoopback(t *testing.T) {
	ln, err := reactor.Listen("127.0.0.1:0", 128)
	require.NoError(t, err)
	poller, err := reactor.NewPoller(256)
	require.NoError(t, err)
	wp, err := concurrency.NewWorkerPool(4, 32)
	require.NoError(t, err)

	cfg := reactor.DefaultConfig()
	cfg.MaxConnections = 64
	counters := &echo.Counters{}
	r, err := reactor.New(cfg, poller, ln, wp,
		echo.NewFactory(echo.Config{}, pool.NewBytePool(512), counters, zerolog.Nop()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	const clients, lines = 8, 50
	var wg sync.WaitGroup
	errs := make(chan error, clients)
	for c := 0; c < clients; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			errs <- exchange(ln.Addr().String(), c, lines)
		}(c)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	cancel()
	require.NoError(t, <-done)
	wp.Close()
	require.NoError(t, r.Close())

	assert.Equal(t, uint64(clients*lines), counters.Snapshot().Lines)
	assert.Equal(t, 0, r.Live())
	assert.Equal(t, uint64(clients), r.Stats().Accepted)
}

func exchange(addr string, id, lines int) error {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	r := bufio.NewReader(conn)
	for i := 0; i < lines; i++ {
		want := fmt.Sprintf("client-%d line-%d\n", id, i)
		if _, err := conn.Write([]byte(want)); err != nil {
			return err
		}
		got, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("got %q, want %q", got, want)
		}
	}
	return nil
}

// pingConn keeps its state in plain fields that the reactor (Read, Close)
// and a worker (Process) both touch; only the Rearm handoff orders them.
type pingConn struct {
	fd      int
	reg     api.Registration
	pending int
	rounds  int
	served  *atomic.Int64
}

func (c *pingConn) Init(fd int, _ net.Addr, reg api.Registration) {
	c.fd, c.reg, c.pending, c.rounds = fd, reg, 0, 0
}

func (c *pingConn) Read() bool {
	var buf [64]byte
	for {
		n, err := unix.Read(c.fd, buf[:])
		switch {
		case n > 0:
			c.pending += n
		case err == unix.EAGAIN:
			return true
		case err == unix.EINTR:
		default:
			return false
		}
	}
}

func (c *pingConn) Process() {
	for ; c.pending > 0; c.pending-- {
		if _, err := unix.Write(c.fd, []byte{'.'}); err != nil {
			break
		}
		c.rounds++
	}
	c.served.Add(1)
	_ = c.reg.Rearm(api.EventRead)
}

func (c *pingConn) Write() bool { return true }

func (c *pingConn) Close() {
	_ = unix.Close(c.fd)
	c.fd, c.reg, c.pending, c.rounds = -1, nil, 0, 0
}

// TestReactorWorkerHandoff bounces single bytes so every round trip moves
// the connection between the reactor and a worker. Run it with -race.
func TestReactorWorkerHandoff(t *testing.T) {
	ln, err := reactor.Listen("127.0.0.1:0", 16)
	require.NoError(t, err)
	poller, err := reactor.NewPoller(64)
	require.NoError(t, err)
	wp, err := concurrency.NewWorkerPool(4, 16)
	require.NoError(t, err)

	var served atomic.Int64
	factory := func() api.Connection { return &pingConn{fd: -1, served: &served} }
	r, err := reactor.New(reactor.DefaultConfig(), poller, ln, wp, factory)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	const clients, rounds = 4, 200
	var wg sync.WaitGroup
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- bounce(ln.Addr().String(), rounds)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	cancel()
	require.NoError(t, <-done)
	wp.Close()
	require.NoError(t, r.Close())
	assert.GreaterOrEqual(t, served.Load(), int64(clients))
}

func bounce(addr string, rounds int) error {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	var b [1]byte
	for i := 0; i < rounds; i++ {
		if _, err := conn.Write([]byte{'.'}); err != nil {
			return err
		}
		if _, err := io.ReadFull(conn, b[:]); err != nil {
			return err
		}
	}
	return nil
}
