// File: reactor/reactor_test.go
// Author: momentics <momentics@gmail.com>

package reactor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/fake"
)

const lnFd = 3

type harness struct {
	r       *Reactor
	poller  *fake.Poller
	ln      *fake.Acceptor
	pool    *fake.Dispatcher
	factory *fake.Factory
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TableSize = 64
	if mutate != nil {
		mutate(&cfg)
	}
	h := &harness{
		poller:  fake.NewPoller(),
		ln:      fake.NewAcceptor(lnFd),
		pool:    &fake.Dispatcher{},
		factory: &fake.Factory{},
	}
	r, err := New(cfg, h.poller, h.ln, h.pool, h.factory.New)
	require.NoError(t, err)
	h.r = r
	return h
}

// acceptOne queues fd on the listener and runs one pass over a listener event.
func (h *harness) acceptOne(t *testing.T, fd int) {
	t.Helper()
	h.ln.Enqueue(fd)
	h.poller.Inject(api.Event{Fd: lnFd, Tag: listenerTag, Events: api.EventRead})
	require.NoError(t, h.r.pass())
}

func (h *harness) fire(t *testing.T, fd int, ev api.Events) {
	t.Helper()
	require.True(t, h.poller.Fire(fd, ev), "fd %d not armed", fd)
	require.NoError(t, h.r.pass())
}

func (h *harness) conn(fd int) *fake.Connection {
	return h.r.table.slots[fd].conn.(*fake.Connection)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{}, fake.NewPoller(), fake.NewAcceptor(lnFd), &fake.Dispatcher{}, (&fake.Factory{}).New)
	assert.ErrorIs(t, err, api.ErrInvalidConfig)

	_, err = New(DefaultConfig(), nil, fake.NewAcceptor(lnFd), &fake.Dispatcher{}, (&fake.Factory{}).New)
	assert.ErrorIs(t, err, api.ErrInvalidConfig)
}

func TestAcceptRegistersOneShotRead(t *testing.T) {
	h := newHarness(t, nil)
	h.acceptOne(t, 10)

	reg, ok := h.poller.Registered(10)
	require.True(t, ok)
	assert.True(t, reg.OneShot)
	assert.Equal(t, api.EventRead, reg.Events)
	assert.NotEqual(t, listenerTag, reg.Tag)
	assert.Equal(t, 1, h.r.Live())
	assert.Equal(t, 10, h.conn(10).Fd())
}

func TestMaxConnectionsRefusesExtra(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxConnections = 1 })

	h.acceptOne(t, 10)
	h.acceptOne(t, 11)

	assert.Equal(t, 1, h.r.Live())
	assert.Equal(t, []int{11}, h.ln.Refused())
	_, registered := h.poller.Registered(11)
	assert.False(t, registered)

	// Closing the first frees capacity for the next.
	h.fire(t, 10, api.EventHangup)
	assert.Equal(t, 0, h.r.Live())
	h.acceptOne(t, 12)
	assert.Equal(t, 1, h.r.Live())
	assert.Equal(t, []int{11}, h.ln.Refused())
}

func TestDescriptorBeyondTableRefused(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.TableSize = 16 })
	h.acceptOne(t, 16)
	assert.Equal(t, []int{16}, h.ln.Refused())
	assert.Equal(t, 0, h.r.Live())
}

func TestAcceptRateLimited(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.AcceptRate = 0.001
		c.AcceptBurst = 1
	})
	h.acceptOne(t, 10)
	h.acceptOne(t, 11)
	assert.Equal(t, 1, h.r.Live())
	assert.Equal(t, []int{11}, h.ln.Refused())
}

func TestReadableConnectionDispatched(t *testing.T) {
	h := newHarness(t, nil)
	h.acceptOne(t, 10)
	h.fire(t, 10, api.EventRead)

	c := h.conn(10)
	assert.Equal(t, 1, c.Reads())
	tasks := h.pool.Tasks()
	require.Len(t, tasks, 1)
	assert.Same(t, c, tasks[0])

	// One-shot: no further event until re-armed.
	assert.False(t, h.poller.Fire(10, api.EventRead))
	require.NoError(t, c.Rearm(api.EventRead))
	assert.True(t, h.poller.Fire(10, api.EventRead))
}

func TestRearmPublishesHandoff(t *testing.T) {
	h := newHarness(t, nil)
	h.acceptOne(t, 10)
	s := &h.r.table.slots[10]
	require.Zero(t, s.handoff.Load())

	h.fire(t, 10, api.EventRead)
	require.NoError(t, h.conn(10).Rearm(api.EventWrite))
	assert.Equal(t, uint32(1), s.handoff.Load())

	h.fire(t, 10, api.EventWrite)
	require.NoError(t, h.conn(10).Rearm(api.EventRead))
	assert.Equal(t, uint32(2), s.handoff.Load())
}

func TestFailedReadClosesWithoutEnqueue(t *testing.T) {
	h := newHarness(t, nil)
	h.acceptOne(t, 10)
	c := h.conn(10)
	c.FailRead(true)

	h.fire(t, 10, api.EventRead)

	assert.Empty(t, h.pool.Tasks())
	assert.Equal(t, 1, c.Closes())
	assert.Equal(t, []int{10}, h.poller.Removed())
	assert.Equal(t, 0, h.r.Live())
}

func TestFailedWriteCloses(t *testing.T) {
	h := newHarness(t, nil)
	h.acceptOne(t, 10)
	c := h.conn(10)
	c.FailWrite(true)
	require.NoError(t, c.Rearm(api.EventWrite))

	h.fire(t, 10, api.EventWrite)

	assert.Equal(t, 1, c.Writes())
	assert.Equal(t, 1, c.Closes())
	assert.Equal(t, 0, h.r.Live())
}

func TestHangupWinsOverRead(t *testing.T) {
	h := newHarness(t, nil)
	h.acceptOne(t, 10)
	h.fire(t, 10, api.EventRead|api.EventHangup)

	c := h.conn(10)
	assert.Equal(t, 0, c.Reads())
	assert.Equal(t, 1, c.Closes())
	assert.Empty(t, h.pool.Tasks())
}

func TestSlotReuseAndStaleEvent(t *testing.T) {
	h := newHarness(t, nil)
	h.acceptOne(t, 10)
	first, _ := h.poller.Registered(10)
	c := h.conn(10)

	h.fire(t, 10, api.EventHangup)
	h.acceptOne(t, 10)
	second, _ := h.poller.Registered(10)

	assert.Same(t, c, h.conn(10), "slot connection object is reused")
	assert.Equal(t, 2, c.Inits())
	assert.Len(t, h.factory.Created(), 1)
	assert.NotEqual(t, first.Tag, second.Tag)

	// An event carrying the old generation is ignored.
	h.poller.Inject(api.Event{Fd: 10, Tag: first.Tag, Events: api.EventRead})
	require.NoError(t, h.r.pass())
	assert.Equal(t, 0, c.Reads())
	assert.Equal(t, uint64(1), h.r.Stats().Stale)
	assert.Equal(t, 1, h.r.Live())
}

func TestEventForFreedSlotIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.poller.Inject(api.Event{Fd: 20, Tag: 1, Events: api.EventRead})
	h.poller.Inject(api.Event{Fd: 1000, Tag: 1, Events: api.EventRead})
	require.NoError(t, h.r.pass())
	assert.Equal(t, uint64(2), h.r.Stats().Stale)
	assert.Empty(t, h.pool.Tasks())
}

func TestShedTaskRetried(t *testing.T) {
	h := newHarness(t, nil)
	h.acceptOne(t, 10)
	h.acceptOne(t, 11)

	h.pool.Refuse(true)
	h.poller.Fire(10, api.EventRead)
	h.poller.Fire(11, api.EventRead)
	require.NoError(t, h.r.pass())
	assert.Empty(t, h.pool.Tasks())
	assert.Equal(t, 2, h.r.Stats().Deferred)
	assert.Equal(t, 2, h.r.Live(), "shed connections stay open")

	// Still refused: the next pass waits with a bounded timeout and returns.
	require.NoError(t, h.r.pass())
	assert.Equal(t, 2, h.r.Stats().Deferred)

	h.pool.Refuse(false)
	require.NoError(t, h.poller.Wake())
	require.NoError(t, h.r.pass())

	tasks := h.pool.Tasks()
	require.Len(t, tasks, 2)
	assert.Same(t, h.conn(10), tasks[0])
	assert.Same(t, h.conn(11), tasks[1])
	assert.Equal(t, 0, h.r.Stats().Deferred)
	assert.Equal(t, uint64(2), h.r.Stats().Shed)
}

func TestShedConnectionClosedBeforeRetry(t *testing.T) {
	h := newHarness(t, nil)
	h.acceptOne(t, 10)
	h.pool.Refuse(true)
	h.fire(t, 10, api.EventRead)
	require.Equal(t, 1, h.r.Stats().Deferred)

	h.poller.Inject(api.Event{Fd: 10, Tag: h.r.table.slots[10].gen, Events: api.EventHangup})
	require.NoError(t, h.r.pass())
	h.pool.Refuse(false)
	require.NoError(t, h.poller.Wake())
	require.NoError(t, h.r.pass())

	assert.Empty(t, h.pool.Tasks())
	assert.Equal(t, 0, h.r.Stats().Deferred)
}

func TestRegisterFailureReleasesSlot(t *testing.T) {
	h := newHarness(t, nil)
	h.poller.SetAddError(errors.New("boom"))
	h.acceptOne(t, 10)
	assert.Equal(t, 0, h.r.Live())
	assert.Equal(t, 1, h.conn(10).Closes())
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.r.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := h.poller.Registered(lnFd)
		return ok
	}, time.Second, time.Millisecond)

	h.ln.Enqueue(10)
	h.poller.Fire(lnFd, api.EventRead)
	require.Eventually(t, func() bool { return h.r.Live() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	_, ok := h.poller.Registered(lnFd)
	assert.False(t, ok, "listener deregistered on exit")

	require.NoError(t, h.r.Close())
	assert.Equal(t, 0, h.r.Live())
	assert.True(t, h.poller.Closed())
	assert.True(t, h.ln.Closed())
	assert.Equal(t, 1, h.conn(10).Closes())
}

func TestRunReturnsWaitError(t *testing.T) {
	h := newHarness(t, nil)
	h.poller.SetWaitError(errors.New("epoll broke"))
	err := h.r.Run(context.Background())
	assert.ErrorContains(t, err, "epoll broke")
}
