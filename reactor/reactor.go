// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Reactor main loop: multiplexes readiness over the listener and every live
// connection, performs the raw read/write steps itself and hands completed
// reads to the worker pool.

package reactor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/internal/concurrency"
)

// ErrAlreadyRunning is returned by Run when the loop is already active.
var ErrAlreadyRunning = errors.New("reactor already running")

// Config holds reactor sizing.
type Config struct {
	MaxConnections int           // live connections admitted
	MaxEvents      int           // events per wait
	TableSize      int           // highest descriptor index + 1 the table can hold
	RetryInterval  time.Duration // wait timeout while shed tasks are pending
	CPU            int           // pin the reactor thread to this CPU (-1 = none)
	AcceptRate     float64       // accepted connections per second (0 = unlimited)
	AcceptBurst    int           // accept burst when AcceptRate > 0
}

// DefaultConfig returns the reactor defaults.
func DefaultConfig() Config {
	return Config{
		MaxConnections: 65535,
		MaxEvents:      10000,
		TableSize:      65536,
		RetryInterval:  time.Millisecond,
		CPU:            -1,
	}
}

// Dispatcher is the producer side of the worker pool.
type Dispatcher interface {
	Append(t api.Task) bool
}

// Metrics receives reactor telemetry. A nil Metrics disables it.
type Metrics interface {
	ConnAccepted()
	ConnRefused(reason string)
	ConnClosed()
	LiveConns(n int)
	Event(kind string)
	DeferredTasks(n int)
}

// Stats is a point-in-time snapshot of reactor counters.
type Stats struct {
	Live     int    `json:"live"`
	Accepted uint64 `json:"accepted"`
	Refused  uint64 `json:"refused"`
	Closed   uint64 `json:"closed"`
	Stale    uint64 `json:"stale"`
	Shed     uint64 `json:"shed"`
	Deferred int    `json:"deferred"`
}

// Option customizes a Reactor.
type Option func(*Reactor)

// WithLogger sets the reactor logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Reactor) {
		r.log = l.With().Str("component", "reactor").Logger()
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(r *Reactor) {
		r.metrics = m
	}
}

type pending struct {
	fd  int
	gen uint32
}

// registration is the back-reference a connection uses to re-arm itself.
type registration struct {
	poller  api.Poller
	fd      int
	gen     uint32
	handoff *atomic.Uint32
}

// Rearm publishes the caller's writes to the connection and restores the
// one-shot registration with a new interest mask. The caller must not touch
// the connection afterwards.
func (r registration) Rearm(ev api.Events) error {
	r.handoff.Add(1)
	return r.poller.Modify(r.fd, r.gen, ev, true)
}

// Reactor owns the poller registration, the connection table and the
// producer side of one worker pool.
type Reactor struct {
	cfg      Config
	poller   api.Poller
	ln       api.Acceptor
	pool     Dispatcher
	table    *table
	events   []api.Event
	deferred []pending
	limiter  *rate.Limiter

	log     zerolog.Logger
	metrics Metrics
	running atomic.Bool

	live     atomic.Int64
	accepted atomic.Uint64
	refused  atomic.Uint64
	closed   atomic.Uint64
	stale    atomic.Uint64
	shed     atomic.Uint64
	backlog  atomic.Int64
}

// New builds a reactor. factory creates the connection object for a table
// slot the first time that slot is used.
func New(cfg Config, poller api.Poller, ln api.Acceptor, pool Dispatcher, factory func() api.Connection, opts ...Option) (*Reactor, error) {
	if cfg.MaxConnections <= 0 || cfg.MaxEvents <= 0 || cfg.TableSize <= 0 {
		return nil, api.NewError(api.ErrCodeInvalidConfig, "reactor sizes must be positive").
			WithContext("max_connections", cfg.MaxConnections).
			WithContext("max_events", cfg.MaxEvents).
			WithContext("table_size", cfg.TableSize)
	}
	if poller == nil || ln == nil || pool == nil || factory == nil {
		return nil, api.NewError(api.ErrCodeInvalidConfig, "reactor collaborators must not be nil")
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Millisecond
	}
	r := &Reactor{
		cfg:    cfg,
		poller: poller,
		ln:     ln,
		pool:   pool,
		table:  newTable(cfg.TableSize, factory),
		events: make([]api.Event, cfg.MaxEvents),
		log:    zerolog.Nop(),
	}
	if cfg.AcceptRate > 0 {
		burst := cfg.AcceptBurst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), burst)
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Run drives the loop on a dedicated OS thread until ctx is cancelled or the
// poller fails. Cancellation returns nil.
func (r *Reactor) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if r.cfg.CPU >= 0 {
		if err := concurrency.PinCurrentThread(r.cfg.CPU); err != nil {
			r.log.Warn().Err(err).Int("cpu", r.cfg.CPU).Msg("cpu pinning failed")
		}
	}

	if err := r.poller.Add(r.ln.Fd(), listenerTag, api.EventRead, false); err != nil {
		return fmt.Errorf("register listener: %w", err)
	}
	defer func() {
		_ = r.poller.Remove(r.ln.Fd())
	}()

	stop := context.AfterFunc(ctx, func() {
		if err := r.poller.Wake(); err != nil {
			r.log.Warn().Err(err).Msg("wake failed")
		}
	})
	defer stop()

	r.log.Info().Int("max_connections", r.cfg.MaxConnections).Int("max_events", r.cfg.MaxEvents).Msg("reactor started")
	for ctx.Err() == nil {
		if err := r.pass(); err != nil {
			r.log.Error().Err(err).Msg("reactor stopped")
			return err
		}
	}
	r.log.Info().Msg("reactor stopped")
	return nil
}

// pass runs one iteration: retry shed tasks, wait, dispatch every event.
func (r *Reactor) pass() error {
	r.retryDeferred()

	timeout := -1
	if len(r.deferred) > 0 {
		timeout = int(r.cfg.RetryInterval / time.Millisecond)
		if timeout < 1 {
			timeout = 1
		}
	}
	n, err := r.poller.Wait(r.events, timeout)
	if err != nil {
		return fmt.Errorf("reactor wait: %w", err)
	}
	for i := 0; i < n; i++ {
		r.dispatch(r.events[i])
	}
	return nil
}

func (r *Reactor) dispatch(ev api.Event) {
	if ev.Fd == r.ln.Fd() && ev.Tag == listenerTag {
		r.event("accept")
		r.accept()
		return
	}

	s := r.table.lookup(ev.Fd, ev.Tag)
	if s == nil {
		r.stale.Add(1)
		r.event("stale")
		return
	}
	// Take the connection back from the worker that re-armed it.
	s.handoff.Load()

	switch {
	case ev.Events&(api.EventHangup|api.EventError) != 0:
		r.event("hangup")
		r.closeConn(ev.Fd, s)
	case ev.Events&api.EventRead != 0:
		r.event("read")
		if !s.conn.Read() {
			r.closeConn(ev.Fd, s)
			return
		}
		if !r.pool.Append(s.conn) {
			r.deferTask(ev.Fd, s)
		}
	case ev.Events&api.EventWrite != 0:
		r.event("write")
		if !s.conn.Write() {
			r.closeConn(ev.Fd, s)
		}
	}
}

// accept admits one pending connection or refuses it.
func (r *Reactor) accept() {
	fd, peer, err := r.ln.Accept()
	if err != nil {
		if !errors.Is(err, api.ErrNoPending) {
			r.log.Warn().Err(err).Msg("accept failed")
		}
		return
	}

	switch {
	case r.live.Load() >= int64(r.cfg.MaxConnections):
		r.refuse(fd, peer, "capacity")
		return
	case fd >= r.table.size():
		r.refuse(fd, peer, "table")
		return
	case r.limiter != nil && !r.limiter.Allow():
		r.refuse(fd, peer, "rate")
		return
	}

	if stale := &r.table.slots[fd]; stale.live {
		// The descriptor was closed behind the reactor's back and reused.
		r.log.Error().Int("fd", fd).Msg("descriptor reused while slot live")
		r.table.release(fd)
		r.live.Add(-1)
	}

	s, gen := r.table.acquire(fd)
	s.conn.Init(fd, peer, registration{poller: r.poller, fd: fd, gen: gen, handoff: &s.handoff})
	if err := r.poller.Add(fd, gen, api.EventRead, true); err != nil {
		r.log.Error().Err(err).Int("fd", fd).Msg("register connection failed")
		s.conn.Close()
		r.table.release(fd)
		return
	}

	n := r.live.Add(1)
	r.accepted.Add(1)
	if r.metrics != nil {
		r.metrics.ConnAccepted()
		r.metrics.LiveConns(int(n))
	}
	r.log.Debug().Int("fd", fd).Stringer("peer", addrStringer{peer}).Msg("connection accepted")
}

func (r *Reactor) refuse(fd int, peer net.Addr, reason string) {
	r.ln.Refuse(fd)
	r.refused.Add(1)
	if r.metrics != nil {
		r.metrics.ConnRefused(reason)
	}
	r.log.Debug().Int("fd", fd).Stringer("peer", addrStringer{peer}).Str("reason", reason).Msg("connection refused")
}

// closeConn deregisters and closes a live connection and frees its slot.
func (r *Reactor) closeConn(fd int, s *slot) {
	if err := r.poller.Remove(fd); err != nil {
		r.log.Debug().Err(err).Int("fd", fd).Msg("deregister failed")
	}
	s.conn.Close()
	r.table.release(fd)

	n := r.live.Add(-1)
	r.closed.Add(1)
	if r.metrics != nil {
		r.metrics.ConnClosed()
		r.metrics.LiveConns(int(n))
	}
	r.log.Debug().Int("fd", fd).Msg("connection closed")
}

// deferTask parks a connection whose task the pool refused. Its one-shot
// registration stays disarmed, so it receives no events until the task is
// admitted on a later pass.
func (r *Reactor) deferTask(fd int, s *slot) {
	s.deferred = true
	r.deferred = append(r.deferred, pending{fd: fd, gen: s.gen})
	r.shed.Add(1)
	r.event("shed")
	r.setBacklog()
}

// retryDeferred re-offers shed tasks in FIFO order, stopping at the first
// refusal.
func (r *Reactor) retryDeferred() {
	if len(r.deferred) == 0 {
		return
	}
	admitted := 0
	for _, p := range r.deferred {
		s := r.table.lookup(p.fd, p.gen)
		if s == nil || !s.deferred {
			admitted++
			continue
		}
		if !r.pool.Append(s.conn) {
			break
		}
		s.deferred = false
		admitted++
	}
	r.deferred = r.deferred[admitted:]
	if len(r.deferred) == 0 {
		r.deferred = nil
	}
	r.setBacklog()
}

func (r *Reactor) setBacklog() {
	r.backlog.Store(int64(len(r.deferred)))
	if r.metrics != nil {
		r.metrics.DeferredTasks(len(r.deferred))
	}
}

func (r *Reactor) event(kind string) {
	if r.metrics != nil {
		r.metrics.Event(kind)
	}
}

// Close closes every live connection, the poller and the listener. Call it
// after Run has returned and the worker pool has been closed.
func (r *Reactor) Close() error {
	r.table.each(func(fd int, s *slot) {
		r.closeConn(fd, s)
	})
	r.deferred = nil
	r.setBacklog()
	return errors.Join(r.poller.Close(), r.ln.Close())
}

// Live returns the number of live connections.
func (r *Reactor) Live() int {
	return int(r.live.Load())
}

// Stats returns current counters.
func (r *Reactor) Stats() Stats {
	return Stats{
		Live:     r.Live(),
		Accepted: r.accepted.Load(),
		Refused:  r.refused.Load(),
		Closed:   r.closed.Load(),
		Stale:    r.stale.Load(),
		Shed:     r.shed.Load(),
		Deferred: int(r.backlog.Load()),
	}
}

// addrStringer renders a possibly nil address.
type addrStringer struct{ a net.Addr }

func (s addrStringer) String() string {
	if s.a == nil {
		return ""
	}
	return s.a.String()
}
