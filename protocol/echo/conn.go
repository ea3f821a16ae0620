// File: protocol/echo/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn implements api.Connection. Read and Write run on the reactor thread,
// Process on a worker; one-shot registration keeps them from overlapping.

package echo

import (
	"bytes"
	"errors"
	"net"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/pool"
)

// DefaultMaxLine caps the buffered inbound bytes of one connection.
const DefaultMaxLine = 64 * 1024

var (
	cmdPing  = []byte("PING")
	cmdQuit  = []byte("QUIT")
	respPong = []byte("PONG\n")
	respBye  = []byte("BYE\n")
)

// Config controls per-connection limits.
type Config struct {
	MaxLine int
}

// Counters aggregates traffic over every connection of one factory.
type Counters struct {
	BytesIn   atomic.Uint64
	BytesOut  atomic.Uint64
	Lines     atomic.Uint64
	Overflows atomic.Uint64
}

// Snapshot is a copy of Counters for reporting.
type Snapshot struct {
	BytesIn   uint64 `json:"bytes_in"`
	BytesOut  uint64 `json:"bytes_out"`
	Lines     uint64 `json:"lines"`
	Overflows uint64 `json:"overflows"`
}

// Snapshot returns the current values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		BytesIn:   c.BytesIn.Load(),
		BytesOut:  c.BytesOut.Load(),
		Lines:     c.Lines.Load(),
		Overflows: c.Overflows.Load(),
	}
}

// Conn is one echo session bound to a reactor table slot.
type Conn struct {
	fd   int
	peer net.Addr
	reg  api.Registration

	chunks   *pool.BytePool
	maxLine  int
	counters *Counters
	log      zerolog.Logger

	in   []byte
	out  []byte
	quit bool
}

var _ api.Connection = (*Conn)(nil)

// NewFactory returns a constructor for table slots. All connections share
// chunks and counters.
func NewFactory(cfg Config, chunks *pool.BytePool, counters *Counters, log zerolog.Logger) func() api.Connection {
	if cfg.MaxLine <= 0 {
		cfg.MaxLine = DefaultMaxLine
	}
	if chunks == nil {
		chunks = pool.NewBytePool(pool.DefaultChunkSize)
	}
	if counters == nil {
		counters = &Counters{}
	}
	log = log.With().Str("component", "echo").Logger()
	return func() api.Connection {
		return &Conn{
			fd:       -1,
			chunks:   chunks,
			maxLine:  cfg.MaxLine,
			counters: counters,
			log:      log,
		}
	}
}

// Init binds the session to a freshly accepted descriptor.
func (c *Conn) Init(fd int, peer net.Addr, reg api.Registration) {
	c.fd = fd
	c.peer = peer
	c.reg = reg
	c.in = c.in[:0]
	c.out = c.out[:0]
	c.quit = false
}

// Read drains the socket into the inbound buffer. It stops early once
// maxLine bytes are buffered; the rest stays in the kernel until re-armed.
func (c *Conn) Read() bool {
	buf := c.chunks.GetBuffer()
	defer c.chunks.PutBuffer(buf)

	for len(c.in) < c.maxLine {
		n, err := sysRead(c.fd, *buf)
		if n > 0 {
			c.in = append(c.in, (*buf)[:n]...)
			c.counters.BytesIn.Add(uint64(n))
		}
		switch {
		case err == nil && n == 0:
			return false
		case err == nil:
			continue
		case errors.Is(err, errInterrupted):
			continue
		case errors.Is(err, errAgain):
			return true
		default:
			c.log.Debug().Err(err).Int("fd", c.fd).Msg("read failed")
			return false
		}
	}
	return true
}

// Process answers every complete buffered line and re-arms the registration.
func (c *Conn) Process() {
	consumed := 0
	for !c.quit {
		i := bytes.IndexByte(c.in[consumed:], '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(c.in[consumed:consumed+i], []byte{'\r'})
		consumed += i + 1
		c.respond(line)
	}
	if c.quit {
		consumed = len(c.in)
	}
	c.in = c.in[:copy(c.in, c.in[consumed:])]

	if len(c.in) >= c.maxLine {
		c.counters.Overflows.Add(1)
		c.log.Debug().Int("fd", c.fd).Int("buffered", len(c.in)).Msg("line too long")
		c.abort()
		return
	}

	ev := api.EventRead
	if len(c.out) > 0 {
		ev = api.EventWrite
	}
	// The reactor owns the connection again once Rearm has been called.
	fd, log := c.fd, c.log
	if err := c.reg.Rearm(ev); err != nil {
		log.Debug().Err(err).Int("fd", fd).Msg("rearm failed")
	}
}

func (c *Conn) respond(line []byte) {
	c.counters.Lines.Add(1)
	switch {
	case bytes.Equal(line, cmdPing):
		c.out = append(c.out, respPong...)
	case bytes.Equal(line, cmdQuit):
		c.out = append(c.out, respBye...)
		c.quit = true
	default:
		c.out = append(c.out, line...)
		c.out = append(c.out, '\n')
	}
}

// abort asks the reactor to close the connection: shutting the socket down
// makes the re-armed registration report a hangup.
func (c *Conn) abort() {
	fd, log := c.fd, c.log
	if err := sysShutdown(fd); err != nil {
		log.Debug().Err(err).Int("fd", fd).Msg("shutdown failed")
	}
	if err := c.reg.Rearm(api.EventRead); err != nil {
		log.Debug().Err(err).Int("fd", fd).Msg("rearm failed")
	}
}

// Write flushes pending output. It returns false on error and after the
// farewell of a quitting session has been sent.
func (c *Conn) Write() bool {
	for len(c.out) > 0 {
		n, err := sysWrite(c.fd, c.out)
		if n > 0 {
			c.counters.BytesOut.Add(uint64(n))
			c.out = c.out[:copy(c.out, c.out[n:])]
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, errInterrupted):
			continue
		case errors.Is(err, errAgain):
			return c.rearm(api.EventWrite)
		default:
			c.log.Debug().Err(err).Int("fd", c.fd).Msg("write failed")
			return false
		}
	}
	if c.quit {
		return false
	}
	return c.rearm(api.EventRead)
}

func (c *Conn) rearm(ev api.Events) bool {
	if err := c.reg.Rearm(ev); err != nil {
		c.log.Debug().Err(err).Int("fd", c.fd).Msg("rearm failed")
		return false
	}
	return true
}

// Close releases the descriptor. Buffers are kept for the slot's next
// session.
func (c *Conn) Close() {
	if c.fd >= 0 {
		if err := sysClose(c.fd); err != nil {
			c.log.Debug().Err(err).Int("fd", c.fd).Msg("close failed")
		}
	}
	c.fd = -1
	c.reg = nil
	c.in = c.in[:0]
	c.out = c.out[:0]
	c.quit = false
}

// Peer returns the remote address of the current session.
func (c *Conn) Peer() net.Addr { return c.peer }
