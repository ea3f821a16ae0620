// File: fake/connection.go
// Author: momentics <momentics@gmail.com>

package fake

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-reactor/api"
)

// Connection is a fake api.Connection that counts every call. Read and Write
// results are controlled with FailRead and FailWrite.
type Connection struct {
	mu   sync.Mutex
	fd   int
	peer net.Addr
	reg  api.Registration

	inits     atomic.Int64
	reads     atomic.Int64
	writes    atomic.Int64
	processed atomic.Int64
	closes    atomic.Int64

	failRead  atomic.Bool
	failWrite atomic.Bool

	// OnProcess, if set, runs inside Process.
	OnProcess func(c *Connection)
}

var _ api.Connection = (*Connection)(nil)

// NewConnection creates an unbound fake connection.
func NewConnection() *Connection {
	return &Connection{fd: -1}
}

// Init binds the connection to an accepted descriptor.
func (c *Connection) Init(fd int, peer net.Addr, reg api.Registration) {
	c.mu.Lock()
	c.fd, c.peer, c.reg = fd, peer, reg
	c.mu.Unlock()
	c.inits.Add(1)
}

// Read reports success unless FailRead was set.
func (c *Connection) Read() bool {
	c.reads.Add(1)
	return !c.failRead.Load()
}

// Write reports success unless FailWrite was set.
func (c *Connection) Write() bool {
	c.writes.Add(1)
	return !c.failWrite.Load()
}

// Process runs OnProcess.
func (c *Connection) Process() {
	c.processed.Add(1)
	if c.OnProcess != nil {
		c.OnProcess(c)
	}
}

// Close counts the close.
func (c *Connection) Close() {
	c.closes.Add(1)
}

// Rearm re-arms the bound registration.
func (c *Connection) Rearm(ev api.Events) error {
	c.mu.Lock()
	reg := c.reg
	c.mu.Unlock()
	return reg.Rearm(ev)
}

// Fd returns the bound descriptor.
func (c *Connection) Fd() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fd
}

// FailRead sets the Read result.
func (c *Connection) FailRead(fail bool) { c.failRead.Store(fail) }

// FailWrite sets the Write result.
func (c *Connection) FailWrite(fail bool) { c.failWrite.Store(fail) }

// Inits returns the number of Init calls.
func (c *Connection) Inits() int { return int(c.inits.Load()) }

// Reads returns the number of Read calls.
func (c *Connection) Reads() int { return int(c.reads.Load()) }

// Writes returns the number of Write calls.
func (c *Connection) Writes() int { return int(c.writes.Load()) }

// Processed returns the number of Process calls.
func (c *Connection) Processed() int { return int(c.processed.Load()) }

// Closes returns the number of Close calls.
func (c *Connection) Closes() int { return int(c.closes.Load()) }

// Factory records every connection it creates.
type Factory struct {
	mu    sync.Mutex
	conns []*Connection
}

// New creates a connection. Its signature matches the reactor's factory.
func (f *Factory) New() api.Connection {
	c := NewConnection()
	f.mu.Lock()
	f.conns = append(f.conns, c)
	f.mu.Unlock()
	return c
}

// Created returns every connection made so far.
func (f *Factory) Created() []*Connection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Connection(nil), f.conns...)
}
