// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor implements the reactive half of a half-sync/half-reactive
// server: a single goroutine locked to its OS thread multiplexes readiness
// over a listening socket and every live connection with epoll, performs the
// raw read and write steps, and hands completed reads to a worker pool.
//
// Connections are registered one-shot, so at most one worker processes a
// given connection at a time; the worker re-arms the registration when it is
// done. Every registration carries a generation tag so that events belonging
// to a closed connection whose descriptor was reused are dropped.
package reactor
