// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server construction: wires configuration into the listener, poller,
// worker pool, reactor and control plane.

package server

import (
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-reactor/control"
	"github.com/momentics/hioload-reactor/internal/concurrency"
	"github.com/momentics/hioload-reactor/internal/logging"
	"github.com/momentics/hioload-reactor/pool"
	"github.com/momentics/hioload-reactor/protocol/echo"
	"github.com/momentics/hioload-reactor/reactor"
)

// NewServer builds the Server facade. Nothing runs until Run.
func NewServer(cfg control.Config, opts ...ServerOption) (s *Server, err error) {
	control.ApplyDefaults(&cfg)
	if err := control.Validate(&cfg); err != nil {
		return nil, err
	}

	s = &Server{
		cfg:      cfg,
		log:      zerolog.Nop(),
		probes:   control.NewDebugProbes(),
		counters: &echo.Counters{},
	}
	for _, o := range opts {
		o(s)
	}

	var closers []func() error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		}
	}()

	if cfg.Metrics.Enabled {
		if s.registry == nil {
			s.registry = prometheus.NewRegistry()
			s.registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}
		s.metrics = control.NewMetrics(s.registry)
		s.registerEchoMetrics()
	}

	s.listener, err = reactor.Listen(cfg.Reactor.Listen, cfg.Reactor.Backlog)
	if err != nil {
		return nil, err
	}
	closers = append(closers, s.listener.Close)

	poller, err := reactor.NewPoller(cfg.Reactor.MaxEvents)
	if err != nil {
		return nil, err
	}
	closers = append(closers, poller.Close)

	s.pool, err = concurrency.NewWorkerPool(cfg.Pool.Threads, cfg.Pool.QueueCapacity,
		concurrency.WithPoolLogger(s.log),
		concurrency.WithPoolMetrics(s.metrics),
	)
	if err != nil {
		return nil, err
	}
	closers = append(closers, func() error { s.pool.Close(); return nil })

	factory := echo.NewFactory(echo.Config{MaxLine: cfg.Echo.MaxLine},
		pool.NewBytePool(pool.DefaultChunkSize), s.counters, s.log)

	s.reactor, err = reactor.New(reactor.Config{
		MaxConnections: cfg.Reactor.MaxConnections,
		MaxEvents:      cfg.Reactor.MaxEvents,
		TableSize:      cfg.Reactor.TableSize,
		RetryInterval:  cfg.Reactor.RetryInterval,
		CPU:            cfg.Reactor.CPU,
		AcceptRate:     cfg.Reactor.AcceptRate,
		AcceptBurst:    cfg.Reactor.AcceptBurst,
	}, poller, s.listener, s.pool, factory,
		reactor.WithLogger(s.log),
		reactor.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, err
	}

	s.registerProbes()

	if cfg.Metrics.Enabled {
		var gatherer prometheus.Gatherer = s.registry
		s.http, err = control.NewHTTPServer(cfg.Metrics.Listen, gatherer, s.probes, s.log)
		if err != nil {
			return nil, err
		}
	}

	if s.store != nil {
		s.store.OnReload(s.applyReload)
	}
	return s, nil
}

func (s *Server) registerEchoMetrics() {
	s.metrics.CounterFunc("echo", "bytes_in_total", "Bytes read from clients",
		func() float64 { return float64(s.counters.BytesIn.Load()) })
	s.metrics.CounterFunc("echo", "bytes_out_total", "Bytes written to clients",
		func() float64 { return float64(s.counters.BytesOut.Load()) })
	s.metrics.CounterFunc("echo", "lines_total", "Lines answered",
		func() float64 { return float64(s.counters.Lines.Load()) })
	s.metrics.CounterFunc("echo", "overflows_total", "Connections closed for an over-long line",
		func() float64 { return float64(s.counters.Overflows.Load()) })
}

func (s *Server) registerProbes() {
	control.RegisterPlatformProbes(s.probes)
	s.probes.RegisterProbe("pool", func() any { return s.pool.Stats() })
	s.probes.RegisterProbe("reactor", func() any { return s.reactor.Stats() })
	s.probes.RegisterProbe("echo", func() any { return s.counters.Snapshot() })
}

// applyReload applies a configuration change published by the store.
func (s *Server) applyReload(old, updated control.Config) {
	if old.Logging.Level != updated.Logging.Level {
		if err := logging.SetLevel(updated.Logging.Level); err != nil {
			s.log.Error().Err(err).Msg("apply log level")
		} else {
			s.log.Info().Str("level", updated.Logging.Level).Msg("log level changed")
		}
	}
	if sections := control.RestartRequired(old, updated); len(sections) > 0 {
		s.log.Warn().Strs("sections", sections).Msg("configuration change requires restart")
	}
}

// Addr returns the bound reactor address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// MetricsAddr returns the bound metrics address, or nil when disabled.
func (s *Server) MetricsAddr() net.Addr {
	if s.http == nil {
		return nil
	}
	return s.http.Addr()
}

// Stats returns current counters.
func (s *Server) Stats() Stats {
	return Stats{
		Pool:    s.pool.Stats(),
		Reactor: s.reactor.Stats(),
		Echo:    s.counters.Snapshot(),
	}
}

// Probes exposes the debug probe registry.
func (s *Server) Probes() *control.DebugProbes {
	return s.probes
}
