// File: server/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server lifecycle: runs the reactor and the metrics endpoint until the
// context ends, then drains the worker pool and releases the reactor.

package server

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

var errShutdownTimeout = errors.New("worker pool drain timed out")

// Run blocks until ctx is cancelled or a component fails. Teardown closes
// the worker pool (draining queued tasks) before the reactor so that
// in-flight tasks can still re-arm their registrations.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.reactor.Run(gctx)
	})
	if s.http != nil {
		g.Go(func() error {
			return s.http.Run(gctx)
		})
	}

	s.log.Info().
		Stringer("addr", s.Addr()).
		Int("threads", s.cfg.Pool.Threads).
		Int("queue_capacity", s.cfg.Pool.QueueCapacity).
		Msg("server running")

	runErr := g.Wait()
	return errors.Join(runErr, s.shutdown())
}

func (s *Server) shutdown() error {
	var errs []error

	drained := make(chan struct{})
	go func() {
		s.pool.Close()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(s.cfg.Server.ShutdownTimeout):
		s.log.Error().Dur("timeout", s.cfg.Server.ShutdownTimeout).Msg("worker pool did not drain")
		errs = append(errs, errShutdownTimeout)
		// Workers may still touch connections; the reactor stays open.
		return errors.Join(errs...)
	}

	if err := s.reactor.Close(); err != nil {
		errs = append(errs, err)
	}
	s.log.Info().Interface("stats", s.Stats()).Msg("server stopped")
	return errors.Join(errs...)
}
