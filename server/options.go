// File: server/options.go
// Package server defines functional options for the Server facade.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-reactor/control"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithLogger sets the root logger.
func WithLogger(l zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithRegistry supplies the Prometheus registry used when metrics are
// enabled. Without it a fresh registry is created.
func WithRegistry(reg *prometheus.Registry) ServerOption {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithConfigStore subscribes the server to configuration reloads. Only the
// log level is applied live; other changes are reported as needing a restart.
func WithConfigStore(store *control.ConfigStore) ServerOption {
	return func(s *Server) {
		s.store = store
	}
}
