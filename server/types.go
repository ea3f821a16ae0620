// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-reactor/control"
	"github.com/momentics/hioload-reactor/internal/concurrency"
	"github.com/momentics/hioload-reactor/protocol/echo"
	"github.com/momentics/hioload-reactor/reactor"
)

// Server is the high-level facade owning the listener, the poller, the
// worker pool, the reactor and the optional metrics endpoint.
type Server struct {
	cfg control.Config
	log zerolog.Logger

	listener *reactor.Listener
	pool     *concurrency.WorkerPool
	reactor  *reactor.Reactor
	counters *echo.Counters

	registry *prometheus.Registry
	metrics  *control.Metrics
	probes   *control.DebugProbes
	http     *control.HTTPServer
	store    *control.ConfigStore
}

// Stats is a point-in-time view of the running server.
type Stats struct {
	Pool    concurrency.PoolStats `json:"pool"`
	Reactor reactor.Stats         `json:"reactor"`
	Echo    echo.Snapshot         `json:"echo"`
}
