// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, hot-reload, runtime metrics and debug introspection layer
// for the reactor runtime.
//
// Provides:
//   - Layered configuration (defaults, file, HIOLOAD_* environment, flags)
//     with struct-tag validation
//   - A snapshot store with reload listeners fed by a file watcher
//   - Prometheus metrics for the worker pool and the reactor
//   - Named debug probes and an HTTP endpoint exposing both
package control
