// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the reactor's collaborators:
// the readiness poller, the listening socket, the worker pool and the
// per-connection protocol.
package fake
