// Package pool
// Author: momentics <momentics@gmail.com>
//
// Object and byte-buffer pooling for the connection read path.
// Buffers are fixed-size chunks recycled through sync.Pool so that the
// reactor's read step does not allocate per readiness event.
package pool
