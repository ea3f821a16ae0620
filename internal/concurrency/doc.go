// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency substrate for the reactor runtime: a non-reentrant lock, a
// condition variable with timed waits, a counting semaphore, the bounded
// FIFO task queue and the fixed worker pool built on them, plus CPU
// pinning for threads that must stay on one core.
package concurrency
