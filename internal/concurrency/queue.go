// File: internal/concurrency/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// BoundedQueue is a capacity-limited FIFO of task references. It is not
// synchronized; the owning WorkerPool guards it with its Lock.

package concurrency

import (
	"github.com/eapache/queue"

	"github.com/momentics/hioload-reactor/api"
)

// BoundedQueue holds task references in admission order.
type BoundedQueue struct {
	items    *queue.Queue
	capacity int
}

// NewBoundedQueue creates an empty queue admitting at most capacity tasks.
func NewBoundedQueue(capacity int) *BoundedQueue {
	return &BoundedQueue{
		items:    queue.New(),
		capacity: capacity,
	}
}

// Push appends t to the tail. It refuses, leaving the queue unchanged, when
// the queue is already at capacity.
func (q *BoundedQueue) Push(t api.Task) bool {
	if q.items.Length() >= q.capacity {
		return false
	}
	q.items.Add(t)
	return true
}

// Pop removes and returns the head task.
func (q *BoundedQueue) Pop() (api.Task, bool) {
	if q.items.Length() == 0 {
		return nil, false
	}
	t, _ := q.items.Remove().(api.Task)
	return t, true
}

// Len returns the number of queued tasks.
func (q *BoundedQueue) Len() int {
	return q.items.Length()
}

// Cap returns the admission limit.
func (q *BoundedQueue) Cap() int {
	return q.capacity
}

// Empty reports whether no task is queued.
func (q *BoundedQueue) Empty() bool {
	return q.items.Length() == 0
}
