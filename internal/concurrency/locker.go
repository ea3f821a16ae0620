// File: internal/concurrency/locker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lock, ConditionVariable and CountingSemaphore: the substrate the worker
// pool is built on.

package concurrency

import (
	"sync"
	"time"
)

// Lock is an exclusive, non-reentrant lock.
type Lock struct {
	mu sync.Mutex
}

// NewLock returns an unlocked Lock.
func NewLock() *Lock {
	return &Lock{}
}

// Acquire blocks until the caller owns the lock.
func (l *Lock) Acquire() {
	l.mu.Lock()
}

// Release gives up ownership. Releasing an unheld lock is a fatal error.
func (l *Lock) Release() {
	l.mu.Unlock()
}

// ConditionVariable parks goroutines until signaled. Waiters must hold the
// associated Lock and re-check their predicate after waking.
type ConditionVariable struct {
	mu      sync.Mutex
	waiters []chan struct{}
}

// NewConditionVariable returns a condition variable with no waiters.
func NewConditionVariable() *ConditionVariable {
	return &ConditionVariable{}
}

// enqueue registers a new waiter channel.
func (c *ConditionVariable) enqueue() chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()
	return ch
}

// Wait atomically releases l and suspends until signaled, then reacquires l.
func (c *ConditionVariable) Wait(l *Lock) {
	ch := c.enqueue()
	l.Release()
	<-ch
	l.Acquire()
}

// WaitTimed behaves like Wait but gives up at deadline. It returns false if
// the wait timed out. l is held again on return in both cases.
func (c *ConditionVariable) WaitTimed(l *Lock, deadline time.Time) bool {
	ch := c.enqueue()
	l.Release()
	defer l.Acquire()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return false
		}
	}
	// Signaled between the timer firing and the removal.
	return true
}

// SignalOne wakes the longest-waiting goroutine, if any.
func (c *ConditionVariable) SignalOne() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.waiters) == 0 {
		return
	}
	ch := c.waiters[0]
	c.waiters[0] = nil
	c.waiters = c.waiters[1:]
	close(ch)
}

// SignalAll wakes every waiter.
func (c *ConditionVariable) SignalAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.waiters {
		close(ch)
	}
	c.waiters = nil
}

// CountingSemaphore signals work availability. It starts at zero.
type CountingSemaphore struct {
	lock  *Lock
	cond  *ConditionVariable
	count int
}

// NewCountingSemaphore returns a semaphore with count 0.
func NewCountingSemaphore() *CountingSemaphore {
	return &CountingSemaphore{
		lock: NewLock(),
		cond: NewConditionVariable(),
	}
}

// Acquire blocks while the count is zero, then decrements it.
func (s *CountingSemaphore) Acquire() {
	s.lock.Acquire()
	for s.count == 0 {
		s.cond.Wait(s.lock)
	}
	s.count--
	s.lock.Release()
}

// TryAcquire decrements the count if it is positive.
func (s *CountingSemaphore) TryAcquire() bool {
	s.lock.Acquire()
	defer s.lock.Release()
	if s.count == 0 {
		return false
	}
	s.count--
	return true
}

// Release increments the count and wakes one blocked acquirer.
func (s *CountingSemaphore) Release() {
	s.lock.Acquire()
	s.count++
	s.lock.Release()
	s.cond.SignalOne()
}

// Count returns the current count.
func (s *CountingSemaphore) Count() int {
	s.lock.Acquire()
	defer s.lock.Release()
	return s.count
}
