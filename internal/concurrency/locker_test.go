package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_MutualExclusion(t *testing.T) {
	l := NewLock()
	var wg sync.WaitGroup
	counter := 0
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				l.Acquire()
				counter++
				l.Release()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 16*1000, counter)
}

func TestConditionVariable_SignalOne(t *testing.T) {
	l := NewLock()
	c := NewConditionVariable()
	ready := false
	woke := make(chan struct{})

	go func() {
		l.Acquire()
		for !ready {
			c.Wait(l)
		}
		l.Release()
		close(woke)
	}()

	// Let the waiter park.
	time.Sleep(10 * time.Millisecond)
	l.Acquire()
	ready = true
	l.Release()
	c.SignalOne()

	select {
	case <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestConditionVariable_SignalAll(t *testing.T) {
	l := NewLock()
	c := NewConditionVariable()
	const n = 8
	var released atomic.Int32
	open := false
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Acquire()
			for !open {
				c.Wait(l)
			}
			l.Release()
			released.Add(1)
		}()
	}
	time.Sleep(10 * time.Millisecond)
	l.Acquire()
	open = true
	l.Release()
	c.SignalAll()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("only %d/%d waiters released", released.Load(), n)
	}
}

func TestConditionVariable_WaitTimedTimesOut(t *testing.T) {
	l := NewLock()
	c := NewConditionVariable()

	l.Acquire()
	start := time.Now()
	signaled := c.WaitTimed(l, start.Add(20*time.Millisecond))
	l.Release()

	assert.False(t, signaled)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	// A timed-out waiter must not swallow a later signal.
	c.mu.Lock()
	assert.Empty(t, c.waiters)
	c.mu.Unlock()
}

func TestConditionVariable_WaitTimedSignaled(t *testing.T) {
	l := NewLock()
	c := NewConditionVariable()
	result := make(chan bool, 1)

	go func() {
		l.Acquire()
		result <- c.WaitTimed(l, time.Now().Add(5*time.Second))
		l.Release()
	}()
	time.Sleep(10 * time.Millisecond)
	c.SignalOne()

	select {
	case ok := <-result:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed waiter was not woken")
	}
}

func TestCountingSemaphore_BlocksAtZero(t *testing.T) {
	s := NewCountingSemaphore()
	require.Equal(t, 0, s.Count())
	require.False(t, s.TryAcquire())

	acquired := make(chan struct{})
	go func() {
		s.Acquire()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("acquire returned with zero count")
	case <-time.After(20 * time.Millisecond):
	}

	s.Release()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("acquire not woken by release")
	}
	assert.Equal(t, 0, s.Count())
}

func TestCountingSemaphore_Balanced(t *testing.T) {
	s := NewCountingSemaphore()
	const n = 10000
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			s.Release()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			s.Acquire()
		}
	}()
	wg.Wait()
	assert.Equal(t, 0, s.Count())
}
