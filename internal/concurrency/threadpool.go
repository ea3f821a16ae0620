// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WorkerPool runs a fixed set of worker goroutines pulling tasks from a
// BoundedQueue. The semaphore gates "there may be work"; the lock guards the
// queue itself. The two are updated in separate steps, so a worker can wake
// to an empty queue; it simply retries.

package concurrency

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-reactor/api"
)

const (
	// DefaultThreads is the default number of workers.
	DefaultThreads = 8
	// DefaultQueueCapacity is the default number of queued tasks.
	DefaultQueueCapacity = 10000
)

var errNilTask = errors.New("nil task")

// PoolMetrics receives pool telemetry. A nil PoolMetrics disables it.
type PoolMetrics interface {
	TaskSubmitted()
	TaskRejected()
	TaskProcessed()
	TaskPanicked()
	QueueDepth(n int)
}

// PoolStats is a point-in-time snapshot of pool counters.
type PoolStats struct {
	Workers   int    `json:"workers"`
	Capacity  int    `json:"capacity"`
	Queued    int    `json:"queued"`
	Submitted uint64 `json:"submitted"`
	Rejected  uint64 `json:"rejected"`
	Processed uint64 `json:"processed"`
	Panics    uint64 `json:"panics"`
}

// PoolOption customizes a WorkerPool.
type PoolOption func(*WorkerPool)

// WithPoolLogger sets the logger used for worker lifecycle and panics.
func WithPoolLogger(l zerolog.Logger) PoolOption {
	return func(p *WorkerPool) {
		p.log = l.With().Str("component", "pool").Logger()
	}
}

// WithPoolMetrics attaches a metrics sink.
func WithPoolMetrics(m PoolMetrics) PoolOption {
	return func(p *WorkerPool) {
		p.metrics = m
	}
}

// WorkerPool is a fixed-size pool with a bounded FIFO task queue.
type WorkerPool struct {
	lock     *Lock
	sem      *CountingSemaphore
	queue    *BoundedQueue
	threads  int
	stopping bool // guarded by lock

	wg        sync.WaitGroup
	closeOnce sync.Once

	log     zerolog.Logger
	metrics PoolMetrics

	submitted atomic.Uint64
	rejected  atomic.Uint64
	processed atomic.Uint64
	panics    atomic.Uint64
}

// NewWorkerPool starts threads workers sharing a queue of the given capacity.
func NewWorkerPool(threads, capacity int, opts ...PoolOption) (*WorkerPool, error) {
	if threads <= 0 || capacity <= 0 {
		return nil, api.NewError(api.ErrCodeInvalidConfig, "worker pool sizes must be positive").
			WithContext("threads", threads).
			WithContext("capacity", capacity)
	}
	p := &WorkerPool{
		lock:    NewLock(),
		sem:     NewCountingSemaphore(),
		queue:   NewBoundedQueue(capacity),
		threads: threads,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	p.wg.Add(threads)
	for i := 0; i < threads; i++ {
		go p.run(i)
	}
	p.log.Debug().Int("threads", threads).Int("capacity", capacity).Msg("worker pool started")
	return p, nil
}

// Append admits t without blocking. It returns false when the queue is full
// or the pool is closed; the queue is then unchanged.
func (p *WorkerPool) Append(t api.Task) bool {
	return p.Submit(t) == nil
}

// Submit is Append reporting why a task was refused.
func (p *WorkerPool) Submit(t api.Task) error {
	if t == nil {
		return errNilTask
	}
	p.lock.Acquire()
	if p.stopping {
		p.lock.Release()
		p.rejected.Add(1)
		if p.metrics != nil {
			p.metrics.TaskRejected()
		}
		return api.ErrPoolClosed
	}
	if !p.queue.Push(t) {
		p.lock.Release()
		p.rejected.Add(1)
		if p.metrics != nil {
			p.metrics.TaskRejected()
		}
		return api.ErrQueueFull
	}
	depth := p.queue.Len()
	p.lock.Release()
	p.sem.Release()

	p.submitted.Add(1)
	if p.metrics != nil {
		p.metrics.TaskSubmitted()
		p.metrics.QueueDepth(depth)
	}
	return nil
}

// run is the worker loop.
func (p *WorkerPool) run(id int) {
	defer p.wg.Done()
	for {
		p.sem.Acquire()
		p.lock.Acquire()
		if p.queue.Empty() {
			stopping := p.stopping
			p.lock.Release()
			if stopping {
				p.log.Debug().Int("worker", id).Msg("worker exiting")
				return
			}
			continue
		}
		t, _ := p.queue.Pop()
		depth := p.queue.Len()
		p.lock.Release()

		if p.metrics != nil {
			p.metrics.QueueDepth(depth)
		}
		if t == nil {
			continue
		}
		p.execute(id, t)
	}
}

// execute runs one task, keeping the worker alive across panics.
func (p *WorkerPool) execute(id int, t api.Task) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			if p.metrics != nil {
				p.metrics.TaskPanicked()
			}
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("task panicked")
		}
		p.processed.Add(1)
		if p.metrics != nil {
			p.metrics.TaskProcessed()
		}
	}()
	t.Process()
}

// Close stops admission, lets workers drain every queued task and waits for
// all of them to exit. Safe to call more than once.
func (p *WorkerPool) Close() {
	p.closeOnce.Do(func() {
		p.lock.Acquire()
		p.stopping = true
		p.lock.Release()
		// One wake per worker; a worker exits only once the queue is empty.
		for i := 0; i < p.threads; i++ {
			p.sem.Release()
		}
		p.wg.Wait()
		p.log.Debug().Msg("worker pool stopped")
	})
}

// Len returns the number of queued tasks.
func (p *WorkerPool) Len() int {
	p.lock.Acquire()
	defer p.lock.Release()
	return p.queue.Len()
}

// NumWorkers returns the fixed worker count.
func (p *WorkerPool) NumWorkers() int {
	return p.threads
}

// Stats returns current counters.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers:   p.threads,
		Capacity:  p.queue.Cap(),
		Queued:    p.Len(),
		Submitted: p.submitted.Load(),
		Rejected:  p.rejected.Load(),
		Processed: p.processed.Load(),
		Panics:    p.panics.Load(),
	}
}
