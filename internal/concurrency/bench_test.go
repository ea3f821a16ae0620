// Author: momentics <momentics@gmail.com>
//
// Throughput benchmarks for the worker pool and its queue.

package concurrency

import (
	"sync"
	"testing"
)

type wgTask struct{ wg *sync.WaitGroup }

func (t wgTask) Process() { t.wg.Done() }

// BenchmarkWorkerPoolThroughput measures append-to-process latency with a
// single producer, as the reactor drives the pool.
func BenchmarkWorkerPoolThroughput(b *testing.B) {
	p, err := NewWorkerPool(4, 1024)
	if err != nil {
		b.Fatal(err)
	}
	defer p.Close()

	var wg sync.WaitGroup
	task := wgTask{wg: &wg}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wg.Add(1)
		for !p.Append(task) {
			wg.Wait()
		}
	}
	wg.Wait()
}

// BenchmarkBoundedQueue measures push/pop cost without contention.
func BenchmarkBoundedQueue(b *testing.B) {
	q := NewBoundedQueue(1024)
	task := wgTask{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Push(task)
		q.Pop()
	}
}

// BenchmarkSemaphore measures an uncontended release/acquire pair.
func BenchmarkSemaphore(b *testing.B) {
	s := NewCountingSemaphore()
	for i := 0; i < b.N; i++ {
		s.Release()
		s.Acquire()
	}
}
