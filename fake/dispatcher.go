// File: fake/dispatcher.go
// Author: momentics <momentics@gmail.com>

package fake

import (
	"sync"

	"github.com/momentics/hioload-reactor/api"
)

// Dispatcher is a fake worker pool that records appended tasks without
// running them. Refuse makes Append report a full queue.
type Dispatcher struct {
	mu     sync.Mutex
	tasks  []api.Task
	refuse bool
}

// Append records t unless refusing.
func (d *Dispatcher) Append(t api.Task) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refuse {
		return false
	}
	d.tasks = append(d.tasks, t)
	return true
}

// Refuse toggles full-queue behavior.
func (d *Dispatcher) Refuse(refuse bool) {
	d.mu.Lock()
	d.refuse = refuse
	d.mu.Unlock()
}

// Tasks returns the recorded tasks in append order.
func (d *Dispatcher) Tasks() []api.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]api.Task(nil), d.tasks...)
}
