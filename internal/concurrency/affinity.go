// File: internal/concurrency/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// CPU affinity for goroutines locked to their OS thread.

package concurrency

import (
	"fmt"
	"runtime"
)

// NumCPUs returns the number of logical CPUs.
func NumCPUs() int {
	return runtime.NumCPU()
}

// PinCurrentThread binds the calling OS thread to cpuID. The caller must
// already hold runtime.LockOSThread, otherwise the goroutine may migrate
// and leave the pin on an unrelated thread.
func PinCurrentThread(cpuID int) error {
	if cpuID < 0 || cpuID >= NumCPUs() {
		return fmt.Errorf("pin cpu %d: out of range [0,%d)", cpuID, NumCPUs())
	}
	return platformPinCurrentThread(cpuID)
}

// UnpinCurrentThread allows the calling OS thread to run on every CPU again.
func UnpinCurrentThread() error {
	return platformUnpinCurrentThread()
}
