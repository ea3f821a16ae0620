//go:build linux

package concurrency

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPinCurrentThread(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var orig unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &orig))
	defer func() { _ = unix.SchedSetaffinity(0, &orig) }()

	cpu := -1
	for i := 0; i < NumCPUs(); i++ {
		if orig.IsSet(i) {
			cpu = i
			break
		}
	}
	require.GreaterOrEqual(t, cpu, 0)

	require.NoError(t, PinCurrentThread(cpu))
	var got unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &got))
	assert.Equal(t, 1, got.Count())
	assert.True(t, got.IsSet(cpu))
}

func TestPinCurrentThreadRange(t *testing.T) {
	assert.Error(t, PinCurrentThread(-1))
	assert.Error(t, PinCurrentThread(NumCPUs()))
}
