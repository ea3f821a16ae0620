//go:build !linux

// control/platform_other.go
// Author: momentics <momentics@gmail.com>

package control

// RegisterPlatformProbes sets platform debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	registerRuntimeProbes(dp)
}
