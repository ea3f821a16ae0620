//go:build !linux

// File: internal/concurrency/affinity_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import "github.com/momentics/hioload-reactor/api"

func platformPinCurrentThread(int) error { return api.ErrNotSupported }

func platformUnpinCurrentThread() error { return api.ErrNotSupported }
