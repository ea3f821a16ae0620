//go:build !unix

// File: protocol/echo/socket_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package echo

import (
	"errors"

	"github.com/momentics/hioload-reactor/api"
)

var (
	errAgain       = errors.New("would block")
	errInterrupted = errors.New("interrupted")
)

func sysRead(int, []byte) (int, error) { return 0, api.ErrNotSupported }

func sysWrite(int, []byte) (int, error) { return 0, api.ErrNotSupported }

func sysShutdown(int) error { return api.ErrNotSupported }

func sysClose(int) error { return api.ErrNotSupported }
