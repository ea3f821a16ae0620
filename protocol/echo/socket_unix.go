//go:build unix

// File: protocol/echo/socket_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package echo

import "golang.org/x/sys/unix"

var (
	errAgain       error = unix.EAGAIN
	errInterrupted error = unix.EINTR
)

func sysRead(fd int, p []byte) (int, error) {
	n, err := unix.Read(fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

func sysWrite(fd int, p []byte) (int, error) {
	n, err := unix.Write(fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

func sysShutdown(fd int) error { return unix.Shutdown(fd, unix.SHUT_RDWR) }

func sysClose(fd int) error { return unix.Close(fd) }
