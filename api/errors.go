// Package api
// Author: momentics <momentics@gmail.com>
//
// Error taxonomy shared by the pool, the reactor and the control plane.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the runtime.
var (
	// ErrResourceInit is returned when an OS object (epoll instance, eventfd,
	// listening socket) cannot be created. Fatal at startup.
	ErrResourceInit = errors.New("resource initialization failed")
	// ErrInvalidConfig reports non-positive sizes or a configuration that
	// failed validation. Fatal at construction.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrQueueFull is returned by Submit when the task queue is at capacity.
	ErrQueueFull = errors.New("task queue full")
	// ErrPoolClosed is returned by Submit after the pool was closed.
	ErrPoolClosed = errors.New("worker pool closed")
	// ErrNotSupported is returned on platforms without a readiness facility.
	ErrNotSupported = errors.New("operation not supported")
	// ErrNotRegistered is returned when a descriptor has no registration.
	ErrNotRegistered = errors.New("descriptor not registered")
)

// ErrorCode classifies structured errors.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeResourceInit
	ErrCodeInvalidConfig
	ErrCodeQueueFull
	ErrCodeClosed
	ErrCodeNotSupported
	ErrCodeInternal
)

// sentinel maps a code to the error that errors.Is should match.
func (c ErrorCode) sentinel() error {
	switch c {
	case ErrCodeResourceInit:
		return ErrResourceInit
	case ErrCodeInvalidConfig:
		return ErrInvalidConfig
	case ErrCodeQueueFull:
		return ErrQueueFull
	case ErrCodeClosed:
		return ErrPoolClosed
	case ErrCodeNotSupported:
		return ErrNotSupported
	default:
		return nil
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the code's sentinel and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if s := e.Code.sentinel(); s != nil {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}
