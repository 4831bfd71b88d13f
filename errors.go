// go-racfg
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-racfg.
//
// go-racfg is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-racfg is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-racfg; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package racfg

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/ZaparooProject/go-racfg/internal/frame"
	"github.com/ZaparooProject/go-racfg/internal/queue"
)

// Protocol errors
var (
	// ErrFormat marks a malformed frame. Routed frames never surface it to callers.
	ErrFormat = frame.ErrFormat
	// ErrTimeout is returned when no terminal frame arrives before the deadline.
	ErrTimeout = errors.New("operation timeout")
	// ErrCancelled is returned when the engine shuts down during a wait.
	ErrCancelled = errors.New("operation cancelled")
	// ErrQueueFull is returned when a work queue drops an item.
	ErrQueueFull = queue.ErrFull
	// ErrCallInFlight is returned when a call with the same id and sequence is pending.
	ErrCallInFlight = errors.New("call already in flight")
	// ErrShortBuffer is returned when a reply does not fit the destination buffer.
	ErrShortBuffer = errors.New("destination buffer too small")
	// ErrNotRunning is returned by operations on an engine that was not started or is closed.
	ErrNotRunning = errors.New("engine not running")
	// ErrInvalidParameter is returned for invalid caller input.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Transport errors
var (
	ErrTransportClosed = errors.New("transport closed")
	ErrTransportWrite  = errors.New("transport write failed")
	ErrTransportRead   = errors.New("transport read failed")
	ErrLinkDown        = errors.New("link down")
)

// ErrorType categorizes transport failures
type ErrorType int

const (
	// ErrorTypePermanent errors should not be retried
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient errors may succeed on retry
	ErrorTypeTransient
	// ErrorTypeTimeout errors are timeouts
	ErrorTypeTimeout
)

// TransportError describes a failure of the physical link.
type TransportError struct {
	Err       error
	Op        string
	Iface     string
	Type      ErrorType
	Retryable bool
}

func (e *TransportError) Error() string {
	if e.Iface != "" {
		return fmt.Sprintf("%s on %s: %v", e.Op, e.Iface, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err with transport context
func NewTransportError(op, iface string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Iface:     iface,
		Err:       err,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// IsRetryable reports whether err is worth retrying. Only sentinel transport
// errors and TransportErrors marked retryable qualify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	switch err {
	case ErrTransportWrite, ErrTransportRead, ErrLinkDown:
		return true
	default:
		return false
	}
}

// GetErrorType returns the category of err
func GetErrorType(err error) ErrorType {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}
	if errors.Is(err, ErrTimeout) {
		return ErrorTypeTimeout
	}
	if IsRetryable(err) {
		return ErrorTypeTransient
	}
	return ErrorTypePermanent
}

// Device status codes carried in the status field of SYNC, IOCTL_STATUS and
// IW_HANDLER responses.
const (
	StatusSuccess       int32 = 0
	StatusFailure       int32 = -1
	StatusInvalid       int32 = -2
	StatusNoMemory      int32 = -3
	StatusNotSupported  int32 = -4
	StatusFault         int32 = -5
	StatusTooBig        int32 = -6
	StatusResourceInUse int32 = -7
)

var statusErrno = map[int32]syscall.Errno{
	StatusFailure:       syscall.EIO,
	StatusInvalid:       syscall.EINVAL,
	StatusNoMemory:      syscall.ENOMEM,
	StatusNotSupported:  syscall.EOPNOTSUPP,
	StatusFault:         syscall.EFAULT,
	StatusTooBig:        syscall.E2BIG,
	StatusResourceInUse: syscall.EBUSY,
}

// StatusError is a non-zero status reported by the device firmware.
type StatusError struct {
	Status int32
	Errno  syscall.Errno
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("device status %d: %v", e.Status, e.Errno)
}

func (e *StatusError) Unwrap() error {
	return e.Errno
}

// StatusToError maps a device status to a standard error code. Zero and
// positive values are success.
func StatusToError(status int32) error {
	if status >= 0 {
		return nil
	}
	errno, ok := statusErrno[status]
	if !ok {
		errno = syscall.EIO
	}
	return &StatusError{Status: status, Errno: errno}
}
