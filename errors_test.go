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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "transport write retryable", err: ErrTransportWrite, want: true},
		{name: "transport read retryable", err: ErrTransportRead, want: true},
		{name: "link down retryable", err: ErrLinkDown, want: true},
		{name: "transport closed not retryable", err: ErrTransportClosed, want: false},
		{name: "invalid parameter not retryable", err: ErrInvalidParameter, want: false},
		{name: "timeout not retryable", err: ErrTimeout, want: false},
		{
			name: "transient transport error",
			err:  NewTransportError("send", "eth1", syscall.ENOBUFS, ErrorTypeTransient),
			want: true,
		},
		{
			name: "permanent transport error",
			err:  NewTransportError("send", "eth1", syscall.ENODEV, ErrorTypePermanent),
			want: false,
		},
		{
			name: "wrapped transport error",
			err:  fmt.Errorf("outer: %w", NewTransportError("read", "", ErrTransportRead, ErrorTypeTimeout)),
			want: true,
		},
		{
			name: "message copy is not the sentinel",
			err:  errors.New("outer: " + ErrTransportWrite.Error()),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrorTypeTimeout, GetErrorType(ErrTimeout))
	assert.Equal(t, ErrorTypeTimeout, GetErrorType(fmt.Errorf("call: %w", ErrTimeout)))
	assert.Equal(t, ErrorTypeTransient, GetErrorType(ErrLinkDown))
	assert.Equal(t, ErrorTypePermanent, GetErrorType(ErrInvalidParameter))
	assert.Equal(t, ErrorTypeTransient,
		GetErrorType(NewTransportError("send", "eth1", syscall.EAGAIN, ErrorTypeTransient)))
}

func TestTransportErrorMessage(t *testing.T) {
	t.Parallel()

	err := NewTransportError("send", "eth1", ErrTransportWrite, ErrorTypeTransient)
	assert.Equal(t, "send on eth1: transport write failed", err.Error())
	require.ErrorIs(t, err, ErrTransportWrite)

	err = NewTransportError("open", "", syscall.EPERM, ErrorTypePermanent)
	assert.Equal(t, "open: "+syscall.EPERM.Error(), err.Error())
	assert.False(t, err.Retryable)
}

func TestStatusToError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want   error
		status int32
	}{
		{status: 0, want: nil},
		{status: 1300, want: nil},
		{status: StatusFailure, want: syscall.EIO},
		{status: StatusInvalid, want: syscall.EINVAL},
		{status: StatusNoMemory, want: syscall.ENOMEM},
		{status: StatusNotSupported, want: syscall.EOPNOTSUPP},
		{status: StatusFault, want: syscall.EFAULT},
		{status: StatusTooBig, want: syscall.E2BIG},
		{status: StatusResourceInUse, want: syscall.EBUSY},
		{status: -99, want: syscall.EIO},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			t.Parallel()
			err := StatusToError(tt.status)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.Status)
		})
	}
}
