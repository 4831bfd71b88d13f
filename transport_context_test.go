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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	rt "github.com/ZaparooProject/go-racfg/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSendContextCancellationDuringBlockedSend verifies that cancelling the
// context releases a caller stuck behind a wedged link.
func TestSendContextCancellationDuringBlockedSend(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport(rt.HostMAC)
	mock.SetBlocking(true)
	defer func() { _ = mock.Close() }()

	tc := AsTransportContext(mock)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- tc.SendContext(ctx, []byte{0x01})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("send did not return after cancellation")
	}
}

func TestSendContextImmediateCancellation(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport(rt.HostMAC)
	defer func() { _ = mock.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := AsTransportContext(mock).SendContext(ctx, []byte{0x01})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mock.Sent())
}

func TestSendContextConcurrent(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport(rt.HostMAC)
	defer func() { _ = mock.Close() }()
	tc := AsTransportContext(mock)

	const senders = 8
	var wg sync.WaitGroup
	wg.Add(senders)
	for i := range senders {
		go func() {
			defer wg.Done()
			assert.NoError(t, tc.SendContext(context.Background(), []byte{byte(i)}))
		}()
	}
	wg.Wait()
	assert.Len(t, mock.Sent(), senders)
}

func TestSendContextUnblock(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport(rt.HostMAC)
	mock.SetBlocking(true)
	defer func() { _ = mock.Close() }()
	tc := AsTransportContext(mock)

	done := make(chan error, 1)
	go func() {
		done <- tc.SendContext(context.Background(), []byte{0x42})
	}()
	time.Sleep(10 * time.Millisecond)
	mock.Unblock()

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Equal(t, [][]byte{{0x42}}, mock.Sent())
	case <-time.After(time.Second):
		t.Fatal("send did not complete after unblock")
	}
}
