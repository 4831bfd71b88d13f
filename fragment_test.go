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
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentProperties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	sizes := []int{0, 1, 1023, 1024, 1025, 1300, 2048, 4097}
	for range 50 {
		sizes = append(sizes, rng.Intn(10000))
	}

	for _, size := range sizes {
		payload := make([]byte, size)
		rng.Read(payload)
		h := NewHeader(TypeIwHandler, 0x8B1B)
		h.CommandSeq = 42

		frames := Fragment(h, payload, MaxPayload)
		want := (max(size, 1) + MaxPayload - 1) / MaxPayload
		require.Len(t, frames, want, "size %d", size)

		var joined []byte
		for i, f := range frames {
			assert.Equal(t, uint16(i), f.Header.Sequence)
			assert.Equal(t, uint16(42), f.Header.CommandSeq)
			assert.Equal(t, uint16(len(f.Payload)), f.Header.Length)
			assert.LessOrEqual(t, len(f.Payload), MaxPayload)
			joined = append(joined, f.Payload...)
		}
		assert.True(t, bytes.Equal(payload, joined), "size %d", size)

		// reassembly in reverse order reproduces the payload
		r := NewReassembler(size, MaxPayload)
		for i := len(frames) - 1; i >= 0; i-- {
			require.NoError(t, r.Place(frames[i].Header.Sequence, frames[i].Payload))
		}
		assert.True(t, r.Complete())
		assert.True(t, bytes.Equal(payload, r.Bytes()))
	}
}

func TestReassemblerRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	r := NewReassembler(1300, MaxPayload)
	require.ErrorIs(t, r.Place(2, []byte{1}), ErrBadFragment)
	require.ErrorIs(t, r.Place(1, make([]byte, 300)), ErrBadFragment)
	require.NoError(t, r.Place(1, make([]byte, 276)))
	assert.False(t, r.Complete())

	// duplicates do not count twice
	require.NoError(t, r.Place(1, make([]byte, 276)))
	assert.False(t, r.Complete())
	require.NoError(t, r.Place(0, make([]byte, 1024)))
	assert.True(t, r.Complete())
}

func TestSendFragments(t *testing.T) {
	t.Parallel()

	var got []Frame
	send := func(_ context.Context, h Header, p []byte) error {
		got = append(got, Frame{Header: h, Payload: p})
		return nil
	}
	require.NoError(t, SendFragments(context.Background(), send, NewHeader(TypeSync, 1), nil))
	require.Len(t, got, 1, "empty payload still sends one frame")
	assert.Equal(t, uint16(0), got[0].Header.Length)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, SendFragments(ctx, send, NewHeader(TypeSync, 1), []byte{1}), context.Canceled)
}
