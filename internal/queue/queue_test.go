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

package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEnqueueFullLeavesContentsUnchanged(t *testing.T) {
	t.Parallel()
	q := New[int]("test", 3)

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Enqueue(i))
	}
	before := q.Snapshot()

	err := q.Enqueue(4)
	assert.ErrorIs(t, err, ErrFull)
	assert.Equal(t, before, q.Snapshot())
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, uint64(1), q.Dropped())
}

func TestNeverExceedsCapacity(t *testing.T) {
	t.Parallel()
	q := New[int]("test", 8)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = q.Enqueue(p*1000 + i)
				assert.LessOrEqual(t, q.Len(), q.Cap())
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, 8, q.Len())
	assert.Equal(t, uint64(400-8), q.Dropped())
}

func TestFIFOOrderAcrossWrap(t *testing.T) {
	t.Parallel()
	q := New[int]("test", 2)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(i))
		got, err := q.Dequeue(ctx, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}

	require.NoError(t, q.Enqueue(10))
	require.NoError(t, q.Enqueue(11))
	a, _ := q.TryDequeue()
	b, _ := q.TryDequeue()
	_, ok := q.TryDequeue()
	assert.Equal(t, []int{10, 11}, []int{a, b})
	assert.False(t, ok)
}

func TestDequeueTimeout(t *testing.T) {
	t.Parallel()
	q := New[string]("test", 1)

	start := time.Now()
	_, err := q.Dequeue(context.Background(), time.Now().Add(30*time.Millisecond))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestDequeueCancelled(t *testing.T) {
	t.Parallel()
	q := New[string]("test", 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx, time.Time{})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not observe cancellation")
	}
}

func TestDequeueWakesOnEnqueue(t *testing.T) {
	t.Parallel()
	q := New[int]("test", 4)

	done := make(chan int, 1)
	go func() {
		v, err := q.Dequeue(context.Background(), time.Now().Add(time.Second))
		if err == nil {
			done <- v
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Enqueue(99))
	assert.Equal(t, 99, <-done)
}

func TestResetDrainsItemsAndTokens(t *testing.T) {
	t.Parallel()
	q := New[int]("test", 4)
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Enqueue(i))
	}

	assert.Equal(t, 4, q.Reset())
	assert.Equal(t, 0, q.Len())
	_, ok := q.TryDequeue()
	assert.False(t, ok)

	_, err := q.Dequeue(context.Background(), time.Now().Add(10*time.Millisecond))
	assert.ErrorIs(t, err, ErrTimeout)

	require.NoError(t, q.Enqueue(7))
	v, ok := q.TryDequeue()
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}
