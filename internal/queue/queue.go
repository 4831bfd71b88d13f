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

// Package queue provides a fixed-capacity circular work queue with a counting
// semaphore, used for the task, backlog and wait queues.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrFull      = errors.New("queue: full")
	ErrTimeout   = errors.New("queue: timeout")
	ErrCancelled = errors.New("queue: cancelled")
)

// Queue is a bounded FIFO with many producers and a single consumer.
// Enqueue never blocks; Dequeue blocks until an item, the deadline, or
// cancellation.
type Queue[T any] struct {
	items   []T
	sem     chan struct{}
	name    string
	head    int
	tail    int
	count   int
	dropped atomic.Uint64
	mu      sync.Mutex
}

// New creates a queue holding at most capacity items.
func New[T any](name string, capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		name:  name,
		items: make([]T, capacity),
		sem:   make(chan struct{}, capacity),
	}
}

// Name returns the queue name used in logs and metrics
func (q *Queue[T]) Name() string {
	return q.name
}

// Enqueue appends item. A full queue returns ErrFull and is left unchanged.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == len(q.items) {
		q.dropped.Add(1)
		return ErrFull
	}
	q.items[q.tail] = item
	q.tail = (q.tail + 1) % len(q.items)
	q.count++
	// One token per item; the channel has room for every slot so this never blocks.
	q.sem <- struct{}{}
	return nil
}

// TryDequeue pops the oldest item without blocking.
func (q *Queue[T]) TryDequeue() (T, bool) {
	select {
	case <-q.sem:
		return q.pop()
	default:
		var zero T
		return zero, false
	}
}

// Dequeue waits for an item. A zero deadline waits until cancellation.
// Cancellation of ctx yields ErrCancelled; reaching the deadline (or a ctx
// deadline) yields ErrTimeout.
func (q *Queue[T]) Dequeue(ctx context.Context, deadline time.Time) (T, error) {
	var zero T
	var expired <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return zero, ErrTimeout
			}
			return zero, ErrCancelled
		case <-expired:
			return zero, ErrTimeout
		case <-q.sem:
			if item, ok := q.pop(); ok {
				return item, nil
			}
			// Token outlived a Reset; wait for the next one.
		}
	}
}

func (q *Queue[T]) pop() (T, bool) {
	var zero T
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.count--
	return item, true
}

// Reset drops every pending item and semaphore token.
func (q *Queue[T]) Reset() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.count
	var zero T
	for i := range q.items {
		q.items[i] = zero
	}
	q.head, q.tail, q.count = 0, 0, 0
	for {
		select {
		case <-q.sem:
		default:
			return drained
		}
	}
}

// Len returns the number of pending items
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity
func (q *Queue[T]) Cap() int {
	return len(q.items)
}

// Dropped returns how many enqueues failed because the queue was full
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Snapshot returns the pending items oldest first without removing them.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, 0, q.count)
	for i := 0; i < q.count; i++ {
		out = append(out, q.items[(q.head+i)%len(q.items)])
	}
	return out
}
