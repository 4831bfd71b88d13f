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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-racfg/internal/queue"
)

// Action is a maintenance callback run serially by the backlog worker
type Action struct {
	Fn   func(ctx context.Context, arg any)
	Arg  any
	Name string
}

// Submit queues an action for the backlog worker. It never blocks.
func (e *Engine) Submit(a Action) error {
	if a.Fn == nil {
		return fmt.Errorf("%w: action %q has no function", ErrInvalidParameter, a.Name)
	}
	if err := e.backlogQ.Enqueue(a); err != nil {
		e.config.Metrics.queueDrop(e.backlogQ.Name())
		e.log.Warn().Str("action", a.Name).Msg("backlog queue full, dropping action")
		return fmt.Errorf("%w: action %s", ErrQueueFull, a.Name)
	}
	return nil
}

// backlogWorker is the single consumer of the backlog queue. Pending actions
// are abandoned on shutdown.
func (e *Engine) backlogWorker(ctx context.Context) error {
	for {
		a, err := e.backlogQ.Dequeue(ctx, time.Time{})
		if err != nil {
			if errors.Is(err, queue.ErrCancelled) {
				if n := e.backlogQ.Reset(); n > 0 {
					debugf("backlog: abandoned %d actions on shutdown", n)
				}
				return nil
			}
			continue
		}
		e.runAction(ctx, a)
	}
}

func (e *Engine) runAction(ctx context.Context, a Action) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Str("action", a.Name).Interface("panic", r).Msg("backlog action panicked")
		}
	}()
	debugf("backlog: running %s", a.Name)
	a.Fn(ctx, a.Arg)
}
