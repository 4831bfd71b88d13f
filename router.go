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

	"github.com/ZaparooProject/go-racfg/internal/frame"
)

// Drop reasons reported in logs and metrics
const (
	dropFormat      = "format"
	dropMagic       = "magic"
	dropLoop        = "loop"
	dropUnlearned   = "unlearned"
	dropSource      = "source"
	dropDestination = "destination"
	dropUnexpected  = "unexpected"
	dropTunnel      = "tunnel"
	dropQueueFull   = "queue-full"
)

// receive is the transport callback and the only producer of the queues.
func (e *Engine) receive(data []byte) {
	in, ok, err := unwrap(data)
	if err != nil {
		e.drop(dropFormat, nil, err)
		return
	}
	if !ok {
		return
	}

	h, payload, err := frame.Decode(in.payload)
	if err != nil {
		e.drop(dropFormat, nil, err)
		return
	}
	if !h.Valid() {
		e.drop(dropMagic, &h, nil)
		return
	}
	if reason := e.filter(&h, in); reason != "" {
		e.drop(reason, &h, nil)
		return
	}

	f := Frame{Header: h, Payload: append([]byte(nil), payload...)}
	e.received.Add(1)
	e.config.Metrics.frameReceived(h.Type.Class().String())
	e.route(f, in)
}

// filter applies the address rules and returns a drop reason, or "".
func (e *Engine) filter(h *Header, in inbound) string {
	host := e.env.hostAddr()
	if len(host) > 0 && bytes.Equal(in.src, host) {
		return dropLoop
	}

	device := e.env.deviceAddr()
	class := h.Type.Class()
	if device == nil {
		if class == frame.TypeBootstrap {
			return ""
		}
		if class == frame.TypeAsync && (h.ID == frame.AsyncConsole || h.ID == frame.AsyncHeartBeat) &&
			e.uploader.State().Startup() {
			return ""
		}
		return dropUnlearned
	}

	// A rebooted device announces itself again, possibly with a new address.
	if class == frame.TypeBootstrap && h.ID == frame.BootNotify {
		return ""
	}
	if !bytes.Equal(in.src, device) {
		return dropSource
	}
	if !isBroadcast(in.dst) && len(host) > 0 && !bytes.Equal(in.dst, host) {
		return dropDestination
	}
	return ""
}

func (e *Engine) route(f Frame, in inbound) {
	h := &f.Header
	switch h.Type.Class() {
	case frame.TypeBootstrap:
		if h.ID == frame.BootNotify && e.env.learn(in.src) {
			e.log.Info().Stringer("mac", in.src).Msg("learned device address")
		}
		// The firmware does not beat while it is being uploaded.
		e.heartbeat.Activity()
		e.enqueueAction(Action{Name: "bootstrap", Fn: e.bootstrapAction, Arg: f})

	case frame.TypeSync, frame.TypeCopyToUser, frame.TypeIwreqStruc, frame.TypeIwHandler, frame.TypeIoctlStatus:
		if !h.IsResponse() {
			e.drop(dropUnexpected, h, nil)
			return
		}
		if err := e.waitQ.Enqueue(f); err != nil {
			e.config.Metrics.queueDrop(e.waitQ.Name())
			e.drop(dropQueueFull, h, err)
		}

	case frame.TypeAsync:
		if !h.IsResponse() {
			e.drop(dropUnexpected, h, nil)
			return
		}
		if h.ID == frame.AsyncHeartBeat {
			e.onHeartbeat()
			return
		}
		if err := e.taskQ.Enqueue(f); err != nil {
			e.config.Metrics.queueDrop(e.taskQ.Name())
			e.drop(dropQueueFull, h, err)
		}

	case frame.TypeTunnel, frame.TypeIgmpTunnel:
		if e.config.Tunnel == nil {
			e.drop(dropTunnel, h, nil)
			return
		}
		e.config.Tunnel(f)

	default:
		e.drop(dropUnexpected, h, nil)
	}
}

func (e *Engine) onHeartbeat() {
	e.heartbeat.Beat()
	e.config.Metrics.heartbeat()
	if e.restartPending.CompareAndSwap(true, false) {
		e.log.Info().Msg("heartbeat resumed, cancelling restart")
		e.enqueueAction(Action{Name: "open", Fn: e.openAction})
	}
}

func (e *Engine) enqueueAction(a Action) {
	if err := e.Submit(a); err != nil {
		e.drop(dropQueueFull, nil, err)
	}
}

// drop counts a discarded frame. Warnings are rate limited.
func (e *Engine) drop(reason string, h *Header, err error) {
	e.dropped.Add(1)
	e.config.Metrics.frameDropped(reason)
	if !e.dropLimiter.Allow() {
		return
	}
	ev := e.log.Warn().Str("reason", reason)
	if h != nil {
		ev = ev.Stringer("header", h)
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("frame dropped")
}
