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
	"encoding/binary"
	"errors"
	"time"

	"github.com/ZaparooProject/go-racfg/internal/frame"
	"github.com/ZaparooProject/go-racfg/internal/queue"
	"github.com/ZaparooProject/go-racfg/vlan"
)

// maxRewrite bounds a WSC or EEPROM rewrite assembled from async chunks
const maxRewrite = 1 << 20

// rewrite assembles a configuration blob pushed by the firmware
type rewrite struct {
	buf  []byte
	next uint16
	// last is the sequence of the most recently acknowledged chunk
	last  uint16
	acked bool
}

// taskWorker is the single consumer of the task queue. Items still queued at
// shutdown are handled before it returns.
func (e *Engine) taskWorker(ctx context.Context) error {
	for {
		f, err := e.taskQ.Dequeue(ctx, time.Time{})
		if err != nil {
			if errors.Is(err, queue.ErrCancelled) {
				e.drainTasks(context.WithoutCancel(ctx))
				return nil
			}
			continue
		}
		e.handleTask(ctx, f)
	}
}

func (e *Engine) drainTasks(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	for {
		f, ok := e.taskQ.TryDequeue()
		if !ok {
			return
		}
		e.handleTask(ctx, f)
	}
}

func (e *Engine) handleTask(ctx context.Context, f Frame) {
	switch f.Header.ID {
	case frame.AsyncConsole:
		e.handleConsole(f)
	case frame.AsyncWscUpdateCfg:
		e.handleRewrite(ctx, PersistWSC, f)
	case frame.AsyncExtEepromUpdate:
		e.handleRewrite(ctx, PersistEEPROM, f)
	case frame.AsyncWirelessSendEvent, frame.AsyncWirelessSendEvent2:
		e.handleWirelessEvent(f)
	case frame.AsyncSendDaemonSignal:
		e.handleDaemonSignal(f)
	default:
		e.log.Debug().Stringer("header", f.Header).Msg("unhandled async command")
	}
}

func (e *Engine) handleConsole(f Frame) {
	msg := f.Payload
	if i := bytes.IndexByte(msg, 0); i >= 0 {
		msg = msg[:i]
	}
	e.log.Info().Str("component", "console").Msg(string(bytes.TrimRight(msg, "\r\n")))
}

func (e *Engine) handleRewrite(ctx context.Context, kind PersistKind, f Frame) {
	h := f.Header
	r := e.rewrites[h.ID]
	if r == nil {
		r = &rewrite{}
		e.rewrites[h.ID] = r
	}
	if h.Sequence == 0 {
		r.buf = r.buf[:0]
		r.next = 0
	} else if r.acked && h.Sequence == r.last {
		// Retransmission after a lost ack: answer again, keep the data once.
		e.ackRewrite(ctx, kind, h, f.Payload)
		return
	}
	if h.Sequence != r.next {
		e.log.Warn().
			Stringer("kind", kind).
			Uint16("sequence", h.Sequence).
			Uint16("expected", r.next).
			Msg("out of order rewrite chunk dropped")
		return
	}
	if len(r.buf)+len(f.Payload) > maxRewrite {
		e.log.Error().Stringer("kind", kind).Msg("rewrite too large, discarding")
		r.buf = r.buf[:0]
		r.next = 0
		r.acked = false
		return
	}
	r.buf = append(r.buf, f.Payload...)
	r.next++
	r.last = h.Sequence
	r.acked = true
	e.ackRewrite(ctx, kind, h, f.Payload)

	if len(f.Payload) >= frame.MaxPayload {
		return
	}
	data := append([]byte(nil), r.buf...)
	r.buf = r.buf[:0]
	r.next = 0
	if err := e.persister.Persist(kind, data); err != nil {
		e.log.Error().Err(err).Stringer("kind", kind).Msg("persist rewrite")
		return
	}
	e.log.Info().Stringer("kind", kind).Int("bytes", len(data)).Msg("configuration rewritten")
}

// ackRewrite echoes a rewrite chunk back to the firmware
func (e *Engine) ackRewrite(ctx context.Context, kind PersistKind, h Header, payload []byte) {
	ack := frame.NewHeader(frame.TypeAsync, h.ID)
	ack.Sequence = h.Sequence
	ack.CommandSeq = h.CommandSeq
	ack.DevID = h.DevID
	ack.DevType = h.DevType
	if err := e.sendFrame(ctx, ack, payload); err != nil {
		e.log.Warn().Err(err).Stringer("kind", kind).Msg("rewrite ack failed")
	}
}

func (e *Engine) handleWirelessEvent(f Frame) {
	if len(f.Payload) < 4 {
		e.log.Warn().Int("len", len(f.Payload)).Msg("short wireless event")
		return
	}
	ev := WirelessEvent{
		Family: vlan.FamilyFromDevType(f.Header.DevType),
		Index:  int(f.Header.DevID),
		Event:  binary.LittleEndian.Uint16(f.Payload[0:2]),
		Flags:  binary.LittleEndian.Uint16(f.Payload[2:4]),
		Data:   f.Payload[4:],
	}
	e.host.WirelessEvent(ev)
	if ev.Flags&EventFlagAssoc != 0 {
		e.host.SetCarrier(ev.Family, ev.Index, true)
	}
	if ev.Flags&EventFlagDisassoc != 0 {
		e.host.SetCarrier(ev.Family, ev.Index, false)
	}
}

func (e *Engine) handleDaemonSignal(f Frame) {
	if len(f.Payload) < 4 {
		e.log.Warn().Int("len", len(f.Payload)).Msg("short daemon signal")
		return
	}
	id := binary.LittleEndian.Uint32(f.Payload[0:4])
	sig, ok := daemonSignal(id)
	if !ok {
		e.log.Warn().Uint32("signal", id).Msg("unknown daemon signal")
		return
	}
	pid := int(f.Header.Status)
	if err := e.signals.Signal(pid, sig); err != nil {
		e.log.Warn().Err(err).Int("pid", pid).Stringer("signal", sig).Msg("deliver daemon signal")
	}
}
