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
	"sync"
	"time"

	"github.com/ZaparooProject/go-racfg/internal/frame"
	"github.com/ZaparooProject/go-racfg/internal/queue"
	"github.com/rs/zerolog"
)

// Request is one synchronous call to the firmware.
type Request struct {
	// Payload is the request body; it is fragmented as needed
	Payload []byte
	// Dest receives the reply data. When nil a buffer of Config.MaxReply
	// bytes is allocated.
	Dest []byte
	// Timeout bounds the wait for the reply. Zero uses the engine default.
	Timeout    time.Duration
	Type       CommandType
	CommandID  uint16
	CommandSeq uint16
	DevID      uint16
	DevType    uint16
	Status     int32
}

// Result is the reply to a Request
type Result struct {
	// Data is Dest[:N]
	Data   []byte
	N      int
	Status int32
}

type callKey struct {
	id  uint16
	seq uint16
}

type callOutcome struct {
	err    error
	n      int
	status int32
}

// pendingCall is owned by the gateway lock from registration until the pump
// or the caller removes it.
type pendingCall struct {
	reasm   *Reassembler
	mailbox chan callOutcome
	dest    []byte
	off     int
}

// gateway correlates replies from the wait queue with blocked callers. A
// single pump goroutine consumes the queue and delivers each frame to the
// call registered for its (command id, command seq).
type gateway struct {
	pending map[callKey]*pendingCall
	waitQ   *queue.Queue[Frame]
	send    SendFunc
	metrics *Metrics
	log     zerolog.Logger
	timeout time.Duration
	maxDest int
	mu      sync.Mutex
}

func newGateway(waitQ *queue.Queue[Frame], send SendFunc, cfg *Config) *gateway {
	return &gateway{
		pending: make(map[callKey]*pendingCall),
		waitQ:   waitQ,
		send:    send,
		metrics: cfg.Metrics,
		log:     cfg.Logger.With().Str("component", "gateway").Logger(),
		timeout: cfg.DefaultTimeout,
		maxDest: cfg.MaxReply,
	}
}

// call sends req and blocks until a terminal reply, the deadline, or
// cancellation of either ctx or the engine context.
func (g *gateway) call(ctx, engineCtx context.Context, req *Request) (Result, error) {
	started := time.Now()
	class := req.Type.Class().String()
	res, err := g.doCall(ctx, engineCtx, req)
	g.metrics.callFinished(class, err, time.Since(started))
	return res, err
}

func (g *gateway) doCall(ctx, engineCtx context.Context, req *Request) (Result, error) {
	dest := req.Dest
	if dest == nil {
		dest = make([]byte, g.maxDest)
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = g.timeout
	}

	key := callKey{id: req.CommandID, seq: req.CommandSeq}
	pc := &pendingCall{dest: dest, mailbox: make(chan callOutcome, 1)}
	if err := g.register(key, pc); err != nil {
		return Result{}, err
	}

	h := frame.NewHeader(req.Type.Class(), req.CommandID)
	h.CommandSeq = req.CommandSeq
	h.DevID = req.DevID
	h.DevType = req.DevType
	h.Status = req.Status
	if err := SendFragments(ctx, g.send, h, req.Payload); err != nil {
		g.unregister(key, pc)
		return Result{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	select {
	case out := <-pc.mailbox:
		return finish(dest, out)
	case <-timer.C:
		waitErr = ErrTimeout
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			waitErr = ErrTimeout
		} else {
			waitErr = fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
	case <-engineCtx.Done():
		waitErr = ErrCancelled
	}

	g.unregister(key, pc)
	// The pump may have completed the call between the wakeup and unregister.
	select {
	case out := <-pc.mailbox:
		return finish(dest, out)
	default:
	}
	g.log.Debug().
		Uint16("id", req.CommandID).
		Uint16("seq", req.CommandSeq).
		Err(waitErr).
		Msg("call abandoned")
	return Result{}, waitErr
}

func finish(dest []byte, out callOutcome) (Result, error) {
	res := Result{N: out.n, Status: out.status}
	if out.n <= len(dest) {
		res.Data = dest[:out.n]
	}
	return res, out.err
}

func (g *gateway) register(key callKey, pc *pendingCall) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.pending[key]; busy {
		return fmt.Errorf("%w: id 0x%04X seq %d", ErrCallInFlight, key.id, key.seq)
	}
	g.pending[key] = pc
	return nil
}

func (g *gateway) unregister(key callKey, pc *pendingCall) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending[key] == pc {
		delete(g.pending, key)
	}
}

// inFlight returns the number of registered calls
func (g *gateway) inFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// pump is the single consumer of the wait queue
func (g *gateway) pump(ctx context.Context) error {
	for {
		f, err := g.waitQ.Dequeue(ctx, time.Time{})
		if err != nil {
			if errors.Is(err, queue.ErrCancelled) {
				return nil
			}
			continue
		}
		g.deliver(f)
	}
}

func (g *gateway) deliver(f Frame) {
	key := callKey{id: f.Header.ID, seq: f.Header.CommandSeq}

	g.mu.Lock()
	defer g.mu.Unlock()
	pc, ok := g.pending[key]
	if !ok {
		g.log.Debug().Stringer("header", f.Header).Msg("no pending call for reply, discarding")
		return
	}
	out, done := pc.apply(f)
	if !done {
		return
	}
	delete(g.pending, key)
	pc.mailbox <- out
}

// apply folds one reply frame into the call and reports whether the call is
// complete.
func (pc *pendingCall) apply(f Frame) (callOutcome, bool) {
	h := &f.Header
	switch h.Type.Class() {
	case frame.TypeSync, frame.TypeIoctlStatus:
		if err := pc.copyIn(f.Payload); err != nil {
			return callOutcome{n: pc.off, status: h.Status, err: err}, true
		}
		return callOutcome{n: pc.off, status: h.Status, err: StatusToError(h.Status)}, true

	case frame.TypeCopyToUser:
		if err := pc.copyIn(f.Payload); err != nil {
			return callOutcome{n: pc.off, err: err}, true
		}
		return callOutcome{}, false

	case frame.TypeIwreqStruc:
		pc.off = 0
		err := pc.copyIn(f.Payload)
		return callOutcome{n: pc.off, status: h.Status, err: err}, true

	case frame.TypeIwHandler:
		return pc.applyIwHandler(h, f.Payload)

	default:
		return callOutcome{}, false
	}
}

// applyIwHandler places chunks of a reply whose status carries the total
// length. A negative status is a device error.
func (pc *pendingCall) applyIwHandler(h *Header, payload []byte) (callOutcome, bool) {
	if h.Status < 0 {
		return callOutcome{status: h.Status, err: StatusToError(h.Status)}, true
	}
	total := int(h.Status)
	if pc.reasm == nil {
		if total > len(pc.dest) {
			return callOutcome{status: h.Status, err: fmt.Errorf("%w: reply of %d bytes, buffer %d",
				ErrShortBuffer, total, len(pc.dest))}, true
		}
		pc.reasm = NewReassembler(total, frame.MaxPayload)
	}
	if err := pc.reasm.Place(h.Sequence, payload); err != nil {
		return callOutcome{status: h.Status, err: err}, true
	}
	if !pc.reasm.Complete() {
		return callOutcome{}, false
	}
	n := copy(pc.dest, pc.reasm.Bytes())
	return callOutcome{n: n, status: h.Status}, true
}

func (pc *pendingCall) copyIn(data []byte) error {
	if pc.off+len(data) > len(pc.dest) {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, pc.off+len(data), len(pc.dest))
	}
	pc.off += copy(pc.dest[pc.off:], data)
	return nil
}
