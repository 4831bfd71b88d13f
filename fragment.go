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
	"fmt"

	"github.com/ZaparooProject/go-racfg/internal/frame"
)

// ErrBadFragment is returned when a chunk falls outside the declared message
var ErrBadFragment = fmt.Errorf("%w: fragment outside message", ErrFormat)

// Fragment splits payload into physical frames of at most chunk bytes. Every
// frame copies h with its Sequence set to the fragment index. An empty
// payload still produces one frame.
func Fragment(h Header, payload []byte, chunk int) []Frame {
	if chunk <= 0 || chunk > frame.MaxPayload {
		chunk = frame.MaxPayload
	}
	n := (max(len(payload), 1) + chunk - 1) / chunk
	out := make([]Frame, 0, n)
	for i := range n {
		start := i * chunk
		end := min(start+chunk, len(payload))
		fh := h
		fh.Sequence = uint16(i)
		fh.Length = uint16(end - start)
		out = append(out, Frame{Header: fh, Payload: payload[start:end]})
	}
	return out
}

// SendFunc transmits one RaCfg frame
type SendFunc func(ctx context.Context, h Header, payload []byte) error

// SendFragments fragments payload and sends every frame in order
func SendFragments(ctx context.Context, send SendFunc, h Header, payload []byte) error {
	for _, f := range Fragment(h, payload, frame.MaxPayload) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := send(ctx, f.Header, f.Payload); err != nil {
			return fmt.Errorf("send fragment %d: %w", f.Header.Sequence, err)
		}
	}
	return nil
}

// Reassembler rebuilds a logical message from fragments placed by sequence.
type Reassembler struct {
	buf      []byte
	seen     []bool
	chunk    int
	received int
}

// NewReassembler prepares a buffer for a message of total bytes
func NewReassembler(total, chunk int) *Reassembler {
	if chunk <= 0 {
		chunk = frame.MaxPayload
	}
	total = max(total, 0)
	return &Reassembler{
		buf:   make([]byte, total),
		seen:  make([]bool, (total+chunk-1)/chunk),
		chunk: chunk,
	}
}

// Place copies one fragment into position. Duplicates are ignored.
func (r *Reassembler) Place(sequence uint16, data []byte) error {
	off := int(sequence) * r.chunk
	if off+len(data) > len(r.buf) || (len(data) == 0 && len(r.buf) > 0) {
		return fmt.Errorf("%w: sequence %d with %d bytes, total %d",
			ErrBadFragment, sequence, len(data), len(r.buf))
	}
	if len(r.buf) == 0 {
		return nil
	}
	if r.seen[sequence] {
		return nil
	}
	r.seen[sequence] = true
	r.received += copy(r.buf[off:], data)
	return nil
}

// Complete reports whether every byte has arrived
func (r *Reassembler) Complete() bool {
	return r.received >= len(r.buf)
}

// Total returns the declared message length
func (r *Reassembler) Total() int {
	return len(r.buf)
}

// Bytes returns the message buffer
func (r *Reassembler) Bytes() []byte {
	return r.buf
}
