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

package uart

import (
	"bytes"
	"errors"
)

// KISS framing bytes. Each Ethernet frame travels between two FEND bytes
// after a one-byte command; FEND and FESC inside the frame are escaped.
const (
	fend  = 0xC0
	fesc  = 0xDB
	tfend = 0xDC
	tfesc = 0xDD

	cmdData = 0x00
)

// maxFrame bounds a decoded frame: Ethernet header, 802.1Q tag, RaCfg header
// and a full payload.
const maxFrame = 14 + 4 + 32 + 1024

// ErrFrameTooLong is reported when a frame exceeds maxFrame
var ErrFrameTooLong = errors.New("uart: frame too long")

// Encode wraps one Ethernet frame for the wire
func Encode(frame []byte) []byte {
	out := make([]byte, 0, len(frame)+len(frame)/8+3)
	out = append(out, fend, cmdData)
	for _, b := range frame {
		switch b {
		case fend:
			out = append(out, fesc, tfend)
		case fesc:
			out = append(out, fesc, tfesc)
		default:
			out = append(out, b)
		}
	}
	return append(out, fend)
}

// Decoder reassembles frames from an arbitrary split of the byte stream.
type Decoder struct {
	buf     bytes.Buffer
	inFrame bool
	escaped bool
	dropped int
}

// Feed consumes data and returns every frame completed by it. The returned
// slices are owned by the caller.
func (d *Decoder) Feed(data []byte) [][]byte {
	var frames [][]byte
	for _, b := range data {
		if b == fend {
			if f, ok := d.finish(); ok {
				frames = append(frames, f)
			}
			d.inFrame = true
			continue
		}
		if !d.inFrame {
			continue
		}
		if d.escaped {
			d.escaped = false
			switch b {
			case tfend:
				b = fend
			case tfesc:
				b = fesc
			default:
				// Protocol violation; drop the frame and resync on the next FEND.
				d.abort()
				continue
			}
		} else if b == fesc {
			d.escaped = true
			continue
		}
		if d.buf.Len() > maxFrame {
			d.abort()
			continue
		}
		d.buf.WriteByte(b)
	}
	return frames
}

// Dropped returns the number of frames discarded for bad escapes, unknown
// commands or excess length.
func (d *Decoder) Dropped() int {
	return d.dropped
}

func (d *Decoder) finish() ([]byte, bool) {
	defer d.buf.Reset()
	d.escaped = false
	if !d.inFrame || d.buf.Len() == 0 {
		return nil, false
	}
	raw := d.buf.Bytes()
	if raw[0] != cmdData || len(raw) > maxFrame+1 {
		d.dropped++
		return nil, false
	}
	return append([]byte(nil), raw[1:]...), true
}

func (d *Decoder) abort() {
	d.buf.Reset()
	d.escaped = false
	d.inFrame = false
	d.dropped++
}
