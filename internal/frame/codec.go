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

package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrFormat is the root of every malformed-frame error
	ErrFormat          = errors.New("frame: malformed frame")
	ErrShortHeader     = fmt.Errorf("%w: short fixed header", ErrFormat)
	ErrBadMagic        = fmt.Errorf("%w: bad magic", ErrFormat)
	ErrBadLength       = fmt.Errorf("%w: declared length exceeds frame", ErrFormat)
	ErrPayloadTooLarge = errors.New("frame: payload too large")
)

// Header is the fixed 32-byte RaCfg wire header.
type Header struct {
	Magic      uint32
	Type       CommandType
	ID         uint16
	Length     uint16
	Sequence   uint16
	DevID      uint16
	DevType    uint16
	CommandSeq uint16
	Flags      uint16
	Status     int32
	Reserved   [8]byte
}

// Frame is one decoded physical frame.
type Frame struct {
	Header  Header
	Payload []byte
}

// NewHeader returns a header with magic and endianness marker filled in.
func NewHeader(typ CommandType, id uint16) Header {
	return Header{
		Magic: Magic,
		Type:  typ,
		ID:    id,
		Flags: EndianLE,
	}
}

// Valid reports whether the header carries the RaCfg magic
func (h *Header) Valid() bool {
	return h.Magic == Magic
}

// IsResponse reports whether the response flag is set
func (h *Header) IsResponse() bool {
	return h.Type.IsResponse()
}

func (h Header) String() string {
	return fmt.Sprintf("%s id=0x%04X seq=%d cseq=%d len=%d dev=%d/0x%X status=%d",
		h.Type, h.ID, h.Sequence, h.CommandSeq, h.Length, h.DevID, h.DevType, h.Status)
}

// Encode serializes the header followed by payload. The Length field is
// taken from len(payload).
func Encode(h Header, payload []byte) ([]byte, error) {
	return AppendEncode(make([]byte, 0, HeaderLen+len(payload)), h, payload)
}

// AppendEncode appends the encoded frame to dst.
func AppendEncode(dst []byte, h Header, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayload)
	}
	h.Length = uint16(len(payload))

	var hb [HeaderLen]byte
	putHeader(hb[:], &h)
	dst = append(dst, hb[:]...)
	return append(dst, payload...), nil
}

func putHeader(b []byte, h *Header) {
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint16(b[4:6], uint16(h.Type))
	binary.LittleEndian.PutUint16(b[6:8], h.ID)
	binary.LittleEndian.PutUint16(b[8:10], h.Length)
	binary.LittleEndian.PutUint16(b[10:12], h.Sequence)
	binary.LittleEndian.PutUint16(b[12:14], h.DevID)
	binary.LittleEndian.PutUint16(b[14:16], h.DevType)
	binary.LittleEndian.PutUint16(b[16:18], h.CommandSeq)
	binary.LittleEndian.PutUint16(b[18:20], h.Flags)
	binary.LittleEndian.PutUint32(b[20:24], uint32(h.Status))
	copy(b[24:32], h.Reserved[:])
}

// DecodeHeader parses the fixed header from the start of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(b))
	}
	h := Header{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Type:       CommandType(binary.LittleEndian.Uint16(b[4:6])),
		ID:         binary.LittleEndian.Uint16(b[6:8]),
		Length:     binary.LittleEndian.Uint16(b[8:10]),
		Sequence:   binary.LittleEndian.Uint16(b[10:12]),
		DevID:      binary.LittleEndian.Uint16(b[12:14]),
		DevType:    binary.LittleEndian.Uint16(b[14:16]),
		CommandSeq: binary.LittleEndian.Uint16(b[16:18]),
		Flags:      binary.LittleEndian.Uint16(b[18:20]),
		Status:     int32(binary.LittleEndian.Uint32(b[20:24])),
	}
	copy(h.Reserved[:], b[24:32])
	return h, nil
}

// Decode parses a frame. The returned payload aliases b; trailing bytes past
// the declared length (Ethernet padding) are ignored.
func Decode(b []byte) (Header, []byte, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return Header{}, nil, err
	}
	n := int(h.Length)
	if n > MaxPayload || n > len(b)-HeaderLen {
		return Header{}, nil, fmt.Errorf("%w: length %d, have %d", ErrBadLength, n, len(b)-HeaderLen)
	}
	return h, b[HeaderLen : HeaderLen+n], nil
}

// DecodeFrame is Decode returning a Frame that owns a copy of its payload.
func DecodeFrame(b []byte) (Frame, error) {
	h, payload, err := Decode(b)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Header: h, Payload: append([]byte(nil), payload...)}, nil
}
