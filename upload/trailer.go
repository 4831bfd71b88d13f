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

package upload

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// Firmware image trailer layout, little-endian, appended to the image body.
const (
	TrailerMagic   uint32 = 0x52414346
	TrailerLen            = 36
	versionLen            = 12
	dateLen               = 16
	trailerVersion        = 8
	trailerDate           = trailerVersion + versionLen
)

var (
	ErrBadTrailer = errors.New("upload: bad firmware trailer")
	ErrShortImage = errors.New("upload: image shorter than trailer")
)

// Trailer describes a firmware image
type Trailer struct {
	Version  string
	Date     string
	BodySize int64
	Magic    uint32
	CRC      uint32
	Raw      [TrailerLen]byte
}

// ParseTrailer decodes the last TrailerLen bytes of an image of the given size
func ParseTrailer(raw []byte, size int64) (Trailer, error) {
	if len(raw) != TrailerLen || size < TrailerLen {
		return Trailer{}, ErrShortImage
	}
	t := Trailer{
		Magic:    binary.LittleEndian.Uint32(raw[0:4]),
		CRC:      binary.LittleEndian.Uint32(raw[4:8]),
		Version:  cString(raw[trailerVersion : trailerVersion+versionLen]),
		Date:     cString(raw[trailerDate : trailerDate+dateLen]),
		BodySize: size - TrailerLen,
	}
	copy(t.Raw[:], raw)
	if t.Magic != TrailerMagic {
		return t, fmt.Errorf("%w: magic 0x%08X", ErrBadTrailer, t.Magic)
	}
	return t, nil
}

// ReadTrailer reads and decodes the trailer of an image
func ReadTrailer(r io.ReaderAt, size int64) (Trailer, error) {
	if size < TrailerLen {
		return Trailer{}, ErrShortImage
	}
	raw := make([]byte, TrailerLen)
	if _, err := r.ReadAt(raw, size-TrailerLen); err != nil {
		return Trailer{}, fmt.Errorf("read trailer: %w", err)
	}
	return ParseTrailer(raw, size)
}

// Expected returns the CRC32 of the complete image as sent on the wire:
// the body checksum stored in the trailer extended over the trailer itself.
func (t *Trailer) Expected() uint32 {
	return crc32.Update(t.CRC, crc32.IEEETable, t.Raw[:])
}

// VerifyFile checks the image at path offline. It returns the trailer and
// whether the image checksum matches.
func VerifyFile(path string) (Trailer, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return Trailer{}, false, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return Trailer{}, false, fmt.Errorf("stat image: %w", err)
	}
	t, err := ReadTrailer(f, info.Size())
	if err != nil {
		return t, false, err
	}
	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return t, false, fmt.Errorf("read image: %w", err)
	}
	return t, h.Sum32() == t.Expected(), nil
}

// AppendTrailer builds an image from body with a valid trailer
func AppendTrailer(body []byte, version, date string) []byte {
	raw := make([]byte, TrailerLen)
	binary.LittleEndian.PutUint32(raw[0:4], TrailerMagic)
	binary.LittleEndian.PutUint32(raw[4:8], crc32.ChecksumIEEE(body))
	copy(raw[trailerVersion:trailerVersion+versionLen], version)
	copy(raw[trailerDate:trailerDate+dateLen], date)

	out := make([]byte, 0, len(body)+TrailerLen)
	out = append(out, body...)
	return append(out, raw...)
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
