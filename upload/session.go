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
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// Config chunk kinds carried in the status field of BOOT_INITCFG frames
const (
	ConfigProfile int32 = 0
	ConfigEEPROM  int32 = 1
)

var ErrNoFirmware = errors.New("upload: no firmware image configured")

type configPart struct {
	file   *os.File
	name   string
	status int32
}

// session is the state of one upload, from BOOT_NOTIFY to BOOT_STARTUP.
type session struct {
	firmware *os.File
	last     []byte
	buf      []byte
	parts    []configPart
	trailer  Trailer
	part     int
	sent     int64
	count    int
	resends  int
	crc      uint32
	lastSt   int32
	seq      uint16
	lastID   uint16
}

func openSession(config *Config) (*session, error) {
	if config.FirmwarePath == "" {
		return nil, ErrNoFirmware
	}
	s := &session{buf: make([]byte, config.ChunkSize)}

	if config.ProfilePath != "" {
		f, err := os.Open(config.ProfilePath)
		if err != nil {
			return nil, fmt.Errorf("open profile: %w", err)
		}
		s.parts = append(s.parts, configPart{file: f, name: config.ProfilePath, status: ConfigProfile})
	}
	if config.EEPROMPath != "" {
		f, err := os.Open(config.EEPROMPath)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("open eeprom image: %w", err)
		}
		s.parts = append(s.parts, configPart{file: f, name: config.EEPROMPath, status: ConfigEEPROM})
	}

	fw, err := os.Open(config.FirmwarePath)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open firmware: %w", err)
	}
	s.firmware = fw
	info, err := fw.Stat()
	if err != nil {
		s.close()
		return nil, fmt.Errorf("stat firmware: %w", err)
	}
	s.trailer, err = ReadTrailer(fw, info.Size())
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// nextConfig reads the next profile or EEPROM chunk. ok is false once every
// config file is exhausted.
func (s *session) nextConfig() (data []byte, status int32, ok bool, err error) {
	for s.part < len(s.parts) {
		p := &s.parts[s.part]
		n, err := io.ReadFull(p.file, s.buf)
		if n > 0 {
			return s.buf[:n], p.status, true, nil
		}
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, false, fmt.Errorf("read %s: %w", p.name, err)
		}
		s.part++
	}
	return nil, 0, false, nil
}

// nextFirmware reads the next firmware chunk and folds it into the running
// CRC. It returns nil data at end of file.
func (s *session) nextFirmware() ([]byte, error) {
	n, err := io.ReadFull(s.firmware, s.buf)
	if n > 0 {
		s.crc = crc32.Update(s.crc, crc32.IEEETable, s.buf[:n])
		s.sent += int64(n)
		return s.buf[:n], nil
	}
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read firmware: %w", err)
	}
	return nil, nil
}

// nextSequence returns the sequence number of the next chunk of the phase
func (s *session) nextSequence() uint16 {
	seq := uint16(s.count)
	s.count++
	return seq
}

func (s *session) resetSequence() {
	s.count = 0
}

func (s *session) closeConfig() {
	for i := range s.parts {
		if s.parts[i].file != nil {
			_ = s.parts[i].file.Close()
			s.parts[i].file = nil
		}
	}
	s.part = len(s.parts)
}

func (s *session) close() {
	s.closeConfig()
	if s.firmware != nil {
		_ = s.firmware.Close()
		s.firmware = nil
	}
}
