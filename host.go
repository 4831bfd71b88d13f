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
	"os"
	"path/filepath"
	"syscall"

	"github.com/ZaparooProject/go-racfg/vlan"
	"github.com/rs/zerolog"
)

// WirelessEvent is a wireless-extension event raised by the firmware for one
// virtual interface.
type WirelessEvent struct {
	Data   []byte
	Family vlan.Family
	Index  int
	Event  uint16
	Flags  uint16
}

// Wireless event flags
const (
	EventFlagAssoc    uint16 = 0x0001
	EventFlagDisassoc uint16 = 0x0002
)

// Host is the network stack side of the engine: it receives wireless events,
// carrier changes and reopen requests for the virtual interfaces.
type Host interface {
	WirelessEvent(ev WirelessEvent)
	SetCarrier(f vlan.Family, index int, up bool)
	Reopen(ctx context.Context, f vlan.Family) error
}

// PersistKind names a configuration blob rewritten by the firmware
type PersistKind int

const (
	PersistWSC PersistKind = iota
	PersistEEPROM
)

func (k PersistKind) String() string {
	switch k {
	case PersistWSC:
		return "wsc"
	case PersistEEPROM:
		return "eeprom"
	default:
		return fmt.Sprintf("persist(%d)", int(k))
	}
}

// Persister stores configuration rewritten by the firmware
type Persister interface {
	Persist(kind PersistKind, data []byte) error
}

// SignalSender delivers a signal to a host process
type SignalSender interface {
	Signal(pid int, sig syscall.Signal) error
}

// TunnelHandler receives TUNNEL and IGMP_TUNNEL frames. It runs on the
// receive path and must not block.
type TunnelHandler func(f Frame)

// LogHost is a Host that only logs
type LogHost struct {
	Logger zerolog.Logger
}

func (h LogHost) WirelessEvent(ev WirelessEvent) {
	h.Logger.Info().
		Stringer("family", ev.Family).
		Int("index", ev.Index).
		Uint16("event", ev.Event).
		Uint16("flags", ev.Flags).
		Int("len", len(ev.Data)).
		Msg("wireless event")
}

func (h LogHost) SetCarrier(f vlan.Family, index int, up bool) {
	h.Logger.Info().Stringer("family", f).Int("index", index).Bool("up", up).Msg("carrier")
}

func (h LogHost) Reopen(_ context.Context, f vlan.Family) error {
	h.Logger.Info().Stringer("family", f).Msg("reopen")
	return nil
}

// FilePersister writes each blob to its configured path. Writes go through a
// temporary file in the same directory and a rename.
type FilePersister struct {
	WSCPath    string
	EEPROMPath string
}

func (p FilePersister) Persist(kind PersistKind, data []byte) error {
	path := p.WSCPath
	if kind == PersistEEPROM {
		path = p.EEPROMPath
	}
	if path == "" {
		return fmt.Errorf("%w: no path for %s", ErrInvalidParameter, kind)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
