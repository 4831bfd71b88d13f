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

// Package frame provides the RaCfg wire header codec and protocol constants
package frame

import "fmt"

// Wire constants
const (
	Magic       uint32 = 0x18142880 // Leading magic of every RaCfg header
	EtherType   uint16 = 0x2880     // Reserved EtherType carrying RaCfg frames
	HeaderLen          = 32         // Fixed header size on the wire
	MaxPayload         = 1024       // Maximum payload per physical frame
	EndianLE    uint16 = 0x1234     // Flags value written by a little-endian sender
	EndianBE    uint16 = 0x3412     // Flags value as seen from a big-endian sender
	ResponseBit uint16 = 0x8000
	classMask   uint16 = 0x7FFF
)

// CommandType is the 16-bit command_type field: bit15 marks a response and the
// low 15 bits carry the command class.
type CommandType uint16

// Command classes
const (
	TypeSync        CommandType = 0x0004
	TypeAsync       CommandType = 0x0005
	TypeBootstrap   CommandType = 0x0006
	TypeCopyToUser  CommandType = 0x0007
	TypeIwreqStruc  CommandType = 0x0008
	TypeIoctlStatus CommandType = 0x0009
	TypeIwHandler   CommandType = 0x000A
	TypeTunnel      CommandType = 0x000B
	TypeIgmpTunnel  CommandType = 0x000C
)

// IsResponse reports whether the response flag is set
func (t CommandType) IsResponse() bool {
	return uint16(t)&ResponseBit != 0
}

// Class strips the response flag
func (t CommandType) Class() CommandType {
	return CommandType(uint16(t) & classMask)
}

// Response returns the response-flagged form of the class
func (t CommandType) Response() CommandType {
	return CommandType(uint16(t.Class()) | ResponseBit)
}

func (t CommandType) String() string {
	var name string
	switch t.Class() {
	case TypeSync:
		name = "SYNC"
	case TypeAsync:
		name = "ASYNC"
	case TypeBootstrap:
		name = "BOOTSTRAP"
	case TypeCopyToUser:
		name = "COPY_TO_USER"
	case TypeIwreqStruc:
		name = "IWREQ_STRUC"
	case TypeIoctlStatus:
		name = "IOCTL_STATUS"
	case TypeIwHandler:
		name = "IW_HANDLER"
	case TypeTunnel:
		name = "TUNNEL"
	case TypeIgmpTunnel:
		name = "IGMP_TUNNEL"
	default:
		name = fmt.Sprintf("TYPE(0x%04X)", uint16(t.Class()))
	}
	if t.IsResponse() {
		return name + "|RSP"
	}
	return name
}

// Bootstrap command ids
const (
	BootNotify  uint16 = 0x0001
	BootInitCfg uint16 = 0x0002
	BootUpload  uint16 = 0x0003
	BootStartup uint16 = 0x0004
)

// Async command ids
const (
	AsyncConsole            uint16 = 0x0001
	AsyncWirelessSendEvent  uint16 = 0x0002
	AsyncSendDaemonSignal   uint16 = 0x0003
	AsyncHeartBeat          uint16 = 0x0004
	AsyncWscUpdateCfg       uint16 = 0x0005
	AsyncExtEepromUpdate    uint16 = 0x0006
	AsyncWirelessSendEvent2 uint16 = 0x0007
)

// DevType bit flags naming the virtual-interface family of a frame.
// Zero means the main/MBSS family.
const (
	DevTypeAPCLI      uint16 = 0x0001
	DevTypeWDS        uint16 = 0x0002
	DevTypeMesh       uint16 = 0x0004
	DevTypeConcurrent uint16 = 0x0008
)
