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

import "github.com/ZaparooProject/go-racfg/internal/frame"

// Wire types re-exported for callers
type (
	// Header is the fixed 32-byte RaCfg header
	Header = frame.Header
	// Frame is a header plus the payload of one physical frame
	Frame = frame.Frame
	// CommandType is the command class with the response flag in bit 15
	CommandType = frame.CommandType
)

// Command classes
const (
	TypeSync        = frame.TypeSync
	TypeAsync       = frame.TypeAsync
	TypeBootstrap   = frame.TypeBootstrap
	TypeCopyToUser  = frame.TypeCopyToUser
	TypeIwreqStruc  = frame.TypeIwreqStruc
	TypeIoctlStatus = frame.TypeIoctlStatus
	TypeIwHandler   = frame.TypeIwHandler
	TypeTunnel      = frame.TypeTunnel
	TypeIgmpTunnel  = frame.TypeIgmpTunnel
)

// Async command ids
const (
	AsyncConsole            = frame.AsyncConsole
	AsyncWirelessSendEvent  = frame.AsyncWirelessSendEvent
	AsyncSendDaemonSignal   = frame.AsyncSendDaemonSignal
	AsyncHeartBeat          = frame.AsyncHeartBeat
	AsyncWscUpdateCfg       = frame.AsyncWscUpdateCfg
	AsyncExtEepromUpdate    = frame.AsyncExtEepromUpdate
	AsyncWirelessSendEvent2 = frame.AsyncWirelessSendEvent2
)

// Bootstrap command ids
const (
	BootNotify  = frame.BootNotify
	BootInitCfg = frame.BootInitCfg
	BootUpload  = frame.BootUpload
	BootStartup = frame.BootStartup
)

// MaxPayload is the largest payload of one physical frame
const MaxPayload = frame.MaxPayload

// NewHeader returns a request header for the given class and command
func NewHeader(typ CommandType, id uint16) Header {
	return frame.NewHeader(typ, id)
}
