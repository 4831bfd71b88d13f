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

// Package rawsock carries RaCfg frames over an AF_PACKET socket bound to the
// Ethernet interface facing the NIC.
package rawsock

import (
	"errors"
	"net"

	"github.com/ZaparooProject/go-racfg/internal/frame"
)

// ErrUnsupported is returned on platforms without AF_PACKET
var ErrUnsupported = errors.New("rawsock: raw packet sockets not supported on this platform")

// Config configures the raw socket transport
type Config struct {
	// EtherType is the protocol bound to the socket. Zero selects the RaCfg
	// EtherType.
	EtherType uint16
	// Promiscuous also accepts frames addressed to other stations
	Promiscuous bool
}

func (c Config) etherType() uint16 {
	if c.EtherType == 0 {
		return frame.EtherType
	}
	return c.EtherType
}

// htons converts a host-order EtherType to the network order expected by
// AF_PACKET.
func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

func destination(pkt []byte) (net.HardwareAddr, bool) {
	if len(pkt) < 14 {
		return nil, false
	}
	return net.HardwareAddr(pkt[0:6]), true
}
