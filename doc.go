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

/*
Package racfg implements the host side of RaCfg, the in-band control protocol
between a network driver and the firmware of a wireless NIC. RaCfg frames
travel as raw Ethernet frames with EtherType 0x2880 and carry a fixed 32-byte
little-endian header.

Features:
  - Request/response correlation for synchronous firmware calls
  - Fragmentation and reassembly of messages larger than one frame
  - Asynchronous event delivery (console, wireless events, signals,
    configuration rewrites)
  - Firmware and profile upload with CRC32 integrity checking
  - Heartbeat-driven restart of an unresponsive device
  - VLAN-tag demultiplexing of virtual interfaces over one link
  - Raw socket and serial transports, GPIO reset, Prometheus metrics

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-racfg"
	    "github.com/ZaparooProject/go-racfg/transport/rawsock"
	    "github.com/ZaparooProject/go-racfg/upload"
	)

	transport, err := rawsock.New("eth1", rawsock.Config{}, racfg.Logger())
	if err != nil {
	    log.Fatal(err)
	}

	up := upload.DefaultConfig()
	up.ProfilePath = "/etc/racfg/profile.dat"
	up.FirmwarePath = "/lib/firmware/racfg.bin"

	engine, err := racfg.New(transport,
	    racfg.WithUpload(up),
	    racfg.WithTimeout(2*time.Second),
	)
	if err != nil {
	    log.Fatal(err)
	}
	if err := engine.Start(ctx); err != nil {
	    log.Fatal(err)
	}
	defer engine.Close()

	// Query interface statistics through the wireless-extension handler
	buf := make([]byte, 4096)
	n, err := engine.IwHandler(ctx, 0x8B1B, 0, 0, nil, buf)

Replies are matched by command id and command sequence. Callers issuing
concurrent requests with the same command id should take sequence numbers
from NextCommandSeq.

Debug output is enabled with SetDebugEnabled or the RACFG_DEBUG environment
variable, and routed through the zerolog logger installed with SetLogger.
*/
package racfg
