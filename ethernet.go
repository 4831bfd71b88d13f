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
	"bytes"
	"fmt"
	"net"
	"sync"

	"github.com/ZaparooProject/go-racfg/internal/frame"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// EthernetHeaderLen is the size of the MAC header preceding every RaCfg frame
const EthernetHeaderLen = 14

// EtherTypeRaCfg is the EtherType reserved for RaCfg frames
const EtherTypeRaCfg = layers.EthernetType(frame.EtherType)

var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// envelope tracks link addressing. Until the device MAC is learned from
// BOOT_NOTIFY outbound frames use a pseudo header addressed to broadcast.
type envelope struct {
	host   net.HardwareAddr
	device net.HardwareAddr
	mu     sync.RWMutex
}

func newEnvelope(host net.HardwareAddr) *envelope {
	return &envelope{host: append(net.HardwareAddr(nil), host...)}
}

func (e *envelope) hostAddr() net.HardwareAddr {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.host
}

func (e *envelope) deviceAddr() net.HardwareAddr {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.device
}

// learn records the device address. It reports whether the address changed.
func (e *envelope) learn(mac net.HardwareAddr) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if bytes.Equal(e.device, mac) {
		return false
	}
	e.device = append(net.HardwareAddr(nil), mac...)
	return true
}

func (e *envelope) forget() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.device = nil
}

// wrap prepends the MAC header to an encoded RaCfg frame
func (e *envelope) wrap(raw []byte) ([]byte, error) {
	e.mu.RLock()
	dst := e.device
	src := e.host
	e.mu.RUnlock()
	if dst == nil {
		dst = broadcastMAC
	}
	if len(src) != 6 {
		src = make(net.HardwareAddr, 6)
	}

	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{},
		&layers.Ethernet{
			SrcMAC:       src,
			DstMAC:       dst,
			EthernetType: EtherTypeRaCfg,
		},
		gopacket.Payload(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("build ethernet header: %w", err)
	}
	return buf.Bytes(), nil
}

// inbound is a decoded link-layer frame
type inbound struct {
	src     net.HardwareAddr
	dst     net.HardwareAddr
	payload []byte
}

// unwrap decodes the MAC header. ok is false for frames that are not RaCfg.
func unwrap(data []byte) (in inbound, ok bool, err error) {
	eth := &layers.Ethernet{}
	if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return inbound{}, false, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if eth.EthernetType != EtherTypeRaCfg {
		return inbound{}, false, nil
	}
	return inbound{src: eth.SrcMAC, dst: eth.DstMAC, payload: eth.Payload}, true, nil
}

func isBroadcast(mac net.HardwareAddr) bool {
	return bytes.Equal(mac, broadcastMAC)
}
