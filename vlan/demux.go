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

package vlan

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	macHeaderLen = 12
	tagLen       = 4
	vidMask      = 0x0FFF
)

// Limits is the number of interfaces available per family
type Limits struct {
	MBSS  int
	WDS   int
	APCLI int
	Mesh  int
}

// DefaultLimits matches a profile with BssidNum=1
func DefaultLimits() Limits {
	return Limits{MBSS: 1, WDS: 4, APCLI: 1, Mesh: 1}
}

// Of returns the limit of family f
func (l Limits) Of(f Family) int {
	n := 0
	switch f {
	case FamilyMBSS:
		n = l.MBSS
	case FamilyWDS:
		n = l.WDS
	case FamilyAPCLI:
		n = l.APCLI
	case FamilyMesh:
		n = l.Mesh
	}
	return min(max(n, 0), FamilyWidth)
}

// Stats are per-interface packet counters
type Stats struct {
	RxPackets uint64
	RxBytes   uint64
	TxPackets uint64
	TxBytes   uint64
}

// Interface is one virtual interface of a family
type Interface struct {
	Family Family
	Index  int
	VID    uint16

	userVLAN  atomic.Uint32
	rxPackets atomic.Uint64
	rxBytes   atomic.Uint64
	txPackets atomic.Uint64
	txBytes   atomic.Uint64
}

// Name returns the conventional interface name, e.g. "wds2".
func (i *Interface) Name() string {
	return fmt.Sprintf("%s%d", i.Family, i.Index)
}

// Stats returns a snapshot of the counters
func (i *Interface) Stats() Stats {
	return Stats{
		RxPackets: i.rxPackets.Load(),
		RxBytes:   i.rxBytes.Load(),
		TxPackets: i.txPackets.Load(),
		TxBytes:   i.txBytes.Load(),
	}
}

// UserVLAN returns the VLAN id restored on receive, 0 if the tag is stripped.
func (i *Interface) UserVLAN() uint16 {
	return uint16(i.userVLAN.Load())
}

type key struct {
	family Family
	index  int
}

// Demux maps frames between virtual interfaces and the tagged physical link.
type Demux struct {
	limits Limits
	ifaces map[key]*Interface
	mu     sync.RWMutex
}

// New builds a demux exposing the interfaces allowed by limits.
func New(limits Limits) *Demux {
	d := &Demux{
		limits: limits,
		ifaces: make(map[key]*Interface),
	}
	for _, f := range Families {
		for idx := range limits.Of(f) {
			vid, err := ID(f, idx)
			if err != nil {
				continue
			}
			d.ifaces[key{f, idx}] = &Interface{Family: f, Index: idx, VID: vid}
		}
	}
	return d
}

// Limits returns the limits the demux was built with
func (d *Demux) Limits() Limits {
	return d.limits
}

// Interface looks up a virtual interface
func (d *Demux) Interface(f Family, index int) (*Interface, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	iface, ok := d.ifaces[key{f, index}]
	return iface, ok
}

// Interfaces returns every exposed interface in VLAN id order.
func (d *Demux) Interfaces() []*Interface {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Interface, 0, len(d.ifaces))
	for _, f := range Families {
		for idx := range FamilyWidth {
			if iface, ok := d.ifaces[key{f, idx}]; ok {
				out = append(out, iface)
			}
		}
	}
	return out
}

func (d *Demux) lookup(f Family, index int) (*Interface, error) {
	if _, err := ID(f, index); err != nil {
		return nil, err
	}
	iface, ok := d.Interface(f, index)
	if !ok {
		return nil, fmt.Errorf("%w: %s%d not enabled", ErrIndexRange, f, index)
	}
	return iface, nil
}

// SetUserVLAN configures the id restored on receive for an interface.
// Zero strips the tag.
func (d *Demux) SetUserVLAN(f Family, index int, vid uint16) error {
	iface, err := d.lookup(f, index)
	if err != nil {
		return err
	}
	if vid > vidMask {
		return fmt.Errorf("vlan: user id %d out of range", vid)
	}
	iface.userVLAN.Store(uint32(vid))
	return nil
}

// Tag marks an outbound frame with the interface's VLAN id. An existing
// 802.1Q tag keeps its priority and CFI bits.
func (d *Demux) Tag(f Family, index int, data []byte) ([]byte, error) {
	iface, err := d.lookup(f, index)
	if err != nil {
		return nil, err
	}

	eth := &layers.Ethernet{}
	if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShortFrame, err)
	}

	var out []byte
	if eth.EthernetType == layers.EthernetTypeDot1Q {
		out = overwriteVID(data, iface.VID)
	} else {
		out, err = splice(eth, iface.VID)
		if err != nil {
			return nil, err
		}
	}

	iface.txPackets.Add(1)
	iface.txBytes.Add(uint64(len(out)))
	return out, nil
}

// Untag resolves the virtual interface of an inbound tagged frame and
// returns the frame as the interface should see it.
func (d *Demux) Untag(data []byte) (*Interface, []byte, error) {
	eth := &layers.Ethernet{}
	if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrShortFrame, err)
	}
	if eth.EthernetType != layers.EthernetTypeDot1Q {
		return nil, nil, ErrNotTagged
	}
	tag := &layers.Dot1Q{}
	if err := tag.DecodeFromBytes(eth.Payload, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrShortFrame, err)
	}

	f, idx, err := Resolve(tag.VLANIdentifier)
	if err != nil {
		return nil, nil, err
	}
	iface, err := d.lookup(f, idx)
	if err != nil {
		return nil, nil, err
	}
	iface.rxPackets.Add(1)
	iface.rxBytes.Add(uint64(len(data)))

	if user := iface.UserVLAN(); user != 0 {
		return iface, overwriteVID(data, user), nil
	}

	out, err := strip(eth, tag)
	if err != nil {
		return nil, nil, err
	}
	return iface, out, nil
}

func overwriteVID(data []byte, vid uint16) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	off := macHeaderLen + 2
	tci := binary.BigEndian.Uint16(out[off:])
	binary.BigEndian.PutUint16(out[off:], tci&^vidMask|vid&vidMask)
	return out
}

func splice(eth *layers.Ethernet, vid uint16) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{},
		&layers.Ethernet{
			SrcMAC:       eth.SrcMAC,
			DstMAC:       eth.DstMAC,
			EthernetType: layers.EthernetTypeDot1Q,
		},
		&layers.Dot1Q{
			VLANIdentifier: vid,
			Type:           eth.EthernetType,
		},
		gopacket.Payload(eth.Payload),
	)
	if err != nil {
		return nil, fmt.Errorf("vlan: splice tag: %w", err)
	}
	return buf.Bytes(), nil
}

func strip(eth *layers.Ethernet, tag *layers.Dot1Q) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{},
		&layers.Ethernet{
			SrcMAC:       eth.SrcMAC,
			DstMAC:       eth.DstMAC,
			EthernetType: tag.Type,
		},
		gopacket.Payload(tag.Payload),
	)
	if err != nil {
		return nil, fmt.Errorf("vlan: strip tag: %w", err)
	}
	return buf.Bytes(), nil
}
