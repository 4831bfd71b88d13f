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

// Package vlan multiplexes the firmware's logical virtual interfaces over one
// physical link using synthetic 802.1Q tags.
//
// Each virtual-interface family owns a fixed range of VLAN ids:
//
//	MBSS   0x01-0x10
//	WDS    0x11-0x20
//	APCLI  0x21-0x30
//	MESH   0x31-0x40
//
// An interface's id is its family base plus index plus one.
package vlan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ZaparooProject/go-racfg/internal/frame"
)

// Family is a virtual-interface family exposed by the firmware
type Family int

const (
	FamilyMBSS Family = iota
	FamilyWDS
	FamilyAPCLI
	FamilyMesh
)

// FamilyWidth is the number of VLAN ids reserved per family
const FamilyWidth = 0x10

// Families lists every family in id order
var Families = []Family{FamilyMBSS, FamilyWDS, FamilyAPCLI, FamilyMesh}

var (
	ErrUnknownFamily = errors.New("vlan: unknown interface family")
	ErrIndexRange    = errors.New("vlan: interface index out of range")
	ErrNotTagged     = errors.New("vlan: frame carries no 802.1Q tag")
	ErrUnknownVLAN   = errors.New("vlan: id outside every family range")
	ErrShortFrame    = errors.New("vlan: frame shorter than MAC header")
)

func (f Family) String() string {
	switch f {
	case FamilyMBSS:
		return "mbss"
	case FamilyWDS:
		return "wds"
	case FamilyAPCLI:
		return "apcli"
	case FamilyMesh:
		return "mesh"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Base returns the id offset of the family
func (f Family) Base() (uint16, error) {
	switch f {
	case FamilyMBSS:
		return 0x00, nil
	case FamilyWDS:
		return 0x10, nil
	case FamilyAPCLI:
		return 0x20, nil
	case FamilyMesh:
		return 0x30, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownFamily, int(f))
	}
}

// DevType returns the frame dev_type flag of the family
func (f Family) DevType() uint16 {
	switch f {
	case FamilyWDS:
		return frame.DevTypeWDS
	case FamilyAPCLI:
		return frame.DevTypeAPCLI
	case FamilyMesh:
		return frame.DevTypeMesh
	default:
		return 0
	}
}

// FamilyFromDevType maps dev_type flags to a family. The concurrent-card
// flag does not affect the family.
func FamilyFromDevType(devType uint16) Family {
	switch {
	case devType&frame.DevTypeAPCLI != 0:
		return FamilyAPCLI
	case devType&frame.DevTypeWDS != 0:
		return FamilyWDS
	case devType&frame.DevTypeMesh != 0:
		return FamilyMesh
	default:
		return FamilyMBSS
	}
}

// ParseName splits an interface name such as "wds2" into family and index.
func ParseName(name string) (Family, int, error) {
	for _, f := range Families {
		prefix := f.String()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		index, err := strconv.Atoi(name[len(prefix):])
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q", ErrUnknownFamily, name)
		}
		if _, err := ID(f, index); err != nil {
			return 0, 0, err
		}
		return f, index, nil
	}
	return 0, 0, fmt.Errorf("%w: %q", ErrUnknownFamily, name)
}

// ID returns the VLAN id of the index-th interface of family f.
func ID(f Family, index int) (uint16, error) {
	base, err := f.Base()
	if err != nil {
		return 0, err
	}
	if index < 0 || index >= FamilyWidth {
		return 0, fmt.Errorf("%w: %s index %d", ErrIndexRange, f, index)
	}
	return base + uint16(index) + 1, nil
}

// Resolve inverts ID.
func Resolve(vid uint16) (Family, int, error) {
	if vid == 0 || vid > uint16(len(Families))*FamilyWidth {
		return 0, 0, fmt.Errorf("%w: %d", ErrUnknownVLAN, vid)
	}
	n := int(vid - 1)
	return Families[n/FamilyWidth], n % FamilyWidth, nil
}
