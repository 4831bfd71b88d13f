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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullLimits() Limits {
	return Limits{MBSS: FamilyWidth, WDS: FamilyWidth, APCLI: FamilyWidth, Mesh: FamilyWidth}
}

func testFrame(t *testing.T, payloadLen int) []byte {
	t.Helper()
	data := make([]byte, 14+payloadLen)
	copy(data[0:6], []byte{0x00, 0x0c, 0x43, 0x11, 0x22, 0x33})
	copy(data[6:12], []byte{0x02, 0x00, 0x00, 0xaa, 0xbb, 0xcc})
	binary.BigEndian.PutUint16(data[12:14], 0x0800)
	for i := 14; i < len(data); i++ {
		data[i] = byte(i)
	}
	return data
}

func TestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		family Family
		index  int
		want   uint16
	}{
		{"first mbss", FamilyMBSS, 0, 0x01},
		{"last mbss", FamilyMBSS, 15, 0x10},
		{"first wds", FamilyWDS, 0, 0x11},
		{"apcli", FamilyAPCLI, 0, 0x21},
		{"last mesh", FamilyMesh, 15, 0x40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			vid, err := ID(tt.family, tt.index)
			require.NoError(t, err)
			assert.Equal(t, tt.want, vid)

			f, idx, err := Resolve(vid)
			require.NoError(t, err)
			assert.Equal(t, tt.family, f)
			assert.Equal(t, tt.index, idx)
		})
	}
}

func TestIDErrors(t *testing.T) {
	t.Parallel()

	_, err := ID(FamilyWDS, FamilyWidth)
	require.ErrorIs(t, err, ErrIndexRange)
	_, err = ID(Family(9), 0)
	require.ErrorIs(t, err, ErrUnknownFamily)
	_, _, err = Resolve(0)
	require.ErrorIs(t, err, ErrUnknownVLAN)
	_, _, err = Resolve(0x41)
	require.ErrorIs(t, err, ErrUnknownVLAN)
}

func TestTagUntagRoundTrip(t *testing.T) {
	t.Parallel()

	d := New(fullLimits())
	orig := testFrame(t, 64)

	for _, f := range Families {
		for idx := range FamilyWidth {
			tagged, err := d.Tag(f, idx, orig)
			require.NoError(t, err)
			require.Len(t, tagged, len(orig)+tagLen)

			vid := binary.BigEndian.Uint16(tagged[14:16]) & vidMask
			want, _ := ID(f, idx)
			assert.Equal(t, want, vid)

			iface, untagged, err := d.Untag(tagged)
			require.NoError(t, err)
			assert.Equal(t, f, iface.Family)
			assert.Equal(t, idx, iface.Index)
			assert.Equal(t, orig, untagged, "%s%d", f, idx)
		}
	}
}

func TestTagPreservesPriority(t *testing.T) {
	t.Parallel()

	d := New(DefaultLimits())
	tagged, err := d.Tag(FamilyMBSS, 0, testFrame(t, 64))
	require.NoError(t, err)

	// PCP 5, CFI set, VID 0x123
	binary.BigEndian.PutUint16(tagged[14:16], 5<<13|1<<12|0x123)

	retagged, err := d.Tag(FamilyWDS, 3, tagged)
	require.NoError(t, err)
	require.Len(t, retagged, len(tagged))

	tci := binary.BigEndian.Uint16(retagged[14:16])
	assert.Equal(t, uint16(5), tci>>13)
	assert.Equal(t, uint16(1), tci>>12&1)
	assert.Equal(t, uint16(0x14), tci&vidMask)
	assert.Equal(t, tagged[16:], retagged[16:])
}

func TestUntagRestoresUserVLAN(t *testing.T) {
	t.Parallel()

	d := New(DefaultLimits())
	require.NoError(t, d.SetUserVLAN(FamilyAPCLI, 0, 100))

	tagged, err := d.Tag(FamilyAPCLI, 0, testFrame(t, 64))
	require.NoError(t, err)

	iface, out, err := d.Untag(tagged)
	require.NoError(t, err)
	assert.Equal(t, "apcli0", iface.Name())
	require.Len(t, out, len(tagged))
	assert.Equal(t, uint16(100), binary.BigEndian.Uint16(out[14:16])&vidMask)
}

func TestUntagErrors(t *testing.T) {
	t.Parallel()

	d := New(DefaultLimits())

	_, _, err := d.Untag(testFrame(t, 64))
	require.ErrorIs(t, err, ErrNotTagged)

	_, _, err = d.Untag([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrShortFrame)

	// WDS index 8 is outside the default limit of 4
	full := New(fullLimits())
	tagged, err := full.Tag(FamilyWDS, 8, testFrame(t, 64))
	require.NoError(t, err)
	_, _, err = d.Untag(tagged)
	require.ErrorIs(t, err, ErrIndexRange)
}

func TestStats(t *testing.T) {
	t.Parallel()

	d := New(DefaultLimits())
	orig := testFrame(t, 100)
	tagged, err := d.Tag(FamilyMesh, 0, orig)
	require.NoError(t, err)
	_, _, err = d.Untag(tagged)
	require.NoError(t, err)

	iface, ok := d.Interface(FamilyMesh, 0)
	require.True(t, ok)
	st := iface.Stats()
	assert.Equal(t, uint64(1), st.TxPackets)
	assert.Equal(t, uint64(len(tagged)), st.TxBytes)
	assert.Equal(t, uint64(1), st.RxPackets)
	assert.Equal(t, uint64(len(tagged)), st.RxBytes)
}

func TestFamilyDevType(t *testing.T) {
	t.Parallel()

	for _, f := range Families {
		assert.Equal(t, f, FamilyFromDevType(f.DevType()), f.String())
	}
	assert.Equal(t, FamilyWDS, FamilyFromDevType(FamilyWDS.DevType()|0x8))
}

func TestParseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		family Family
		index  int
		err    error
	}{
		{name: "mbss0", family: FamilyMBSS, index: 0},
		{name: "wds2", family: FamilyWDS, index: 2},
		{name: "apcli15", family: FamilyAPCLI, index: 15},
		{name: "mesh1", family: FamilyMesh, index: 1},
		{name: "wds16", err: ErrIndexRange},
		{name: "wds", err: ErrUnknownFamily},
		{name: "eth0", err: ErrUnknownFamily},
	}
	for _, tt := range tests {
		f, idx, err := ParseName(tt.name)
		if tt.err != nil {
			require.ErrorIs(t, err, tt.err, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.family, f, tt.name)
		assert.Equal(t, tt.index, idx, tt.name)
	}
}

func TestInterfacesOrder(t *testing.T) {
	t.Parallel()

	d := New(Limits{MBSS: 2, WDS: 1})
	ifaces := d.Interfaces()
	require.Len(t, ifaces, 3)
	assert.Equal(t, "mbss0", ifaces[0].Name())
	assert.Equal(t, "mbss1", ifaces[1].Name())
	assert.Equal(t, "wds0", ifaces[2].Name())
}
