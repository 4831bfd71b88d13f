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

package detection

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVIDPID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "VID:0403 PID:6001", want: "0403:6001"},
		{in: "vendor=10c4 product=ea60", want: "10C4:EA60"},
		{in: "vid=2341 pid=0043", want: "2341:0043"},
		{in: "0403:6001", want: "0403:6001"},
		{in: "eth0"},
		{in: "br-1a2b"},
		{in: "12:34"},
		{in: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseVIDPID(tt.in), "ParseVIDPID(%q)", tt.in)
	}
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		blocklist []string
		want      bool
	}{
		{name: "docker0", blocklist: DefaultBlocklist(), want: true},
		{name: "veth12ab", blocklist: DefaultBlocklist(), want: true},
		{name: "br-5f2c", blocklist: DefaultBlocklist(), want: true},
		{name: "eth0", blocklist: DefaultBlocklist()},
		{name: "enp3s0", blocklist: DefaultBlocklist()},
		{name: "0403:6001", blocklist: []string{"0403:6001"}, want: true},
		{name: "0403:6001", blocklist: []string{"VID:0403 PID:6001"}, want: true},
		{name: "0403:6015", blocklist: []string{"0403:6001"}},
		{name: "eth0", blocklist: []string{"", "  "}},
		{name: "", blocklist: DefaultBlocklist()},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsBlocked(tt.name, tt.blocklist), "IsBlocked(%q, %v)", tt.name, tt.blocklist)
	}
}

func TestFilterInterfaces(t *testing.T) {
	t.Parallel()

	mac := func(last byte) net.HardwareAddr { return net.HardwareAddr{0x02, 0, 0, 0, 0, last} }
	ifaces := []net.Interface{
		{Index: 1, Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
		{Index: 2, Name: "eth1", HardwareAddr: mac(2)},
		{Index: 3, Name: "eth0", HardwareAddr: mac(3), Flags: net.FlagUp},
		{Index: 4, Name: "docker0", HardwareAddr: mac(4), Flags: net.FlagUp},
		{Index: 5, Name: "wwan0", Flags: net.FlagUp},
		{Index: 6, Name: "eth2", HardwareAddr: mac(6), Flags: net.FlagUp},
	}
	driver := func(name string) string { return "drv-" + name }

	links := filterInterfaces(ifaces, &Options{IgnorePaths: []string{"eth2"}}, driver)
	require.Len(t, links, 1)
	assert.Equal(t, "eth0", links[0].Name)
	assert.Equal(t, TransportRawSocket, links[0].Transport)
	assert.Equal(t, "drv-eth0", links[0].Description)
	assert.Equal(t, mac(3), links[0].MAC)

	links = filterInterfaces(ifaces, &Options{IncludeDown: true, Blocklist: []string{}}, nil)
	names := make([]string, 0, len(links))
	for _, l := range links {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"eth0", "docker0", "eth2", "eth1"}, names, "up links first")
	assert.False(t, links[3].Up)
}

type stubDetector struct {
	err   error
	name  string
	links []Link
}

func (s stubDetector) Transport() string { return s.name }

func (s stubDetector) Detect(context.Context, *Options) ([]Link, error) {
	return s.links, s.err
}

func TestDetectAllJoinsErrors(t *testing.T) {
	registryMu.Lock()
	saved := registry
	registry = map[string]Detector{}
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		registry = saved
		registryMu.Unlock()
	})

	_, err := DetectAll(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoLinks)

	boom := errors.New("boom")
	RegisterDetector(stubDetector{name: "b", err: boom})
	RegisterDetector(stubDetector{name: "a", links: []Link{{Name: "eth0", Transport: "a"}}})

	links, err := DetectAll(context.Background(), nil)
	require.ErrorIs(t, err, boom)
	require.Len(t, links, 1)
	assert.Equal(t, "eth0", links[0].Name)
}
