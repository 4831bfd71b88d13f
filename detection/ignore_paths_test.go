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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()

	for _, tt := range getPathIgnoredTests() {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsPathIgnored(tt.path, tt.ignorePaths),
				"IsPathIgnored(%q, %v)", tt.path, tt.ignorePaths)
		})
	}
}

type pathIgnoredTest struct {
	name        string
	path        string
	ignorePaths []string
	expected    bool
}

func getPathIgnoredTests() []pathIgnoredTest {
	basicTests := []pathIgnoredTest{
		{name: "empty ignore list", path: "eth0", ignorePaths: []string{}},
		{name: "empty path", path: "", ignorePaths: []string{"eth0"}},
		{name: "interface name", path: "eth1", ignorePaths: []string{"eth1"}, expected: true},
		{name: "serial port path", path: "/dev/ttyUSB0", ignorePaths: []string{"/dev/ttyUSB0"}, expected: true},
	}

	caseTests := []pathIgnoredTest{
		{name: "case insensitive port", path: "/dev/ttyUSB0", ignorePaths: []string{"/DEV/TTYUSB0"}, expected: true},
		{name: "case insensitive interface", path: "ENP3S0", ignorePaths: []string{"enp3s0"}, expected: true},
	}

	multipleTests := []pathIgnoredTest{
		{name: "no match", path: "eth2", ignorePaths: []string{"eth0"}},
		{name: "multiple with match", path: "eth1", ignorePaths: []string{"eth0", "eth1", "/dev/ttyS0"}, expected: true},
		{name: "multiple no match", path: "eth3", ignorePaths: []string{"eth0", "eth1", "/dev/ttyS0"}},
	}

	specialTests := []pathIgnoredTest{
		{name: "relative components", path: "/dev/../dev/ttyUSB0", ignorePaths: []string{"/dev/ttyUSB0"}, expected: true},
		{name: "empty strings in list", path: "eth0", ignorePaths: []string{"", "eth0", ""}, expected: true},
		{name: "prefix is not a match", path: "eth10", ignorePaths: []string{"eth1"}},
	}

	result := make([]pathIgnoredTest, 0, len(basicTests)+len(caseTests)+len(multipleTests)+len(specialTests))
	result = append(result, basicTests...)
	result = append(result, caseTests...)
	result = append(result, multipleTests...)
	result = append(result, specialTests...)
	return result
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	assert.Nil(t, opts.IgnorePaths)
	assert.False(t, opts.IncludeDown)
	assert.Equal(t, DefaultBlocklist(), opts.blocklist())

	opts.Blocklist = []string{}
	assert.Empty(t, opts.blocklist(), "explicit empty blocklist disables defaults")
}
