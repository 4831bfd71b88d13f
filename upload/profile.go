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

package upload

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ZaparooProject/go-racfg/vlan"
)

// ProfileSection is the mandatory first line of a device profile
const ProfileSection = "Default"

var ErrNoDefaultSection = errors.New("upload: profile does not start with Default")

// Profile is a parsed device configuration profile: a Default line followed
// by key=value lines.
type Profile struct {
	values map[string]string
	keys   []string
}

// ParseProfile reads a profile. Blank lines and lines starting with '#' are
// skipped. Later keys override earlier ones.
func ParseProfile(r io.Reader) (*Profile, error) {
	p := &Profile{values: make(map[string]string)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 64*1024)

	seenSection := false
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimRight(sc.Text(), "\x00"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seenSection {
			if line != ProfileSection {
				return nil, fmt.Errorf("%w (line %d: %q)", ErrNoDefaultSection, lineNo, line)
			}
			seenSection = true
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("upload: profile line %d: missing '='", lineNo)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("upload: profile line %d: empty key", lineNo)
		}
		if _, dup := p.values[key]; !dup {
			p.keys = append(p.keys, key)
		}
		p.values[key] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if !seenSection {
		return nil, ErrNoDefaultSection
	}
	return p, nil
}

// LoadProfile parses the profile at path
func LoadProfile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profile: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseProfile(f)
}

// Get returns a raw value
func (p *Profile) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Int returns an integer value, or def when missing or malformed
func (p *Profile) Int(key string, def int) int {
	v, ok := p.values[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Keys returns the keys in file order
func (p *Profile) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// VLANLimits returns the number of virtual interfaces per family. MBSS
// follows BssidNum; the other families use fixed sizes.
func (p *Profile) VLANLimits() vlan.Limits {
	limits := vlan.DefaultLimits()
	limits.MBSS = min(max(p.Int("BssidNum", limits.MBSS), 1), vlan.FamilyWidth)
	return limits
}
