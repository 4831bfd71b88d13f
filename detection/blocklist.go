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
	"path/filepath"
	"strings"
)

// DefaultBlocklist returns interface name prefixes of virtual links that
// never face a NIC, plus USB adapters known to misbehave when opened.
// Prefix entries match interface names; VID:PID entries (hexadecimal,
// case-insensitive) match serial adapters.
func DefaultBlocklist() []string {
	return []string{
		"docker",
		"veth",
		"br-",
		"virbr",
		"tun",
		"tap",
		"wg",
		"tailscale",
		"zt",
	}
}

// IsBlocked reports whether name (an interface name or a VID:PID) matches
// the blocklist.
func IsBlocked(name string, blocklist []string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	vidpid := ParseVIDPID(name)
	for _, blocked := range blocklist {
		blocked = strings.TrimSpace(blocked)
		if blocked == "" {
			continue
		}
		if vid := ParseVIDPID(blocked); vid != "" {
			if vid == vidpid {
				return true
			}
			continue
		}
		if strings.HasPrefix(name, blocked) {
			return true
		}
	}
	return false
}

// ParseVIDPID extracts VID:PID from common USB descriptor formats:
// "VID:1234 PID:5678", "vendor=1234 product=5678" or "1234:5678". It
// returns "" when descriptor carries no USB id.
func ParseVIDPID(descriptor string) string {
	descriptor = strings.ToUpper(descriptor)

	var vid, pid string
	for _, key := range []string{"VID:", "VENDOR=", "VID="} {
		if idx := strings.Index(descriptor, key); idx >= 0 {
			vid = extractHex(descriptor[idx+len(key):])
			break
		}
	}
	for _, key := range []string{"PID:", "PRODUCT=", "PID="} {
		if idx := strings.Index(descriptor, key); idx >= 0 {
			pid = extractHex(descriptor[idx+len(key):])
			break
		}
	}
	if vid != "" && pid != "" {
		return vid + ":" + pid
	}

	if strings.Count(descriptor, ":") == 1 {
		parts := strings.Split(descriptor, ":")
		if len(parts[0]) == 4 && len(parts[1]) == 4 && isHex(parts[0]) && isHex(parts[1]) {
			return descriptor
		}
	}
	return ""
}

// extractHex returns the first run of hex digits in s
func extractHex(s string) string {
	var result strings.Builder
	for _, r := range s {
		if isHexRune(r) {
			_, _ = result.WriteRune(r)
		} else if result.Len() > 0 {
			break
		}
	}
	return result.String()
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isHexRune(r) {
			return false
		}
	}
	return true
}

func isHexRune(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') || (r >= 'a' && r <= 'f')
}

// IsPathIgnored reports whether an interface name or port path is listed in
// ignorePaths. Paths are cleaned and compared case-insensitively.
func IsPathIgnored(path string, ignorePaths []string) bool {
	if path == "" || len(ignorePaths) == 0 {
		return false
	}
	normalized := normalizedPath(path)
	for _, ignore := range ignorePaths {
		if ignore == "" {
			continue
		}
		if path == ignore || normalized == normalizedPath(ignore) {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
