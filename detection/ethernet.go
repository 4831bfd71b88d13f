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
	"net"
	"os"
	"path/filepath"
)

// TransportRawSocket is the transport name reported for Ethernet interfaces
const TransportRawSocket = "rawsock"

type ethernetDetector struct{}

func init() {
	RegisterDetector(ethernetDetector{})
}

func (ethernetDetector) Transport() string {
	return TransportRawSocket
}

func (ethernetDetector) Detect(ctx context.Context, opts *Options) ([]Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	return filterInterfaces(ifaces, opts, kernelDriver), nil
}

// filterInterfaces keeps Ethernet interfaces that are not loopback, blocked
// or ignored. Links that are up sort first.
func filterInterfaces(ifaces []net.Interface, opts *Options, driver func(string) string) []Link {
	var up, down []Link
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagLoopback != 0 || len(ifi.HardwareAddr) != 6 {
			continue
		}
		if IsBlocked(ifi.Name, opts.blocklist()) || IsPathIgnored(ifi.Name, opts.IgnorePaths) {
			continue
		}
		l := Link{
			Name:      ifi.Name,
			Transport: TransportRawSocket,
			MAC:       ifi.HardwareAddr,
			Up:        ifi.Flags&net.FlagUp != 0,
		}
		if driver != nil {
			l.Description = driver(ifi.Name)
		}
		switch {
		case l.Up:
			up = append(up, l)
		case opts.IncludeDown:
			down = append(down, l)
		}
	}
	return append(up, down...)
}

// kernelDriver reads the driver name from sysfs. It returns "" where sysfs is
// unavailable.
func kernelDriver(name string) string {
	target, err := os.Readlink(filepath.Join("/sys/class/net", name, "device", "driver"))
	if err != nil {
		return ""
	}
	return filepath.Base(target)
}
