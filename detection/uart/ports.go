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

// Package uart detects USB serial adapters for the UART debug transport.
// Importing it registers the detector.
package uart

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-racfg/detection"
	"go.bug.st/serial/enumerator"
)

// TransportUART is the transport name reported for serial ports
const TransportUART = "uart"

type detector struct {
	list func() ([]*enumerator.PortDetails, error)
}

func init() {
	detection.RegisterDetector(New())
}

// New returns a detector backed by the system port enumerator
func New() detection.Detector {
	return &detector{list: enumerator.GetDetailedPortsList}
}

func (*detector) Transport() string {
	return TransportUART
}

// Detect lists USB serial ports. Ports without USB ids (built-in UARTs) are
// kept; blocked adapters and ignored paths are not.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	blocklist := opts.Blocklist
	if blocklist == nil {
		blocklist = detection.DefaultBlocklist()
	}

	var links []detection.Link
	for _, p := range ports {
		if p == nil || detection.IsPathIgnored(p.Name, opts.IgnorePaths) {
			continue
		}
		l := detection.Link{
			Name:      p.Name,
			Transport: TransportUART,
			Up:        true,
		}
		if p.IsUSB {
			l.VIDPID = strings.ToUpper(p.VID + ":" + p.PID)
			if detection.IsBlocked(l.VIDPID, blocklist) {
				continue
			}
			l.Description = strings.TrimSpace(p.Product + " " + p.SerialNumber)
		}
		links = append(links, l)
	}
	return links, nil
}
