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

// Package detection finds links a RaCfg engine can run over: Ethernet
// interfaces for the raw socket transport and USB serial ports for the UART
// debug transport.
package detection

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
)

// ErrNoLinks is returned when detection finds no usable link
var ErrNoLinks = errors.New("detection: no usable links found")

// Link describes one detected candidate
type Link struct {
	// Name is the interface name or serial port path
	Name string
	// Transport is "rawsock" or "uart"
	Transport string
	// MAC is the interface address; empty for serial ports
	MAC net.HardwareAddr
	// VIDPID identifies USB serial adapters as VID:PID
	VIDPID string
	// Description is free-form detail such as the kernel driver or USB product
	Description string
	// Up reports the administrative link state
	Up bool
}

// Options tunes detection
type Options struct {
	// IgnorePaths lists interface names or port paths to skip
	IgnorePaths []string
	// Blocklist lists interface name prefixes and USB VID:PID pairs to skip.
	// Nil selects DefaultBlocklist.
	Blocklist []string
	// IncludeDown keeps interfaces that are administratively down
	IncludeDown bool
}

// DefaultOptions returns options that skip virtual interfaces and down links
func DefaultOptions() Options {
	return Options{}
}

func (o *Options) blocklist() []string {
	if o.Blocklist == nil {
		return DefaultBlocklist()
	}
	return o.Blocklist
}

// Detector finds links for one transport
type Detector interface {
	Transport() string
	Detect(ctx context.Context, opts *Options) ([]Link, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Detector{}
)

// RegisterDetector makes a detector available to DetectAll
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Transport()] = d
}

// Detectors returns the registered detectors ordered by transport name
func Detectors() []Detector {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Detector, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Transport() < out[j].Transport() })
	return out
}

// DetectAll runs every registered detector. A failing detector does not hide
// the results of the others; its error is returned alongside them.
func DetectAll(ctx context.Context, opts *Options) ([]Link, error) {
	if opts == nil {
		o := DefaultOptions()
		opts = &o
	}
	var links []Link
	var errs []error
	for _, d := range Detectors() {
		found, err := d.Detect(ctx, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Transport(), err))
		}
		links = append(links, found...)
	}
	if len(links) == 0 && len(errs) == 0 {
		return nil, ErrNoLinks
	}
	return links, errors.Join(errs...)
}
