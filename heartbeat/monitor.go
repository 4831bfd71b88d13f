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

// Package heartbeat watches device liveness. The firmware sends a heartbeat
// frame several times per interval; an interval that ends without a single
// beat triggers recovery.
package heartbeat

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is the liveness check period
const DefaultInterval = 10 * time.Second

// Config configures a Monitor
type Config struct {
	// OnTimeout runs on the monitor goroutine when an interval passes
	// without a beat. It must not block.
	OnTimeout func()
	// Enabled gates timeout detection in addition to the admin state
	// (for example while the upload retry budget is exhausted).
	Enabled  func() bool
	Logger   zerolog.Logger
	Interval time.Duration
}

// DefaultConfig returns a config with the default interval
func DefaultConfig() *Config {
	return &Config{
		Interval: DefaultInterval,
		Logger:   zerolog.Nop(),
	}
}

// Monitor counts beats per interval
type Monitor struct {
	config   *Config
	beats    atomic.Uint32
	total    atomic.Uint64
	timeouts atomic.Uint64
	adminUp  atomic.Bool
	stopped  atomic.Bool
}

// New creates a monitor. It starts administratively down.
func New(config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	return &Monitor{config: config}
}

// Beat records one heartbeat
func (m *Monitor) Beat() {
	m.beats.Add(1)
	m.total.Add(1)
}

// Activity marks the current interval as live without counting a beat.
// Upload traffic from a device that is not yet beating uses it.
func (m *Monitor) Activity() {
	m.beats.Add(1)
}

// SetAdminUp enables or suspends timeout detection
func (m *Monitor) SetAdminUp(up bool) {
	m.adminUp.Store(up)
	if up {
		m.beats.Store(0)
	}
}

// Enabled reports whether an empty interval would trigger recovery
func (m *Monitor) Enabled() bool {
	if m.stopped.Load() || !m.adminUp.Load() {
		return false
	}
	if m.config.Enabled != nil && !m.config.Enabled() {
		return false
	}
	return true
}

// Tick closes the current interval. It reports whether OnTimeout was called.
// The beat counter is reset in all cases.
func (m *Monitor) Tick() bool {
	beats := m.beats.Swap(0)
	if beats != 0 || !m.Enabled() {
		return false
	}
	m.timeouts.Add(1)
	m.config.Logger.Warn().Dur("interval", m.config.Interval).Msg("heartbeat timeout")
	if m.config.OnTimeout != nil {
		m.config.OnTimeout()
	}
	return true
}

// Run ticks every interval until ctx is done
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()
	defer m.stopped.Store(true)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Beats returns the number of beats in the current interval
func (m *Monitor) Beats() uint32 {
	return m.beats.Load()
}

// Total returns the number of beats since creation
func (m *Monitor) Total() uint64 {
	return m.total.Load()
}

// Timeouts returns the number of intervals that ended without a beat
func (m *Monitor) Timeouts() uint64 {
	return m.timeouts.Load()
}

// Interval returns the tick period
func (m *Monitor) Interval() time.Duration {
	return m.config.Interval
}
