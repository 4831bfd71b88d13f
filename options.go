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

package racfg

import (
	"time"

	"github.com/ZaparooProject/go-racfg/heartbeat"
	"github.com/ZaparooProject/go-racfg/upload"
	"github.com/ZaparooProject/go-racfg/vlan"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Default queue capacities
const (
	DefaultWaitQueueSize    = 64
	DefaultTaskQueueSize    = 64
	DefaultBacklogQueueSize = 16
	DefaultCallTimeout      = 3 * time.Second
	DefaultMaxReply         = 64 * 1024
)

// Config holds engine settings. Collaborators left nil get logging or
// kill(2) based defaults.
type Config struct {
	Host      Host
	Persister Persister
	Signals   SignalSender
	Tunnel    TunnelHandler
	// Resetter resets the device during the restart sequence. When nil the
	// transport is used if it supports resets.
	Resetter Resetter
	Metrics  *Metrics
	Retry    *RetryConfig
	Upload   *upload.Config
	Logger   zerolog.Logger

	// VLANLimits sizes the virtual interface families. The zero value reads
	// BssidNum from the upload profile.
	VLANLimits vlan.Limits

	WaitQueueSize     int
	TaskQueueSize     int
	BacklogQueueSize  int
	MaxReply          int
	DefaultTimeout    time.Duration
	HeartbeatInterval time.Duration
	// DropLogRate limits warnings about discarded frames
	DropLogRate  rate.Limit
	DropLogBurst int
	// AdminDown starts the engine with heartbeat recovery suspended
	AdminDown bool
}

// DefaultConfig returns the engine defaults
func DefaultConfig() *Config {
	return &Config{
		Logger:            Logger(),
		Retry:             DefaultRetryConfig(),
		Upload:            upload.DefaultConfig(),
		WaitQueueSize:     DefaultWaitQueueSize,
		TaskQueueSize:     DefaultTaskQueueSize,
		BacklogQueueSize:  DefaultBacklogQueueSize,
		MaxReply:          DefaultMaxReply,
		DefaultTimeout:    DefaultCallTimeout,
		HeartbeatInterval: heartbeat.DefaultInterval,
		DropLogRate:       rate.Every(time.Second),
		DropLogBurst:      5,
	}
}

// Option is a functional option for configuring an Engine
type Option func(*Config) error

// WithQueueSizes sets the wait, task and backlog queue capacities
func WithQueueSizes(wait, task, backlog int) Option {
	return func(c *Config) error {
		if wait < 1 || task < 1 || backlog < 1 {
			return ErrInvalidParameter
		}
		c.WaitQueueSize = wait
		c.TaskQueueSize = task
		c.BacklogQueueSize = backlog
		return nil
	}
}

// WithTimeout sets the default synchronous call timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return ErrInvalidParameter
		}
		c.DefaultTimeout = timeout
		return nil
	}
}

// WithHeartbeatInterval sets the liveness check period
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(c *Config) error {
		if interval <= 0 {
			return ErrInvalidParameter
		}
		c.HeartbeatInterval = interval
		return nil
	}
}

// WithHost sets the network stack collaborator
func WithHost(host Host) Option {
	return func(c *Config) error {
		c.Host = host
		return nil
	}
}

// WithPersister sets where firmware configuration rewrites are stored
func WithPersister(p Persister) Option {
	return func(c *Config) error {
		c.Persister = p
		return nil
	}
}

// WithSignalSender sets how daemon signals are delivered
func WithSignalSender(s SignalSender) Option {
	return func(c *Config) error {
		c.Signals = s
		return nil
	}
}

// WithTunnelHandler sets the receiver of TUNNEL and IGMP_TUNNEL frames
func WithTunnelHandler(h TunnelHandler) Option {
	return func(c *Config) error {
		c.Tunnel = h
		return nil
	}
}

// WithResetter sets the hardware reset used by the restart sequence
func WithResetter(r Resetter) Option {
	return func(c *Config) error {
		c.Resetter = r
		return nil
	}
}

// WithMetrics enables Prometheus metrics
func WithMetrics(m *Metrics) Option {
	return func(c *Config) error {
		c.Metrics = m
		return nil
	}
}

// WithLogger sets the engine logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// WithUpload sets the firmware upload configuration
func WithUpload(cfg *upload.Config) Option {
	return func(c *Config) error {
		if cfg == nil {
			return ErrInvalidParameter
		}
		c.Upload = cfg
		return nil
	}
}

// WithVLANLimits sets the virtual interface family sizes
func WithVLANLimits(limits vlan.Limits) Option {
	return func(c *Config) error {
		c.VLANLimits = limits
		return nil
	}
}

// WithRetryConfig sets the transport send retry policy
func WithRetryConfig(config *RetryConfig) Option {
	return func(c *Config) error {
		if config == nil {
			return ErrInvalidParameter
		}
		c.Retry = config
		return nil
	}
}

// WithMaxRetries sets the maximum number of send attempts
func WithMaxRetries(maxAttempts int) Option {
	return func(c *Config) error {
		if c.Retry == nil {
			c.Retry = DefaultRetryConfig()
		}
		c.Retry.MaxAttempts = maxAttempts
		return nil
	}
}

// WithAdminDown starts the engine administratively down
func WithAdminDown() Option {
	return func(c *Config) error {
		c.AdminDown = true
		return nil
	}
}
