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

// Package gpio drives the NIC reset line through a GPIO pin.
package gpio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ErrPinNotFound is returned when the named pin does not exist
var ErrPinNotFound = errors.New("gpio: pin not found")

// Config describes the reset line
type Config struct {
	Logger zerolog.Logger
	// Pulse is how long the line is held asserted
	Pulse time.Duration
	// Settle is the wait after release before the device is expected to
	// announce itself
	Settle time.Duration
	// ActiveHigh asserts reset by driving the pin high. Most boards use an
	// active-low reset.
	ActiveHigh bool
}

// DefaultConfig returns timings suitable for the reference boards
func DefaultConfig() Config {
	return Config{
		Logger: zerolog.Nop(),
		Pulse:  100 * time.Millisecond,
		Settle: 50 * time.Millisecond,
	}
}

// Resetter pulses a GPIO pin to reset the NIC. It implements racfg.Resetter.
type Resetter struct {
	pin    gpio.PinOut
	config Config
}

// Open initializes the periph host drivers and looks up pinName
func Open(pinName string, cfg Config) (*Resetter, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, pinName)
	}
	return New(pin, cfg)
}

// New wraps pin and drives it to the released level
func New(pin gpio.PinOut, cfg Config) (*Resetter, error) {
	r := &Resetter{pin: pin, config: cfg}
	if err := pin.Out(r.released()); err != nil {
		return nil, fmt.Errorf("gpio: release %s: %w", pin, err)
	}
	return r, nil
}

func (r *Resetter) asserted() gpio.Level {
	return gpio.Level(r.config.ActiveHigh)
}

func (r *Resetter) released() gpio.Level {
	return !r.asserted()
}

// Reset asserts the line for Pulse, releases it and waits Settle. The line is
// always released, even when ctx ends early.
func (r *Resetter) Reset(ctx context.Context) error {
	r.config.Logger.Info().Stringer("pin", r.pin).Msg("pulsing reset line")
	if err := r.pin.Out(r.asserted()); err != nil {
		return fmt.Errorf("gpio: assert %s: %w", r.pin, err)
	}
	waitErr := sleep(ctx, r.config.Pulse)
	if err := r.pin.Out(r.released()); err != nil {
		return fmt.Errorf("gpio: release %s: %w", r.pin, err)
	}
	if waitErr != nil {
		return waitErr
	}
	return sleep(ctx, r.config.Settle)
}

// String names the pin
func (r *Resetter) String() string {
	return r.pin.String()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
