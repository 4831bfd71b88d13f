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
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	itransport "github.com/ZaparooProject/go-racfg/internal/transport"
)

// ReceiveFunc is invoked by a transport's I/O loop for every inbound
// Ethernet frame. The slice is only valid for the duration of the call.
type ReceiveFunc func(frame []byte)

// Transport is the physical link to the NIC. Send carries a complete
// Ethernet frame; inbound frames are delivered to the registered receiver.
type Transport interface {
	// Send transmits one Ethernet frame
	Send(frame []byte) error

	// SetReceiver registers the inbound frame callback
	SetReceiver(fn ReceiveFunc)

	// HardwareAddr returns the host-side MAC address of the link
	HardwareAddr() net.HardwareAddr

	// Close closes the transport connection
	Close() error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportRawSocket represents an AF_PACKET raw Ethernet socket.
	TransportRawSocket TransportType = "rawsock"
	// TransportSerial represents a KISS-framed serial debug link.
	TransportSerial TransportType = "serial"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportCapability represents specific capabilities or behaviors of a transport
type TransportCapability string

const (
	// CapabilityReset indicates the transport can reinitialize the link and
	// the hardware behind it (see Resetter)
	CapabilityReset TransportCapability = "reset"

	// CapabilityLoopback indicates the link echoes our own transmissions back
	// to the receiver, so the anti-loop filter must stay enabled
	CapabilityLoopback TransportCapability = "loopback"
)

// TransportCapabilityChecker defines an interface for querying transport capabilities
type TransportCapabilityChecker interface {
	// HasCapability returns true if the transport has the specified capability
	HasCapability(capability TransportCapability) bool
}

// Resetter reinitializes the link and the hardware behind it. It is used by
// the upload restart sequence.
type Resetter interface {
	Reset(ctx context.Context) error
}

// RetryConfig configures retry behavior for transport sends
type RetryConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryConfig returns the default send retry policy
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		Backoff:     5 * time.Millisecond,
	}
}

// TransportWithRetry wraps a Transport with retry capabilities
type TransportWithRetry struct {
	Transport
	config *RetryConfig
}

// NewTransportWithRetry creates a new transport wrapper with retry logic
func NewTransportWithRetry(transport Transport, config *RetryConfig) *TransportWithRetry {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &TransportWithRetry{
		Transport: transport,
		config:    config,
	}
}

// Send transmits with retry on transient failures
func (t *TransportWithRetry) Send(frame []byte) error {
	retries := t.config.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	var lastErr error
	_, err := itransport.WithRetry(itransport.RetryConfig{
		Description: "send",
		MaxRetries:  retries,
		RetryDelay:  t.config.Backoff,
	}, func() (struct{}, bool, error) {
		err := t.Transport.Send(frame)
		if err == nil {
			return struct{}{}, false, nil
		}
		if !IsRetryable(err) {
			return struct{}{}, false, err
		}
		lastErr = err
		debugf("send failed, retrying: %v", err)
		return struct{}{}, true, nil
	})
	if errors.Is(err, itransport.ErrRetriesExhausted) && lastErr != nil {
		return fmt.Errorf("send failed after %d attempts: %w", retries+1, lastErr)
	}
	return err
}

// HasCapability forwards capability checking to the underlying transport
func (t *TransportWithRetry) HasCapability(capability TransportCapability) bool {
	if capChecker, ok := t.Transport.(TransportCapabilityChecker); ok {
		return capChecker.HasCapability(capability)
	}
	return false
}

// Reset forwards to the underlying transport when it supports resets
func (t *TransportWithRetry) Reset(ctx context.Context) error {
	if r, ok := t.Transport.(Resetter); ok {
		return r.Reset(ctx)
	}
	return nil
}

// SetRetryConfig updates the retry configuration
func (t *TransportWithRetry) SetRetryConfig(config *RetryConfig) {
	t.config = config
}
