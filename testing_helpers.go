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
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// MockTransport is an in-memory link for tests. Sent frames are recorded and
// may be answered through ResponseFunc; Send can be blocked on demand to
// exercise cancellation.
type MockTransport struct {
	receiver     ReceiveFunc
	blockChan    chan struct{}
	ResponseFunc func(frame []byte) [][]byte
	SendErr      error
	mac          net.HardwareAddr
	sent         [][]byte
	resets       atomic.Int32
	mu           sync.Mutex
	blocking     bool
	closed       bool
}

// NewMockTransport creates a mock link with the given host MAC
func NewMockTransport(mac net.HardwareAddr) *MockTransport {
	return &MockTransport{
		mac:       append(net.HardwareAddr(nil), mac...),
		blockChan: make(chan struct{}),
	}
}

// Send records the frame and delivers any scripted responses
func (m *MockTransport) Send(frame []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrTransportClosed
	}
	blocking := m.blocking
	blockChan := m.blockChan
	m.mu.Unlock()

	if blocking {
		select {
		case <-blockChan:
		case <-time.After(5 * time.Second):
			return NewTransportError("send", "mock", ErrTimeout, ErrorTypeTimeout)
		}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrTransportClosed
	}
	if m.SendErr != nil {
		err := m.SendErr
		m.mu.Unlock()
		return err
	}
	m.sent = append(m.sent, append([]byte(nil), frame...))
	respond := m.ResponseFunc
	m.mu.Unlock()

	if respond != nil {
		for _, r := range respond(frame) {
			m.Deliver(r)
		}
	}
	return nil
}

// Deliver injects an inbound frame as if received from the link
func (m *MockTransport) Deliver(frame []byte) {
	m.mu.Lock()
	fn := m.receiver
	m.mu.Unlock()
	if fn != nil {
		fn(frame)
	}
}

// SetReceiver registers the inbound frame callback
func (m *MockTransport) SetReceiver(fn ReceiveFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiver = fn
}

// SetResponseFunc scripts replies to sent frames
func (m *MockTransport) SetResponseFunc(fn func(frame []byte) [][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResponseFunc = fn
}

// SetSendError makes every Send fail with err
func (m *MockTransport) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendErr = err
}

// SetBlocking makes Send wait for Unblock
func (m *MockTransport) SetBlocking(blocking bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocking = blocking
}

// Unblock allows blocked Sends to proceed
func (m *MockTransport) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		close(m.blockChan)
		m.blockChan = make(chan struct{})
	}
}

// Sent returns a copy of every frame sent so far
func (m *MockTransport) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

// HardwareAddr returns the host MAC
func (m *MockTransport) HardwareAddr() net.HardwareAddr {
	return m.mac
}

// Reset counts hardware resets
func (m *MockTransport) Reset(_ context.Context) error {
	m.resets.Add(1)
	return nil
}

// Resets returns the number of Reset calls
func (m *MockTransport) Resets() int {
	return int(m.resets.Load())
}

// HasCapability reports reset support
func (*MockTransport) HasCapability(capability TransportCapability) bool {
	return capability == CapabilityReset
}

// Close unblocks all operations and marks the transport closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.blockChan)
	}
	return nil
}

// IsConnected reports whether Close has not been called
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}
