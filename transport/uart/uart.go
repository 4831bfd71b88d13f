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

// Package uart carries RaCfg Ethernet frames over a serial debug link using
// KISS framing.
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	racfg "github.com/ZaparooProject/go-racfg"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the debug UART speed of the reference boards
	DefaultBaudRate = 115200

	readTimeout = 100 * time.Millisecond
	resetPulse  = 100 * time.Millisecond
)

// dtrPort is implemented by serial ports that expose the DTR line, which the
// reference boards wire to the NIC reset pin.
type dtrPort interface {
	SetDTR(dtr bool) error
}

// Config configures the serial transport
type Config struct {
	Logger   zerolog.Logger
	MAC      net.HardwareAddr
	BaudRate int
}

// Transport implements racfg.Transport over a serial port
type Transport struct {
	port     io.ReadWriteCloser
	receiver atomic.Pointer[racfg.ReceiveFunc]
	done     chan struct{}
	log      zerolog.Logger
	portName string
	mac      net.HardwareAddr
	wg       sync.WaitGroup
	writeMu  sync.Mutex
	closed   atomic.Bool
	dropped  atomic.Uint64
}

// New opens portName and starts the reader
func New(portName string, cfg Config) (*Transport, error) {
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, racfg.NewTransportError("open", portName, err, racfg.ErrorTypePermanent)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, racfg.NewTransportError("set read timeout", portName, err, racfg.ErrorTypePermanent)
	}
	return NewWithPort(port, portName, cfg), nil
}

// NewWithPort runs the transport over an already open port
func NewWithPort(port io.ReadWriteCloser, name string, cfg Config) *Transport {
	mac := cfg.MAC
	if len(mac) != 6 {
		mac = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	}
	t := &Transport{
		port:     port,
		portName: name,
		mac:      append(net.HardwareAddr(nil), mac...),
		done:     make(chan struct{}),
		log:      cfg.Logger.With().Str("port", name).Logger(),
	}
	t.wg.Add(1)
	go t.readLoop()
	return t
}

func (t *Transport) readLoop() {
	defer t.wg.Done()
	var dec Decoder
	buf := make([]byte, 2048)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			before := dec.Dropped()
			for _, f := range dec.Feed(buf[:n]) {
				if fn := t.receiver.Load(); fn != nil {
					(*fn)(f)
				}
			}
			if d := dec.Dropped() - before; d > 0 {
				t.dropped.Add(uint64(d))
				t.log.Debug().Int("frames", d).Msg("discarded malformed serial frames")
			}
		}
		select {
		case <-t.done:
			return
		default:
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return
			}
			var perr *serial.PortError
			if errors.As(err, &perr) && perr.Code() == serial.PortClosed {
				return
			}
			t.log.Warn().Err(err).Msg("serial read")
			time.Sleep(readTimeout)
		}
	}
}

// Send writes one Ethernet frame
func (t *Transport) Send(frame []byte) error {
	return t.SendContext(context.Background(), frame)
}

// SendContext writes one Ethernet frame unless ctx is already done
func (t *Transport) SendContext(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.closed.Load() {
		return racfg.ErrTransportClosed
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.port.Write(Encode(frame)); err != nil {
		return racfg.NewTransportError("write", t.portName, fmt.Errorf("%w: %w", racfg.ErrTransportWrite, err),
			racfg.ErrorTypeTransient)
	}
	return nil
}

// SetReceiver registers the inbound frame callback
func (t *Transport) SetReceiver(fn racfg.ReceiveFunc) {
	if fn == nil {
		t.receiver.Store(nil)
		return
	}
	t.receiver.Store(&fn)
}

// HardwareAddr returns the MAC used as the host address on this link
func (t *Transport) HardwareAddr() net.HardwareAddr {
	return t.mac
}

// Reset pulses DTR when the port exposes it
func (t *Transport) Reset(ctx context.Context) error {
	p, ok := t.port.(dtrPort)
	if !ok {
		return nil
	}
	if err := p.SetDTR(false); err != nil {
		return racfg.NewTransportError("reset", t.portName, err, racfg.ErrorTypeTransient)
	}
	timer := time.NewTimer(resetPulse)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	if err := p.SetDTR(true); err != nil {
		return racfg.NewTransportError("reset", t.portName, err, racfg.ErrorTypeTransient)
	}
	return ctx.Err()
}

// HasCapability reports DTR reset support
func (t *Transport) HasCapability(capability racfg.TransportCapability) bool {
	if capability == racfg.CapabilityReset {
		_, ok := t.port.(dtrPort)
		return ok
	}
	return false
}

// Dropped returns the number of malformed frames discarded by the reader
func (t *Transport) Dropped() uint64 {
	return t.dropped.Load()
}

// Close stops the reader and closes the port
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	close(t.done)
	err := t.port.Close()
	t.wg.Wait()
	if err != nil {
		return fmt.Errorf("close %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected returns true until Close
func (t *Transport) IsConnected() bool {
	return !t.closed.Load()
}

// Type returns the transport type
func (*Transport) Type() racfg.TransportType {
	return racfg.TransportSerial
}
