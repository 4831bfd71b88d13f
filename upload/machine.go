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

// Package upload drives the firmware bootstrap exchange: after the device
// announces itself with BOOT_NOTIFY the host streams the configuration
// profile, an optional EEPROM image and the firmware image in chunks that
// the device echoes back, then tells it to start.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-racfg/internal/frame"
	"github.com/rs/zerolog"
)

// State is the upload state machine state
type State int32

const (
	StateIdle State = iota
	StateNotifyReceived
	StateUploadingConfig
	StateUploadingFirmware
	StateStarted
	StateRestartSequence
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNotifyReceived:
		return "notify-received"
	case StateUploadingConfig:
		return "uploading-config"
	case StateUploadingFirmware:
		return "uploading-firmware"
	case StateStarted:
		return "started"
	case StateRestartSequence:
		return "restart-sequence"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Startup reports whether the device is between BOOT_NOTIFY and running
func (s State) Startup() bool {
	return s >= StateNotifyReceived && s <= StateStarted
}

func (s State) uploading() bool {
	return s == StateUploadingConfig || s == StateUploadingFirmware
}

// Event names passed to Config.OnEvent
const (
	EventSession = "session"
	EventStarted = "started"
	EventRunning = "running"
	EventRestart = "restart"
	EventCorrupt = "corrupt"
	EventResend  = "resend"
)

var (
	ErrAttemptsExhausted = errors.New("upload: restart attempts exhausted")
	errMismatch          = errors.New("echo mismatch")
)

// SendFunc transmits one BOOTSTRAP request frame
type SendFunc func(ctx context.Context, id, sequence uint16, status int32, payload []byte) error

// Resetter reinitializes the device hardware
type Resetter interface {
	Reset(ctx context.Context) error
}

// Config configures a Machine
type Config struct {
	Send     SendFunc
	Resetter Resetter
	// OnResendDue is called from a timer goroutine when an echo is overdue.
	// The owner must call ResendDue with gen from its own goroutine.
	OnResendDue   func(gen uint64)
	OnStateChange func(from, to State)
	OnEvent       func(event string)
	Logger        zerolog.Logger

	ProfilePath  string
	EEPROMPath   string
	FirmwarePath string

	ChunkSize      int
	MaxAttempts    int
	MaxResends     int
	ResendInterval time.Duration
}

// DefaultConfig returns the upload defaults without file paths
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:   frame.MaxPayload,
		MaxAttempts: 5,
		MaxResends:  3,
		Logger:      zerolog.Nop(),
	}
}

// Stats are upload counters
type Stats struct {
	Sessions  uint64
	Completed uint64
	Restarts  uint64
	Corrupt   uint64
	Resends   uint64
	BytesSent uint64
	Attempts  int
}

// Machine is the upload state machine. State, Stats, Attempts, Exhausted and
// ResetAttempts may be called from any goroutine; every other method must be
// called from a single owner goroutine.
type Machine struct {
	config *Config
	sess   *session
	timer  *time.Timer
	gen    uint64

	state     atomic.Int32
	attempts  atomic.Int32
	sessions  atomic.Uint64
	completed atomic.Uint64
	restarts  atomic.Uint64
	corrupt   atomic.Uint64
	resends   atomic.Uint64
	bytesSent atomic.Uint64
}

// New creates a machine in the Idle state
func New(config *Config) *Machine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ChunkSize <= 0 || config.ChunkSize > frame.MaxPayload {
		config.ChunkSize = frame.MaxPayload
	}
	return &Machine{config: config}
}

// State returns the current state
func (m *Machine) State() State {
	return State(m.state.Load())
}

// Attempts returns the number of restarts consumed from the budget
func (m *Machine) Attempts() int {
	return int(m.attempts.Load())
}

// Exhausted reports whether the restart budget is used up
func (m *Machine) Exhausted() bool {
	return m.config.MaxAttempts > 0 && m.Attempts() >= m.config.MaxAttempts
}

// ResetAttempts refills the restart budget
func (m *Machine) ResetAttempts() {
	m.attempts.Store(0)
}

// Stats returns a snapshot of the counters
func (m *Machine) Stats() Stats {
	return Stats{
		Sessions:  m.sessions.Load(),
		Completed: m.completed.Load(),
		Restarts:  m.restarts.Load(),
		Corrupt:   m.corrupt.Load(),
		Resends:   m.resends.Load(),
		BytesSent: m.bytesSent.Load(),
		Attempts:  m.Attempts(),
	}
}

func (m *Machine) setState(to State) {
	from := State(m.state.Swap(int32(to)))
	if from == to {
		return
	}
	m.config.Logger.Debug().Stringer("from", from).Stringer("to", to).Msg("upload state")
	if m.config.OnStateChange != nil {
		m.config.OnStateChange(from, to)
	}
}

func (m *Machine) event(name string) {
	if m.config.OnEvent != nil {
		m.config.OnEvent(name)
	}
}

// Handle processes one inbound BOOTSTRAP frame
func (m *Machine) Handle(ctx context.Context, h frame.Header, payload []byte) error {
	state := m.State()
	switch h.ID {
	case frame.BootNotify:
		if state.Startup() && state != StateStarted {
			m.config.Logger.Warn().Stringer("state", state).Msg("device re-announced during upload, restarting session")
		}
		return m.Begin(ctx)

	case frame.BootInitCfg:
		if state != StateUploadingConfig {
			return nil
		}
		if err := m.checkEcho(h, payload); err != nil {
			if errors.Is(err, errStale) {
				return nil
			}
			return m.Restart(ctx, "config "+err.Error())
		}
		return m.advanceConfig(ctx)

	case frame.BootUpload:
		if state != StateUploadingFirmware {
			return nil
		}
		if err := m.checkEcho(h, payload); err != nil {
			if errors.Is(err, errStale) {
				return nil
			}
			return m.Restart(ctx, "firmware "+err.Error())
		}
		return m.advanceFirmware(ctx)

	case frame.BootStartup:
		if state != StateStarted {
			return nil
		}
		m.attempts.Store(0)
		m.setState(StateIdle)
		m.event(EventRunning)
		m.config.Logger.Info().Msg("device running")
		return nil

	default:
		m.config.Logger.Debug().Uint16("id", h.ID).Msg("unknown bootstrap command")
		return nil
	}
}

var errStale = errors.New("stale echo")

func (m *Machine) checkEcho(h frame.Header, payload []byte) error {
	s := m.sess
	if s == nil {
		return errStale
	}
	if h.Sequence != s.seq {
		return errStale
	}
	if int(h.Length) != len(s.last) || !bytes.Equal(payload, s.last) {
		return fmt.Errorf("%w at sequence %d", errMismatch, h.Sequence)
	}
	m.stopTimer()
	return nil
}

// Begin opens a new upload session and sends the first chunk. Any session in
// progress is discarded.
func (m *Machine) Begin(ctx context.Context) error {
	if m.Exhausted() {
		m.config.Logger.Error().Int("attempts", m.Attempts()).Msg("upload blocked, restart budget exhausted")
		return ErrAttemptsExhausted
	}
	m.teardown()
	m.setState(StateNotifyReceived)

	s, err := openSession(m.config)
	if err != nil {
		m.setState(StateIdle)
		return fmt.Errorf("upload: open session: %w", err)
	}
	m.sess = s
	m.sessions.Add(1)
	m.event(EventSession)
	m.config.Logger.Info().
		Str("version", s.trailer.Version).
		Str("date", s.trailer.Date).
		Int64("size", s.trailer.BodySize).
		Msg("upload session started")
	return m.advanceConfig(ctx)
}

func (m *Machine) advanceConfig(ctx context.Context) error {
	s := m.sess
	data, status, ok, err := s.nextConfig()
	if err != nil {
		return m.Restart(ctx, err.Error())
	}
	if ok {
		m.setState(StateUploadingConfig)
		return m.sendChunk(ctx, frame.BootInitCfg, status, data)
	}
	s.closeConfig()
	s.resetSequence()
	return m.advanceFirmware(ctx)
}

func (m *Machine) advanceFirmware(ctx context.Context) error {
	s := m.sess
	data, err := s.nextFirmware()
	if err != nil {
		return m.Restart(ctx, err.Error())
	}
	if data != nil {
		m.setState(StateUploadingFirmware)
		return m.sendChunk(ctx, frame.BootUpload, 0, data)
	}
	return m.finish(ctx)
}

func (m *Machine) finish(ctx context.Context) error {
	s := m.sess
	expected := s.trailer.Expected()
	if s.crc != expected {
		m.corrupt.Add(1)
		m.event(EventCorrupt)
		m.config.Logger.Error().
			Str("crc", fmt.Sprintf("%08x", s.crc)).
			Str("expected", fmt.Sprintf("%08x", expected)).
			Msg("firmware image corrupt, starting anyway")
	}
	m.teardown()
	m.completed.Add(1)
	m.setState(StateStarted)
	m.event(EventStarted)
	return m.config.Send(ctx, frame.BootStartup, 0, 0, nil)
}

func (m *Machine) sendChunk(ctx context.Context, id uint16, status int32, data []byte) error {
	s := m.sess
	s.seq = s.nextSequence()
	s.last = data
	s.lastID = id
	s.lastSt = status
	s.resends = 0
	m.bytesSent.Add(uint64(len(data)))
	m.armTimer()
	return m.config.Send(ctx, id, s.seq, status, data)
}

// ResendDue handles an overdue echo reported through OnResendDue. The last
// chunk is resent until MaxResends is exceeded, then the device is restarted.
func (m *Machine) ResendDue(ctx context.Context, gen uint64) error {
	if gen != m.gen || m.sess == nil || !m.State().uploading() {
		return nil
	}
	s := m.sess
	s.resends++
	if s.resends > m.config.MaxResends {
		return m.Restart(ctx, "echo timeout")
	}
	m.resends.Add(1)
	m.event(EventResend)
	m.config.Logger.Debug().Uint16("sequence", s.seq).Int("resend", s.resends).Msg("resending chunk")
	m.armTimer()
	return m.config.Send(ctx, s.lastID, s.seq, s.lastSt, s.last)
}

// Restart abandons the session, resets the hardware and returns to Idle.
// Each restart consumes one attempt.
func (m *Machine) Restart(ctx context.Context, reason string) error {
	m.setState(StateRestartSequence)
	m.teardown()
	m.attempts.Add(1)
	m.restarts.Add(1)
	m.event(EventRestart)
	m.config.Logger.Warn().Str("reason", reason).Int("attempt", m.Attempts()).Msg("restarting device")

	var err error
	if m.config.Resetter != nil {
		if err = m.config.Resetter.Reset(ctx); err != nil {
			err = fmt.Errorf("upload: reset device: %w", err)
		}
	}
	m.setState(StateIdle)
	return err
}

// Close abandons any session without resetting the device
func (m *Machine) Close() {
	m.teardown()
	m.setState(StateIdle)
}

func (m *Machine) teardown() {
	m.stopTimer()
	if m.sess != nil {
		m.sess.close()
		m.sess = nil
	}
}

func (m *Machine) armTimer() {
	m.stopTimer()
	if m.config.ResendInterval <= 0 || m.config.OnResendDue == nil {
		return
	}
	gen := m.gen
	cb := m.config.OnResendDue
	m.timer = time.AfterFunc(m.config.ResendInterval, func() { cb(gen) })
}

// stopTimer cancels the resend timer and invalidates callbacks already queued
func (m *Machine) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
}
