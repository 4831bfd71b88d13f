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

package upload

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/go-racfg/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentChunk struct {
	payload  []byte
	status   int32
	id       uint16
	sequence uint16
}

type recorder struct {
	sent   []sentChunk
	states []State
	events []string
	resets atomic.Int32
}

func (r *recorder) send(_ context.Context, id, sequence uint16, status int32, payload []byte) error {
	r.sent = append(r.sent, sentChunk{
		id:       id,
		sequence: sequence,
		status:   status,
		payload:  append([]byte(nil), payload...),
	})
	return nil
}

func (r *recorder) Reset(_ context.Context) error {
	r.resets.Add(1)
	return nil
}

func (r *recorder) pop() (sentChunk, bool) {
	if len(r.sent) == 0 {
		return sentChunk{}, false
	}
	c := r.sent[0]
	r.sent = r.sent[1:]
	return c, true
}

func echo(c sentChunk) (frame.Header, []byte) {
	h := frame.NewHeader(frame.TypeBootstrap.Response(), c.id)
	h.Sequence = c.sequence
	h.Status = c.status
	h.Length = uint16(len(c.payload))
	return h, c.payload
}

func notify() frame.Header {
	return frame.NewHeader(frame.TypeBootstrap, frame.BootNotify)
}

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7) + seed
	}
	return b
}

type fixture struct {
	profile  string
	eeprom   string
	firmware string
	body     []byte
}

func writeFixture(t *testing.T, profileLen, eepromLen, bodyLen int) fixture {
	t.Helper()
	dir := t.TempDir()
	fx := fixture{
		profile:  filepath.Join(dir, "profile.dat"),
		firmware: filepath.Join(dir, "firmware.bin"),
		body:     pattern(bodyLen, 3),
	}
	profile := append([]byte("Default\nBssidNum=2\n"), pattern(profileLen, 1)...)
	require.NoError(t, os.WriteFile(fx.profile, profile, 0o600))
	if eepromLen > 0 {
		fx.eeprom = filepath.Join(dir, "eeprom.bin")
		require.NoError(t, os.WriteFile(fx.eeprom, pattern(eepromLen, 2), 0o600))
	}
	require.NoError(t, os.WriteFile(fx.firmware, AppendTrailer(fx.body, "5.0.4.0", "2026-01-02"), 0o600))
	return fx
}

func newMachine(t *testing.T, fx fixture, rec *recorder) *Machine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ProfilePath = fx.profile
	cfg.EEPROMPath = fx.eeprom
	cfg.FirmwarePath = fx.firmware
	cfg.Send = rec.send
	cfg.Resetter = rec
	cfg.OnStateChange = func(_, to State) { rec.states = append(rec.states, to) }
	cfg.OnEvent = func(e string) { rec.events = append(rec.events, e) }
	m := New(cfg)
	t.Cleanup(m.Close)
	return m
}

// runEchoer plays the device: every chunk is echoed back until BOOT_STARTUP
// is sent. corrupt, if set, may alter the echo.
func runEchoer(t *testing.T, m *Machine, rec *recorder, corrupt func(n int, c *sentChunk)) []sentChunk {
	t.Helper()
	ctx := context.Background()
	var all []sentChunk
	for n := 0; n < 10000; n++ {
		c, ok := rec.pop()
		if !ok {
			return all
		}
		all = append(all, c)
		if c.id == frame.BootStartup {
			continue
		}
		if corrupt != nil {
			corrupt(n, &c)
		}
		h, p := echo(c)
		require.NoError(t, m.Handle(ctx, h, p))
	}
	t.Fatal("echo loop did not terminate")
	return nil
}

func TestFaithfulEchoReachesStarted(t *testing.T) {
	t.Parallel()

	fx := writeFixture(t, 1500, 600, 5000)
	rec := &recorder{}
	m := newMachine(t, fx, rec)

	require.NoError(t, m.Handle(context.Background(), notify(), nil))
	sent := runEchoer(t, m, rec, nil)

	assert.Equal(t, StateStarted, m.State())
	require.NotEmpty(t, sent)
	assert.Equal(t, frame.BootStartup, sent[len(sent)-1].id)

	var profile, eeprom, image []byte
	var cfgSeq, fwSeq uint16
	for _, c := range sent {
		assert.LessOrEqual(t, len(c.payload), frame.MaxPayload)
		switch c.id {
		case frame.BootInitCfg:
			assert.Equal(t, cfgSeq, c.sequence)
			cfgSeq++
			if c.status == ConfigProfile {
				profile = append(profile, c.payload...)
			} else {
				eeprom = append(eeprom, c.payload...)
			}
		case frame.BootUpload:
			assert.Equal(t, fwSeq, c.sequence)
			fwSeq++
			image = append(image, c.payload...)
		}
	}

	wantProfile, err := os.ReadFile(fx.profile)
	require.NoError(t, err)
	assert.Equal(t, wantProfile, profile)
	assert.Equal(t, pattern(600, 2), eeprom)
	wantImage, err := os.ReadFile(fx.firmware)
	require.NoError(t, err)
	assert.Equal(t, wantImage, image)

	st := m.Stats()
	assert.Equal(t, uint64(0), st.Corrupt)
	assert.Equal(t, uint64(1), st.Completed)
	assert.Equal(t, []State{StateNotifyReceived, StateUploadingConfig, StateUploadingFirmware, StateStarted}, rec.states)

	// startup acknowledgement returns the machine to idle
	h := frame.NewHeader(frame.TypeBootstrap.Response(), frame.BootStartup)
	require.NoError(t, m.Handle(context.Background(), h, nil))
	assert.Equal(t, StateIdle, m.State())
	assert.Contains(t, rec.events, EventRunning)
}

func TestCorruptedEchoRestarts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		at   int
	}{
		{"first config chunk", 0},
		{"firmware chunk", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fx := writeFixture(t, 900, 0, 3000)
			rec := &recorder{}
			m := newMachine(t, fx, rec)

			require.NoError(t, m.Handle(context.Background(), notify(), nil))
			runEchoer(t, m, rec, func(n int, c *sentChunk) {
				if n == tt.at {
					c.payload[len(c.payload)/2] ^= 0xFF
				}
			})

			assert.Contains(t, rec.states, StateRestartSequence)
			assert.NotContains(t, rec.states, StateStarted)
			assert.Equal(t, StateIdle, m.State())
			assert.Equal(t, int32(1), rec.resets.Load())
			assert.Equal(t, 1, m.Attempts())
			assert.Equal(t, uint64(1), m.Stats().Restarts)
		})
	}
}

func TestStaleEchoIgnored(t *testing.T) {
	t.Parallel()

	fx := writeFixture(t, 2000, 0, 100)
	rec := &recorder{}
	m := newMachine(t, fx, rec)
	ctx := context.Background()

	require.NoError(t, m.Handle(ctx, notify(), nil))
	first, ok := rec.pop()
	require.True(t, ok)
	h, p := echo(first)
	require.NoError(t, m.Handle(ctx, h, p))

	// a duplicate of the first echo carries an old sequence
	require.NoError(t, m.Handle(ctx, h, p))
	assert.Equal(t, StateUploadingConfig, m.State())
	assert.Equal(t, 0, m.Attempts())
}

func TestCorruptImageStillStarts(t *testing.T) {
	t.Parallel()

	fx := writeFixture(t, 10, 0, 4096)
	img, err := os.ReadFile(fx.firmware)
	require.NoError(t, err)
	img[100] ^= 0x01
	require.NoError(t, os.WriteFile(fx.firmware, img, 0o600))

	rec := &recorder{}
	m := newMachine(t, fx, rec)
	require.NoError(t, m.Handle(context.Background(), notify(), nil))
	sent := runEchoer(t, m, rec, nil)

	assert.Equal(t, StateStarted, m.State())
	assert.Equal(t, frame.BootStartup, sent[len(sent)-1].id)
	assert.Equal(t, uint64(1), m.Stats().Corrupt)
	assert.Contains(t, rec.events, EventCorrupt)
}

func TestAttemptBudget(t *testing.T) {
	t.Parallel()

	fx := writeFixture(t, 10, 0, 10)
	rec := &recorder{}
	m := newMachine(t, fx, rec)
	m.config.MaxAttempts = 2
	ctx := context.Background()

	require.NoError(t, m.Restart(ctx, "test"))
	require.NoError(t, m.Restart(ctx, "test"))
	assert.True(t, m.Exhausted())
	require.ErrorIs(t, m.Handle(ctx, notify(), nil), ErrAttemptsExhausted)
	assert.Equal(t, StateIdle, m.State())

	m.ResetAttempts()
	require.NoError(t, m.Handle(ctx, notify(), nil))
	assert.Equal(t, StateUploadingConfig, m.State())
}

func TestNotifyDuringUploadRestartsSession(t *testing.T) {
	t.Parallel()

	fx := writeFixture(t, 3000, 0, 10)
	rec := &recorder{}
	m := newMachine(t, fx, rec)
	ctx := context.Background()

	require.NoError(t, m.Handle(ctx, notify(), nil))
	c, _ := rec.pop()
	h, p := echo(c)
	require.NoError(t, m.Handle(ctx, h, p))

	require.NoError(t, m.Handle(ctx, notify(), nil))
	assert.Equal(t, uint64(2), m.Stats().Sessions)
	assert.Equal(t, 0, m.Attempts(), "session restart is not a hardware restart")

	// the new session starts from the first profile chunk again
	last := rec.sent[len(rec.sent)-1]
	assert.Equal(t, uint16(0), last.sequence)
	assert.Equal(t, frame.BootInitCfg, last.id)
}

func TestResendTimer(t *testing.T) {
	t.Parallel()

	fx := writeFixture(t, 10, 0, 10)
	rec := &recorder{}
	due := make(chan uint64, 8)

	cfg := DefaultConfig()
	cfg.ProfilePath = fx.profile
	cfg.FirmwarePath = fx.firmware
	cfg.Send = rec.send
	cfg.Resetter = rec
	cfg.MaxResends = 2
	cfg.ResendInterval = 5 * time.Millisecond
	cfg.OnResendDue = func(gen uint64) { due <- gen }
	m := New(cfg)
	t.Cleanup(m.Close)
	ctx := context.Background()

	require.NoError(t, m.Handle(ctx, notify(), nil))
	require.Len(t, rec.sent, 1)

	wait := func() uint64 {
		select {
		case gen := <-due:
			return gen
		case <-time.After(time.Second):
			t.Fatal("resend timer did not fire")
			return 0
		}
	}

	// two resends of the same chunk, then a restart
	require.NoError(t, m.ResendDue(ctx, wait()))
	require.NoError(t, m.ResendDue(ctx, wait()))
	require.Len(t, rec.sent, 3)
	assert.True(t, bytes.Equal(rec.sent[0].payload, rec.sent[2].payload))
	assert.Equal(t, rec.sent[0].sequence, rec.sent[2].sequence)

	require.NoError(t, m.ResendDue(ctx, wait()))
	assert.Equal(t, int32(1), rec.resets.Load())
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, uint64(2), m.Stats().Resends)
}

func TestResendDueStaleGeneration(t *testing.T) {
	t.Parallel()

	fx := writeFixture(t, 10, 0, 10)
	rec := &recorder{}
	m := newMachine(t, fx, rec)
	ctx := context.Background()

	require.NoError(t, m.Handle(ctx, notify(), nil))
	require.NoError(t, m.ResendDue(ctx, m.gen+100))
	assert.Len(t, rec.sent, 1)
}

func TestBeginWithoutFirmware(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	m := New(&Config{Send: rec.send})
	err := m.Begin(context.Background())
	require.ErrorIs(t, err, ErrNoFirmware)
	assert.Equal(t, StateIdle, m.State())
}
