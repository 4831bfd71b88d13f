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
	"sync"
	"sync/atomic"

	"github.com/ZaparooProject/go-racfg/heartbeat"
	"github.com/ZaparooProject/go-racfg/internal/frame"
	"github.com/ZaparooProject/go-racfg/internal/queue"
	"github.com/ZaparooProject/go-racfg/upload"
	"github.com/ZaparooProject/go-racfg/vlan"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Engine runs the RaCfg protocol over one transport. Create it with New,
// run it with Start and stop it with Close.
type Engine struct {
	config    *Config
	transport *TransportWithRetry
	sender    TransportContext
	host      Host
	persister Persister
	signals   SignalSender
	log       zerolog.Logger

	env       *envelope
	waitQ     *queue.Queue[Frame]
	taskQ     *queue.Queue[Frame]
	backlogQ  *queue.Queue[Action]
	gateway   *gateway
	uploader  *upload.Machine
	heartbeat *heartbeat.Monitor
	vlan      *vlan.Demux
	rewrites  map[uint16]*rewrite

	dropLimiter *rate.Limiter
	ctx         context.Context
	cancel      context.CancelFunc
	group       *errgroup.Group

	received       atomic.Uint64
	dropped        atomic.Uint64
	commandSeq     atomic.Uint32
	restartPending atomic.Bool
	running        atomic.Bool
	closed         atomic.Bool
	mu             sync.Mutex
}

// New creates an engine over transport. The transport's receive callback is
// installed by Start.
func New(transport Transport, opts ...Option) (*Engine, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	e := &Engine{
		config:    cfg,
		transport: NewTransportWithRetry(transport, cfg.Retry),
		host:      cfg.Host,
		persister: cfg.Persister,
		signals:   cfg.Signals,
		log:       cfg.Logger.With().Str("iface", fmt.Sprint(transport.HardwareAddr())).Logger(),
		env:       newEnvelope(transport.HardwareAddr()),
		waitQ:     queue.New[Frame]("wait", cfg.WaitQueueSize),
		taskQ:     queue.New[Frame]("task", cfg.TaskQueueSize),
		backlogQ:  queue.New[Action]("backlog", cfg.BacklogQueueSize),
		rewrites:  make(map[uint16]*rewrite),
	}
	e.sender = AsTransportContext(e.transport)
	e.dropLimiter = rate.NewLimiter(cfg.DropLogRate, max(cfg.DropLogBurst, 1))

	if e.host == nil {
		e.host = LogHost{Logger: e.log.With().Str("component", "host").Logger()}
	}
	if e.persister == nil {
		e.persister = FilePersister{}
	}
	if e.signals == nil {
		e.signals = KillSignaler{}
	}

	e.gateway = newGateway(e.waitQ, e.sendFrame, cfg)
	e.uploader = upload.New(e.uploadConfig())
	e.heartbeat = heartbeat.New(&heartbeat.Config{
		Interval:  cfg.HeartbeatInterval,
		OnTimeout: e.onHeartbeatTimeout,
		Enabled:   e.heartbeatEnabled,
		Logger:    e.log.With().Str("component", "heartbeat").Logger(),
	})
	e.heartbeat.SetAdminUp(!cfg.AdminDown)
	e.vlan = vlan.New(e.vlanLimits())
	return e, nil
}

func (e *Engine) uploadConfig() *upload.Config {
	uc := *e.config.Upload
	uc.Send = e.sendBootstrap
	uc.Resetter = e.config.Resetter
	if uc.Resetter == nil {
		uc.Resetter = e.transport
	}
	uc.Logger = e.log.With().Str("component", "upload").Logger()
	uc.OnResendDue = func(gen uint64) {
		e.enqueueAction(Action{Name: "upload-resend", Fn: func(ctx context.Context, _ any) {
			if err := e.uploader.ResendDue(ctx, gen); err != nil {
				e.log.Warn().Err(err).Msg("resend chunk")
			}
		}})
	}
	uc.OnStateChange = e.onUploadState
	uc.OnEvent = e.config.Metrics.uploadEvent
	return &uc
}

func (e *Engine) vlanLimits() vlan.Limits {
	if e.config.VLANLimits != (vlan.Limits{}) {
		return e.config.VLANLimits
	}
	if path := e.config.Upload.ProfilePath; path != "" {
		p, err := upload.LoadProfile(path)
		if err == nil {
			return p.VLANLimits()
		}
		e.log.Warn().Err(err).Msg("profile unreadable, using default interface counts")
	}
	return vlan.DefaultLimits()
}

// Start launches the workers and begins receiving. The engine runs until
// Close is called or ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return ErrNotRunning
	}
	if e.running.Load() {
		return nil
	}

	e.ctx, e.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(e.ctx)
	g.Go(func() error { return e.taskWorker(gctx) })
	g.Go(func() error { return e.backlogWorker(gctx) })
	g.Go(func() error { return e.gateway.pump(gctx) })
	g.Go(func() error { return e.heartbeat.Run(gctx) })
	e.group = g

	e.transport.SetReceiver(e.receive)
	e.running.Store(true)
	e.log.Debug().Msg("engine started")
	return nil
}

// Close stops the workers, abandons any upload session and closes the
// transport.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Swap(true) {
		return nil
	}

	var errs []error
	if e.running.Swap(false) {
		e.transport.SetReceiver(nil)
		e.cancel()
		if err := e.group.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	e.uploader.Close()
	if err := e.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}
	return errors.Join(errs...)
}

// Call sends a request and waits for its reply. Concurrent calls must use
// distinct (CommandID, CommandSeq) pairs; see NextCommandSeq.
func (e *Engine) Call(ctx context.Context, req Request) (Result, error) {
	if !e.running.Load() {
		return Result{}, ErrNotRunning
	}
	if req.Type.IsResponse() {
		return Result{}, fmt.Errorf("%w: request type %s", ErrInvalidParameter, req.Type)
	}
	return e.gateway.call(ctx, e.ctx, &req)
}

// NextCommandSeq returns a fresh correlation id
func (e *Engine) NextCommandSeq() uint16 {
	return uint16(e.commandSeq.Add(1))
}

// Boot starts an upload session without waiting for BOOT_NOTIFY
func (e *Engine) Boot() error {
	return e.Submit(Action{Name: "upload-begin", Fn: func(ctx context.Context, _ any) {
		if err := e.uploader.Begin(ctx); err != nil {
			e.log.Error().Err(err).Msg("begin upload")
		}
	}})
}

// SetAdminUp suspends or resumes heartbeat recovery
func (e *Engine) SetAdminUp(up bool) {
	e.heartbeat.SetAdminUp(up)
}

// ResetAttempts refills the upload restart budget
func (e *Engine) ResetAttempts() {
	e.uploader.ResetAttempts()
}

// UploadState returns the upload state machine state
func (e *Engine) UploadState() upload.State {
	return e.uploader.State()
}

// VLAN returns the virtual interface demultiplexer
func (e *Engine) VLAN() *vlan.Demux {
	return e.vlan
}

// Transport returns the wrapped transport
func (e *Engine) Transport() Transport {
	return e.transport
}

// DeviceAddr returns the learned device MAC, or nil
func (e *Engine) DeviceAddr() net.HardwareAddr {
	return e.env.deviceAddr()
}

// Stats is a snapshot of engine counters
type Stats struct {
	DeviceAddr        net.HardwareAddr
	Upload            upload.Stats
	Received          uint64
	Dropped           uint64
	QueueDrops        uint64
	Heartbeats        uint64
	HeartbeatTimeouts uint64
	WaitQueued        int
	TaskQueued        int
	BacklogQueued     int
	CallsInFlight     int
	UploadState       upload.State
	RestartPending    bool
}

// Stats returns a snapshot of engine counters
func (e *Engine) Stats() Stats {
	return Stats{
		DeviceAddr:        e.env.deviceAddr(),
		Upload:            e.uploader.Stats(),
		UploadState:       e.uploader.State(),
		Received:          e.received.Load(),
		Dropped:           e.dropped.Load(),
		QueueDrops:        e.waitQ.Dropped() + e.taskQ.Dropped() + e.backlogQ.Dropped(),
		Heartbeats:        e.heartbeat.Total(),
		HeartbeatTimeouts: e.heartbeat.Timeouts(),
		WaitQueued:        e.waitQ.Len(),
		TaskQueued:        e.taskQ.Len(),
		BacklogQueued:     e.backlogQ.Len(),
		CallsInFlight:     e.gateway.inFlight(),
		RestartPending:    e.restartPending.Load(),
	}
}

// sendFrame encodes one RaCfg frame and transmits it
func (e *Engine) sendFrame(ctx context.Context, h Header, payload []byte) error {
	raw, err := frame.Encode(h, payload)
	if err != nil {
		return err
	}
	pkt, err := e.env.wrap(raw)
	if err != nil {
		return err
	}
	return e.sender.SendContext(ctx, pkt)
}

func (e *Engine) sendBootstrap(ctx context.Context, id, sequence uint16, status int32, payload []byte) error {
	h := frame.NewHeader(frame.TypeBootstrap, id)
	h.Sequence = sequence
	h.Status = status
	return e.sendFrame(ctx, h, payload)
}

func (e *Engine) heartbeatEnabled() bool {
	return e.running.Load() && !e.uploader.Exhausted()
}

func (e *Engine) onHeartbeatTimeout() {
	e.config.Metrics.heartbeatTimeout()
	if !e.restartPending.CompareAndSwap(false, true) {
		return
	}
	e.enqueueAction(Action{Name: "heartbeat-restart", Fn: e.heartbeatRestartAction})
}

func (e *Engine) onUploadState(from, to upload.State) {
	e.config.Metrics.setUploadState(int(to))
	if to != upload.StateRestartSequence {
		return
	}
	e.env.forget()
	for _, f := range vlan.Families {
		if e.vlan.Limits().Of(f) == 0 {
			continue
		}
		e.enqueueAction(Action{Name: "reopen-" + f.String(), Fn: e.reopenAction, Arg: f})
	}
	debugf("upload %s -> %s, reopen scheduled", from, to)
}

func (e *Engine) bootstrapAction(ctx context.Context, arg any) {
	f, ok := arg.(Frame)
	if !ok {
		return
	}
	if err := e.uploader.Handle(ctx, f.Header, f.Payload); err != nil {
		e.log.Error().Err(err).Stringer("header", f.Header).Msg("bootstrap")
	}
}

func (e *Engine) heartbeatRestartAction(ctx context.Context, _ any) {
	if !e.restartPending.CompareAndSwap(true, false) {
		e.log.Info().Msg("restart cancelled by heartbeat")
		return
	}
	if err := e.uploader.Restart(ctx, "heartbeat timeout"); err != nil {
		e.log.Error().Err(err).Msg("restart sequence")
	}
}

// openAction is the interface open sequence: every enabled family is
// reopened on the host and the restart budget is refilled.
func (e *Engine) openAction(ctx context.Context, _ any) {
	e.uploader.ResetAttempts()
	for _, f := range vlan.Families {
		if e.vlan.Limits().Of(f) == 0 {
			continue
		}
		e.reopenAction(ctx, f)
	}
}

func (e *Engine) reopenAction(ctx context.Context, arg any) {
	f, ok := arg.(vlan.Family)
	if !ok {
		return
	}
	if err := e.host.Reopen(ctx, f); err != nil {
		e.log.Warn().Err(err).Stringer("family", f).Msg("reopen")
	}
}
