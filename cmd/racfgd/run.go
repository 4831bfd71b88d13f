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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	racfg "github.com/ZaparooProject/go-racfg"
	itransport "github.com/ZaparooProject/go-racfg/internal/transport"
	"github.com/ZaparooProject/go-racfg/reset/gpio"
	"github.com/ZaparooProject/go-racfg/transport/rawsock"
	"github.com/ZaparooProject/go-racfg/transport/uart"
	"github.com/ZaparooProject/go-racfg/vlan"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		logger := newLogger(cfg.LogLevel)
		racfg.SetLogger(logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runDaemon(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func openTransport(cfg *daemonConfig, logger zerolog.Logger) (racfg.Transport, error) {
	switch cfg.Transport {
	case "uart":
		var mac net.HardwareAddr
		if cfg.MAC != "" {
			m, err := net.ParseMAC(cfg.MAC)
			if err != nil {
				return nil, fmt.Errorf("%w: mac: %w", errConfig, err)
			}
			mac = m
		}
		return uart.New(cfg.Port, uart.Config{
			BaudRate: cfg.BaudRate,
			MAC:      mac,
			Logger:   logger.With().Str("component", "uart").Logger(),
		})
	default:
		return rawsock.New(cfg.Interface, rawsock.Config{}, logger.With().Str("component", "rawsock").Logger())
	}
}

// waitLink blocks until the transport reports a usable link. A zero wait
// skips the check.
func waitLink(t racfg.Transport, wait time.Duration, logger zerolog.Logger) error {
	if wait <= 0 || t.IsConnected() {
		return nil
	}
	logger.Info().Dur("wait", wait).Msg("waiting for link")
	_, err := itransport.TimeoutRetry(wait, 250*time.Millisecond, func() (struct{}, bool, error) {
		return struct{}{}, !t.IsConnected(), nil
	})
	if err != nil {
		return fmt.Errorf("link not up after %s: %w", wait, err)
	}
	return nil
}

func applyUserVLANs(d *vlan.Demux, users []userVLAN) error {
	for _, u := range users {
		if err := d.SetUserVLAN(u.Family, u.Index, u.VID); err != nil {
			return fmt.Errorf("%w: vlan.user %s%d: %w", errConfig, u.Family, u.Index, err)
		}
	}
	return nil
}

func engineOptions(cfg *daemonConfig, logger zerolog.Logger, metrics *racfg.Metrics) ([]racfg.Option, error) {
	opts := []racfg.Option{
		racfg.WithLogger(logger),
		racfg.WithMetrics(metrics),
		racfg.WithUpload(cfg.Upload),
		racfg.WithTimeout(cfg.CallTimeout),
		racfg.WithHeartbeatInterval(cfg.HeartbeatInterval),
		racfg.WithPersister(racfg.FilePersister{WSCPath: cfg.WSCPath, EEPROMPath: cfg.EEPROMPath}),
	}
	if cfg.VLAN != (vlan.Limits{}) {
		opts = append(opts, racfg.WithVLANLimits(cfg.VLAN))
	}
	if cfg.AdminDown {
		opts = append(opts, racfg.WithAdminDown())
	}
	if cfg.ResetPin != "" {
		rcfg := gpio.DefaultConfig()
		rcfg.ActiveHigh = cfg.ResetActiveHigh
		rcfg.Logger = logger.With().Str("component", "reset").Logger()
		r, err := gpio.Open(cfg.ResetPin, rcfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, racfg.WithResetter(r))
	}
	return opts, nil
}

func runDaemon(ctx context.Context, cfg daemonConfig, logger zerolog.Logger) error {
	metrics := racfg.NewMetrics("racfg")
	opts, err := engineOptions(&cfg, logger, metrics)
	if err != nil {
		return err
	}
	transport, err := openTransport(&cfg, logger)
	if err != nil {
		return err
	}
	if err := waitLink(transport, cfg.LinkWait, logger); err != nil {
		_ = transport.Close()
		return err
	}
	engine, err := racfg.New(transport, opts...)
	if err != nil {
		_ = transport.Close()
		return err
	}
	if err := applyUserVLANs(engine.VLAN(), cfg.UserVLANs); err != nil {
		_ = engine.Close()
		return err
	}
	if err := engine.Start(ctx); err != nil {
		_ = engine.Close()
		return err
	}
	logger.Info().
		Str("transport", cfg.Transport).
		Stringer("mac", transport.HardwareAddr()).
		Msg("engine started")

	if cfg.BootOnStart {
		if err := engine.Boot(); err != nil {
			logger.Warn().Err(err).Msg("initial boot")
		}
	}

	srv := newStatusServer(cfg.MetricsAddr, engine, metrics)
	srvErr := make(chan error, 1)
	if srv != nil {
		go func() {
			logger.Info().Str("addr", srv.Addr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				srvErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err = <-srvErr:
		logger.Error().Err(err).Msg("metrics server failed")
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	if cerr := engine.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}

func newStatusServer(addr string, engine *racfg.Engine, metrics *racfg.Metrics) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statsView(engine.Stats()))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

type statsJSON struct {
	Device            string `json:"device,omitempty"`
	UploadState       string `json:"upload_state"`
	Received          uint64 `json:"received"`
	Dropped           uint64 `json:"dropped"`
	QueueDrops        uint64 `json:"queue_drops"`
	Heartbeats        uint64 `json:"heartbeats"`
	HeartbeatTimeouts uint64 `json:"heartbeat_timeouts"`
	UploadSessions    uint64 `json:"upload_sessions"`
	UploadCompleted   uint64 `json:"upload_completed"`
	UploadRestarts    uint64 `json:"upload_restarts"`
	CallsInFlight     int    `json:"calls_in_flight"`
	RestartPending    bool   `json:"restart_pending"`
}

func statsView(s racfg.Stats) statsJSON {
	v := statsJSON{
		UploadState:       s.UploadState.String(),
		Received:          s.Received,
		Dropped:           s.Dropped,
		QueueDrops:        s.QueueDrops,
		Heartbeats:        s.Heartbeats,
		HeartbeatTimeouts: s.HeartbeatTimeouts,
		UploadSessions:    s.Upload.Sessions,
		UploadCompleted:   s.Upload.Completed,
		UploadRestarts:    s.Upload.Restarts,
		CallsInFlight:     s.CallsInFlight,
		RestartPending:    s.RestartPending,
	}
	if s.DeviceAddr != nil {
		v.Device = s.DeviceAddr.String()
	}
	return v
}
