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

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics mirrors engine counters into Prometheus. Metrics are registered in
// a dedicated registry so they do not interfere with the default global one.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	framesReceived    *prometheus.CounterVec
	framesDropped     *prometheus.CounterVec
	queueDrops        *prometheus.CounterVec
	calls             *prometheus.CounterVec
	callDuration      *prometheus.HistogramVec
	uploads           *prometheus.CounterVec
	uploadState       prometheus.Gauge
	heartbeats        prometheus.Counter
	heartbeatTimeouts prometheus.Counter
}

// NewMetrics creates the engine metrics under the given namespace
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "racfg"
	}
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "RaCfg frames accepted by the router, by command class.",
		}, []string{"class"}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Inbound frames discarded by the router, by reason.",
		}, []string{"reason"}),
		queueDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_drops_total",
			Help:      "Items dropped because a work queue was full.",
		}, []string{"queue"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Synchronous gateway calls by class and result.",
		}, []string{"class", "result"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Synchronous gateway call latency by class.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
		}, []string{"class"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_events_total",
			Help:      "Firmware upload milestones (session, started, restart, corrupt).",
		}, []string{"event"}),
		uploadState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upload_state",
			Help:      "Current upload state machine state.",
		}),
		heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Heartbeat frames received from the device.",
		}),
		heartbeatTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeat_timeouts_total",
			Help:      "Heartbeat intervals that elapsed without a beat.",
		}),
	}

	reg.MustRegister(m.framesReceived)
	reg.MustRegister(m.framesDropped)
	reg.MustRegister(m.queueDrops)
	reg.MustRegister(m.calls)
	reg.MustRegister(m.callDuration)
	reg.MustRegister(m.uploads)
	reg.MustRegister(m.uploadState)
	reg.MustRegister(m.heartbeats)
	reg.MustRegister(m.heartbeatTimeouts)
	return m
}

// Registry returns the Prometheus registry holding the engine metrics
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) frameReceived(class string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(class).Inc()
}

func (m *Metrics) frameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) queueDrop(queue string) {
	if m == nil {
		return
	}
	m.queueDrops.WithLabelValues(queue).Inc()
}

func (m *Metrics) callFinished(class string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case GetErrorType(err) == ErrorTypeTimeout:
		result = "timeout"
	default:
		result = "error"
	}
	m.calls.WithLabelValues(class, result).Inc()
	m.callDuration.WithLabelValues(class).Observe(elapsed.Seconds())
}

func (m *Metrics) uploadEvent(event string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(event).Inc()
}

func (m *Metrics) setUploadState(state int) {
	if m == nil {
		return
	}
	m.uploadState.Set(float64(state))
}

func (m *Metrics) heartbeat() {
	if m == nil {
		return
	}
	m.heartbeats.Inc()
}

func (m *Metrics) heartbeatTimeout() {
	if m == nil {
		return
	}
	m.heartbeatTimeouts.Inc()
}
