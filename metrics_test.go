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
	"testing"
	"time"

	rt "github.com/ZaparooProject/go-racfg/internal/testing"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.Nil(t, m.Registry())
	m.frameReceived("SYNC")
	m.frameDropped(dropLoop)
	m.queueDrop("task")
	m.callFinished("SYNC", nil, time.Millisecond)
	m.uploadEvent("session")
	m.setUploadState(1)
	m.heartbeat()
	m.heartbeatTimeout()
}

func TestCallResultLabels(t *testing.T) {
	t.Parallel()

	m := NewMetrics("")
	m.callFinished("SYNC", nil, time.Millisecond)
	m.callFinished("SYNC", ErrTimeout, time.Second)
	m.callFinished("SYNC", errors.New("boom"), time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.calls.WithLabelValues("SYNC", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.calls.WithLabelValues("SYNC", "timeout")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.calls.WithLabelValues("SYNC", "error")), 0)
}

func TestEngineMetrics(t *testing.T) {
	t.Parallel()

	m := NewMetrics("racfg_test")
	e, mock := newRunningEngine(t, WithMetrics(m))

	mock.Deliver(rt.BuildHeartbeat())
	mock.Deliver(syncReply(strangerMAC, rt.HostMAC))
	_, err := e.Call(context.Background(), Request{Type: TypeSync, CommandID: 1, Timeout: 10 * time.Millisecond})
	require.ErrorIs(t, err, ErrTimeout)

	assert.InDelta(t, 1, testutil.ToFloat64(m.heartbeats), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.framesDropped.WithLabelValues(dropSource)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.framesReceived.WithLabelValues("ASYNC")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.calls.WithLabelValues("SYNC", "timeout")), 0)
}
