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
	"fmt"
)

// TransportContext is a Transport whose sends can be bounded by a context.
type TransportContext interface {
	Transport

	// SendContext transmits one frame, giving up when ctx is done
	SendContext(ctx context.Context, frame []byte) error
}

// transportContextAdapter wraps a Transport to provide context support
type transportContextAdapter struct {
	Transport
}

// SendContext runs Send in a goroutine so a wedged link cannot hold the caller
// past its context.
func (t *transportContextAdapter) SendContext(ctx context.Context, frame []byte) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled before send: %w", ctx.Err())
	default:
	}

	result := make(chan error, 1)
	go func() {
		result <- t.Send(frame)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while sending: %w", ctx.Err())
	case err := <-result:
		return err
	}
}

// AsTransportContext converts a Transport to TransportContext
func AsTransportContext(t Transport) TransportContext {
	if tc, ok := t.(TransportContext); ok {
		return tc
	}
	return &transportContextAdapter{Transport: t}
}
