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

import "context"

// Sync issues a SYNC request and copies the reply into dest. The device
// status is returned as a *StatusError.
func (e *Engine) Sync(ctx context.Context, id uint16, payload, dest []byte) (int, error) {
	return e.simpleCall(ctx, TypeSync, id, 0, 0, payload, dest)
}

// IoctlStatus issues a request answered with an IOCTL_STATUS frame
func (e *Engine) IoctlStatus(ctx context.Context, id uint16, payload []byte) error {
	_, err := e.simpleCall(ctx, TypeIoctlStatus, id, 0, 0, payload, []byte{})
	return err
}

// IwHandler issues a wireless-extension handler request for one virtual
// interface. Replies longer than one frame are reassembled.
func (e *Engine) IwHandler(ctx context.Context, id, devID, devType uint16, payload, dest []byte) (int, error) {
	return e.simpleCall(ctx, TypeIwHandler, id, devID, devType, payload, dest)
}

// CopyToUser issues a request answered by a stream of COPY_TO_USER frames
// terminated by a SYNC status frame.
func (e *Engine) CopyToUser(ctx context.Context, id uint16, payload, dest []byte) (int, error) {
	return e.simpleCall(ctx, TypeCopyToUser, id, 0, 0, payload, dest)
}

func (e *Engine) simpleCall(ctx context.Context, typ CommandType, id, devID, devType uint16,
	payload, dest []byte,
) (int, error) {
	res, err := e.Call(ctx, Request{
		Type:       typ,
		CommandID:  id,
		CommandSeq: e.NextCommandSeq(),
		DevID:      devID,
		DevType:    devType,
		Payload:    payload,
		Dest:       dest,
	})
	return res.N, err
}
