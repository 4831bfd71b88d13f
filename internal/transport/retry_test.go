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

package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()
	attempts := 0
	retries := 0

	got, err := WithRetry(RetryConfig{
		MaxRetries: 3,
		OnRetry: func() error {
			retries++
			return nil
		},
	}, func() (int, bool, error) {
		attempts++
		if attempts < 3 {
			return 0, true, nil
		}
		return 42, false, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, retries)
}

func TestWithRetryExhausted(t *testing.T) {
	t.Parallel()
	attempts := 0

	_, err := WithRetry(RetryConfig{MaxRetries: 2, Description: "send"}, func() (int, bool, error) {
		attempts++
		return 0, true, nil
	})

	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Contains(t, err.Error(), "send")
	assert.Equal(t, 3, attempts)
}

func TestWithRetryPermanentErrorStops(t *testing.T) {
	t.Parallel()
	permanent := errors.New("permanent")
	attempts := 0

	_, err := WithRetry(RetryConfig{MaxRetries: 5}, func() (int, bool, error) {
		attempts++
		return 0, false, permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestTimeoutRetry(t *testing.T) {
	t.Parallel()

	_, err := TimeoutRetry(20*time.Millisecond, time.Millisecond, func() (int, bool, error) {
		return 0, true, nil
	})
	assert.ErrorIs(t, err, ErrTimeout)

	calls := 0
	v, err := TimeoutRetry(time.Second, time.Millisecond, func() (string, bool, error) {
		calls++
		return "up", calls < 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "up", v)
}
