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
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// EnvDebug enables debug output when set to a true value
const EnvDebug = "RACFG_DEBUG"

var (
	loggerMu     sync.RWMutex
	pkgLogger    = zerolog.New(os.Stderr).With().Timestamp().Str("lib", "racfg").Logger()
	debugEnabled atomic.Bool
)

func init() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvDebug))) {
	case "1", "true", "yes", "on":
		debugEnabled.Store(true)
	}
}

// SetDebugEnabled toggles debug-level output from the library
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// SetLogger replaces the library logger
func SetLogger(logger zerolog.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	pkgLogger = logger
}

// Logger returns the library logger
func Logger() zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return pkgLogger
}

func debugf(format string, args ...any) {
	if !debugEnabled.Load() {
		return
	}
	l := Logger()
	l.Debug().Msg(fmt.Sprintf(format, args...))
}

func debugln(args ...any) {
	if !debugEnabled.Load() {
		return
	}
	l := Logger()
	l.Debug().Msg(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}
