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
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// EnvLogLevel overrides the configured log level
const EnvLogLevel = "RACFG_LOG_LEVEL"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "racfgd",
	Short: "RaCfg NIC control daemon",
	Long: `racfgd drives a Ralink-style NIC over the RaCfg in-band control protocol.

It uploads the profile and firmware when the device announces itself,
supervises the heartbeat, relays wireless events and persists configuration
rewritten by the firmware.

Links:
  rawsock: an Ethernet interface facing the NIC (needs CAP_NET_RAW)
  uart:    a serial debug port carrying KISS-framed Ethernet frames`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/racfgd.toml", "Configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
}

// newLogger builds the console logger. The flag wins over the environment,
// which wins over the config file.
func newLogger(configured string) zerolog.Logger {
	level := configured
	if env := strings.TrimSpace(os.Getenv(EnvLogLevel)); env != "" {
		level = env
	}
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "racfgd").Logger()
}
