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
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	racfg "github.com/ZaparooProject/go-racfg"
	"github.com/ZaparooProject/go-racfg/upload"
	"github.com/ZaparooProject/go-racfg/vlan"
)

var errConfig = errors.New("invalid configuration")

type fileConfig struct {
	Transport         string `toml:"transport"`
	Interface         string `toml:"interface"`
	Port              string `toml:"port"`
	BaudRate          int    `toml:"baud_rate"`
	MAC               string `toml:"mac"`
	Profile           string `toml:"profile"`
	EEPROM            string `toml:"eeprom"`
	Firmware          string `toml:"firmware"`
	WSCPath           string `toml:"wsc_path"`
	EEPROMPath        string `toml:"eeprom_rewrite_path"`
	ResetPin          string `toml:"reset_pin"`
	ResetActiveHigh   bool   `toml:"reset_active_high"`
	HeartbeatInterval string `toml:"heartbeat_interval"`
	CallTimeout       string `toml:"call_timeout"`
	ResendInterval    string `toml:"resend_interval"`
	LinkWait          string `toml:"link_wait"`
	MaxAttempts       int    `toml:"max_attempts"`
	MetricsAddr       string `toml:"metrics_addr"`
	LogLevel          string `toml:"log_level"`
	BootOnStart       bool   `toml:"boot_on_start"`
	AdminDown         bool   `toml:"admin_down"`
	VLAN              struct {
		MBSS  int `toml:"mbss"`
		WDS   int `toml:"wds"`
		APCLI int `toml:"apcli"`
		Mesh  int `toml:"mesh"`
		// User maps interface names ("wds1") to the id restored on receive
		User map[string]int `toml:"user"`
	} `toml:"vlan"`
}

// userVLAN is the id restored on frames received for one virtual interface
type userVLAN struct {
	Family vlan.Family
	Index  int
	VID    uint16
}

// daemonConfig is the validated configuration of one racfgd instance
type daemonConfig struct {
	Upload            *upload.Config
	Transport         string
	Interface         string
	Port              string
	MAC               string
	WSCPath           string
	EEPROMPath        string
	ResetPin          string
	MetricsAddr       string
	LogLevel          string
	VLAN              vlan.Limits
	UserVLANs         []userVLAN
	BaudRate          int
	HeartbeatInterval time.Duration
	CallTimeout       time.Duration
	LinkWait          time.Duration
	ResetActiveHigh   bool
	BootOnStart       bool
	AdminDown         bool
}

func defaultDaemonConfig() daemonConfig {
	return daemonConfig{
		Transport:         "rawsock",
		Upload:            upload.DefaultConfig(),
		HeartbeatInterval: 10 * time.Second,
		CallTimeout:       racfg.DefaultCallTimeout,
		LinkWait:          30 * time.Second,
		MetricsAddr:       ":9612",
		LogLevel:          "info",
	}
}

func loadConfig(path string) (daemonConfig, error) {
	cfg := defaultDaemonConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return daemonConfig{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return daemonConfig{}, fmt.Errorf("%w: unknown key %q", errConfig, undecoded[0].String())
	}

	if meta.IsDefined("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}
	cfg.Interface = strings.TrimSpace(raw.Interface)
	cfg.Port = strings.TrimSpace(raw.Port)
	cfg.BaudRate = raw.BaudRate
	cfg.MAC = strings.TrimSpace(raw.MAC)
	cfg.WSCPath = raw.WSCPath
	cfg.EEPROMPath = raw.EEPROMPath
	cfg.ResetPin = strings.TrimSpace(raw.ResetPin)
	cfg.ResetActiveHigh = raw.ResetActiveHigh
	cfg.BootOnStart = raw.BootOnStart
	cfg.AdminDown = raw.AdminDown
	cfg.VLAN = vlan.Limits{MBSS: raw.VLAN.MBSS, WDS: raw.VLAN.WDS, APCLI: raw.VLAN.APCLI, Mesh: raw.VLAN.Mesh}
	users, err := parseUserVLANs(raw.VLAN.User)
	if err != nil {
		return daemonConfig{}, err
	}
	cfg.UserVLANs = users

	cfg.Upload.ProfilePath = raw.Profile
	cfg.Upload.EEPROMPath = raw.EEPROM
	cfg.Upload.FirmwarePath = raw.Firmware
	if meta.IsDefined("max_attempts") {
		cfg.Upload.MaxAttempts = raw.MaxAttempts
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	durations := []struct {
		dst *time.Duration
		key string
		val string
	}{
		{key: "heartbeat_interval", val: raw.HeartbeatInterval, dst: &cfg.HeartbeatInterval},
		{key: "call_timeout", val: raw.CallTimeout, dst: &cfg.CallTimeout},
		{key: "resend_interval", val: raw.ResendInterval, dst: &cfg.Upload.ResendInterval},
		{key: "link_wait", val: raw.LinkWait, dst: &cfg.LinkWait},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.val))
		if err != nil {
			return daemonConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	return cfg, cfg.validate()
}

func parseUserVLANs(raw map[string]int) ([]userVLAN, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	slices.Sort(names)

	users := make([]userVLAN, 0, len(names))
	for _, name := range names {
		f, idx, err := vlan.ParseName(strings.ToLower(name))
		if err != nil {
			return nil, fmt.Errorf("%w: vlan.user: %w", errConfig, err)
		}
		vid := raw[name]
		if vid < 1 || vid > 4094 {
			return nil, fmt.Errorf("%w: vlan.user.%s: id %d out of range", errConfig, name, vid)
		}
		users = append(users, userVLAN{Family: f, Index: idx, VID: uint16(vid)})
	}
	return users, nil
}

func (c *daemonConfig) validate() error {
	switch c.Transport {
	case "rawsock":
		if c.Interface == "" {
			return fmt.Errorf("%w: rawsock transport needs interface", errConfig)
		}
	case "uart":
		if c.Port == "" {
			return fmt.Errorf("%w: uart transport needs port", errConfig)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", errConfig, c.Transport)
	}
	if c.Upload.FirmwarePath == "" {
		return fmt.Errorf("%w: firmware path is required", errConfig)
	}
	if c.HeartbeatInterval <= 0 || c.CallTimeout <= 0 {
		return fmt.Errorf("%w: intervals must be positive", errConfig)
	}
	if c.LinkWait < 0 {
		return fmt.Errorf("%w: link_wait must not be negative", errConfig)
	}
	for _, f := range vlan.Families {
		if n := c.VLAN.Of(f); n < 0 || n >= vlan.FamilyWidth {
			return fmt.Errorf("%w: %s count %d out of range", errConfig, f, n)
		}
	}
	return nil
}
