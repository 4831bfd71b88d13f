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
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/ZaparooProject/go-racfg/detection"
	"github.com/ZaparooProject/go-racfg/upload"
	"github.com/spf13/cobra"
)

var (
	ignoreLinks []string
	includeDown bool
)

var trailerCmd = &cobra.Command{
	Use:   "trailer <image>",
	Short: "Check the trailer and CRC of a firmware image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, ok, err := upload.VerifyFile(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "version:  %s\n", t.Version)
		_, _ = fmt.Fprintf(out, "date:     %s\n", t.Date)
		_, _ = fmt.Fprintf(out, "size:     %d\n", t.BodySize)
		_, _ = fmt.Fprintf(out, "crc:      0x%08X\n", t.Expected())
		if !ok {
			_, _ = fmt.Fprintln(out, "status:   CORRUPT")
			return fmt.Errorf("%s: checksum mismatch", args[0])
		}
		_, _ = fmt.Fprintln(out, "status:   ok")
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Print a parsed device profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := upload.LoadProfile(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, k := range p.Keys() {
			v, _ := p.Get(k)
			_, _ = fmt.Fprintf(out, "%s=%s\n", k, v)
		}
		l := p.VLANLimits()
		_, _ = fmt.Fprintf(out, "# interfaces: mbss=%d wds=%d apcli=%d mesh=%d\n", l.MBSS, l.WDS, l.APCLI, l.Mesh)
		return nil
	},
}

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List links racfgd can run over",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		opts := detection.DefaultOptions()
		opts.IgnorePaths = ignoreLinks
		opts.IncludeDown = includeDown

		links, err := detection.DetectAll(ctx, &opts)
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tTRANSPORT\tADDRESS\tSTATE\tDETAIL")
		for _, l := range links {
			addr := l.VIDPID
			if l.MAC != nil {
				addr = l.MAC.String()
			}
			state := "down"
			if l.Up {
				state = "up"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.Name, l.Transport, addr, state, l.Description)
		}
		_ = w.Flush()
		return err
	},
}

func init() {
	interfacesCmd.Flags().StringSliceVar(&ignoreLinks, "ignore", nil, "Interface names or port paths to skip")
	interfacesCmd.Flags().BoolVar(&includeDown, "all", false, "Include interfaces that are down")
	rootCmd.AddCommand(trailerCmd, profileCmd, interfacesCmd)
}
