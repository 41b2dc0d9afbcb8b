// Copyright 2025 The Cast Authors
// This file is part of Cast.
//
// Cast is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Cast is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Cast. If not, see <http://www.gnu.org/licenses/>.

// Command hsync is the CLI shell around sync.HSync, registry.RegisterCast,
// and sync.DoReport. Flag parsing and output formatting live here; the
// merge semantics live in the sync package.
package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/castkit/cast/castlog"
	"github.com/castkit/cast/registry"
	"github.com/castkit/cast/sync"
)

var (
	flagPeers          []string
	flagFile           string
	flagDryRun         bool
	flagNonInteractive bool
	flagCascade        bool
	flagLogLevel       string
)

func main() {
	root := &cobra.Command{
		Use:   "hsync",
		Short: "Horizontal sync for content-addressed markdown casts",
	}
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "debug|info|warn|error")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		castlog.SetRoot(castlog.New(flagLogLevel))
	}

	root.AddCommand(newRunCmd(), newRegisterCmd(), newReportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hsync:", err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [cast-root]",
		Short: "Reconcile a cast against its declared peers",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHSync,
	}
	cmd.Flags().StringSliceVar(&flagPeers, "peer", nil, "restrict to these peer names (repeatable)")
	cmd.Flags().StringVar(&flagFile, "file", "", "restrict the run to a single path or cast-id")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "compute and report the plan without touching disk")
	cmd.Flags().BoolVar(&flagNonInteractive, "non-interactive", false, "never prompt; record conflicts and exit 3")
	cmd.Flags().BoolVar(&flagCascade, "cascade", false, "re-invoke hsync from every live peer touched by this run")
	return cmd
}

func runHSync(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	reg, err := registry.Load(registry.Home())
	if err != nil {
		return err
	}
	report, err := sync.HSync(reg, root, sync.Options{
		Peers:          flagPeers,
		File:           flagFile,
		DryRun:         flagDryRun,
		NonInteractive: flagNonInteractive,
		Cascade:        flagCascade,
	})
	if err != nil {
		return err
	}
	printReport(report)
	if report.ExitCode != 0 {
		os.Exit(report.ExitCode)
	}
	return nil
}

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register [cast-root]",
		Short: "Register (or re-register) a directory as a cast",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			reg, err := registry.Load(registry.Home())
			if err != nil {
				return err
			}
			cfg, err := reg.RegisterCast(root)
			if err != nil {
				return err
			}
			fmt.Printf("registered %q (%s)\n", cfg.CastName, cfg.CastID)
			return nil
		},
	}
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report [cast-root]",
		Short: "Read-only diagnostic: indexed files, peers, and issues",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			reg, err := registry.Load(registry.Home())
			if err != nil {
				return err
			}
			result, err := sync.DoReport(reg, root)
			if err != nil {
				return err
			}
			printReportResult(result)
			return nil
		},
	}
}

func printReport(r *sync.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"cast_id", "peer", "action"})
	for _, a := range r.Actions {
		if a.Kind.String() == "NO_OP" {
			continue
		}
		t.AppendRow(table.Row{a.CastID, a.Peer, a.Kind.String()})
	}
	t.Render()

	for _, c := range r.Conflicts {
		fmt.Printf("CONFLICT %s: local=%q peer=%q (%s)\n", c.CastID, c.LocalRel, c.PeerRel, c.Peer)
	}
	for _, i := range r.Issues {
		fmt.Printf("ISSUE %s: %s (%s)\n", i.Kind, i.Path, i.Peer)
	}
}

func printReportResult(r *sync.ReportResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"cast_id", "path", "peers"})
	for _, f := range r.Files {
		t.AppendRow(table.Row{f.CastID, f.RelPath, len(f.Peers)})
	}
	t.Render()
	fmt.Printf("%d file(s), %d peer(s)\n", r.FileCount, len(r.Peers))
	for _, i := range r.Issues {
		fmt.Printf("ISSUE %s: %s (%s)\n", i.Kind, i.Path, i.Peer)
	}
}
