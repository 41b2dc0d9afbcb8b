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

// Command cbsync is the CLI shell around sync.CBSync, registry.
// RegisterCodebase, and sync.Adopt. Two-party topology: a cast root and a
// named codebase, always live.
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
	flagFile           string
	flagDryRun         bool
	flagNonInteractive bool
	flagLogLevel       string
)

func main() {
	root := &cobra.Command{
		Use:   "cbsync",
		Short: "Codebase sync for content-addressed markdown casts",
	}
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "debug|info|warn|error")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		castlog.SetRoot(castlog.New(flagLogLevel))
	}

	root.AddCommand(newRunCmd(), newRegisterCmd(), newAdoptCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cbsync:", err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <codebase-name> [cast-root]",
		Short: "Reconcile a cast against a named codebase",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runCBSync,
	}
	cmd.Flags().StringVar(&flagFile, "file", "", "restrict the run to a single path or cast-id")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "compute and report the plan without touching disk")
	cmd.Flags().BoolVar(&flagNonInteractive, "non-interactive", false, "never prompt; record conflicts and exit 3")
	return cmd
}

func runCBSync(cmd *cobra.Command, args []string) error {
	codebase := args[0]
	root := "."
	if len(args) == 2 {
		root = args[1]
	}
	reg, err := registry.Load(registry.Home())
	if err != nil {
		return err
	}
	report, err := sync.CBSync(reg, root, codebase, sync.Options{
		File:           flagFile,
		DryRun:         flagDryRun,
		NonInteractive: flagNonInteractive,
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
	cmd := &cobra.Command{
		Use:   "register <codebase-name> <codebase-root>",
		Short: "Register a directory as a named codebase",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.Load(registry.Home())
			if err != nil {
				return err
			}
			if err := reg.RegisterCodebase(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("registered codebase %q -> %s\n", args[0], args[1])
			return nil
		},
	}
	return cmd
}

func newAdoptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adopt <cast-root> <rel-path> <codebase-name>",
		Short: "Opt a note into a codebase's cast-codebases/cast-hsync fields",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sync.Adopt(args[0], args[1], args[2])
		},
	}
}

func printReport(r *sync.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"cast_id", "codebase", "action"})
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
