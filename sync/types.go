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

// Package sync wires the decision engine (syncplan) to disk: the action
// executor (C8), the hsync/cbsync/report entry points, and cascade
// propagation (C9 shares the same machinery with a two-party topology).
package sync

import (
	"io"

	"github.com/castkit/cast/casterr"
	"github.com/castkit/cast/syncplan"
)

// DefaultCodebaseSubpath is the conventional subtree root on a codebase
// target, treated as a system constant per spec.md 9's open question.
const DefaultCodebaseSubpath = "docs/cast"

// Options configures a single hsync/cbsync invocation.
type Options struct {
	// File restricts the run to a single path or cast-id (spec.md 4.4
	// step 5, threaded through to the index builder as LimitFile).
	File string
	// Peers restricts which peers are visited; empty means all peers
	// referenced anywhere in the local index.
	Peers []string
	// DryRun computes and reports the plan without touching disk.
	DryRun bool
	// NonInteractive, when true, never prompts: conflicts are recorded
	// and the run exits 3 rather than blocking on input.
	NonInteractive bool
	// Cascade re-invokes hsync from every live peer touched by a
	// non-NO_OP action in this run.
	Cascade bool
	// InputStream supplies conflict resolutions in interactive mode;
	// defaults to os.Stdin when nil.
	InputStream io.Reader
}

// ActionRecord is one applied (or dry-run planned) action, kept for the
// report and for deciding cascade's frontier.
type ActionRecord struct {
	CastID  string
	Peer    string
	Kind    syncplan.ActionKind
	Detail  string
	DryRun  bool
}

// Issue is a non-fatal, report-only diagnostic surfaced by the
// doctor-style expansion of report() (SPEC_FULL.md 12).
type Issue struct {
	Kind string // "front_matter_invalid" | "unregistered_peer"
	Path string
	Peer string
}

// Report is the result of hsync/cbsync: a typed outcome, never a bag of
// strings, so callers (CLI, tests) can inspect it structurally.
type Report struct {
	Root      string
	Casts     []string // peer (or codebase) names visited
	Actions   []ActionRecord
	Conflicts []*casterr.Conflict
	Issues    []Issue
	Visited   map[string]bool // cast_ids with a non-NO_OP action this run
	ExitCode  int             // 0 success, 3 success-with-conflicts, other fatal
}

func newReport(root string) *Report {
	return &Report{Root: root, Visited: map[string]bool{}}
}

func (r *Report) addConflict(c *casterr.Conflict) {
	r.Conflicts = append(r.Conflicts, c)
	if r.ExitCode == 0 {
		r.ExitCode = 3
	}
}

// ReportResult is report()'s read-only diagnostic shape (spec.md 6.5),
// expanded with Issues per SPEC_FULL.md 12.
type ReportResult struct {
	Files     []ReportFile
	Peers     []string
	FileCount int
	Issues    []Issue
}

// ReportFile is one indexed file's summary line.
type ReportFile struct {
	CastID  string
	RelPath string
	Peers   map[string]string
}
