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

package sync

import (
	"bufio"
	"io"
	"strings"
)

// resolution is the collaborator's answer to a conflict prompt (spec.md
// 6.5): keepLocal, keepPeer, or cancel, which aborts the remainder of
// the run (DESIGN.md: no "defer this one" token exists in the contract).
type resolution int

const (
	keepLocal resolution = iota
	keepPeer
	cancelRun
)

// promptFunc is the injected callable the executor asks for a
// resolution; tests can supply a deterministic one without going
// through InputStream (spec.md design note: "expose the prompt as an
// injected callable").
type promptFunc func() (resolution, error)

// readerPrompt builds a promptFunc reading single-token lines from r,
// accepting the literal tokens or the numeric shortcuts 1/2/3
// (SPEC_FULL.md 12).
func readerPrompt(r io.Reader) promptFunc {
	scanner := bufio.NewScanner(r)
	return func() (resolution, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return cancelRun, err
			}
			return cancelRun, nil
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "keep_local", "1":
			return keepLocal, nil
		case "keep_peer", "2":
			return keepPeer, nil
		default:
			return cancelRun, nil
		}
	}
}
