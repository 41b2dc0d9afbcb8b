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

// Package syncplan is the decision engine (C7): a pure function mapping
// a (local, peer, baseline, mode) tuple to a single SyncAction. It
// performs no I/O and imports nothing outside the standard library and
// casterr's conflict-kind constants, so it stays trivially unit
// testable (spec.md design note: "the decision engine remains pure and
// testable without any I/O").
package syncplan

import (
	"fmt"

	"github.com/castkit/cast/casterr"
)

// Mode is a peer relationship: live (bidirectional) or watch (local
// follows peer, never writes to it).
type Mode string

const (
	Live  Mode = "live"
	Watch Mode = "watch"
)

// FileSide is the minimal shape of a FileRec the decision engine needs
// from either the local or the peer cast.
type FileSide struct {
	Present bool
	CastID  string
	RelPath string
	Digest  string
}

// Baseline is the minimal shape of a persisted baseline entry the
// decision engine needs.
type Baseline struct {
	Digest  string
	Rel     string
	PeerRel string
}

// ActionKind discriminates the SyncAction variants from spec.md 4.7.
type ActionKind int

const (
	NoOp ActionKind = iota
	Push
	Pull
	RenamePeer
	RenameLocal
	SafePushCopy
	DeletePeer
	DeleteLocal
	ClearBaseline
	Conflict
)

func (k ActionKind) String() string {
	switch k {
	case NoOp:
		return "NO_OP"
	case Push:
		return "PUSH"
	case Pull:
		return "PULL"
	case RenamePeer:
		return "RENAME_PEER"
	case RenameLocal:
		return "RENAME_LOCAL"
	case SafePushCopy:
		return "SAFE_PUSH_COPY"
	case DeletePeer:
		return "DELETE_PEER"
	case DeleteLocal:
		return "DELETE_LOCAL"
	case ClearBaseline:
		return "CLEAR_BASELINE"
	case Conflict:
		return "CONFLICT"
	default:
		return "UNKNOWN"
	}
}

// Action is the outcome of Decide for one (cast_id, peer) pair.
type Action struct {
	Kind ActionKind

	// OldRel/NewRel apply to RenamePeer and RenameLocal.
	OldRel, NewRel string

	// SafePushTo/SafePushSuffix apply to SafePushCopy: the write target
	// is SafePushTo with SafePushSuffix inserted before the extension.
	// The numeric tie-break ("(~from X) 2", "(~from X) 3", ...) is an
	// executor concern (it requires checking what already exists at the
	// destination), so Decide only supplies the base suffix text.
	SafePushTo, SafePushSuffix string

	// ConflictDetail applies to Conflict.
	ConflictDetail casterr.ConflictKindDetail
}

// Decide is the pure three-way merge. localDeclaresPeer answers rule 3's
// "peer's cast declares this file" condition, resolved (per DESIGN.md)
// as: local's own cast-hsync currently names this peer. localCastName
// names the local cast, used only to build a SafePushCopy suffix.
func Decide(local, peer FileSide, baseline *Baseline, mode Mode, localDeclaresPeer bool, localCastName string) Action {
	switch {
	case !local.Present && !peer.Present:
		return decideBothAbsent(baseline)
	case !local.Present && peer.Present:
		return decideLocalAbsent(peer, baseline, mode)
	case local.Present && !peer.Present:
		return decideLocalPresent(local, baseline, mode, localDeclaresPeer)
	default:
		return decideBothPresent(local, peer, baseline, mode, localCastName)
	}
}

func decideBothAbsent(baseline *Baseline) Action {
	if baseline != nil {
		return Action{Kind: ClearBaseline}
	}
	return Action{Kind: NoOp}
}

func decideLocalAbsent(peer FileSide, baseline *Baseline, mode Mode) Action {
	if baseline == nil {
		return Action{Kind: Pull}
	}
	if peer.Digest == baseline.Digest {
		if mode == Live {
			return Action{Kind: DeletePeer}
		}
		return Action{Kind: ClearBaseline}
	}
	return Action{Kind: Conflict, ConflictDetail: casterr.ConflictContent}
}

func decideLocalPresent(local FileSide, baseline *Baseline, mode Mode, localDeclaresPeer bool) Action {
	if baseline == nil {
		if localDeclaresPeer {
			return Action{Kind: Push}
		}
		return Action{Kind: NoOp}
	}
	if local.Digest == baseline.Digest {
		return Action{Kind: DeleteLocal}
	}
	if mode == Live {
		return Action{Kind: Push}
	}
	return Action{Kind: NoOp}
}

func decideBothPresent(local, peer FileSide, baseline *Baseline, mode Mode, localCastName string) Action {
	if local.Digest == peer.Digest {
		return decideBothPresentSameDigest(local, peer, baseline, mode)
	}
	return decideBothPresentDifferentDigest(local, peer, baseline, mode, localCastName)
}

func decideBothPresentSameDigest(local, peer FileSide, baseline *Baseline, mode Mode) Action {
	if local.RelPath == peer.RelPath {
		return Action{Kind: NoOp}
	}
	if baseline != nil && baseline.Rel != local.RelPath && baseline.PeerRel != peer.RelPath {
		return Action{Kind: Conflict, ConflictDetail: casterr.ConflictRename}
	}
	if mode == Live {
		return Action{Kind: RenamePeer, OldRel: peer.RelPath, NewRel: local.RelPath}
	}
	return Action{Kind: RenameLocal, OldRel: local.RelPath, NewRel: peer.RelPath}
}

func decideBothPresentDifferentDigest(local, peer FileSide, baseline *Baseline, mode Mode, localCastName string) Action {
	if baseline == nil {
		if peer.CastID != local.CastID {
			return Action{
				Kind:           SafePushCopy,
				SafePushTo:     peer.RelPath,
				SafePushSuffix: fmt.Sprintf(" (~from %s)", localCastName),
			}
		}
		return Action{Kind: Conflict, ConflictDetail: casterr.ConflictContent}
	}
	if local.Digest == baseline.Digest {
		return Action{Kind: Pull}
	}
	if peer.Digest == baseline.Digest {
		if mode == Live {
			return Action{Kind: Push}
		}
		return Action{Kind: NoOp}
	}
	return Action{Kind: Conflict, ConflictDetail: casterr.ConflictContent}
}
