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
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/castkit/cast/casterr"
	"github.com/castkit/cast/castlog"
	"github.com/castkit/cast/frontmatter"
	"github.com/castkit/cast/index"
	"github.com/castkit/cast/internal/atomicio"
	"github.com/castkit/cast/linkrewrite"
	"github.com/castkit/cast/syncplan"
	"github.com/castkit/cast/syncstate"
)

// errCancelled signals that an interactive conflict prompt chose
// "cancel"; the run stops but actions already applied stand.
var errCancelled = errors.New("sync: cancelled by collaborator")

// pairCtx holds everything one local-cast-vs-peer sync pass needs.
type pairCtx struct {
	report *Report

	localVaultRoot string
	peerVaultRoot  string
	localCastName  string
	peerKey        string // baseline bucket name: peer cast name, or codebase name

	localState *syncstate.State
	peerState  *syncstate.State // nil for codebase sync (no symmetric peer-side state)

	mode func(local, peer *index.FileRec) syncplan.Mode

	// declares reports whether rec names key as a membership target:
	// cast-hsync peer name for hsync, cast-codebases membership for
	// cbsync. Defaults to a cast-hsync check when nil.
	declares func(rec *index.FileRec, key string) bool

	prompt promptFunc
	dryRun bool
}

func (ctx *pairCtx) declaresFn() func(rec *index.FileRec, key string) bool {
	if ctx.declares != nil {
		return ctx.declares
	}
	return func(rec *index.FileRec, key string) bool {
		_, ok := rec.Peers[key]
		return ok
	}
}

// runPair syncs localIx against peerIx under ctx, mutating both sides'
// files and syncstate (unless ctx.dryRun).
func runPair(ctx *pairCtx, localIx, peerIx *index.Index) error {
	castIDs := pairCastIDs(ctx, localIx, peerIx)

	for _, castID := range castIDs {
		local, localOk := localIx.GetByID(castID)
		peer, peerOk := peerIx.GetByID(castID)

		if !peerOk && localOk {
			if alt, ok := peerIx.GetByPath(local.RelPath); ok && alt.CastID != castID {
				peer, peerOk = alt, true
			}
		}

		baseline, hasBaseline := ctx.localState.Get(castID, ctx.peerKey)
		var bptr *syncplan.Baseline
		if hasBaseline {
			bptr = &syncplan.Baseline{Digest: baseline.Digest, Rel: baseline.Rel, PeerRel: baseline.PeerRel}
		}

		localSide := toSide(local, localOk)
		peerSide := toSide(peer, peerOk)
		mode := ctx.mode(local, peer)
		declares := localOk && ctx.declaresFn()(local, ctx.peerKey)

		action := syncplan.Decide(localSide, peerSide, bptr, mode, declares, ctx.localCastName)

		if err := ctx.apply(castID, local, peer, action); err != nil {
			if errors.Is(err, errCancelled) {
				return err
			}
			castlog.Warn("action failed", "cast_id", castID, "peer", ctx.peerKey, "kind", action.Kind.String(), "err", err)
			continue
		}
		ctx.report.Actions = append(ctx.report.Actions, ActionRecord{
			CastID: castID, Peer: ctx.peerKey, Kind: action.Kind, DryRun: ctx.dryRun,
		})
		if action.Kind != syncplan.NoOp {
			ctx.report.Visited[castID] = true
		}
	}
	return nil
}

func toSide(rec *index.FileRec, ok bool) syncplan.FileSide {
	if !ok || rec == nil {
		return syncplan.FileSide{}
	}
	return syncplan.FileSide{Present: true, CastID: rec.CastID, RelPath: rec.RelPath, Digest: rec.Digest}
}

// pairCastIDs returns, in spec.md 5's stable order (cast_id ascending),
// every cast_id this pair must consider: anything either side declares
// as referencing the other, plus anything with an existing baseline
// (so deletions and stale agreements still get processed).
func pairCastIDs(ctx *pairCtx, localIx, peerIx *index.Index) []string {
	declares := ctx.declaresFn()
	set := map[string]bool{}
	for castID, rec := range localIx.ByID {
		if declares(rec, ctx.peerKey) {
			set[castID] = true
		}
	}
	for castID, rec := range peerIx.ByID {
		if declares(rec, ctx.localCastName) {
			set[castID] = true
		}
	}
	for castID, peers := range ctx.localState.Baselines {
		if _, ok := peers[ctx.peerKey]; ok {
			set[castID] = true
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (ctx *pairCtx) apply(castID string, local, peer *index.FileRec, action syncplan.Action) error {
	switch action.Kind {
	case syncplan.NoOp:
		return nil
	case syncplan.ClearBaseline:
		ctx.clearBaseline(castID)
		return nil
	case syncplan.Push:
		return ctx.doPush(castID, local)
	case syncplan.Pull:
		return ctx.doPull(castID, local, peer)
	case syncplan.RenamePeer:
		return ctx.doRenamePeer(castID, local.Digest, action)
	case syncplan.RenameLocal:
		return ctx.doRenameLocal(castID, local.Digest, action)
	case syncplan.SafePushCopy:
		return ctx.doSafePushCopy(castID, local, action)
	case syncplan.DeletePeer:
		return ctx.doDeletePeer(castID, peer)
	case syncplan.DeleteLocal:
		return ctx.doDeleteLocal(castID, local)
	case syncplan.Conflict:
		return ctx.doConflict(castID, local, peer, action)
	default:
		return nil
	}
}

func (ctx *pairCtx) setAgreement(castID, rel, peerRel, digest string) {
	now := time.Now().UTC().Format(time.RFC3339)
	ctx.localState.Set(castID, ctx.peerKey, syncstate.Baseline{Digest: digest, Rel: rel, PeerRel: peerRel, UpdatedAt: now})
	if ctx.peerState != nil {
		ctx.peerState.Set(castID, ctx.localCastName, syncstate.Baseline{Digest: digest, Rel: peerRel, PeerRel: rel, UpdatedAt: now})
	}
}

func (ctx *pairCtx) clearBaseline(castID string) {
	ctx.localState.Clear(castID, ctx.peerKey)
	if ctx.peerState != nil {
		ctx.peerState.Clear(castID, ctx.localCastName)
	}
}

func (ctx *pairCtx) doPush(castID string, local *index.FileRec) error {
	if ctx.dryRun {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(ctx.localVaultRoot, filepath.FromSlash(local.RelPath)))
	if err != nil {
		return casterr.WrapIoError(local.RelPath, err)
	}
	dest := filepath.Join(ctx.peerVaultRoot, filepath.FromSlash(local.RelPath))
	if existing, rerr := os.ReadFile(dest); rerr == nil {
		if fm, _, _, perr := frontmatter.Parse(existing); perr == nil && fm != nil {
			if id := fm.GetString("cast-id"); id != "" && id != castID {
				return ctx.doSafePushCopy(castID, local, syncplan.Action{
					Kind:           syncplan.SafePushCopy,
					SafePushTo:     local.RelPath,
					SafePushSuffix: " (~from " + ctx.localCastName + ")",
				})
			}
		}
	}
	if err := writeFileAtomicAllDirs(dest, data); err != nil {
		return err
	}
	ctx.setAgreement(castID, local.RelPath, local.RelPath, local.Digest)
	return nil
}

func (ctx *pairCtx) doPull(castID string, local, peer *index.FileRec) error {
	if ctx.dryRun {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(ctx.peerVaultRoot, filepath.FromSlash(peer.RelPath)))
	if err != nil {
		return casterr.WrapIoError(peer.RelPath, err)
	}
	destRel := peer.RelPath
	if local != nil {
		destRel = local.RelPath
	}
	dest := filepath.Join(ctx.localVaultRoot, filepath.FromSlash(destRel))
	if err := writeFileAtomicAllDirs(dest, data); err != nil {
		return err
	}
	ctx.setAgreement(castID, destRel, peer.RelPath, peer.Digest)
	return nil
}

func (ctx *pairCtx) doRenamePeer(castID, digest string, action syncplan.Action) error {
	if ctx.dryRun {
		ctx.setAgreement(castID, action.NewRel, action.NewRel, digest)
		return nil
	}
	oldAbs := filepath.Join(ctx.peerVaultRoot, filepath.FromSlash(action.OldRel))
	newAbs := filepath.Join(ctx.peerVaultRoot, filepath.FromSlash(action.NewRel))
	if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err != nil {
		return casterr.WrapIoError(newAbs, err)
	}
	if err := os.Rename(oldAbs, newAbs); err != nil {
		return casterr.WrapIoError(oldAbs, err)
	}
	if _, err := linkrewrite.Rewrite(ctx.peerVaultRoot, map[string]string{action.OldRel: action.NewRel}); err != nil {
		return err
	}
	ctx.setAgreement(castID, action.NewRel, action.NewRel, digest)
	return nil
}

func (ctx *pairCtx) doRenameLocal(castID, digest string, action syncplan.Action) error {
	if ctx.dryRun {
		ctx.setAgreement(castID, action.NewRel, action.NewRel, digest)
		return nil
	}
	oldAbs := filepath.Join(ctx.localVaultRoot, filepath.FromSlash(action.OldRel))
	newAbs := filepath.Join(ctx.localVaultRoot, filepath.FromSlash(action.NewRel))
	if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err != nil {
		return casterr.WrapIoError(newAbs, err)
	}
	if err := os.Rename(oldAbs, newAbs); err != nil {
		return casterr.WrapIoError(oldAbs, err)
	}
	if _, err := linkrewrite.Rewrite(ctx.localVaultRoot, map[string]string{action.OldRel: action.NewRel}); err != nil {
		return err
	}
	ctx.setAgreement(castID, action.NewRel, action.NewRel, digest)
	return nil
}

func (ctx *pairCtx) doSafePushCopy(castID string, local *index.FileRec, action syncplan.Action) error {
	destRel := safeDestRel(action.SafePushTo, action.SafePushSuffix, func(rel string) bool {
		_, err := os.Stat(filepath.Join(ctx.peerVaultRoot, filepath.FromSlash(rel)))
		return err == nil
	})
	if ctx.dryRun {
		ctx.setAgreement(castID, local.RelPath, destRel, local.Digest)
		return nil
	}
	data, err := os.ReadFile(filepath.Join(ctx.localVaultRoot, filepath.FromSlash(local.RelPath)))
	if err != nil {
		return casterr.WrapIoError(local.RelPath, err)
	}
	dest := filepath.Join(ctx.peerVaultRoot, filepath.FromSlash(destRel))
	if err := writeFileAtomicAllDirs(dest, data); err != nil {
		return err
	}
	ctx.setAgreement(castID, local.RelPath, destRel, local.Digest)
	return nil
}

// safeDestRel inserts suffix before baseRel's extension, escalating with
// " 2", " 3", ... until exists(candidate) is false (spec.md 4.7 tie-break,
// grounded on the original's _safe_dest).
func safeDestRel(baseRel, suffix string, exists func(string) bool) string {
	ext := filepath.Ext(baseRel)
	stem := strings.TrimSuffix(baseRel, ext)
	candidate := stem + suffix + ext
	if !exists(candidate) {
		return candidate
	}
	for n := 2; ; n++ {
		candidate = stem + suffix + " " + strconv.Itoa(n) + ext
		if !exists(candidate) {
			return candidate
		}
	}
}

func (ctx *pairCtx) doDeletePeer(castID string, peer *index.FileRec) error {
	if !ctx.dryRun {
		path := filepath.Join(ctx.peerVaultRoot, filepath.FromSlash(peer.RelPath))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return casterr.WrapIoError(path, err)
		}
	}
	ctx.clearBaseline(castID)
	return nil
}

func (ctx *pairCtx) doDeleteLocal(castID string, local *index.FileRec) error {
	if !ctx.dryRun {
		path := filepath.Join(ctx.localVaultRoot, filepath.FromSlash(local.RelPath))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return casterr.WrapIoError(path, err)
		}
	}
	ctx.clearBaseline(castID)
	return nil
}

func (ctx *pairCtx) doConflict(castID string, local, peer *index.FileRec, action syncplan.Action) error {
	localRel, peerRel := "", ""
	if local != nil {
		localRel = local.RelPath
	}
	if peer != nil {
		peerRel = peer.RelPath
	}
	conflict := &casterr.Conflict{
		DetailKind: action.ConflictDetail,
		CastID:     castID,
		LocalRel:   localRel,
		PeerRel:    peerRel,
		Peer:       ctx.peerKey,
	}

	if ctx.prompt == nil {
		ctx.report.addConflict(conflict)
		return nil
	}

	choice, err := ctx.prompt()
	if err != nil {
		ctx.report.addConflict(conflict)
		return nil
	}
	switch choice {
	case cancelRun:
		ctx.report.addConflict(conflict)
		return errCancelled
	case keepLocal:
		return ctx.resolveKeepLocal(castID, local, peer)
	case keepPeer:
		return ctx.resolveKeepPeer(castID, local, peer)
	default:
		ctx.report.addConflict(conflict)
		return nil
	}
}

// resolveKeepLocal makes local's content and path authoritative: pushes
// it to peer, renaming the peer file into local's path first if they
// currently differ.
func (ctx *pairCtx) resolveKeepLocal(castID string, local, peer *index.FileRec) error {
	if local == nil {
		// Local already deleted this file; keeping "local" means
		// propagating that deletion to the peer.
		if peer != nil {
			return ctx.doDeletePeer(castID, peer)
		}
		return nil
	}
	if peer != nil && peer.RelPath != local.RelPath && !ctx.dryRun {
		oldAbs := filepath.Join(ctx.peerVaultRoot, filepath.FromSlash(peer.RelPath))
		newAbs := filepath.Join(ctx.peerVaultRoot, filepath.FromSlash(local.RelPath))
		if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err == nil {
			os.Rename(oldAbs, newAbs)
			linkrewrite.Rewrite(ctx.peerVaultRoot, map[string]string{peer.RelPath: local.RelPath})
		}
	}
	return ctx.doPush(castID, local)
}

// resolveKeepPeer makes peer's content and path authoritative: local
// adopts the peer's path (renaming + rewriting links) when they differ,
// then its content is overwritten with the peer's (spec.md 4.8: "when
// keep_peer is chosen and paths differ, local additionally adopts the
// peer's path").
func (ctx *pairCtx) resolveKeepPeer(castID string, local, peer *index.FileRec) error {
	if peer == nil {
		if local != nil {
			return ctx.doDeleteLocal(castID, local)
		}
		return nil
	}
	if local != nil && local.RelPath != peer.RelPath && !ctx.dryRun {
		oldAbs := filepath.Join(ctx.localVaultRoot, filepath.FromSlash(local.RelPath))
		newAbs := filepath.Join(ctx.localVaultRoot, filepath.FromSlash(peer.RelPath))
		if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err == nil {
			os.Rename(oldAbs, newAbs)
			linkrewrite.Rewrite(ctx.localVaultRoot, map[string]string{local.RelPath: peer.RelPath})
		}
	}
	return ctx.doPull(castID, nil, peer)
}

func writeFileAtomicAllDirs(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return casterr.WrapIoError(dest, err)
	}
	if err := atomicio.WriteFileOS(dest, data, 0o644); err != nil {
		return casterr.WrapIoError(dest, err)
	}
	return nil
}
