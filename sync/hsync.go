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
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/castkit/cast/castlog"
	"github.com/castkit/cast/index"
	"github.com/castkit/cast/registry"
	"github.com/castkit/cast/syncplan"
	"github.com/castkit/cast/syncstate"
)

// maxConcurrentPeerPrep bounds how many peers' index/state are loaded at
// once; the merge/apply step that follows stays strictly sequential so
// report ordering and baseline writes never race.
const maxConcurrentPeerPrep = 8

// peerPrep is one peer's resolved root, index, and sync-state, or the
// error that kept it from being ready for runPair.
type peerPrep struct {
	name         string
	castID       string
	root         string
	vaultRoot    string
	ix           *index.Index
	state        *syncstate.State
	unregistered bool
	err          error
}

// preparePeers resolves, indexes, and loads sync-state for every peer
// concurrently (each peer's root is independent disk I/O); the returned
// slice preserves peerNames' order so the caller's merge loop stays
// deterministic.
func preparePeers(reg *registry.Registry, peerNames []string, opts Options) []peerPrep {
	preps := make([]peerPrep, len(peerNames))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(maxConcurrentPeerPrep)

	for i, name := range peerNames {
		i, name := i, name
		preps[i].name = name
		g.Go(func() error {
			peerRoot, err := reg.ResolveCast(name)
			if err != nil {
				preps[i].unregistered = true
				preps[i].err = err
				return nil
			}
			peerCfg, err := registry.ReadConfig(peerRoot)
			if err != nil {
				preps[i].err = err
				return nil
			}
			vaultRoot := filepath.Join(peerRoot, peerCfg.CastLocation)
			ix, err := index.Build(vaultRoot, index.Options{Fixup: !opts.DryRun})
			if err != nil {
				preps[i].err = err
				return nil
			}
			state, err := syncstate.Load(peerRoot)
			if err != nil {
				preps[i].err = err
				return nil
			}
			preps[i].castID = peerCfg.CastID
			preps[i].root = peerRoot
			preps[i].vaultRoot = vaultRoot
			preps[i].ix = ix
			preps[i].state = state
			return nil
		})
	}
	_ = g.Wait() // per-peer errors are carried in preps, not propagated
	return preps
}

// HSync is the primary entry point (spec.md 6.5): reconcile root's cast
// against every referenced peer. With opts.Cascade, it then re-invokes
// itself from each live peer actually touched, tracking visited cast_ids
// to survive cycles (spec.md design note 9).
func HSync(reg *registry.Registry, root string, opts Options) (*Report, error) {
	return hsyncInternal(reg, root, opts, map[string]bool{})
}

func hsyncInternal(reg *registry.Registry, root string, opts Options, globalVisited map[string]bool) (*Report, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	report := newReport(root)

	cfg, err := registry.ReadConfig(root)
	if err != nil {
		return nil, err
	}
	localVaultRoot := filepath.Join(root, cfg.CastLocation)

	lock, err := acquireLock(root)
	if err != nil {
		return nil, err
	}
	defer releaseLock(lock)

	localIx, err := index.Build(localVaultRoot, index.Options{Fixup: !opts.DryRun, LimitFile: opts.File})
	if err != nil {
		return nil, err
	}
	localState, err := syncstate.Load(root)
	if err != nil {
		return nil, err
	}

	peerNames := opts.Peers
	if len(peerNames) == 0 {
		for name := range localIx.AllPeers() {
			peerNames = append(peerNames, name)
		}
	}
	sort.Strings(peerNames)

	var prompt promptFunc
	if !opts.NonInteractive {
		in := opts.InputStream
		if in == nil {
			in = os.Stdin
		}
		prompt = readerPrompt(in)
	}

	anyFatal := false
	touchedLivePeers := map[string]string{} // peer cast_id -> peer root

	for _, p := range preparePeers(reg, peerNames, opts) {
		report.Casts = append(report.Casts, p.name)

		if p.unregistered {
			report.addIssue(Issue{Kind: "unregistered_peer", Peer: p.name})
			castlog.Warn("peer unavailable", "peer", p.name, "err", p.err)
			anyFatal = true
			continue
		}
		if p.err != nil {
			castlog.Warn("peer preparation failed", "peer", p.name, "err", p.err)
			anyFatal = true
			continue
		}

		ctx := &pairCtx{
			report:         report,
			localVaultRoot: localVaultRoot,
			peerVaultRoot:  p.vaultRoot,
			localCastName:  cfg.CastName,
			peerKey:        p.name,
			localState:     localState,
			peerState:      p.state,
			mode:           hsyncMode(cfg.CastName, p.name),
			prompt:         prompt,
			dryRun:         opts.DryRun,
		}

		actionsBefore := len(report.Actions)
		runErr := runPair(ctx, localIx, p.ix)

		if !opts.DryRun {
			if err := syncstate.Save(p.root, p.state); err != nil {
				castlog.Warn("failed to save peer state", "peer", p.name, "err", err)
			}
		}
		for _, a := range report.Actions[actionsBefore:] {
			if a.Kind == syncplan.NoOp {
				continue
			}
			local, _ := localIx.GetByID(a.CastID)
			peer, _ := p.ix.GetByID(a.CastID)
			if ctx.mode(local, peer) == syncplan.Live {
				touchedLivePeers[p.castID] = p.root
				break
			}
		}
		if runErr != nil {
			if errors.Is(runErr, errCancelled) {
				break
			}
			return nil, runErr
		}
	}

	if !opts.DryRun {
		if err := syncstate.Save(root, localState); err != nil {
			return nil, err
		}
	}

	if anyFatal && report.ExitCode == 0 {
		report.ExitCode = 1
	}

	if opts.Cascade {
		globalVisited[cfg.CastID] = true
		for peerCastID, peerRoot := range touchedLivePeers {
			if globalVisited[peerCastID] {
				continue
			}
			globalVisited[peerCastID] = true
			sub, err := hsyncInternal(reg, peerRoot, Options{NonInteractive: true, Cascade: true, DryRun: opts.DryRun}, globalVisited)
			if err != nil {
				castlog.Warn("cascade hop failed", "peer_root", peerRoot, "err", err)
				continue
			}
			report.Actions = append(report.Actions, sub.Actions...)
			report.Conflicts = append(report.Conflicts, sub.Conflicts...)
			if sub.ExitCode > report.ExitCode {
				report.ExitCode = sub.ExitCode
			}
		}
	}

	return report, nil
}

func (r *Report) addIssue(i Issue) { r.Issues = append(r.Issues, i) }

// hsyncMode resolves the live/watch relationship for a (local, peer)
// record pair: local's own declaration wins; absent a local file, fall
// back to the peer's symmetric declaration (needed when local already
// deleted its copy — rule 2 still needs a mode to pick DELETE_PEER vs.
// CLEAR_BASELINE).
func hsyncMode(localCastName, peerName string) func(local, peer *index.FileRec) syncplan.Mode {
	return func(local, peer *index.FileRec) syncplan.Mode {
		if local != nil {
			if m, ok := local.Peers[peerName]; ok {
				return syncplan.Mode(m)
			}
		}
		if peer != nil {
			if m, ok := peer.Peers[localCastName]; ok {
				return syncplan.Mode(m)
			}
		}
		return syncplan.Live
	}
}

// PeerUnavailableIssues reports every peer that is not registered (the
// unregistered_peer Issues), for callers that want to surface
// casterr.PeerUnavailable explicitly rather than reading Issues. Peers
// that are registered but whose root or config could not be read are
// only logged and do not appear here.
func PeerUnavailableIssues(r *Report) []string {
	var out []string
	for _, i := range r.Issues {
		if i.Kind == "unregistered_peer" {
			out = append(out, i.Peer)
		}
	}
	return out
}
