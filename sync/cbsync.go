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
	"os"
	"path/filepath"

	"github.com/castkit/cast/frontmatter"
	"github.com/castkit/cast/index"
	"github.com/castkit/cast/registry"
	"github.com/castkit/cast/syncplan"
	"github.com/castkit/cast/syncstate"
)

// CBSync is the codebase synchronizer (C9): identical merge machinery
// applied with a two-party, always-live topology against a codebase
// root whose note subtree is relocated to DefaultCodebaseSubpath. Only
// files whose cast-codebases names codebaseName (plus cast_ids with an
// existing baseline for it) are merged. Both sides are still indexed in
// full: every note on each side is read and, unless opts.DryRun, gets
// the index builder's fixup rewrite.
func CBSync(reg *registry.Registry, root, codebaseName string, opts Options) (*Report, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	report := newReport(root)
	report.Casts = []string{codebaseName}

	cfg, err := registry.ReadConfig(root)
	if err != nil {
		return nil, err
	}
	localVaultRoot := filepath.Join(root, cfg.CastLocation)

	codebaseRoot, err := reg.ResolveCodebase(codebaseName)
	if err != nil {
		return nil, err
	}
	codebaseVaultRoot := filepath.Join(codebaseRoot, DefaultCodebaseSubpath)

	lock, err := acquireLock(root)
	if err != nil {
		return nil, err
	}
	defer releaseLock(lock)

	localIx, err := index.Build(localVaultRoot, index.Options{Fixup: !opts.DryRun, LimitFile: opts.File})
	if err != nil {
		return nil, err
	}
	codebaseIx, err := index.Build(codebaseVaultRoot, index.Options{Fixup: !opts.DryRun})
	if err != nil {
		return nil, err
	}

	localState, err := syncstate.Load(root)
	if err != nil {
		return nil, err
	}

	var prompt promptFunc
	if !opts.NonInteractive {
		in := opts.InputStream
		if in == nil {
			in = os.Stdin
		}
		prompt = readerPrompt(in)
	}

	membership := codebaseDeclares(codebaseName)
	ctx := &pairCtx{
		report:         report,
		localVaultRoot: localVaultRoot,
		peerVaultRoot:  codebaseVaultRoot,
		localCastName:  cfg.CastName,
		peerKey:        codebaseName,
		localState:     localState,
		peerState:      nil, // the codebase root has no symmetric cast-side state
		mode:           func(*index.FileRec, *index.FileRec) syncplan.Mode { return syncplan.Live },
		declares:       membership,
		prompt:         prompt,
		dryRun:         opts.DryRun,
	}

	if err := runPair(ctx, localIx, codebaseIx); err != nil {
		return nil, err
	}

	if !opts.DryRun {
		if err := syncstate.Save(root, localState); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// Adopt is cbsync's first-contact path (SPEC_FULL.md 12): opt a note that
// does not yet declare codebase membership into it, so the next CBSync
// picks it up. relPath is relative to root's cast_location.
func Adopt(root, relPath, codebaseName string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	cfg, err := registry.ReadConfig(root)
	if err != nil {
		return err
	}
	path := filepath.Join(root, cfg.CastLocation, filepath.FromSlash(relPath))

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fm, body, _, err := frontmatter.Parse(content)
	if err != nil {
		return err
	}
	if fm == nil {
		fm = frontmatter.New()
	}
	if _, err := frontmatter.EnsureCodebaseMembership(fm, codebaseName, cfg.CastName); err != nil {
		return err
	}
	fm = frontmatter.Reorder(fm)
	return frontmatter.Write(path, fm, body)
}

func codebaseDeclares(codebaseName string) func(rec *index.FileRec, key string) bool {
	return func(rec *index.FileRec, _ string) bool {
		for _, c := range rec.Codebases {
			if c == codebaseName {
				return true
			}
		}
		return false
	}
}
