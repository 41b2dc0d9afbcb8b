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
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/castkit/cast/frontmatter"
	"github.com/castkit/cast/registry"
)

// DoReport is the read-only diagnostic entry point (spec.md 6.5), expanded
// per SPEC_FULL.md 12 with doctor-style Issues: files whose front matter
// failed to parse, and peers named in cast-hsync that aren't registered
// anywhere in reg. It never writes to disk, unlike HSync/CBSync's Fixup
// pass.
func DoReport(reg *registry.Registry, root string) (*ReportResult, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	cfg, err := registry.ReadConfig(root)
	if err != nil {
		return nil, err
	}
	vaultRoot := filepath.Join(root, cfg.CastLocation)

	known := map[string]bool{}
	for _, c := range reg.ListCasts() {
		known[c.CastName] = true
	}

	result := &ReportResult{}
	peerSet := map[string]bool{}

	err = filepath.WalkDir(vaultRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, rerr := filepath.Rel(vaultRoot, path)
		if rerr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		content, rerr := os.ReadFile(path)
		if rerr != nil {
			result.Issues = append(result.Issues, Issue{Kind: "front_matter_invalid", Path: rel})
			return nil
		}
		fm, _, hasCastFields, perr := frontmatter.Parse(content)
		if perr != nil {
			result.Issues = append(result.Issues, Issue{Kind: "front_matter_invalid", Path: rel})
			return nil
		}
		if !hasCastFields || fm == nil || !fm.Has("cast-id") {
			return nil
		}
		castID := fm.GetString("cast-id")
		if castID == "" {
			return nil
		}

		peers := frontmatter.ParseHsyncEntries(fm.GetStringList("cast-hsync"))
		peerModes := make(map[string]string, len(peers))
		for name, mode := range peers {
			peerModes[name] = mode
			peerSet[name] = true
			if !known[name] {
				result.Issues = append(result.Issues, Issue{Kind: "unregistered_peer", Path: rel, Peer: name})
			}
		}

		result.Files = append(result.Files, ReportFile{CastID: castID, RelPath: rel, Peers: peerModes})
		result.FileCount++
		return nil
	})
	if err != nil {
		return nil, err
	}

	for name := range peerSet {
		result.Peers = append(result.Peers, name)
	}
	sort.Strings(result.Peers)
	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].RelPath < result.Files[j].RelPath })

	return result, nil
}
