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

// Package index builds the ephemeral index (C4): walk a cast tree,
// repair/canonicalize files in place, and produce a dual-indexed
// {cast_id -> FileRec} / {relpath -> cast_id} map. FileRec instances
// exist only for the duration of one sync invocation; they are never
// persisted (spec.md 3, Lifecycle).
package index

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/castkit/cast/castlog"
	"github.com/castkit/cast/digest"
	"github.com/castkit/cast/frontmatter"
)

// FileRec is one cast-file's ephemeral record, keyed by cast_id.
type FileRec struct {
	CastID     string
	RelPath    string // POSIX, relative to cast_location root
	Digest     string
	Peers      map[string]string // peer name -> "live"|"watch"
	Codebases  []string
}

// Index is the dual-indexed view of a cast tree built by Build.
type Index struct {
	VaultPath string
	ByID      map[string]*FileRec
	ByPath    map[string]string // relpath -> cast_id
}

func newIndex(vaultPath string) *Index {
	return &Index{VaultPath: vaultPath, ByID: map[string]*FileRec{}, ByPath: map[string]string{}}
}

func (ix *Index) add(rec *FileRec) {
	if prev, ok := ix.ByID[rec.CastID]; ok && prev.RelPath != rec.RelPath {
		castlog.Warn("duplicate cast-id, later file supersedes", "cast_id", rec.CastID, "old_path", prev.RelPath, "new_path", rec.RelPath)
		delete(ix.ByPath, prev.RelPath)
	}
	ix.ByID[rec.CastID] = rec
	ix.ByPath[rec.RelPath] = rec.CastID
}

// GetByID looks up a record by cast_id.
func (ix *Index) GetByID(castID string) (*FileRec, bool) {
	r, ok := ix.ByID[castID]
	return r, ok
}

// GetByPath looks up a record by relative path.
func (ix *Index) GetByPath(relPath string) (*FileRec, bool) {
	id, ok := ix.ByPath[relPath]
	if !ok {
		return nil, false
	}
	return ix.GetByID(id)
}

// AllPeers returns the set of peer names referenced anywhere in the index.
func (ix *Index) AllPeers() map[string]bool {
	out := map[string]bool{}
	for _, rec := range ix.ByID {
		for name := range rec.Peers {
			out[name] = true
		}
	}
	return out
}

// Options controls Build's behavior.
type Options struct {
	// Fixup, when true, repairs missing cast fields and canonical
	// ordering, writing the file back through the front-matter codec.
	Fixup bool
	// LimitFile restricts indexing to a single file, interpretable as
	// absolute, cast-relative, or a cast-id (spec.md 4.4 step 5). A
	// cast-id is found by reading every file in the vault (with Fixup,
	// each file read may be repaired); only the matching record is kept.
	LimitFile string
}

// Build walks vaultPath recursively for *.md files and returns the
// resulting Index.
func Build(vaultPath string, opts Options) (*Index, error) {
	ix := newIndex(vaultPath)

	files, byCastID, err := candidateFiles(vaultPath, opts.LimitFile)
	if err != nil {
		return nil, err
	}

	for _, path := range files {
		rec, err := indexOne(vaultPath, path, opts.Fixup)
		if err != nil {
			castlog.Warn("error indexing file", "path", path, "err", err)
			continue
		}
		if rec == nil {
			continue
		}
		if byCastID && rec.CastID != opts.LimitFile {
			continue
		}
		ix.add(rec)
		if byCastID {
			break
		}
	}
	return ix, nil
}

// candidateFiles returns the files Build reads. The bool is true when
// limitFile did not resolve to a path and is matched as a cast-id instead.
func candidateFiles(vaultPath, limitFile string) ([]string, bool, error) {
	if limitFile == "" {
		files, err := walkMarkdown(vaultPath)
		return files, false, err
	}

	var candidates []string
	if filepath.IsAbs(limitFile) {
		if rel, err := filepath.Rel(vaultPath, limitFile); err == nil && !strings.HasPrefix(rel, "..") {
			candidates = append(candidates, rel)
		}
	} else {
		parts := strings.Split(filepath.ToSlash(limitFile), "/")
		if len(parts) > 0 && parts[0] == filepath.Base(vaultPath) {
			candidates = append(candidates, filepath.Join(parts[1:]...))
		}
		candidates = append(candidates, limitFile)
	}

	for _, rel := range candidates {
		cand := filepath.Join(vaultPath, rel)
		if _, err := os.Stat(cand); err == nil {
			return []string{cand}, false, nil
		}
	}
	// Not resolvable as a path; maybe it's a cast-id — fall back to a
	// full scan and let the caller's cast-id match select it.
	files, err := walkMarkdown(vaultPath)
	return files, true, err
}

func walkMarkdown(vaultPath string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(vaultPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".md") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func indexOne(vaultPath, path string, fixup bool) (*FileRec, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fm, body, hasCastFields, perr := frontmatter.Parse(content)
	if perr != nil || !hasCastFields || fm == nil {
		return nil, nil
	}

	if fixup {
		modified, err := frontmatter.EnsureCastFields(fm)
		if err != nil {
			return nil, err
		}
		needReorder := !frontmatter.IsReordered(fm)
		if modified || needReorder {
			fm = frontmatter.Reorder(fm)
			if err := frontmatter.Write(path, fm, body); err != nil {
				return nil, err
			}
			castlog.Info("fixed cast fields/order", "path", path)
		}
	}

	if !fm.Has("cast-id") {
		return nil, nil
	}
	castID := fm.GetString("cast-id")
	if castID == "" {
		return nil, nil
	}

	peers := frontmatter.ParseHsyncEntries(fm.GetStringList("cast-hsync"))
	codebases := fm.GetStringList("cast-codebases")

	relPath, err := filepath.Rel(vaultPath, path)
	if err != nil {
		return nil, err
	}
	relPath = filepath.ToSlash(relPath)

	return &FileRec{
		CastID:    castID,
		RelPath:   relPath,
		Digest:    digest.Compute(fm, body),
		Peers:     peers,
		Codebases: codebases,
	}, nil
}
