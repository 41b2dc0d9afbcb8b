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

// Package atomicio is the shared write-temp-fsync-rename primitive used
// by the front-matter codec, the sync-state store, and the registry. A
// reader of any of those files never observes a partially written one.
package atomicio

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// WriteFile atomically replaces path's contents on fs. It writes to a
// sibling dotfile temp name, fsyncs it, then renames over path, so a
// crash between the write and the rename leaves the original file (or no
// file) intact, never a half-written one.
//
// fs may be any afero.Fs; afero.NewOsFs() fsyncs for real, while the
// in-memory fs used by tests accepts the Sync call as a no-op.
func WriteFile(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp := filepath.Join(dir, "."+base+".tmp")

	f, err := fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrapf(err, "atomicio: open temp %s", tmp)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		fs.Remove(tmp)
		return errors.Wrapf(err, "atomicio: write temp %s", tmp)
	}
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			fs.Remove(tmp)
			return errors.Wrapf(err, "atomicio: fsync temp %s", tmp)
		}
	}
	if err := f.Close(); err != nil {
		fs.Remove(tmp)
		return errors.Wrapf(err, "atomicio: close temp %s", tmp)
	}
	if err := fs.Rename(tmp, path); err != nil {
		fs.Remove(tmp)
		return errors.Wrapf(err, "atomicio: rename %s -> %s", tmp, path)
	}
	return nil
}

// WriteFileOS is the common case: atomic replace directly against the
// real filesystem, without threading an afero.Fs through callers that
// never need the in-memory variant.
func WriteFileOS(path string, data []byte, perm os.FileMode) error {
	return WriteFile(afero.NewOsFs(), path, data, perm)
}

// EnsureDir creates dir (and parents) if missing.
func EnsureDir(fs afero.Fs, dir string) error {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "atomicio: mkdir %s", dir)
	}
	return nil
}
