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

package atomicio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileCreatesThenOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/cast/note.md"

	require.NoError(t, WriteFile(fs, path, []byte("v1"), 0o644))
	got, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	require.NoError(t, WriteFile(fs, path, []byte("v2"), 0o644))
	got, err = afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))
}

func TestWriteFileLeavesNoTempFileBehind(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/cast/note.md"
	require.NoError(t, WriteFile(fs, path, []byte("content"), 0o644))

	exists, err := afero.Exists(fs, "/cast/.note.md.tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWriteFileOSRoundTripsOnRealDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")

	require.NoError(t, WriteFileOS(path, []byte("hello"), 0o644))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the final file should remain, no leftover temp")
}

func TestEnsureDirCreatesNestedPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, EnsureDir(fs, "/a/b/c"))
	isDir, err := afero.IsDir(fs, "/a/b/c")
	require.NoError(t, err)
	assert.True(t, isDir)
}
