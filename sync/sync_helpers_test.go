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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castkit/cast/registry"
)

// makeCast creates a fresh cast root named name (RegisterCast derives
// cast-name from the directory's base name) and registers it in reg,
// returning the root and its vault (cast_location) path.
func makeCast(t *testing.T, reg *registry.Registry, name string) (root, vault string) {
	t.Helper()
	root = filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(root, 0o755))
	cfg, err := reg.RegisterCast(root)
	require.NoError(t, err)
	return root, filepath.Join(root, cfg.CastLocation)
}

// writeNote writes a minimal cast-file with the given peer declarations
// (each either a bare cast name for live, or "Name (watch)").
func writeNote(t *testing.T, vault, rel, castID string, peers []string, body string) {
	t.Helper()
	path := filepath.Join(vault, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	hsync := ""
	for _, p := range peers {
		if !strings.Contains(p, "(") {
			p += " (live)"
		}
		hsync += "\n  - " + p
	}
	content := fmt.Sprintf("---\ncast-id: %s\ncast-hsync:%s\n---\n%s", castID, hsync, body)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeRaw(t *testing.T, vault, rel, content string) {
	t.Helper()
	path := filepath.Join(vault, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readNote(t *testing.T, vault, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(vault, rel))
	require.NoError(t, err)
	return string(data)
}

func noteExists(vault, rel string) bool {
	_, err := os.Stat(filepath.Join(vault, rel))
	return err == nil
}
