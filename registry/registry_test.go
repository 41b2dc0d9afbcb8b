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

package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castkit/cast/casterr"
)

func TestReadConfigMissingIsNotACast(t *testing.T) {
	_, err := ReadConfig(t.TempDir())
	require.Error(t, err)
	ce, ok := err.(*casterr.Error)
	require.True(t, ok)
	assert.Equal(t, casterr.NotACast, ce.Kind)
}

func TestWriteConfigThenReadConfigRoundTrips(t *testing.T) {
	root := t.TempDir()
	cfg := CastConfig{CastID: "id-1", CastName: "Notes", CastLocation: "Cast", CastVersion: 1}
	require.NoError(t, WriteConfig(root, cfg))

	got, err := ReadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestReadConfigDefaultsLocationAndVersion(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, WriteConfig(root, CastConfig{CastID: "id-1", CastName: "Notes"}))

	got, err := ReadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, DefaultCastLocation, got.CastLocation)
	assert.Equal(t, 1, got.CastVersion)
}

func TestRegisterCastGeneratesConfigWhenAbsent(t *testing.T) {
	home := t.TempDir()
	root := t.TempDir()

	reg, err := Load(home)
	require.NoError(t, err)
	cfg, err := reg.RegisterCast(root)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.CastID)
	assert.Equal(t, filepath.Base(root), cfg.CastName)

	onDisk, err := ReadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, cfg, onDisk)
}

func TestRegisterCastPersistsAcrossLoad(t *testing.T) {
	home := t.TempDir()
	root := t.TempDir()

	reg, err := Load(home)
	require.NoError(t, err)
	cfg, err := reg.RegisterCast(root)
	require.NoError(t, err)

	reloaded, err := Load(home)
	require.NoError(t, err)
	resolved, err := reloaded.ResolveCast(cfg.CastName)
	require.NoError(t, err)
	abs, _ := filepath.Abs(root)
	assert.Equal(t, abs, resolved)
}

func TestResolveCastUnregisteredIsPeerUnavailable(t *testing.T) {
	reg, err := Load(t.TempDir())
	require.NoError(t, err)

	_, err = reg.ResolveCast("nope")
	require.Error(t, err)
	ce, ok := err.(*casterr.Error)
	require.True(t, ok)
	assert.Equal(t, casterr.PeerUnavailable, ce.Kind)
}

func TestRegisterAndResolveCodebase(t *testing.T) {
	home := t.TempDir()
	codebaseRoot := t.TempDir()

	reg, err := Load(home)
	require.NoError(t, err)
	require.NoError(t, reg.RegisterCodebase("widgets", codebaseRoot))

	resolved, err := reg.ResolveCodebase("widgets")
	require.NoError(t, err)
	abs, _ := filepath.Abs(codebaseRoot)
	assert.Equal(t, abs, resolved)
}

func TestListCastsAndCodebasesAreSorted(t *testing.T) {
	home := t.TempDir()
	reg, err := Load(home)
	require.NoError(t, err)

	_, err = reg.RegisterCast(t.TempDir())
	require.NoError(t, err)
	_, err = reg.RegisterCast(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, reg.RegisterCodebase("zeta", t.TempDir()))
	require.NoError(t, reg.RegisterCodebase("alpha", t.TempDir()))

	assert.Len(t, reg.ListCasts(), 2)
	assert.Equal(t, []string{"alpha", "zeta"}, reg.ListCodebases())
}

func TestUninstallRemovesCastByName(t *testing.T) {
	home := t.TempDir()
	reg, err := Load(home)
	require.NoError(t, err)
	cfg, err := reg.RegisterCast(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, reg.Uninstall(cfg.CastName))
	_, err = reg.ResolveCast(cfg.CastName)
	assert.Error(t, err)
}

func TestUninstallUnknownIsPeerUnavailable(t *testing.T) {
	reg, err := Load(t.TempDir())
	require.NoError(t, err)

	err = reg.Uninstall("ghost")
	require.Error(t, err)
	ce, ok := err.(*casterr.Error)
	require.True(t, ok)
	assert.Equal(t, casterr.PeerUnavailable, ce.Kind)
}

func TestHomeDefaultsUnderUserHomeDir(t *testing.T) {
	t.Setenv("CAST_HOME", "")
	home := Home()
	assert.Contains(t, home, ".cast")
}

func TestHomeRespectsEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CAST_HOME", dir)
	assert.Equal(t, dir, Home())
}
