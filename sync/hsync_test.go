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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castkit/cast/casterr"
	"github.com/castkit/cast/registry"
	"github.com/castkit/cast/syncplan"
)

func TestHSyncPushesDeclaredFileToPeer(t *testing.T) {
	home := t.TempDir()
	reg, err := registry.Load(home)
	require.NoError(t, err)

	aRoot, aVault := makeCast(t, reg, "Alpha")
	_, bVault := makeCast(t, reg, "Beta")

	writeNote(t, aVault, "note.md", "cid-1", []string{"Beta"}, "Hello\n")

	report, err := HSync(reg, aRoot, Options{NonInteractive: true})
	require.NoError(t, err)
	assert.Equal(t, 0, report.ExitCode)
	require.True(t, noteExists(bVault, "note.md"))
	assert.Contains(t, readNote(t, bVault, "note.md"), "Hello")
}

func TestHSyncDryRunLeavesPeerUntouched(t *testing.T) {
	home := t.TempDir()
	reg, err := registry.Load(home)
	require.NoError(t, err)

	aRoot, aVault := makeCast(t, reg, "Alpha")
	_, bVault := makeCast(t, reg, "Beta")
	writeNote(t, aVault, "note.md", "cid-1", []string{"Beta"}, "Hello\n")

	report, err := HSync(reg, aRoot, Options{NonInteractive: true, DryRun: true})
	require.NoError(t, err)
	assert.False(t, noteExists(bVault, "note.md"))

	var sawPush bool
	for _, a := range report.Actions {
		if a.Kind == syncplan.Push {
			sawPush = true
			assert.True(t, a.DryRun)
		}
	}
	assert.True(t, sawPush, "dry run should still report the planned push")
}

func TestHSyncWatchModeSkipsPushOnLocalEdit(t *testing.T) {
	home := t.TempDir()
	reg, err := registry.Load(home)
	require.NoError(t, err)

	aRoot, aVault := makeCast(t, reg, "Alpha")
	_, bVault := makeCast(t, reg, "Beta")

	writeNote(t, aVault, "note.md", "cid-1", []string{"Beta (watch)"}, "v1\n")
	_, err = HSync(reg, aRoot, Options{NonInteractive: true})
	require.NoError(t, err)
	require.Contains(t, readNote(t, bVault, "note.md"), "v1")

	writeNote(t, aVault, "note.md", "cid-1", []string{"Beta (watch)"}, "v2\n")
	_, err = HSync(reg, aRoot, Options{NonInteractive: true})
	require.NoError(t, err)
	assert.Contains(t, readNote(t, bVault, "note.md"), "v1", "a watch peer must not receive local edits")
}

func TestHSyncConflictNonInteractiveRecordsConflictAndExits3(t *testing.T) {
	home := t.TempDir()
	reg, err := registry.Load(home)
	require.NoError(t, err)

	aRoot, aVault := makeCast(t, reg, "Alpha")
	_, bVault := makeCast(t, reg, "Beta")

	writeNote(t, aVault, "c.md", "cid-shared", []string{"Beta"}, "Local content\n")
	writeNote(t, bVault, "c.md", "cid-shared", []string{"Alpha"}, "Peer content\n")

	report, err := HSync(reg, aRoot, Options{NonInteractive: true})
	require.NoError(t, err)
	assert.Equal(t, 3, report.ExitCode)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, casterr.ConflictContent, report.Conflicts[0].DetailKind)
}

func TestHSyncInteractiveConflictKeepsChosenPeerVersion(t *testing.T) {
	home := t.TempDir()
	reg, err := registry.Load(home)
	require.NoError(t, err)

	aRoot, aVault := makeCast(t, reg, "Alpha")
	_, bVault := makeCast(t, reg, "Beta")

	writeNote(t, aVault, "conflict.md", "cid-shared", []string{"Alpha", "Beta"}, "LOCAL\n")
	writeNote(t, bVault, "conflict.md", "cid-shared", []string{"Alpha", "Beta"}, "PEER\n")

	report, err := HSync(reg, aRoot, Options{InputStream: strings.NewReader("2\n")})
	require.NoError(t, err)
	assert.Empty(t, report.Conflicts)
	assert.Contains(t, readNote(t, aVault, "conflict.md"), "PEER")
}

func TestHSyncSafePushCopyAvoidsClobberingMismatchedPeerFile(t *testing.T) {
	home := t.TempDir()
	reg, err := registry.Load(home)
	require.NoError(t, err)

	aRoot, aVault := makeCast(t, reg, "Alpha")
	_, bVault := makeCast(t, reg, "Beta")

	writeNote(t, aVault, "samepath.md", "aaaa", []string{"Beta"}, "A content\n")
	writeNote(t, bVault, "samepath.md", "bbbb", nil, "B content\n")

	_, err = HSync(reg, aRoot, Options{NonInteractive: true})
	require.NoError(t, err)

	assert.Contains(t, readNote(t, bVault, "samepath.md"), "B content")
	require.True(t, noteExists(bVault, "samepath (~from Alpha).md"))
	assert.Contains(t, readNote(t, bVault, "samepath (~from Alpha).md"), "A content")
}

func TestHSyncUnregisteredPeerRecordsIssueAndSetsExitCode(t *testing.T) {
	home := t.TempDir()
	reg, err := registry.Load(home)
	require.NoError(t, err)
	aRoot, _ := makeCast(t, reg, "Alpha")

	report, err := HSync(reg, aRoot, Options{NonInteractive: true, Peers: []string{"Ghost"}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.ExitCode)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "unregistered_peer", report.Issues[0].Kind)
	assert.Equal(t, "Ghost", report.Issues[0].Peer)
}

func TestHSyncCascadePropagatesThroughTouchedPeer(t *testing.T) {
	home := t.TempDir()
	reg, err := registry.Load(home)
	require.NoError(t, err)

	aRoot, aVault := makeCast(t, reg, "Alpha")
	_, bVault := makeCast(t, reg, "Beta")
	_, cVault := makeCast(t, reg, "Gamma")

	writeNote(t, aVault, "note1.md", "cid-1", []string{"Beta"}, "from alpha\n")
	writeNote(t, bVault, "note2.md", "cid-2", []string{"Gamma"}, "from beta\n")

	report, err := HSync(reg, aRoot, Options{NonInteractive: true, Cascade: true})
	require.NoError(t, err)
	assert.Equal(t, 0, report.ExitCode)

	require.True(t, noteExists(bVault, "note1.md"))
	assert.Contains(t, readNote(t, bVault, "note1.md"), "from alpha")
	require.True(t, noteExists(cVault, "note2.md"), "cascade should have synced beta onward to gamma")
	assert.Contains(t, readNote(t, cVault, "note2.md"), "from beta")
}

// TestHSyncCascadeMutualPeersTrackVisitedByCastID guards against a cast_id
// vs. cast-name key mix-up in globalVisited: Alpha and Beta mutually
// declare each other live, each holding a note the other doesn't have yet.
// hsyncInternal takes globalVisited by reference, so its final contents
// after a reciprocal cascade are inspected directly (independent of
// whether the per-root advisory lock happens to also mask a bad re-entry
// attempt): every entry must be a cast_id, never a bare cast name.
func TestHSyncCascadeMutualPeersTrackVisitedByCastID(t *testing.T) {
	home := t.TempDir()
	reg, err := registry.Load(home)
	require.NoError(t, err)

	aRoot, aVault := makeCast(t, reg, "Alpha")
	bRoot, bVault := makeCast(t, reg, "Beta")

	aCfg, err := registry.ReadConfig(aRoot)
	require.NoError(t, err)
	bCfg, err := registry.ReadConfig(bRoot)
	require.NoError(t, err)

	writeNote(t, aVault, "fromAlpha.md", "cid-a", []string{"Beta"}, "alpha content\n")
	writeNote(t, bVault, "fromBeta.md", "cid-b", []string{"Alpha"}, "beta content\n")

	visited := map[string]bool{}
	report, err := hsyncInternal(reg, aRoot, Options{NonInteractive: true, Cascade: true}, visited)
	require.NoError(t, err)
	assert.Equal(t, 0, report.ExitCode)

	require.True(t, noteExists(bVault, "fromAlpha.md"))
	assert.Contains(t, readNote(t, bVault, "fromAlpha.md"), "alpha content")
	require.True(t, noteExists(aVault, "fromBeta.md"))
	assert.Contains(t, readNote(t, aVault, "fromBeta.md"), "beta content")

	assert.True(t, visited[aCfg.CastID], "root cast must be tracked by its cast_id")
	assert.True(t, visited[bCfg.CastID], "peer cast must be tracked by its cast_id")
	assert.False(t, visited["Alpha"], "cast names must never appear as globalVisited keys")
	assert.False(t, visited["Beta"], "cast names must never appear as globalVisited keys")
}

func TestHSyncLimitFileRestrictsToSingleNote(t *testing.T) {
	home := t.TempDir()
	reg, err := registry.Load(home)
	require.NoError(t, err)

	aRoot, aVault := makeCast(t, reg, "Alpha")
	_, bVault := makeCast(t, reg, "Beta")

	writeNote(t, aVault, "a.md", "cid-a", []string{"Beta"}, "A\n")
	writeNote(t, aVault, "b.md", "cid-b", []string{"Beta"}, "B\n")

	_, err = HSync(reg, aRoot, Options{NonInteractive: true, File: "a.md"})
	require.NoError(t, err)

	assert.True(t, noteExists(bVault, "a.md"))
	assert.False(t, noteExists(bVault, "b.md"), "File should restrict indexing to the one note")
}
