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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castkit/cast/casterr"
)

func TestAcquireLockCreatesLockDirAndSucceeds(t *testing.T) {
	root := t.TempDir()
	l, err := acquireLock(root)
	require.NoError(t, err)
	require.NotNil(t, l)
	releaseLock(l)
}

func TestAcquireLockFailsBusyWhenAlreadyHeld(t *testing.T) {
	root := t.TempDir()
	held, err := acquireLock(root)
	require.NoError(t, err)
	defer releaseLock(held)

	_, err = acquireLock(root)
	require.Error(t, err)
	ce, ok := err.(*casterr.Error)
	require.True(t, ok)
	assert.Equal(t, casterr.Busy, ce.Kind)
}

func TestAcquireLockSucceedsAgainAfterRelease(t *testing.T) {
	root := t.TempDir()
	first, err := acquireLock(root)
	require.NoError(t, err)
	releaseLock(first)

	second, err := acquireLock(root)
	require.NoError(t, err)
	releaseLock(second)
}
