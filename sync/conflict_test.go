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
)

func TestReaderPromptAcceptsLiteralTokens(t *testing.T) {
	p := readerPrompt(strings.NewReader("keep_local\nkeep_peer\n"))

	got, err := p()
	require.NoError(t, err)
	assert.Equal(t, keepLocal, got)

	got, err = p()
	require.NoError(t, err)
	assert.Equal(t, keepPeer, got)
}

func TestReaderPromptAcceptsNumericShortcuts(t *testing.T) {
	p := readerPrompt(strings.NewReader("1\n2\n"))

	got, _ := p()
	assert.Equal(t, keepLocal, got)
	got, _ = p()
	assert.Equal(t, keepPeer, got)
}

func TestReaderPromptTrimsWhitespace(t *testing.T) {
	p := readerPrompt(strings.NewReader("  keep_peer  \n"))
	got, err := p()
	require.NoError(t, err)
	assert.Equal(t, keepPeer, got)
}

func TestReaderPromptUnrecognizedTokenCancels(t *testing.T) {
	p := readerPrompt(strings.NewReader("whatever\n"))
	got, err := p()
	require.NoError(t, err)
	assert.Equal(t, cancelRun, got)
}

func TestReaderPromptEOFCancelsWithoutError(t *testing.T) {
	p := readerPrompt(strings.NewReader(""))
	got, err := p()
	require.NoError(t, err)
	assert.Equal(t, cancelRun, got)
}
