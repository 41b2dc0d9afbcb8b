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

package casterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapFrontMatterInvalidIsMatchesKind(t *testing.T) {
	cause := errors.New("boom")
	err := WrapFrontMatterInvalid("note.md", cause)

	assert.True(t, errors.Is(err, &Error{Kind: FrontMatterInvalid}))
	assert.False(t, errors.Is(err, &Error{Kind: NotACast}))
	assert.ErrorIs(t, err, cause)
}

func TestErrorStringIncludesPathWhenPresent(t *testing.T) {
	err := WrapBusy("/cast/.cast/lock", nil)
	assert.Contains(t, err.Error(), "/cast/.cast/lock")
	assert.Contains(t, err.Error(), "Busy")
}

func TestErrorStringOmitsPathWhenAbsent(t *testing.T) {
	err := WrapStateSchemaUnknown("", 7)
	assert.Equal(t, "StateSchemaUnknown: unknown schema 7", err.Error())
}

func TestConflictIsDiscriminatesFromError(t *testing.T) {
	c := &Conflict{DetailKind: ConflictContent, CastID: "abc"}
	var target *Conflict
	require.True(t, errors.As(error(c), &target))
	assert.Equal(t, "abc", target.CastID)

	var other *Error
	assert.False(t, errors.As(error(c), &other))
}

func TestKindStringCoversEveryMember(t *testing.T) {
	for _, k := range []Kind{FrontMatterInvalid, NotACast, PeerUnavailable, ConflictKind, Busy, IoErrorKind, StateSchemaUnknown} {
		assert.NotEqual(t, "Unknown", k.String())
	}
	assert.Equal(t, "Unknown", Kind(999).String())
}
