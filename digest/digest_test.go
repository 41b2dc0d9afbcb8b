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

package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castkit/cast/frontmatter"
)

func parse(t *testing.T, content string) (*frontmatter.FrontMatter, []byte) {
	t.Helper()
	fm, body, hasCastFields, err := frontmatter.Parse([]byte(content))
	require.NoError(t, err)
	require.True(t, hasCastFields)
	return fm, body
}

func TestComputeIgnoresLastUpdated(t *testing.T) {
	a, bodyA := parse(t, "---\ncast-id: x\nlast-updated: \"2024-01-01T00:00:00Z\"\n---\nbody\n")
	b, bodyB := parse(t, "---\ncast-id: x\nlast-updated: \"2025-06-01T00:00:00Z\"\n---\nbody\n")

	assert.Equal(t, Compute(a, bodyA), Compute(b, bodyB))
}

func TestComputeDiffersOnBodyChange(t *testing.T) {
	fm, _ := parse(t, "---\ncast-id: x\n---\nbody one\n")
	fm2, _ := parse(t, "---\ncast-id: x\n---\nbody two\n")

	assert.NotEqual(t, Compute(fm, []byte("body one\n")), Compute(fm2, []byte("body two\n")))
}

func TestComputeDiffersOnCastFieldChange(t *testing.T) {
	fm1, body1 := parse(t, "---\ncast-id: x\ncast-hsync:\n  - A (live)\n---\nbody\n")
	fm2, body2 := parse(t, "---\ncast-id: x\ncast-hsync:\n  - A (watch)\n---\nbody\n")

	assert.NotEqual(t, Compute(fm1, body1), Compute(fm2, body2))
}

func TestComputeIsInvariantToKeyOrderAndListOrder(t *testing.T) {
	a, bodyA := parse(t, "---\ncast-hsync:\n  - B (live)\n  - A (live)\ncast-id: x\n---\nsame\n")
	b, bodyB := parse(t, "---\ncast-id: x\ncast-hsync:\n  - A (live)\n  - B (live)\n---\nsame\n")

	assert.Equal(t, Compute(a, bodyA), Compute(b, bodyB))
}

func TestComputeTrimsScalarWhitespace(t *testing.T) {
	a, bodyA := parse(t, "---\ncast-id: \"x\"\n---\nbody\n")
	b, bodyB := parse(t, "---\ncast-id: \"x \"\n---\nbody\n")

	assert.Equal(t, Compute(a, bodyA), Compute(b, bodyB))
}

func TestComputeProducesHexSha256(t *testing.T) {
	fm, body := parse(t, "---\ncast-id: x\n---\nbody\n")
	d := Compute(fm, body)
	assert.Len(t, d, 64)
}
