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

// Package digest computes the deterministic content hash (C2) that
// drives the three-way merge: identical (front matter, body) pairs
// differing only in last-updated must hash equal; any other change must
// not.
//
// The front-matter bytes fed to the hash are produced by a hand-rolled
// canonical walk of the yaml.Node tree, deliberately not yaml.Marshal —
// spec.md design note 9 requires the hashed bytes be independent of any
// YAML library's own whitespace defaults, frozen by tests rather than
// whatever a marshaler happens to emit this version.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/castkit/cast/frontmatter"
)

const separator = "\n---\n"

// Compute returns the hex digest of fm (minus last-updated) joined with
// body.
func Compute(fm *frontmatter.FrontMatter, body []byte) string {
	h := sha256.New()
	h.Write(normalize(fm))
	h.Write([]byte(separator))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// normalize renders fm's cast-relevant content in a canonical byte form:
// last-updated dropped, keys in Reorder's stable order, scalars trimmed,
// sequences one item per line with a fixed indent.
func normalize(fm *frontmatter.FrontMatter) []byte {
	ordered := frontmatter.Reorder(cloneWithoutLastUpdated(fm))
	var b strings.Builder
	for _, key := range ordered.Keys() {
		n, _ := ordered.Get(key)
		b.WriteString(key)
		b.WriteString(":")
		writeNode(&b, n, 0)
	}
	return []byte(b.String())
}

func cloneWithoutLastUpdated(fm *frontmatter.FrontMatter) *frontmatter.FrontMatter {
	out := frontmatter.New()
	for _, k := range fm.Keys() {
		if k == "last-updated" {
			continue
		}
		n, _ := fm.Get(k)
		out.SetRaw(k, n)
	}
	return out
}

func writeNode(b *strings.Builder, n *yaml.Node, indent int) {
	switch n.Kind {
	case yaml.ScalarNode:
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(n.Value))
		b.WriteString("\n")
	case yaml.SequenceNode:
		b.WriteString("\n")
		pad := strings.Repeat("  ", indent+1)
		items := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			items = append(items, canonicalScalar(item))
		}
		for _, item := range items {
			b.WriteString(pad)
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	case yaml.MappingNode:
		b.WriteString("\n")
		pad := strings.Repeat("  ", indent+1)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			v := n.Content[i+1]
			b.WriteString(pad)
			b.WriteString(strings.TrimSpace(k.Value))
			b.WriteString(":")
			writeNode(b, v, indent+1)
		}
	default:
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(n.Value))
		b.WriteString("\n")
	}
}

func canonicalScalar(n *yaml.Node) string {
	if n.Kind == yaml.ScalarNode {
		return strings.TrimSpace(n.Value)
	}
	var b strings.Builder
	writeNode(&b, n, 0)
	return strings.TrimSpace(b.String())
}
