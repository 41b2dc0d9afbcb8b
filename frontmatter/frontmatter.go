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

// Package frontmatter is the YAML front-matter codec (C1): parse,
// canonicalize, reorder, and serialize the front matter block of a cast
// note, and detect whether a file is a "cast file" at all.
//
// Front matter is kept as an ordered mapping rather than a plain
// map[string]any: key order is first-class data here (SPEC_FULL.md design
// note 9), so Pair preserves both the order and, via the underlying
// yaml.Node, the original scalar style and quoting across a round-trip.
package frontmatter

import (
	"bytes"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/castkit/cast/casterr"
	"github.com/castkit/cast/internal/atomicio"
)

// fmRe matches a leading "---" delimited block, LF or CRLF, per spec.md
// 4.1. Group 1 is the raw YAML text; everything after the match is body.
var fmRe = regexp.MustCompile(`(?s)^---[ \t]*\r?\n(.*?)\r?\n---[ \t]*\r?\n?`)

// hsyncEntryRe parses a single cast-hsync entry, "Name (live|watch)".
var hsyncEntryRe = regexp.MustCompile(`^\s*(?P<name>[^()]+?)\s*\((?P<mode>live|watch)\)\s*$`)

// castFieldsOrder is the canonical order for recognized cast-* keys,
// following last-updated and cast-id.
var castFieldsOrder = []string{"cast-hsync", "cast-codebases"}

// Pair is one ordered front-matter entry: a key plus its raw YAML node,
// so scalar style (quoted vs. bare, folded vs. literal) survives a
// round-trip untouched when the value isn't one this codec rewrites.
type Pair struct {
	Key   string
	Value *yaml.Node
}

// FrontMatter is an ordered mapping, looked up both by position (for
// serialization order) and by key (for field access).
type FrontMatter struct {
	pairs []Pair
	index map[string]int
}

// New returns an empty front matter.
func New() *FrontMatter {
	return &FrontMatter{index: map[string]int{}}
}

// Keys returns the keys in their current order.
func (fm *FrontMatter) Keys() []string {
	keys := make([]string, len(fm.pairs))
	for i, p := range fm.pairs {
		keys[i] = p.Key
	}
	return keys
}

// Has reports whether key is present.
func (fm *FrontMatter) Has(key string) bool {
	_, ok := fm.index[key]
	return ok
}

// Get returns the node for key, if present.
func (fm *FrontMatter) Get(key string) (*yaml.Node, bool) {
	i, ok := fm.index[key]
	if !ok {
		return nil, false
	}
	return fm.pairs[i].Value, true
}

// GetString returns key's scalar value as a string, or "" if absent or
// not a scalar.
func (fm *FrontMatter) GetString(key string) string {
	n, ok := fm.Get(key)
	if !ok || n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}

// GetStringList decodes key as a []string, or nil if absent or not a
// sequence.
func (fm *FrontMatter) GetStringList(key string) []string {
	n, ok := fm.Get(key)
	if !ok || n.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		if item.Kind == yaml.ScalarNode {
			out = append(out, item.Value)
		}
	}
	return out
}

// Set inserts or replaces key with a scalar string value, appending at
// the end of the pair list when new.
func (fm *FrontMatter) Set(key, value string) {
	fm.setNode(key, scalarNode(value))
}

// SetStringList inserts or replaces key with a YAML block sequence of
// strings.
func (fm *FrontMatter) SetStringList(key string, values []string) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: 0}
	for _, v := range values {
		seq.Content = append(seq.Content, scalarNode(v))
	}
	fm.setNode(key, seq)
}

// SetRaw inserts or replaces key with an already-built yaml.Node,
// preserving its original scalar style and quoting — used by callers
// (like the digest package) that clone pairs wholesale rather than
// re-deriving them from Go values.
func (fm *FrontMatter) SetRaw(key string, n *yaml.Node) {
	fm.setNode(key, n)
}

func (fm *FrontMatter) setNode(key string, n *yaml.Node) {
	if i, ok := fm.index[key]; ok {
		fm.pairs[i].Value = n
		return
	}
	fm.index[key] = len(fm.pairs)
	fm.pairs = append(fm.pairs, Pair{Key: key, Value: n})
}

// Delete removes key if present.
func (fm *FrontMatter) Delete(key string) {
	i, ok := fm.index[key]
	if !ok {
		return
	}
	fm.pairs = append(fm.pairs[:i], fm.pairs[i+1:]...)
	delete(fm.index, key)
	for k, idx := range fm.index {
		if idx > i {
			fm.index[k] = idx - 1
		}
	}
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

// HasCastFields reports whether any top-level key starts with "cast-".
func (fm *FrontMatter) HasCastFields() bool {
	for _, p := range fm.pairs {
		if strings.HasPrefix(p.Key, "cast-") {
			return true
		}
	}
	return false
}

// Parse reads content (a whole note file) and splits it into front
// matter, body, and a has-cast-fields flag. Content without a leading
// "---" delimited block, or whose block decodes to something other than
// a mapping, yields (nil, content, false, nil) — not an error: such a
// file is simply not a cast file and is left untouched by the indexer.
//
// A block that fails to decode as YAML yields (nil, content, false, err)
// with a FrontMatterInvalid *casterr.Error (spec.md 4.1); the indexer
// excludes such a file rather than aborting the run.
func Parse(content []byte) (fm *FrontMatter, body []byte, hasCastFields bool, err error) {
	m := fmRe.FindSubmatchIndex(content)
	if m == nil {
		return nil, content, false, nil
	}
	yamlText := content[m[2]:m[3]]
	body = content[m[1]:]

	var doc yaml.Node
	if decErr := yaml.Unmarshal(yamlText, &doc); decErr != nil {
		return nil, content, false, casterr.WrapFrontMatterInvalid("", decErr)
	}
	if len(doc.Content) == 0 {
		return nil, content, false, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, content, false, nil
	}

	fm = New()
	for i := 0; i+1 < len(root.Content); i += 2 {
		k := root.Content[i]
		v := root.Content[i+1]
		fm.setNode(k.Value, v)
	}
	return fm, body, fm.HasCastFields(), nil
}

// EnsureCastFields inserts cast-id (new UUIDv4) when absent, empty,
// whitespace, or null; inserts cast-version = 1 when absent; inserts
// empty last-updated when absent; migrates cast-vaults -> cast-hsync.
//
// Returns FrontMatterInvalid when both cast-hsync and cast-vaults are
// present with different contents (SPEC_FULL.md 12, resolving spec.md
// 9's open question rather than silently picking one).
func EnsureCastFields(fm *FrontMatter) (modified bool, err error) {
	if vaults, hasVaults := fm.Get("cast-vaults"); hasVaults {
		hsync, hasHsync := fm.Get("cast-hsync")
		switch {
		case !hasHsync:
			fm.setNode("cast-hsync", vaults)
			fm.Delete("cast-vaults")
			modified = true
		case nodesEqual(hsync, vaults):
			fm.Delete("cast-vaults")
			modified = true
		default:
			return modified, &casterr.Error{Kind: casterr.FrontMatterInvalid, Msg: "cast-hsync and cast-vaults both present with different contents"}
		}
	}

	if isBlankOrAbsent(fm, "cast-id") {
		fm.Set("cast-id", uuid.NewString())
		modified = true
	}
	if !fm.Has("cast-version") {
		fm.Set("cast-version", "1")
		modified = true
	}
	if !fm.Has("last-updated") {
		fm.Set("last-updated", "")
		modified = true
	}
	return modified, nil
}

func isBlankOrAbsent(fm *FrontMatter, key string) bool {
	n, ok := fm.Get(key)
	if !ok {
		return true
	}
	if n.Kind == yaml.ScalarNode && (n.Tag == "!!null" || strings.TrimSpace(n.Value) == "") {
		return true
	}
	return false
}

func nodesEqual(a, b *yaml.Node) bool {
	ab, _ := yaml.Marshal(a)
	bb, _ := yaml.Marshal(b)
	return bytes.Equal(ab, bb)
}

// ParseHsyncEntries parses a cast-hsync string list into {name: mode},
// silently dropping malformed entries, per spec.md 4.4 step 3.
func ParseHsyncEntries(entries []string) map[string]string {
	out := map[string]string{}
	for _, e := range entries {
		m := hsyncEntryRe.FindStringSubmatch(e)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		mode := m[2]
		if name == "" {
			continue
		}
		out[name] = mode
	}
	return out
}

// canonicalizeHsync dedups cast-hsync entries by name (live wins over
// watch on conflict) and sorts case-insensitively by name.
func canonicalizeHsync(entries []string) []string {
	modes := map[string]string{}
	var order []string
	for _, e := range entries {
		m := hsyncEntryRe.FindStringSubmatch(e)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		mode := m[2]
		if name == "" {
			continue
		}
		prev, seen := modes[name]
		if !seen {
			order = append(order, name)
			modes[name] = mode
			continue
		}
		if prev != "live" && mode == "live" {
			modes[name] = "live"
		}
	}
	sort.Slice(order, func(i, j int) bool {
		return strings.ToLower(order[i]) < strings.ToLower(order[j])
	})
	out := make([]string, 0, len(order))
	for _, name := range order {
		out = append(out, name+" ("+modes[name]+")")
	}
	return out
}

// canonicalizeCodebases dedups and case-insensitively sorts cast-codebases.
func canonicalizeCodebases(entries []string) []string {
	seen := map[string]bool{}
	var vals []string
	for _, e := range entries {
		v := strings.TrimSpace(e)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		vals = append(vals, v)
	}
	sort.Slice(vals, func(i, j int) bool {
		return strings.ToLower(vals[i]) < strings.ToLower(vals[j])
	})
	return vals
}

// Reorder applies list canonicalization (cast-hsync, cast-codebases) then
// the canonical key-order rule from spec.md 3: last-updated, cast-id,
// cast-hsync, cast-codebases, remaining cast-* keys alphabetically, then
// all non-cast keys in their original relative order.
func Reorder(fm *FrontMatter) *FrontMatter {
	if hs := fm.GetStringList("cast-hsync"); hs != nil || fm.Has("cast-hsync") {
		fm.SetStringList("cast-hsync", canonicalizeHsync(hs))
	}
	if cb := fm.GetStringList("cast-codebases"); cb != nil || fm.Has("cast-codebases") {
		fm.SetStringList("cast-codebases", canonicalizeCodebases(cb))
	}

	out := New()
	if n, ok := fm.Get("last-updated"); ok {
		out.setNode("last-updated", n)
	}
	if n, ok := fm.Get("cast-id"); ok {
		out.setNode("cast-id", n)
	}
	for _, key := range castFieldsOrder {
		if n, ok := fm.Get(key); ok {
			out.setNode(key, n)
		}
	}
	var restCast []string
	for _, k := range fm.Keys() {
		if k == "last-updated" || k == "cast-id" || k == "cast-hsync" || k == "cast-codebases" {
			continue
		}
		if strings.HasPrefix(k, "cast-") {
			restCast = append(restCast, k)
		}
	}
	sort.Strings(restCast)
	for _, k := range restCast {
		n, _ := fm.Get(k)
		out.setNode(k, n)
	}
	for _, k := range fm.Keys() {
		if k == "last-updated" || k == "cast-id" || strings.HasPrefix(k, "cast-") {
			continue
		}
		n, _ := fm.Get(k)
		out.setNode(k, n)
	}
	return out
}

// IsReordered reports whether fm is already in Reorder's canonical form,
// letting the index builder skip a rewrite when nothing would change.
func IsReordered(fm *FrontMatter) bool {
	want := Reorder(cloneShallow(fm))
	if !equalKeyOrder(fm.Keys(), want.Keys()) {
		return false
	}
	for _, k := range fm.Keys() {
		a, _ := fm.Get(k)
		b, _ := want.Get(k)
		if !nodesEqual(a, b) {
			return false
		}
	}
	return true
}

func cloneShallow(fm *FrontMatter) *FrontMatter {
	out := New()
	for _, p := range fm.pairs {
		out.setNode(p.Key, p.Value)
	}
	return out
}

func equalKeyOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// EnsureCodebaseMembership opts a note into codebase: ensures cast
// fields, adds codebase to cast-codebases, and adds "<originCast> (live)"
// to cast-hsync. Grounded on yamlio.py's ensure_codebase_membership
// (SPEC_FULL.md 12).
func EnsureCodebaseMembership(fm *FrontMatter, codebase, originCast string) (modified bool, err error) {
	m, err := EnsureCastFields(fm)
	if err != nil {
		return false, err
	}
	modified = m

	cbs := fm.GetStringList("cast-codebases")
	found := false
	for _, c := range cbs {
		if c == codebase {
			found = true
			break
		}
	}
	if !found {
		cbs = append(cbs, codebase)
		modified = true
	}
	fm.SetStringList("cast-codebases", canonicalizeCodebases(cbs))

	origin := originCast + " (live)"
	hs := fm.GetStringList("cast-hsync")
	foundOrigin := false
	for _, h := range hs {
		if h == origin {
			foundOrigin = true
			break
		}
	}
	if !foundOrigin {
		hs = append(hs, origin)
		modified = true
	}
	fm.SetStringList("cast-hsync", canonicalizeHsync(hs))
	return modified, nil
}

// Serialize renders fm as a "---\n...\n---\n" block (no trailing body),
// using yaml.v3's default marshal — the on-disk write path, distinct
// from digest's hand-rolled canonical form (see the digest package).
func Serialize(fm *FrontMatter) ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, p := range fm.pairs {
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Key}, p.Value)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	enc.Close()

	var out bytes.Buffer
	out.WriteString("---\n")
	out.Write(buf.Bytes())
	out.WriteString("---\n")
	return out.Bytes(), nil
}

// Assemble concatenates a serialized front-matter block with body.
func Assemble(fm *FrontMatter, body []byte) ([]byte, error) {
	head, err := Serialize(fm)
	if err != nil {
		return nil, err
	}
	return append(head, body...), nil
}

// Write atomically replaces path with fm+body, never mutating the file
// in place (spec.md 4.1: "write to sibling temp with dotted name,
// rename").
func Write(path string, fm *FrontMatter, body []byte) error {
	content, err := Assemble(fm, body)
	if err != nil {
		return err
	}
	if err := atomicio.WriteFileOS(path, content, 0o644); err != nil {
		return casterr.WrapIoError(path, err)
	}
	return nil
}
