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

// Package linkrewrite updates wiki-style [[...]] and Markdown [...](...)
// references after a rename (C6). It is not a full Markdown parser — a
// small state machine skips fenced code blocks and inline code spans so
// rewrites never touch link-shaped text inside them (spec.md design
// note: "no full Markdown parse needed").
package linkrewrite

import (
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/castkit/cast/internal/atomicio"
)

var (
	fenceRe      = regexp.MustCompile(`^\s*(` + "```" + `+|~~~+)`)
	inlineCodeRe = regexp.MustCompile("`[^`\n]+`")
	wikiLinkRe   = regexp.MustCompile(`\[\[([^\]\|]+)(\|([^\]]*))?\]\]`)
	mdLinkRe     = regexp.MustCompile(`(!?)\[([^\]]*)\]\(([^)\s]+)(\s+"[^"]*")?\)`)
)

// Rewrite walks vaultRoot for *.md files and rewrites any reference to an
// old_rel key of renames to its new_rel value. renames keys/values are
// POSIX paths relative to vaultRoot, matching FileRec.RelPath. Returns
// the relative paths of files actually modified.
func Rewrite(vaultRoot string, renames map[string]string) ([]string, error) {
	if len(renames) == 0 {
		return nil, nil
	}
	noExt := make(map[string]string, len(renames))
	for oldRel, newRel := range renames {
		noExt[strings.TrimSuffix(oldRel, ".md")] = strings.TrimSuffix(newRel, ".md")
	}

	var changed []string
	err := filepath.WalkDir(vaultRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".md") {
			return nil
		}
		rel, err := filepath.Rel(vaultRoot, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		fileDir := path.Dir(rel)

		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rewritten := rewriteContent(string(content), fileDir, renames, noExt)
		if rewritten == string(content) {
			return nil
		}
		if err := atomicio.WriteFileOS(p, []byte(rewritten), 0o644); err != nil {
			return err
		}
		changed = append(changed, rel)
		return nil
	})
	if err != nil {
		return changed, err
	}
	return changed, nil
}

// rewriteContent applies link rewriting line by line, toggling a fenced
// code state across lines and skipping inline code spans within a line.
func rewriteContent(content, fileDir string, renames, noExt map[string]string) string {
	lines := strings.SplitAfter(content, "\n")
	var out strings.Builder
	inFence := false
	for _, line := range lines {
		if fenceRe.MatchString(line) {
			inFence = !inFence
			out.WriteString(line)
			continue
		}
		if inFence {
			out.WriteString(line)
			continue
		}
		out.WriteString(rewriteLine(line, fileDir, renames, noExt))
	}
	return out.String()
}

// rewriteLine rewrites link-shaped text outside of inline code spans.
func rewriteLine(line, fileDir string, renames, noExt map[string]string) string {
	spans := inlineCodeRe.FindAllStringIndex(line, -1)
	if spans == nil {
		return rewriteLinks(line, fileDir, renames, noExt)
	}
	var b strings.Builder
	last := 0
	for _, m := range spans {
		b.WriteString(rewriteLinks(line[last:m[0]], fileDir, renames, noExt))
		b.WriteString(line[m[0]:m[1]])
		last = m[1]
	}
	b.WriteString(rewriteLinks(line[last:], fileDir, renames, noExt))
	return b.String()
}

func rewriteLinks(segment, fileDir string, renames, noExt map[string]string) string {
	segment = wikiLinkRe.ReplaceAllStringFunc(segment, func(m string) string {
		sub := wikiLinkRe.FindStringSubmatch(m)
		target := strings.TrimSpace(sub[1])
		newTarget, ok := noExt[target]
		if !ok {
			return m
		}
		if sub[2] != "" {
			return "[[" + newTarget + "|" + sub[3] + "]]"
		}
		return "[[" + newTarget + "]]"
	})

	segment = mdLinkRe.ReplaceAllStringFunc(segment, func(m string) string {
		sub := mdLinkRe.FindStringSubmatch(m)
		bang, label, rawURL, title := sub[1], sub[2], sub[3], sub[4]
		resolved, ok := resolveMarkdownURL(fileDir, rawURL, renames)
		if !ok {
			return m
		}
		return bang + "[" + label + "](" + resolved + title + ")"
	})
	return segment
}

// resolveMarkdownURL strips fragment/query, URL-decodes, resolves the
// result relative to fileDir, and if it matches a rename's old_rel,
// returns a new URL pointing at new_rel (re-attaching any fragment and
// preserving a relative vs. same-prefix style by always emitting a path
// relative to fileDir, matching the simplicity of the original link).
func resolveMarkdownURL(fileDir, rawURL string, renames map[string]string) (string, bool) {
	if strings.Contains(rawURL, "://") || strings.HasPrefix(rawURL, "mailto:") {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	decodedPath := u.Path
	if decodedPath == "" {
		return "", false
	}

	resolved := path.Clean(path.Join(fileDir, decodedPath))
	for oldRel, newRel := range renames {
		if resolved != oldRel {
			continue
		}
		relNew, err := filepath.Rel(fileDir, newRel)
		if err != nil {
			return "", false
		}
		relNew = filepath.ToSlash(relNew)
		newURL := url.URL{Path: relNew, RawQuery: u.RawQuery, Fragment: u.Fragment}
		return newURL.String(), true
	}
	return "", false
}
