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

// Package casterr holds the typed error taxonomy every component surfaces
// errors through, wrapped with github.com/pkg/errors so callers keep a
// stack trace across component boundaries.
package casterr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind discriminates the error taxonomy.
type Kind int

const (
	// FrontMatterInvalid marks a YAML parse failure; the file is skipped,
	// never written.
	FrontMatterInvalid Kind = iota
	// NotACast marks a root lacking a readable .cast/config.yaml.
	NotACast
	// PeerUnavailable marks a referenced peer that isn't registered, or
	// whose root is missing.
	PeerUnavailable
	// ConflictKind marks a surfaced merge conflict (see Conflict below).
	ConflictKind
	// Busy marks the advisory lock already held by another invocation.
	Busy
	// IoErrorKind marks a per-file I/O failure.
	IoErrorKind
	// StateSchemaUnknown marks a syncstate.json written by a newer schema.
	StateSchemaUnknown
)

func (k Kind) String() string {
	switch k {
	case FrontMatterInvalid:
		return "FrontMatterInvalid"
	case NotACast:
		return "NotACast"
	case PeerUnavailable:
		return "PeerUnavailable"
	case ConflictKind:
		return "Conflict"
	case Busy:
		return "Busy"
	case IoErrorKind:
		return "IoError"
	case StateSchemaUnknown:
		return "StateSchemaUnknown"
	default:
		return "Unknown"
	}
}

// Error is the common shape for every taxonomy member except Conflict,
// which carries additional structured fields and has its own type below.
type Error struct {
	Kind Kind
	Msg  string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error target of the same Kind, so
// errors.Is(err, &casterr.Error{Kind: casterr.FrontMatterInvalid}) works.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Kind == e.Kind
}

func newf(kind Kind, path string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Path: path, Err: cause}
}

// WrapFrontMatterInvalid wraps a YAML decode failure for path.
func WrapFrontMatterInvalid(path string, cause error) *Error {
	return newf(FrontMatterInvalid, path, errors.WithStack(cause), "malformed front matter")
}

// WrapNotACast reports that root has no usable .cast/config.yaml.
func WrapNotACast(root string, cause error) *Error {
	return newf(NotACast, root, errors.WithStack(cause), "missing or invalid .cast/config.yaml")
}

// WrapPeerUnavailable reports that peer is not registered or unreachable.
func WrapPeerUnavailable(peer string, cause error) *Error {
	return newf(PeerUnavailable, peer, errors.WithStack(cause), "peer unavailable")
}

// WrapBusy reports the lock at path is already held.
func WrapBusy(path string, cause error) *Error {
	return newf(Busy, path, errors.WithStack(cause), "lock held by another invocation")
}

// WrapIoError wraps a per-file I/O failure, the cause passed through
// errors.Wrapf at the call site before arriving here when a caller wants
// extra context.
func WrapIoError(path string, cause error) *Error {
	return newf(IoErrorKind, path, errors.WithStack(cause), "i/o failure")
}

// WrapStateSchemaUnknown reports a syncstate.json written by a schema this
// build doesn't understand.
func WrapStateSchemaUnknown(path string, schema int) *Error {
	return newf(StateSchemaUnknown, path, nil, "unknown schema %d", schema)
}

// ConflictKindDetail discriminates the two conflict shapes from section
// 4.7 of the decision engine.
type ConflictKindDetail string

const (
	ConflictContent ConflictKindDetail = "content"
	ConflictRename  ConflictKindDetail = "rename"
)

// Conflict is the first-class outcome recorded in a SyncReport when the
// decision engine cannot reconcile a pair without input. It is not always
// routed through Go's error interface — it's also a plain data value
// collected onto a report — but implements error so callers that do want
// to propagate it in non-interactive mode can.
type Conflict struct {
	DetailKind ConflictKindDetail
	CastID     string
	LocalRel   string
	PeerRel    string
	Peer       string
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("%s: conflict(%s) cast=%s local=%q peer=%q", ConflictKind, c.DetailKind, c.CastID, c.LocalRel, c.PeerRel)
}

// Is reports true for any *Conflict target, so
// errors.Is(err, &casterr.Conflict{}) discriminates Conflict from the
// other *Error-based kinds.
func (c *Conflict) Is(target error) bool {
	_, ok := target.(*Conflict)
	return ok
}
