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

// Package syncstate is the sync-state store (C5): atomic read/write of
// per-cast baselines at <root>/.cast/syncstate.json. Baseline updates are
// strictly per (cast_id, peer) pair — updating one pair must never
// rewrite another pair's timestamp, which is why Baseline preserves
// unknown keys verbatim rather than round-tripping through a fixed
// struct that would silently drop them.
package syncstate

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/castkit/cast/casterr"
	"github.com/castkit/cast/internal/atomicio"
)

// CurrentSchema is the schema version this build writes and understands.
const CurrentSchema = 1

// Baseline is the last (digest, rel, peer_rel) triple on which both
// sides agreed. Extra carries any unknown keys a newer build wrote, kept
// verbatim across this build's rewrites (spec.md 6.2).
type Baseline struct {
	Digest    string `json:"digest"`
	Rel       string `json:"rel"`
	PeerRel   string `json:"peer_rel"`
	UpdatedAt string `json:"updated_at"`
	Extra     map[string]json.RawMessage `json:"-"`
}

// MarshalJSON emits the known fields plus any preserved unknown ones.
func (b Baseline) MarshalJSON() ([]byte, error) {
	out := map[string]json.RawMessage{}
	for k, v := range b.Extra {
		out[k] = v
	}
	known := map[string]any{
		"digest":     b.Digest,
		"rel":        b.Rel,
		"peer_rel":   b.PeerRel,
		"updated_at": b.UpdatedAt,
	}
	for k, v := range known {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes known fields and stashes everything else in Extra.
func (b *Baseline) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["digest"]; ok {
		json.Unmarshal(v, &b.Digest)
		delete(raw, "digest")
	}
	if v, ok := raw["rel"]; ok {
		json.Unmarshal(v, &b.Rel)
		delete(raw, "rel")
	}
	if v, ok := raw["peer_rel"]; ok {
		json.Unmarshal(v, &b.PeerRel)
		delete(raw, "peer_rel")
	}
	if v, ok := raw["updated_at"]; ok {
		json.Unmarshal(v, &b.UpdatedAt)
		delete(raw, "updated_at")
	}
	b.Extra = raw
	return nil
}

// State is the full syncstate.json document: baselines keyed first by
// cast_id, then by peer (or codebase) name.
type State struct {
	Schema     int                            `json:"schema"`
	Baselines  map[string]map[string]Baseline `json:"baselines"`
}

func empty() *State {
	return &State{Schema: CurrentSchema, Baselines: map[string]map[string]Baseline{}}
}

// Path returns the syncstate.json path under root.
func Path(root string) string {
	return filepath.Join(root, ".cast", "syncstate.json")
}

// Load reads root's syncstate.json, returning an empty State if absent.
// A schema newer than CurrentSchema is refused with StateSchemaUnknown
// rather than silently discarded (spec.md 4.5).
func Load(root string) (*State, error) {
	path := Path(root)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return empty(), nil
		}
		return nil, casterr.WrapIoError(path, err)
	}

	var probe struct {
		Schema int `json:"schema"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, casterr.WrapIoError(path, errors.Wrap(err, "corrupt syncstate.json"))
	}
	if probe.Schema > CurrentSchema {
		return nil, casterr.WrapStateSchemaUnknown(path, probe.Schema)
	}

	st := empty()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, casterr.WrapIoError(path, errors.Wrap(err, "corrupt syncstate.json"))
	}
	if st.Baselines == nil {
		st.Baselines = map[string]map[string]Baseline{}
	}
	if st.Schema == 0 {
		st.Schema = CurrentSchema
	}
	return st, nil
}

// Save atomically replaces root's syncstate.json.
func Save(root string, st *State) error {
	path := Path(root)
	if err := atomicio.EnsureDir(afero.NewOsFs(), filepath.Dir(path)); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicio.WriteFileOS(path, data, 0o644); err != nil {
		return casterr.WrapIoError(path, err)
	}
	return nil
}

// Get returns the baseline for (castID, peer), if any.
func (s *State) Get(castID, peer string) (Baseline, bool) {
	peers, ok := s.Baselines[castID]
	if !ok {
		return Baseline{}, false
	}
	b, ok := peers[peer]
	return b, ok
}

// Set records the baseline for (castID, peer), touching only that pair.
func (s *State) Set(castID, peer string, b Baseline) {
	if s.Baselines[castID] == nil {
		s.Baselines[castID] = map[string]Baseline{}
	}
	s.Baselines[castID][peer] = b
}

// Clear removes the baseline for (castID, peer) without affecting any
// other pair's entry.
func (s *State) Clear(castID, peer string) {
	peers, ok := s.Baselines[castID]
	if !ok {
		return
	}
	delete(peers, peer)
	if len(peers) == 0 {
		delete(s.Baselines, castID)
	}
}
