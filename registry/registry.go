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

// Package registry is the process-wide key-value store (C3) mapping
// cast_name -> absolute root and codebase_name -> absolute root, backed
// by a file under the user's cast-home directory (CAST_HOME).
//
// Storage layout is deliberately private (spec.md design note 9:
// "callers must only go through its API"); it is a single registry.json
// file holding casts keyed by cast_id and codebases keyed by name, each
// entry carrying its absolute root — not per-cast symlinks.
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	yamlv2 "gopkg.in/yaml.v2"

	"github.com/castkit/cast/casterr"
	"github.com/castkit/cast/internal/atomicio"
)

// CastConfig identifies a cast, read from <root>/.cast/config.yaml.
type CastConfig struct {
	CastID       string `yaml:"cast-id" json:"cast_id"`
	CastName     string `yaml:"cast-name" json:"cast_name"`
	CastLocation string `yaml:"cast-location" json:"cast_location"`
	CastVersion  int    `yaml:"cast-version" json:"cast_version"`
}

// DefaultCastLocation is the conventional note subtree root.
const DefaultCastLocation = "Cast"

type entry struct {
	Name string `json:"name"`
	Root string `json:"root"`
}

type document struct {
	Casts     map[string]entry `json:"casts"`     // keyed by cast_id
	Codebases map[string]entry `json:"codebases"` // keyed by codebase name
}

// Registry is a loaded, mutable view over the registry file. Callers
// should Load, mutate via Register*/Uninstall (each of which persists
// immediately), and Resolve* for lookups.
type Registry struct {
	path string
	doc  document
}

// Home resolves CAST_HOME, defaulting to "~/.cast".
func Home() string {
	if h := os.Getenv("CAST_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cast"
	}
	return filepath.Join(home, ".cast")
}

// Load reads the registry file under home (creating an empty one in
// memory if absent; it is not written to disk until the first mutation).
func Load(home string) (*Registry, error) {
	path := filepath.Join(home, "registry.json")
	r := &Registry{path: path, doc: document{Casts: map[string]entry{}, Codebases: map[string]entry{}}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, casterr.WrapIoError(path, err)
	}
	if err := json.Unmarshal(data, &r.doc); err != nil {
		return nil, casterr.WrapIoError(path, errors.Wrap(err, "corrupt registry"))
	}
	if r.doc.Casts == nil {
		r.doc.Casts = map[string]entry{}
	}
	if r.doc.Codebases == nil {
		r.doc.Codebases = map[string]entry{}
	}
	return r, nil
}

func (r *Registry) save() error {
	if err := atomicio.EnsureDir(afero.NewOsFs(), filepath.Dir(r.path)); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r.doc, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicio.WriteFileOS(r.path, data, 0o644); err != nil {
		return casterr.WrapIoError(r.path, err)
	}
	return nil
}

// ReadConfig reads and parses <root>/.cast/config.yaml, failing with
// NotACast when missing or invalid.
func ReadConfig(root string) (CastConfig, error) {
	path := filepath.Join(root, ".cast", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return CastConfig{}, casterr.WrapNotACast(root, err)
	}
	var cfg CastConfig
	if err := yamlv2.Unmarshal(data, &cfg); err != nil {
		return CastConfig{}, casterr.WrapNotACast(root, err)
	}
	if cfg.CastID == "" {
		return CastConfig{}, casterr.WrapNotACast(root, errors.New("config.yaml missing cast-id"))
	}
	if cfg.CastLocation == "" {
		cfg.CastLocation = DefaultCastLocation
	}
	if cfg.CastVersion == 0 {
		cfg.CastVersion = 1
	}
	return cfg, nil
}

// WriteConfig atomically writes cfg to <root>/.cast/config.yaml.
func WriteConfig(root string, cfg CastConfig) error {
	path := filepath.Join(root, ".cast", "config.yaml")
	data, err := yamlv2.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := atomicio.EnsureDir(afero.NewOsFs(), filepath.Dir(path)); err != nil {
		return err
	}
	if err := atomicio.WriteFileOS(path, data, 0o644); err != nil {
		return casterr.WrapIoError(path, err)
	}
	return nil
}

// RegisterCast reads root's config (generating one with a fresh cast_id
// and cast_name derived from the directory name when absent), records
// root in the registry, and returns the resulting CastConfig.
func (r *Registry) RegisterCast(root string) (CastConfig, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return CastConfig{}, err
	}
	cfg, err := ReadConfig(abs)
	if err != nil {
		if _, serr := os.Stat(filepath.Join(abs, ".cast", "config.yaml")); !os.IsNotExist(serr) {
			return CastConfig{}, err
		}
		cfg = CastConfig{
			CastID:       uuid.NewString(),
			CastName:     filepath.Base(abs),
			CastLocation: DefaultCastLocation,
			CastVersion:  1,
		}
		if werr := WriteConfig(abs, cfg); werr != nil {
			return CastConfig{}, werr
		}
	}
	r.doc.Casts[cfg.CastID] = entry{Name: cfg.CastName, Root: abs}
	if err := r.save(); err != nil {
		return CastConfig{}, err
	}
	return cfg, nil
}

// RegisterCodebase records a named codebase root.
func (r *Registry) RegisterCodebase(name, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	r.doc.Codebases[name] = entry{Name: name, Root: abs}
	return r.save()
}

// ResolveCast returns the absolute root for a registered cast name.
func (r *Registry) ResolveCast(name string) (string, error) {
	for _, e := range r.doc.Casts {
		if e.Name == name {
			return e.Root, nil
		}
	}
	return "", casterr.WrapPeerUnavailable(name, errors.New("not registered"))
}

// ResolveCodebase returns the absolute root for a registered codebase.
func (r *Registry) ResolveCodebase(name string) (string, error) {
	e, ok := r.doc.Codebases[name]
	if !ok {
		return "", casterr.WrapPeerUnavailable(name, errors.New("codebase not registered"))
	}
	return e.Root, nil
}

// ListCasts returns registered casts sorted by name.
func (r *Registry) ListCasts() []CastConfig {
	out := make([]CastConfig, 0, len(r.doc.Casts))
	for id, e := range r.doc.Casts {
		out = append(out, CastConfig{CastID: id, CastName: e.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CastName < out[j].CastName })
	return out
}

// ListCodebases returns registered codebase names sorted.
func (r *Registry) ListCodebases() []string {
	out := make([]string, 0, len(r.doc.Codebases))
	for name := range r.doc.Codebases {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Uninstall removes a cast (by id or name) or codebase (by name).
func (r *Registry) Uninstall(idOrName string) error {
	if _, ok := r.doc.Casts[idOrName]; ok {
		delete(r.doc.Casts, idOrName)
		return r.save()
	}
	for id, e := range r.doc.Casts {
		if e.Name == idOrName {
			delete(r.doc.Casts, id)
			return r.save()
		}
	}
	if _, ok := r.doc.Codebases[idOrName]; ok {
		delete(r.doc.Codebases, idOrName)
		return r.save()
	}
	return casterr.WrapPeerUnavailable(idOrName, errors.New("not found in registry"))
}
