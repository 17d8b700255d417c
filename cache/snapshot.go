/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package cache

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Masterminds/semver/v3"
	"github.com/tinylib/msgp/msgp"

	"bennypowers.dev/potter/compilation"
	"bennypowers.dev/potter/internal/hash"
	"bennypowers.dev/potter/module"
	"bennypowers.dev/potter/resource"
)

// FormatVersion is the snapshot format written by this build.
const FormatVersion = "1.1.0"

// SupportedFormats is the range of snapshot formats this build reads.
const SupportedFormats = "^1.0.0"

var (
	// ErrIncompatibleSnapshot is returned for snapshots written in an
	// unsupported format.
	ErrIncompatibleSnapshot = errors.New("incompatible snapshot format")
	// ErrCorruptSnapshot is returned when the checksum does not match.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

var supported = mustConstraint(SupportedFormats)

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// SnapshotModule is the persisted state of one module.
type SnapshotModule struct {
	ID          module.ID
	Type        module.Type
	ResourcePot string
	ContentHash uint64
	Immutable   bool
	External    bool
}

// SnapshotPot is the persisted state of one resource pot.
type SnapshotPot struct {
	ID        string
	Name      string
	Type      resource.PotType
	Immutable bool
	Modules   []module.ID
	Resources []string
}

// SnapshotEdge is a persisted dependency edge.
type SnapshotEdge struct {
	From, To module.ID
	Edge     module.EdgeInfo
}

// Snapshot is the compilation state written after a regeneration.
type Snapshot struct {
	Format       string
	Modules      []SnapshotModule
	Edges        []SnapshotEdge
	Entries      map[string]module.ID
	Pots         []SnapshotPot
	Resources    []string
	PluginCaches map[string][]byte
}

// TakeSnapshot captures the compilation state. Modules and pots are sorted
// by id so equal states encode to equal bytes.
func TakeSnapshot(c *compilation.Context, pluginCaches map[string][]byte) (*Snapshot, error) {
	s := &Snapshot{
		Format:       FormatVersion,
		Entries:      make(map[string]module.ID),
		Resources:    c.Resources.Names(),
		PluginCaches: pluginCaches,
	}

	err := c.ReadGraph(func(g *module.Graph) error {
		ids := g.IDs()
		module.SortIDs(ids)
		for _, id := range ids {
			m := g.Module(id)
			s.Modules = append(s.Modules, SnapshotModule{
				ID:          m.ID,
				Type:        m.Type,
				ResourcePot: m.ResourcePot,
				ContentHash: m.ContentHash,
				Immutable:   m.Immutable,
				External:    m.External,
			})
			for _, dep := range g.DependenciesWithEdges(id) {
				s.Edges = append(s.Edges, SnapshotEdge{From: id, To: dep.ID, Edge: dep.Edge})
			}
		}
		for id, name := range g.Entries() {
			s.Entries[name] = id
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = c.ReadPots(func(pots *resource.PotMap) error {
		ids := pots.IDs()
		slices.Sort(ids)
		for _, id := range ids {
			p := pots.Get(id)
			s.Pots = append(s.Pots, SnapshotPot{
				ID:        p.ID,
				Name:      p.Name,
				Type:      p.Type,
				Immutable: p.Immutable,
				Modules:   p.Modules(),
				Resources: p.Resources(),
			})
		}
		return nil
	})
	return s, err
}

// Graph rebuilds the module graph recorded in the snapshot. Module content is
// not part of the snapshot.
func (s *Snapshot) Graph() (*module.Graph, error) {
	g := module.NewGraph()
	for _, sm := range s.Modules {
		m := module.New(sm.ID)
		m.Type = sm.Type
		m.ResourcePot = sm.ResourcePot
		m.ContentHash = sm.ContentHash
		m.Immutable = sm.Immutable
		m.External = sm.External
		g.AddModule(m)
	}
	for _, e := range s.Edges {
		if err := g.AddEdge(e.From, e.To, e.Edge); err != nil {
			return nil, fmt.Errorf("restoring edge %s -> %s: %w", e.From, e.To, err)
		}
	}
	for name, id := range s.Entries {
		if err := g.SetEntry(id, name); err != nil {
			return nil, fmt.Errorf("restoring entry %q: %w", name, err)
		}
	}
	return g, nil
}

// PotMap rebuilds the resource pots recorded in the snapshot.
func (s *Snapshot) PotMap() *resource.PotMap {
	pots := resource.NewPotMap()
	for _, sp := range s.Pots {
		p := resource.NewPot(sp.ID, sp.Name, sp.Type, sp.Immutable)
		for _, id := range sp.Modules {
			p.AddModule(id)
		}
		for _, name := range sp.Resources {
			p.AddResource(name)
		}
		pots.Add(p)
	}
	return pots
}

// MarshalSnapshot encodes a snapshot as the msgpack array
// [format, checksum, payload], where checksum is the HighwayHash of payload.
func MarshalSnapshot(s *Snapshot) []byte {
	payload := appendSnapshot(nil, s)
	b := msgp.AppendArrayHeader(nil, 3)
	b = msgp.AppendString(b, s.Format)
	b = msgp.AppendUint64(b, hash.Sum64(payload))
	return msgp.AppendBytes(b, payload)
}

// UnmarshalSnapshot decodes a snapshot, rejecting unsupported formats with
// ErrIncompatibleSnapshot and checksum mismatches with ErrCorruptSnapshot.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	b := data
	if err := expectArray(&b, 3); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	format, b, err := msgp.ReadStringBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: format: %w", ErrCorruptSnapshot, err)
	}
	v, err := semver.NewVersion(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrIncompatibleSnapshot, format, err)
	}
	if !supported.Check(v) {
		return nil, fmt.Errorf("%w: %s does not satisfy %s", ErrIncompatibleSnapshot, format, SupportedFormats)
	}

	sum, b, err := msgp.ReadUint64Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: checksum: %w", ErrCorruptSnapshot, err)
	}
	payload, _, err := msgp.ReadBytesZC(b)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrCorruptSnapshot, err)
	}
	if hash.Sum64(payload) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}

	s, err := readSnapshot(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	s.Format = format
	return s, nil
}

func appendSnapshot(b []byte, s *Snapshot) []byte {
	b = msgp.AppendArrayHeader(b, 6)

	b = msgp.AppendArrayHeader(b, uint32(len(s.Modules)))
	for _, m := range s.Modules {
		b = msgp.AppendArrayHeader(b, 6)
		b = appendID(b, m.ID)
		b = appendType(b, m.Type)
		b = msgp.AppendString(b, m.ResourcePot)
		b = msgp.AppendUint64(b, m.ContentHash)
		b = msgp.AppendBool(b, m.Immutable)
		b = msgp.AppendBool(b, m.External)
	}

	b = msgp.AppendArrayHeader(b, uint32(len(s.Edges)))
	for _, e := range s.Edges {
		b = msgp.AppendArrayHeader(b, 3)
		b = appendID(b, e.From)
		b = appendID(b, e.To)
		b = msgp.AppendArrayHeader(b, uint32(len(e.Edge.Items)))
		for _, item := range e.Edge.Items {
			b = msgp.AppendArrayHeader(b, 3)
			b = msgp.AppendString(b, item.Source)
			b = msgp.AppendUint8(b, uint8(item.Kind))
			b = msgp.AppendInt(b, item.Order)
		}
	}

	names := slices.Sorted(maps.Keys(s.Entries))
	b = msgp.AppendMapHeader(b, uint32(len(names)))
	for _, name := range names {
		b = msgp.AppendString(b, name)
		b = appendID(b, s.Entries[name])
	}

	b = msgp.AppendArrayHeader(b, uint32(len(s.Pots)))
	for _, p := range s.Pots {
		b = msgp.AppendArrayHeader(b, 6)
		b = msgp.AppendString(b, p.ID)
		b = msgp.AppendString(b, p.Name)
		b = msgp.AppendString(b, p.Type.String())
		b = msgp.AppendBool(b, p.Immutable)
		b = msgp.AppendArrayHeader(b, uint32(len(p.Modules)))
		for _, id := range p.Modules {
			b = appendID(b, id)
		}
		b = appendStrings(b, p.Resources)
	}

	b = appendStrings(b, s.Resources)

	keys := slices.Sorted(maps.Keys(s.PluginCaches))
	b = msgp.AppendMapHeader(b, uint32(len(keys)))
	for _, key := range keys {
		b = msgp.AppendString(b, key)
		b = msgp.AppendBytes(b, s.PluginCaches[key])
	}
	return b
}

func readSnapshot(b []byte) (*Snapshot, error) {
	if err := expectArray(&b, 6); err != nil {
		return nil, err
	}
	s := &Snapshot{Entries: make(map[string]module.ID), PluginCaches: make(map[string][]byte)}

	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, malformed("modules", err)
	}
	for range n {
		if err := expectArray(&b, 6); err != nil {
			return nil, err
		}
		var m SnapshotModule
		if m.ID, b, err = readID(b); err != nil {
			return nil, err
		}
		if m.Type, b, err = readType(b); err != nil {
			return nil, err
		}
		if m.ResourcePot, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, malformed("resource pot", err)
		}
		if m.ContentHash, b, err = msgp.ReadUint64Bytes(b); err != nil {
			return nil, malformed("content hash", err)
		}
		if m.Immutable, b, err = msgp.ReadBoolBytes(b); err != nil {
			return nil, malformed("immutable", err)
		}
		if m.External, b, err = msgp.ReadBoolBytes(b); err != nil {
			return nil, malformed("external", err)
		}
		s.Modules = append(s.Modules, m)
	}

	if n, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
		return nil, malformed("edges", err)
	}
	for range n {
		if err := expectArray(&b, 3); err != nil {
			return nil, err
		}
		var e SnapshotEdge
		if e.From, b, err = readID(b); err != nil {
			return nil, err
		}
		if e.To, b, err = readID(b); err != nil {
			return nil, err
		}
		var items uint32
		if items, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
			return nil, malformed("edge items", err)
		}
		for range items {
			if err := expectArray(&b, 3); err != nil {
				return nil, err
			}
			var (
				item module.EdgeItem
				kind uint8
			)
			if item.Source, b, err = msgp.ReadStringBytes(b); err != nil {
				return nil, malformed("edge source", err)
			}
			if kind, b, err = msgp.ReadUint8Bytes(b); err != nil {
				return nil, malformed("edge kind", err)
			}
			item.Kind = module.ResolveKind(kind)
			if item.Order, b, err = msgp.ReadIntBytes(b); err != nil {
				return nil, malformed("edge order", err)
			}
			e.Edge.Items = append(e.Edge.Items, item)
		}
		s.Edges = append(s.Edges, e)
	}

	if n, b, err = msgp.ReadMapHeaderBytes(b); err != nil {
		return nil, malformed("entries", err)
	}
	for range n {
		var (
			name string
			id   module.ID
		)
		if name, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, malformed("entry name", err)
		}
		if id, b, err = readID(b); err != nil {
			return nil, err
		}
		s.Entries[name] = id
	}

	if n, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
		return nil, malformed("pots", err)
	}
	for range n {
		if err := expectArray(&b, 6); err != nil {
			return nil, err
		}
		var (
			p   SnapshotPot
			typ string
		)
		if p.ID, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, malformed("pot id", err)
		}
		if p.Name, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, malformed("pot name", err)
		}
		if typ, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, malformed("pot type", err)
		}
		p.Type = resource.ParsePotType(typ)
		if p.Immutable, b, err = msgp.ReadBoolBytes(b); err != nil {
			return nil, malformed("pot immutable", err)
		}
		var members uint32
		if members, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
			return nil, malformed("pot modules", err)
		}
		for range members {
			var id module.ID
			if id, b, err = readID(b); err != nil {
				return nil, err
			}
			p.Modules = append(p.Modules, id)
		}
		if p.Resources, b, err = readStrings(b); err != nil {
			return nil, err
		}
		s.Pots = append(s.Pots, p)
	}

	if s.Resources, b, err = readStrings(b); err != nil {
		return nil, err
	}

	if n, b, err = msgp.ReadMapHeaderBytes(b); err != nil {
		return nil, malformed("plugin caches", err)
	}
	for range n {
		var (
			key  string
			data []byte
		)
		if key, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, malformed("plugin cache name", err)
		}
		if data, b, err = msgp.ReadBytesBytes(b, nil); err != nil {
			return nil, malformed("plugin cache "+key, err)
		}
		s.PluginCaches[key] = data
	}
	return s, nil
}

func appendStrings(b []byte, ss []string) []byte {
	b = msgp.AppendArrayHeader(b, uint32(len(ss)))
	for _, s := range ss {
		b = msgp.AppendString(b, s)
	}
	return b
}

func readStrings(b []byte) ([]string, []byte, error) {
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, nil, malformed("string list", err)
	}
	var out []string
	for range n {
		var s string
		if s, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, nil, malformed("string list", err)
		}
		out = append(out, s)
	}
	return out, b, nil
}
