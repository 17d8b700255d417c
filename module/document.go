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

package module

import (
	"fmt"
	"maps"
	"slices"
)

// Document is a serializable view of a module graph, used by the graph
// command and by test fixtures.
type Document struct {
	// Entries maps entry names to module ids.
	Entries map[string]string `json:"entries" yaml:"entries"`
	Modules []DocumentModule  `json:"modules" yaml:"modules"`
}

// DocumentModule is one module of a Document. Dependencies refer to other
// modules by their full id string.
type DocumentModule struct {
	Path      string               `json:"path" yaml:"path"`
	Query     string               `json:"query,omitempty" yaml:"query,omitempty"`
	Scope     string               `json:"scope,omitempty" yaml:"scope,omitempty"`
	External  bool                 `json:"external,omitempty" yaml:"external,omitempty"`
	Immutable bool                 `json:"immutable,omitempty" yaml:"immutable,omitempty"`
	Pot       string               `json:"pot,omitempty" yaml:"pot,omitempty"`
	Content   string               `json:"content,omitempty" yaml:"content,omitempty"`
	Deps      []DocumentDependency `json:"deps,omitempty" yaml:"deps,omitempty"`
}

// DocumentDependency is an edge of a Document.
type DocumentDependency struct {
	ID     string `json:"id" yaml:"id"`
	Kind   string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Document describes the graph. Module content is left out.
func (g *Graph) Document() Document {
	doc := Document{Entries: make(map[string]string)}
	for id, name := range g.entries {
		doc.Entries[name] = id.String()
	}
	for _, m := range g.Modules() {
		dm := DocumentModule{
			Path:      m.ID.Path,
			Query:     m.ID.Query,
			Scope:     m.ID.Scope,
			External:  m.External,
			Immutable: m.Immutable,
			Pot:       m.ResourcePot,
		}
		for _, dep := range g.DependenciesWithEdges(m.ID) {
			item := dep.Edge.Items[0]
			dm.Deps = append(dm.Deps, DocumentDependency{
				ID:     dep.ID.String(),
				Kind:   item.Kind.String(),
				Source: item.Source,
			})
		}
		doc.Modules = append(doc.Modules, dm)
	}
	return doc
}

// Graph builds the module graph a document describes. A dependency's kind
// defaults to import and its source to "./" plus its path.
func (d Document) Graph() (*Graph, error) {
	g := NewGraph()
	ids := make(map[string]ID, len(d.Modules))
	for _, dm := range d.Modules {
		m := New(ID{Path: dm.Path, Query: dm.Query, Scope: dm.Scope})
		m.External = dm.External
		m.Immutable = dm.Immutable
		m.ResourcePot = dm.Pot
		m.Content = dm.Content
		if dm.Scope != "" {
			m.Type = m.Type.ToCustom(dm.Scope)
		}
		g.AddModule(m)
		ids[m.ID.String()] = m.ID
	}

	for _, dm := range d.Modules {
		from := ID{Path: dm.Path, Query: dm.Query, Scope: dm.Scope}
		for i, dep := range dm.Deps {
			to, ok := ids[dep.ID]
			if !ok {
				return nil, fmt.Errorf("%s depends on %s: %w", from, dep.ID, ErrModuleNotFound)
			}
			kind, err := ParseResolveKind(dep.Kind)
			if err != nil {
				return nil, fmt.Errorf("%s -> %s: %w", from, dep.ID, err)
			}
			source := dep.Source
			if source == "" {
				source = "./" + to.Path
			}
			if err := g.AddEdge(from, to, NewEdgeInfo(source, kind, i)); err != nil {
				return nil, err
			}
		}
	}

	for _, name := range slices.Sorted(maps.Keys(d.Entries)) {
		id, ok := ids[d.Entries[name]]
		if !ok {
			return nil, fmt.Errorf("entry %q: %s: %w", name, d.Entries[name], ErrModuleNotFound)
		}
		if err := g.SetEntry(id, name); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// ParseResolveKind parses the String form of a ResolveKind. The empty string
// is ResolveImport.
func ParseResolveKind(s string) (ResolveKind, error) {
	if s == "" {
		return ResolveImport, nil
	}
	for k := ResolveImport; k <= ResolveEntry; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown resolve kind %q", s)
}
