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
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Graph is the module dependency graph.
//
// The graph does not synchronize itself: callers share it through
// compilation.Context, which guards it with a read/write lock.
// Every mutation keeps the graph free of dangling edges.
type Graph struct {
	modules map[ID]*Module

	// dependencies maps module -> dependency -> edge metadata
	dependencies map[ID]map[ID]EdgeInfo

	// dependents maps module -> set of modules that import it
	dependents map[ID]map[ID]struct{}

	// entries maps entry module -> entry name
	entries map[ID]string
}

// NewGraph creates a new empty module graph.
func NewGraph() *Graph {
	return &Graph{
		modules:      make(map[ID]*Module),
		dependencies: make(map[ID]map[ID]EdgeInfo),
		dependents:   make(map[ID]map[ID]struct{}),
		entries:      make(map[ID]string),
	}
}

// AddModule inserts a module, replacing a module with the same id but keeping
// its edges.
func (g *Graph) AddModule(m *Module) {
	g.modules[m.ID] = m
	if g.dependencies[m.ID] == nil {
		g.dependencies[m.ID] = make(map[ID]EdgeInfo)
	}
	if g.dependents[m.ID] == nil {
		g.dependents[m.ID] = make(map[ID]struct{})
	}
}

// Module returns the module with the given id, or nil.
func (g *Graph) Module(id ID) *Module {
	return g.modules[id]
}

// HasModule reports whether the id is in the graph.
func (g *Graph) HasModule(id ID) bool {
	_, ok := g.modules[id]
	return ok
}

// Len returns the number of modules.
func (g *Graph) Len() int {
	return len(g.modules)
}

// Modules returns all modules ordered by id.
func (g *Graph) Modules() []*Module {
	ids := g.IDs()
	result := make([]*Module, len(ids))
	for i, id := range ids {
		result[i] = g.modules[id]
	}
	return result
}

// IDs returns all module ids in sorted order.
func (g *Graph) IDs() []ID {
	ids := slices.Collect(maps.Keys(g.modules))
	SortIDs(ids)
	return ids
}

// RemoveModule removes a module and every edge touching it.
// Returns the removed module.
func (g *Graph) RemoveModule(id ID) (*Module, error) {
	m, ok := g.modules[id]
	if !ok {
		return nil, fmt.Errorf("removing %s: %w", id, ErrModuleNotFound)
	}

	// For each dep that id imports, drop id from its dependents
	for dep := range g.dependencies[id] {
		delete(g.dependents[dep], id)
	}

	// For each dependent of id, drop the edge pointing at id
	for dependent := range g.dependents[id] {
		delete(g.dependencies[dependent], id)
	}

	delete(g.modules, id)
	delete(g.dependencies, id)
	delete(g.dependents, id)
	delete(g.entries, id)

	return m, nil
}

// RenameModule changes the id of a module, rewiring every edge and entry that
// referenced the old id. The module's ID field is updated in place.
func (g *Graph) RenameModule(from, to ID) error {
	m, ok := g.modules[from]
	if !ok {
		return fmt.Errorf("renaming %s: %w", from, ErrModuleNotFound)
	}
	if from == to {
		return nil
	}
	if _, exists := g.modules[to]; exists {
		return fmt.Errorf("renaming %s to %s: %w", from, to, ErrModuleExists)
	}

	deps := g.dependencies[from]
	dependents := g.dependents[from]

	// A self-import is detached first so the loops below only see other
	// modules, then moves with the module.
	self, selfImport := deps[from]
	delete(deps, from)
	delete(dependents, from)

	for dep := range deps {
		delete(g.dependents[dep], from)
		g.dependents[dep][to] = struct{}{}
	}
	for dependent := range dependents {
		edge := g.dependencies[dependent][from]
		delete(g.dependencies[dependent], from)
		g.dependencies[dependent][to] = edge
	}

	if selfImport {
		deps[to] = self
		dependents[to] = struct{}{}
	}

	delete(g.modules, from)
	delete(g.dependencies, from)
	delete(g.dependents, from)
	g.modules[to] = m
	g.dependencies[to] = deps
	g.dependents[to] = dependents

	if name, ok := g.entries[from]; ok {
		delete(g.entries, from)
		g.entries[to] = name
	}

	m.ID = to
	return nil
}

// AddEdge records that from depends on to. Both modules must exist.
// Adding an edge that already exists merges the edge items.
func (g *Graph) AddEdge(from, to ID, edge EdgeInfo) error {
	if !g.HasModule(from) {
		return fmt.Errorf("adding edge %s -> %s: source %w", from, to, ErrModuleNotFound)
	}
	if !g.HasModule(to) {
		return fmt.Errorf("adding edge %s -> %s: target %w", from, to, ErrModuleNotFound)
	}

	if existing, ok := g.dependencies[from][to]; ok {
		edge = existing.Merge(edge)
	}
	g.dependencies[from][to] = edge
	g.dependents[to][from] = struct{}{}
	return nil
}

// ReplaceEdge sets the metadata of an edge, creating it if needed.
func (g *Graph) ReplaceEdge(from, to ID, edge EdgeInfo) error {
	if g.HasEdge(from, to) {
		g.dependencies[from][to] = edge
		return nil
	}
	return g.AddEdge(from, to, edge)
}

// RemoveEdge removes the edge from -> to and returns its metadata.
func (g *Graph) RemoveEdge(from, to ID) (EdgeInfo, error) {
	edge, ok := g.dependencies[from][to]
	if !ok {
		return EdgeInfo{}, fmt.Errorf("removing edge %s -> %s: %w", from, to, ErrEdgeNotFound)
	}
	delete(g.dependencies[from], to)
	delete(g.dependents[to], from)
	return edge, nil
}

// HasEdge reports whether from depends on to.
func (g *Graph) HasEdge(from, to ID) bool {
	_, ok := g.dependencies[from][to]
	return ok
}

// EdgeInfo returns the metadata of the edge from -> to.
func (g *Graph) EdgeInfo(from, to ID) (EdgeInfo, bool) {
	edge, ok := g.dependencies[from][to]
	return edge, ok
}

// Dependency pairs a dependency id with the edge that references it.
type Dependency struct {
	ID   ID
	Edge EdgeInfo
}

// DependenciesWithEdges returns the dependencies of id in source order.
func (g *Graph) DependenciesWithEdges(id ID) []Dependency {
	deps := g.dependencies[id]
	if len(deps) == 0 {
		return nil
	}
	result := make([]Dependency, 0, len(deps))
	for dep, edge := range deps {
		result = append(result, Dependency{ID: dep, Edge: edge})
	}
	slices.SortFunc(result, func(a, b Dependency) int {
		return cmp.Or(
			cmp.Compare(a.Edge.Order(), b.Edge.Order()),
			strings.Compare(a.ID.String(), b.ID.String()),
		)
	})
	return result
}

// Dependencies returns the dependency ids of id in source order.
func (g *Graph) Dependencies(id ID) []ID {
	deps := g.DependenciesWithEdges(id)
	if deps == nil {
		return nil
	}
	result := make([]ID, len(deps))
	for i, dep := range deps {
		result[i] = dep.ID
	}
	return result
}

// Dependents returns all modules that directly depend on id, sorted.
func (g *Graph) Dependents(id ID) []ID {
	deps := g.dependents[id]
	if len(deps) == 0 {
		return nil
	}
	result := slices.Collect(maps.Keys(deps))
	SortIDs(result)
	return result
}

// DependentsLen returns the fan-in of id.
func (g *Graph) DependentsLen(id ID) int {
	return len(g.dependents[id])
}

// TransitiveDependents returns all modules that directly or indirectly depend on id.
// Uses breadth-first traversal to find all dependents.
func (g *Graph) TransitiveDependents(id ID) []ID {
	visited := make(map[ID]bool)
	queue := []ID{id}
	var result []ID

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for dep := range g.dependents[current] {
			if !visited[dep] {
				visited[dep] = true
				result = append(result, dep)
				queue = append(queue, dep)
			}
		}
	}

	SortIDs(result)
	return result
}

// SetEntry marks id as an entry with the given name.
func (g *Graph) SetEntry(id ID, name string) error {
	if !g.HasModule(id) {
		return fmt.Errorf("setting entry %q: %w", name, ErrModuleNotFound)
	}
	g.entries[id] = name
	return nil
}

// Entries returns a copy of the entry map (id -> name).
func (g *Graph) Entries() map[ID]string {
	return maps.Clone(g.entries)
}

// EntryIDs returns entry ids ordered by entry name.
func (g *Graph) EntryIDs() []ID {
	ids := slices.Collect(maps.Keys(g.entries))
	slices.SortFunc(ids, func(a, b ID) int {
		return cmp.Or(
			strings.Compare(g.entries[a], g.entries[b]),
			strings.Compare(a.String(), b.String()),
		)
	})
	return ids
}

// EntryByName returns the entry module registered under name.
func (g *Graph) EntryByName(name string) (ID, bool) {
	for _, id := range g.EntryIDs() {
		if g.entries[id] == name {
			return id, true
		}
	}
	return ID{}, false
}

// IsEntry reports whether id is an entry module.
func (g *Graph) IsEntry(id ID) bool {
	_, ok := g.entries[id]
	return ok
}

// Clone creates a deep copy of the graph.
func (g *Graph) Clone() (*Graph, error) {
	clone := NewGraph()

	for id, m := range g.modules {
		c, err := m.Clone()
		if err != nil {
			return nil, err
		}
		clone.modules[id] = c
	}

	for id, deps := range g.dependencies {
		clone.dependencies[id] = make(map[ID]EdgeInfo, len(deps))
		for dep, edge := range deps {
			clone.dependencies[id][dep] = edge.Clone()
		}
	}

	for id, deps := range g.dependents {
		clone.dependents[id] = maps.Clone(deps)
	}

	maps.Copy(clone.entries, g.entries)

	return clone, nil
}

// Validate checks that every edge endpoint exists and the dependents index
// mirrors the dependencies index.
func (g *Graph) Validate() error {
	for from, deps := range g.dependencies {
		if !g.HasModule(from) {
			return fmt.Errorf("edges recorded for missing module %s", from)
		}
		for to := range deps {
			if !g.HasModule(to) {
				return fmt.Errorf("dangling edge %s -> %s", from, to)
			}
			if _, ok := g.dependents[to][from]; !ok {
				return fmt.Errorf("edge %s -> %s missing from dependents index", from, to)
			}
		}
	}
	for to, dependents := range g.dependents {
		for from := range dependents {
			if _, ok := g.dependencies[from][to]; !ok {
				return fmt.Errorf("dependents index has %s -> %s without an edge", from, to)
			}
		}
	}
	for id := range g.entries {
		if !g.HasModule(id) {
			return fmt.Errorf("entry %s is not in the graph", id)
		}
	}
	return nil
}
