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

// Package diff computes how an update graph differs from the current module
// graph, applies that difference, and finds the module groups it affects.
package diff

import (
	"maps"
	"slices"

	"bennypowers.dev/potter/module"
)

// DepsChange lists how the dependencies of one module changed.
type DepsChange struct {
	Added   []module.ID
	Removed []module.ID
	// KindChanged lists dependencies that switched between a static and a
	// dynamic import.
	KindChanged []module.ID
}

// IsEmpty reports whether nothing changed.
func (c DepsChange) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.KindChanged) == 0
}

// Result is the structural difference between two graphs.
type Result struct {
	AddedModules   map[module.ID]struct{}
	RemovedModules map[module.ID]struct{}
	DepsChanges    map[module.ID]DepsChange
}

// NewResult creates an empty diff result.
func NewResult() *Result {
	return &Result{
		AddedModules:   make(map[module.ID]struct{}),
		RemovedModules: make(map[module.ID]struct{}),
		DepsChanges:    make(map[module.ID]DepsChange),
	}
}

// IsEmpty reports whether the diff has no added modules, no removed modules
// and no dependency changes.
func (r *Result) IsEmpty() bool {
	return len(r.AddedModules) == 0 && len(r.RemovedModules) == 0 && len(r.DepsChanges) == 0
}

// Added returns the added module ids, sorted.
func (r *Result) Added() []module.ID {
	return sortedKeys(r.AddedModules)
}

// Removed returns the removed module ids, sorted.
func (r *Result) Removed() []module.ID {
	return sortedKeys(r.RemovedModules)
}

// Changed returns the ids of modules whose dependencies changed, sorted.
func (r *Result) Changed() []module.ID {
	ids := slices.Collect(maps.Keys(r.DepsChanges))
	module.SortIDs(ids)
	return ids
}

func sortedKeys(m map[module.ID]struct{}) []module.ID {
	ids := slices.Collect(maps.Keys(m))
	module.SortIDs(ids)
	return ids
}

func depSet(g *module.Graph, id module.ID) map[module.ID]module.EdgeInfo {
	deps := make(map[module.ID]module.EdgeInfo)
	if !g.HasModule(id) {
		return deps
	}
	for _, dep := range g.DependenciesWithEdges(id) {
		deps[dep.ID] = dep.Edge
	}
	return deps
}

// Compute walks the update graph breadth-first from start and compares each
// module's dependencies with the current graph. Dependencies missing from the
// current graph are added modules and are walked in turn. A dependency that
// loses its last dependent is removed, and so are its own dependencies when
// they lose theirs. Entries are never removed.
func Compute(current, update *module.Graph, start []module.ID) *Result {
	result := NewResult()
	lost := make(map[module.ID]map[module.ID]struct{})
	var candidates []module.ID

	visited := make(map[module.ID]bool)
	queue := slices.Clone(start)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] || !update.HasModule(id) {
			continue
		}
		visited[id] = true

		newDeps := depSet(update, id)
		oldDeps := depSet(current, id)
		var change DepsChange

		for _, dep := range update.Dependencies(id) {
			oldEdge, existed := oldDeps[dep]
			if !existed {
				change.Added = append(change.Added, dep)
				if !current.HasModule(dep) {
					result.AddedModules[dep] = struct{}{}
					queue = append(queue, dep)
				}
				continue
			}
			if oldEdge.IsDynamic() != newDeps[dep].IsDynamic() {
				change.KindChanged = append(change.KindChanged, dep)
			}
		}

		for _, dep := range current.Dependencies(id) {
			if _, kept := newDeps[dep]; kept {
				continue
			}
			change.Removed = append(change.Removed, dep)
			if lost[dep] == nil {
				lost[dep] = make(map[module.ID]struct{})
			}
			lost[dep][id] = struct{}{}
			candidates = append(candidates, dep)
		}

		if !change.IsEmpty() {
			result.DepsChanges[id] = change
		}
	}

	// A module is removed once every dependent it had is either gone or has
	// dropped the edge to it.
	for len(candidates) > 0 {
		id := candidates[0]
		candidates = candidates[1:]
		if _, done := result.RemovedModules[id]; done {
			continue
		}
		if !current.HasModule(id) || current.IsEntry(id) || visited[id] || importedByUpdate(update, visited, id) {
			continue
		}

		orphaned := true
		for _, dependent := range current.Dependents(id) {
			_, dropped := lost[id][dependent]
			_, removed := result.RemovedModules[dependent]
			if !dropped && !removed {
				orphaned = false
				break
			}
		}
		if !orphaned {
			continue
		}

		result.RemovedModules[id] = struct{}{}
		for _, dep := range current.Dependencies(id) {
			if lost[dep] == nil {
				lost[dep] = make(map[module.ID]struct{})
			}
			lost[dep][id] = struct{}{}
			candidates = append(candidates, dep)
		}
	}

	return result
}

// importedByUpdate reports whether a walked module of the update graph still
// imports id.
func importedByUpdate(update *module.Graph, visited map[module.ID]bool, id module.ID) bool {
	for _, dependent := range update.Dependents(id) {
		if visited[dependent] {
			return true
		}
	}
	return false
}
