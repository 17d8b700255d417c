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

// Package scope copies the module subgraph of a scoped dynamic input so that
// the input's modules are isolated from the modules of other entries.
package scope

import (
	"fmt"

	"bennypowers.dev/potter/compilation"
	"bennypowers.dev/potter/module"
)

// ScopeDynamicInput walks the graph breadth-first from entry and gives every
// script and stylesheet module reachable from it the scoped id
// path.scope?query and the Custom(scope) type.
//
// A dependency imported only from inside the walk is renamed in place. A
// dependency that other modules also import is cloned, and only the edge from
// the current module is moved to the clone. Modules of any other type keep
// their identity: an exclusive one is still walked through, a shared one ends
// the walk on that path.
//
// Reports whether the graph changed. Calling it again with the same entry and
// scope on the resulting graph reports false.
func ScopeDynamicInput(entry module.ID, scope string, g *module.Graph) (bool, error) {
	if scope == "" || !g.HasModule(entry) {
		return false, nil
	}

	s := &scoper{
		graph:   g,
		scope:   scope,
		visited: map[module.ID]bool{entry: true},
		region:  map[module.ID]bool{entry: true},
		queue:   []module.ID{entry},
	}

	for len(s.queue) > 0 {
		current := s.queue[0]
		s.queue = s.queue[1:]

		for _, dep := range g.Dependencies(current) {
			if err := s.visit(current, dep); err != nil {
				return s.changed, err
			}
		}
	}

	return s.changed, nil
}

type scoper struct {
	graph   *module.Graph
	scope   string
	changed bool

	// visited is keyed by the id a module had before it was scoped.
	visited map[module.ID]bool
	// region holds the ids of modules already walked, so cycles back into
	// the walk never rewrite them a second time.
	region map[module.ID]bool
	queue  []module.ID
}

func (s *scoper) enqueue(original, current module.ID) {
	if s.visited[original] {
		return
	}
	s.visited[original] = true
	s.region[current] = true
	s.queue = append(s.queue, current)
}

func (s *scoper) visit(current, dep module.ID) error {
	if s.region[dep] {
		return nil
	}

	scoped := dep.Scoped(s.scope)
	if s.graph.HasEdge(current, scoped) {
		s.enqueue(dep, scoped)
		return nil
	}

	m := s.graph.Module(dep)
	qualifies := m.Type.IsScopable()

	if s.graph.DependentsLen(dep) > 1 {
		if !qualifies {
			return nil
		}
		if err := s.cloneShared(m, scoped); err != nil {
			return err
		}
		if err := s.moveEdge(current, dep, scoped); err != nil {
			return err
		}
		s.changed = true
		s.enqueue(dep, scoped)
		return nil
	}

	if !qualifies {
		s.enqueue(dep, dep)
		return nil
	}

	if s.graph.HasModule(scoped) {
		// An earlier clone already holds the scoped id: point at it and drop
		// the original, which nothing else imports.
		if err := s.moveEdge(current, dep, scoped); err != nil {
			return err
		}
		if s.graph.DependentsLen(dep) == 0 && !s.graph.IsEntry(dep) {
			if _, err := s.graph.RemoveModule(dep); err != nil {
				return err
			}
		}
	} else {
		if err := s.graph.RenameModule(dep, scoped); err != nil {
			return fmt.Errorf("scoping %s: %w", dep, err)
		}
		renamed := s.graph.Module(scoped)
		renamed.Type = renamed.Type.ToCustom(s.scope)
		renamed.ResourcePot = ""
	}

	s.changed = true
	s.enqueue(dep, scoped)
	return nil
}

// cloneShared adds a scoped copy of m with m's outgoing edges, unless one
// already exists.
func (s *scoper) cloneShared(m *module.Module, scoped module.ID) error {
	if s.graph.HasModule(scoped) {
		return nil
	}

	clone, err := m.Clone()
	if err != nil {
		return fmt.Errorf("scoping %s: %w", m.ID, err)
	}
	clone.ID = scoped
	clone.Type = m.Type.ToCustom(s.scope)
	clone.ResourcePot = ""
	s.graph.AddModule(clone)

	for _, dep := range s.graph.DependenciesWithEdges(m.ID) {
		to := dep.ID
		if to == m.ID {
			to = scoped
		}
		if err := s.graph.AddEdge(scoped, to, dep.Edge.Clone()); err != nil {
			return fmt.Errorf("scoping %s: %w", m.ID, err)
		}
	}
	return nil
}

func (s *scoper) moveEdge(from, to, scoped module.ID) error {
	edge, err := s.graph.RemoveEdge(from, to)
	if err != nil {
		return fmt.Errorf("scoping %s: %w", to, err)
	}
	if err := s.graph.AddEdge(from, scoped, edge); err != nil {
		return fmt.Errorf("scoping %s: %w", to, err)
	}
	return nil
}

// HandleDynamicInputs scopes the subgraph of every scoped dynamic input whose
// name is registered as a graph entry. Reports whether any scoping changed
// the graph.
func HandleDynamicInputs(g *module.Graph, inputs *compilation.DynamicInputs) (bool, error) {
	handled := false
	for _, name := range inputs.Scoped() {
		entry, ok := g.EntryByName(name)
		if !ok {
			continue
		}
		input, _ := inputs.Get(name)
		changed, err := ScopeDynamicInput(entry, input.Scope, g)
		if err != nil {
			return handled, fmt.Errorf("dynamic input %q: %w", name, err)
		}
		handled = handled || changed
	}
	return handled, nil
}
