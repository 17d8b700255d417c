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
	"maps"
	"slices"
)

// Group is the set of modules statically reachable from an entry or from the
// target of a dynamic import. A module can belong to several groups.
type Group struct {
	// ID is the id of the module the group starts from.
	ID      ID
	Entry   bool
	modules map[ID]struct{}
	pots    map[string]struct{}
}

// Modules returns the group's module ids in sorted order.
func (g *Group) Modules() []ID {
	ids := slices.Collect(maps.Keys(g.modules))
	SortIDs(ids)
	return ids
}

// HasModule reports whether the module is a member of the group.
func (g *Group) HasModule(id ID) bool {
	_, ok := g.modules[id]
	return ok
}

// Pots returns the ids of the resource pots this group produces, sorted.
func (g *Group) Pots() []string {
	pots := slices.Collect(maps.Keys(g.pots))
	slices.Sort(pots)
	return pots
}

// GroupGraph holds the module groups and which group loads which through a
// dynamic import.
type GroupGraph struct {
	groups   map[ID]*Group
	children map[ID]map[ID]struct{}
	// membership maps module -> groups containing it
	membership map[ID]map[ID]struct{}
}

// NewGroupGraph creates an empty group graph.
func NewGroupGraph() *GroupGraph {
	return &GroupGraph{
		groups:     make(map[ID]*Group),
		children:   make(map[ID]map[ID]struct{}),
		membership: make(map[ID]map[ID]struct{}),
	}
}

// BuildGroups computes the module groups of a graph: one per entry and one per
// dynamic import target. Group pots are taken from the members' current pot
// assignment.
func BuildGroups(graph *Graph) *GroupGraph {
	gg := NewGroupGraph()

	queue := graph.EntryIDs()
	for _, id := range queue {
		gg.groups[id] = &Group{ID: id, Entry: true}
	}

	for len(queue) > 0 {
		root := queue[0]
		queue = queue[1:]
		group := gg.groups[root]
		group.modules = make(map[ID]struct{})
		group.pots = make(map[string]struct{})

		walk := []ID{root}
		for len(walk) > 0 {
			current := walk[0]
			walk = walk[1:]
			if _, seen := group.modules[current]; seen {
				continue
			}
			group.modules[current] = struct{}{}
			gg.addMembership(current, root)
			if pot := graph.Module(current).ResourcePot; pot != "" {
				group.pots[pot] = struct{}{}
			}

			for _, dep := range graph.DependenciesWithEdges(current) {
				if !dep.Edge.IsDynamic() {
					walk = append(walk, dep.ID)
					continue
				}
				if gg.children[root] == nil {
					gg.children[root] = make(map[ID]struct{})
				}
				gg.children[root][dep.ID] = struct{}{}
				if _, exists := gg.groups[dep.ID]; !exists {
					gg.groups[dep.ID] = &Group{ID: dep.ID}
					queue = append(queue, dep.ID)
				}
			}
		}
	}

	return gg
}

func (gg *GroupGraph) addMembership(module, group ID) {
	if gg.membership[module] == nil {
		gg.membership[module] = make(map[ID]struct{})
	}
	gg.membership[module][group] = struct{}{}
}

// Group returns the group started by id, or nil.
func (gg *GroupGraph) Group(id ID) *Group {
	return gg.groups[id]
}

// Len returns the number of groups.
func (gg *GroupGraph) Len() int {
	return len(gg.groups)
}

// IDs returns all group ids in sorted order.
func (gg *GroupGraph) IDs() []ID {
	ids := slices.Collect(maps.Keys(gg.groups))
	SortIDs(ids)
	return ids
}

// GroupsOf returns the groups a module belongs to, sorted.
func (gg *GroupGraph) GroupsOf(module ID) []ID {
	ids := slices.Collect(maps.Keys(gg.membership[module]))
	SortIDs(ids)
	return ids
}

// Children returns the groups loaded by dynamic imports from group id.
func (gg *GroupGraph) Children(id ID) []ID {
	ids := slices.Collect(maps.Keys(gg.children[id]))
	SortIDs(ids)
	return ids
}

// RefreshPots recomputes each group's pot set from the members' assignments.
func (gg *GroupGraph) RefreshPots(graph *Graph) {
	for _, group := range gg.groups {
		group.pots = make(map[string]struct{})
		for id := range group.modules {
			m := graph.Module(id)
			if m != nil && m.ResourcePot != "" {
				group.pots[m.ResourcePot] = struct{}{}
			}
		}
	}
}
