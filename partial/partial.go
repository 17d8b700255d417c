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

// Package partial assigns modules to resource pots. Modules loaded by the same
// set of module groups, of the same pot type and immutability, share a pot.
package partial

import (
	"context"
	"maps"
	"path"
	"slices"
	"strings"

	"bennypowers.dev/potter/compilation"
	"bennypowers.dev/potter/diff"
	"bennypowers.dev/potter/internal/hash"
	"bennypowers.dev/potter/module"
	"bennypowers.dev/potter/resource"
)

// Generator regroups the modules of affected module groups into pots.
type Generator struct{}

// New creates a pot generator.
func New() *Generator {
	return &Generator{}
}

// assignment is where a module should live.
type assignment struct {
	potID     string
	name      string
	typ       resource.PotType
	immutable bool
	groups    []module.ID
}

// GenerateAndDiff removes removed modules from their pots, moves every
// unassigned module of the affected groups into the pot matching its group
// set, type and immutability, and deletes pots left empty together with their
// resources. Returns the sorted ids of the pots that were created or whose
// membership changed.
func (gen *Generator) GenerateAndDiff(
	_ context.Context,
	c *compilation.Context,
	affectedGroups []module.ID,
	_ *diff.Result,
	_ []module.ID,
	removed map[module.ID]*module.Module,
) ([]string, error) {
	changed := make(map[string]struct{})
	var emptied []*resource.Pot

	err := c.WriteGraph(func(g *module.Graph) error {
		return c.WritePots(func(pots *resource.PotMap) error {
			return c.ReadGroups(func(groups *module.GroupGraph) error {
				before := make(map[string][]module.ID, pots.Len())
				for _, p := range pots.Pots() {
					before[p.ID] = p.Modules()
				}

				for id, m := range removed {
					if m.ResourcePot == "" {
						continue
					}
					if p := pots.Get(m.ResourcePot); p != nil && p.RemoveModule(id) {
						changed[p.ID] = struct{}{}
					}
				}

				// Drop members that left the graph, e.g. renamed by scoping.
				for _, p := range pots.Pots() {
					for _, id := range p.Modules() {
						if m := g.Module(id); m == nil || m.ResourcePot != p.ID {
							p.RemoveModule(id)
							changed[p.ID] = struct{}{}
						}
					}
				}

				for _, groupID := range affectedGroups {
					group := groups.Group(groupID)
					if group == nil {
						continue
					}
					for _, id := range group.Modules() {
						m := g.Module(id)
						if m == nil || m.External || m.ResourcePot != "" {
							continue
						}
						a := assign(g, groups, m)
						p := pots.Get(a.potID)
						if p == nil {
							p = resource.NewPot(a.potID, a.name, a.typ, a.immutable)
							pots.Add(p)
						}
						p.AddModule(id)
						m.ResourcePot = p.ID
						changed[p.ID] = struct{}{}
					}
				}

				for id := range changed {
					p := pots.Get(id)
					if p == nil {
						continue
					}
					if p.Len() == 0 {
						if _, err := pots.Remove(id); err != nil {
							return err
						}
						emptied = append(emptied, p)
						continue
					}
					p.SetGroups(potGroups(groups, p))
					if prev, existed := before[id]; existed && slices.Equal(prev, p.Modules()) {
						delete(changed, id)
					}
				}
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}

	for _, p := range emptied {
		delete(changed, p.ID)
		for _, name := range p.ClearResources() {
			c.Resources.Remove(name)
		}
		for _, r := range c.Resources.ByOrigin(resource.FromPot(p.ID)) {
			c.Resources.Remove(r.Name)
		}
		c.Logger().Debug("removed empty resource pot %s", p.ID)
	}

	if err := c.ReadGraph(func(g *module.Graph) error {
		return c.WriteGroups(func(groups *module.GroupGraph) error {
			groups.RefreshPots(g)
			return nil
		})
	}); err != nil {
		return nil, err
	}

	ids := slices.Collect(maps.Keys(changed))
	slices.Sort(ids)
	return ids, nil
}

func potGroups(groups *module.GroupGraph, p *resource.Pot) []module.ID {
	set := make(map[module.ID]struct{})
	for _, id := range p.Modules() {
		for _, group := range groups.GroupsOf(id) {
			set[group] = struct{}{}
		}
	}
	ids := slices.Collect(maps.Keys(set))
	module.SortIDs(ids)
	return ids
}

// assign computes the pot a module belongs to.
func assign(g *module.Graph, groups *module.GroupGraph, m *module.Module) assignment {
	typ := resource.PotTypeFor(m.Type)
	a := assignment{
		typ:       typ,
		immutable: m.Immutable,
		groups:    groups.GroupsOf(m.ID),
	}

	// Assets and html documents are emitted one per module.
	if typ == resource.PotTypeAsset || typ == resource.PotTypeHtml {
		a.name = stem(m.ID)
		a.potID = typ.String() + ":" + m.ID.String()
		return a
	}

	a.name = groupName(g, a.groups)
	key := make([]string, 0, len(a.groups)+2)
	for _, group := range a.groups {
		key = append(key, group.String())
	}
	key = append(key, typ.String())
	if a.immutable {
		key = append(key, "immutable")
		a.name += "_vendor"
	}
	a.potID = a.name + "_" + typ.String() + "_" + hash.Short([]byte(strings.Join(key, "\x00")), 8)
	return a
}

// groupName names a pot after its module groups: the entry name for an entry
// group, the file stem for a dynamic import, "shared" for several groups.
func groupName(g *module.Graph, groups []module.ID) string {
	switch len(groups) {
	case 0:
		return "orphan"
	case 1:
		if name, ok := g.Entries()[groups[0]]; ok {
			return name
		}
		return stem(groups[0])
	default:
		return "shared"
	}
}

func stem(id module.ID) string {
	base := path.Base(id.Path)
	base = strings.TrimSuffix(base, path.Ext(base))
	if id.Scope != "" {
		base += "." + id.Scope
	}
	return base
}
