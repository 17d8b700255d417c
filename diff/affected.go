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

package diff

import (
	"maps"
	"slices"

	"bennypowers.dev/potter/module"
)

// AffectedGroups returns the module groups whose pots must be recomputed:
// groups containing an updated or added module, a module whose dependencies
// changed, or a module not yet assigned to a pot. Groups are those of the
// patched graph.
func AffectedGroups(groups *module.GroupGraph, graph *module.Graph, updated []module.ID, result *Result) []module.ID {
	affected := make(map[module.ID]struct{})
	mark := func(id module.ID) {
		for _, group := range groups.GroupsOf(id) {
			affected[group] = struct{}{}
		}
	}

	for _, id := range updated {
		mark(id)
	}
	for id := range result.AddedModules {
		mark(id)
		// An added dynamic import target starts a group of its own.
		if groups.Group(id) != nil {
			affected[id] = struct{}{}
		}
	}
	for id := range result.DepsChanges {
		mark(id)
	}
	for _, m := range graph.Modules() {
		if m.ResourcePot == "" && !m.External {
			mark(m.ID)
		}
	}

	ids := slices.Collect(maps.Keys(affected))
	module.SortIDs(ids)
	return ids
}
