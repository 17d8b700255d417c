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
	"errors"
	"fmt"
	"slices"

	"bennypowers.dev/potter/module"
)

// Patch applies result to current. Start modules take the content of their
// update counterpart but keep their id, scope tag and pot; added modules are
// moved over from the update graph; dependency edges are rewired; removed
// modules are deleted.
//
// Returns the removed modules in their last state.
func Patch(current, update *module.Graph, start []module.ID, result *Result) (map[module.ID]*module.Module, error) {
	for _, id := range start {
		next := update.Module(id)
		if next == nil {
			continue
		}
		prev := current.Module(id)
		if prev == nil {
			continue
		}
		prev.Content = next.Content
		prev.ContentHash = next.ContentHash
		prev.Script = next.Script
		prev.Custom = next.Custom
		prev.External = next.External
		prev.Immutable = next.Immutable
		if scope, ok := prev.Type.Custom(); ok {
			prev.Type = next.Type.ToCustom(scope)
		} else {
			prev.Type = next.Type
		}
	}

	for _, id := range result.Added() {
		m := update.Module(id)
		if m == nil {
			return nil, fmt.Errorf("patching added module %s: %w", id, module.ErrModuleNotFound)
		}
		m.ResourcePot = ""
		current.AddModule(m)
	}

	// Edges of every walked module mirror the update graph.
	var errs []error
	for _, id := range slices.Concat(start, result.Added()) {
		if !update.HasModule(id) || !current.HasModule(id) {
			continue
		}
		for _, dep := range result.DepsChanges[id].Removed {
			if _, err := current.RemoveEdge(id, dep); err != nil && !errors.Is(err, module.ErrEdgeNotFound) {
				errs = append(errs, err)
			}
		}
		for _, dep := range update.DependenciesWithEdges(id) {
			if err := current.ReplaceEdge(id, dep.ID, dep.Edge); err != nil {
				errs = append(errs, fmt.Errorf("patching %s: %w", id, err))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	removed := make(map[module.ID]*module.Module, len(result.RemovedModules))
	for _, id := range result.Removed() {
		m, err := current.RemoveModule(id)
		if err != nil {
			return nil, fmt.Errorf("patching removed module: %w", err)
		}
		removed[id] = m
	}

	return removed, nil
}
