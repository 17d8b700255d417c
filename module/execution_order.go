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
	"math"
	"slices"
	"strings"
)

// UpdateExecutionOrder assigns every module reachable from the entries its
// post-order position, visiting entries by name and static dependencies before
// dynamic ones. Modules not reachable from any entry keep order -1.
//
// Returns the cycles found during the walk, each starting and ending at the
// module that closed the cycle.
func (g *Graph) UpdateExecutionOrder() [][]ID {
	for _, m := range g.modules {
		m.ExecutionOrder = -1
	}

	var (
		order   int
		cycles  [][]ID
		visited = make(map[ID]bool, len(g.modules))
		onStack = make(map[ID]int)
		stack   []ID
		dynamic []ID
	)

	var visit func(id ID)
	visit = func(id ID) {
		if pos, ok := onStack[id]; ok {
			cycle := slices.Clone(stack[pos:])
			cycles = append(cycles, append(cycle, id))
			return
		}
		if visited[id] {
			return
		}
		visited[id] = true
		onStack[id] = len(stack)
		stack = append(stack, id)

		for _, dep := range g.DependenciesWithEdges(id) {
			if dep.Edge.IsDynamic() {
				dynamic = append(dynamic, dep.ID)
				continue
			}
			visit(dep.ID)
		}

		stack = stack[:len(stack)-1]
		delete(onStack, id)
		g.modules[id].ExecutionOrder = order
		order++
	}

	for _, entry := range g.EntryIDs() {
		visit(entry)
	}
	// Dynamic targets start their own walks once every static path is done.
	for len(dynamic) > 0 {
		next := dynamic[0]
		dynamic = dynamic[1:]
		visit(next)
	}

	return cycles
}

// SortByExecutionOrder sorts ids by their module's execution order, then id.
// Ids not in the graph sort last.
func (g *Graph) SortByExecutionOrder(ids []ID) {
	slices.SortFunc(ids, func(a, b ID) int {
		return cmp.Or(
			cmp.Compare(g.executionOrder(a), g.executionOrder(b)),
			strings.Compare(a.String(), b.String()),
		)
	})
}

func (g *Graph) executionOrder(id ID) int {
	m := g.modules[id]
	if m == nil || m.ExecutionOrder < 0 {
		return math.MaxInt
	}
	return m.ExecutionOrder
}
