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

import "slices"

// ResolveKind is how a dependency was referenced.
type ResolveKind uint8

const (
	ResolveImport ResolveKind = iota
	ResolveExportFrom
	ResolveDynamicImport
	ResolveRequire
	ResolveCSSAtImport
	ResolveCSSURL
	ResolveEntry
)

func (k ResolveKind) String() string {
	switch k {
	case ResolveImport:
		return "import"
	case ResolveExportFrom:
		return "exportFrom"
	case ResolveDynamicImport:
		return "dynamicImport"
	case ResolveRequire:
		return "require"
	case ResolveCSSAtImport:
		return "cssAtImport"
	case ResolveCSSURL:
		return "cssUrl"
	case ResolveEntry:
		return "entry"
	default:
		return "unknown"
	}
}

// IsDynamic reports whether the reference splits a new module group.
func (k ResolveKind) IsDynamic() bool {
	return k == ResolveDynamicImport
}

// EdgeItem is one import statement behind an edge.
type EdgeItem struct {
	// Source is the specifier as written, e.g. "./b.js".
	Source string
	Kind   ResolveKind
	// Order is the position of the statement in the importing module.
	Order int
}

// EdgeInfo is the resolution metadata of a dependency edge. It carries enough
// to reconstruct the import statements if the edge moves to another source.
type EdgeInfo struct {
	Items []EdgeItem
}

// NewEdgeInfo creates edge info with a single item.
func NewEdgeInfo(source string, kind ResolveKind, order int) EdgeInfo {
	return EdgeInfo{Items: []EdgeItem{{Source: source, Kind: kind, Order: order}}}
}

// IsDynamic reports whether every item of the edge is a dynamic import.
func (e EdgeInfo) IsDynamic() bool {
	if len(e.Items) == 0 {
		return false
	}
	for _, item := range e.Items {
		if !item.Kind.IsDynamic() {
			return false
		}
	}
	return true
}

// Order returns the smallest statement order of the edge.
func (e EdgeInfo) Order() int {
	if len(e.Items) == 0 {
		return 0
	}
	order := e.Items[0].Order
	for _, item := range e.Items[1:] {
		order = min(order, item.Order)
	}
	return order
}

// Merge adds the items of other that are not already present.
func (e EdgeInfo) Merge(other EdgeInfo) EdgeInfo {
	items := slices.Clone(e.Items)
	for _, item := range other.Items {
		if !slices.Contains(items, item) {
			items = append(items, item)
		}
	}
	return EdgeInfo{Items: items}
}

// Clone copies the edge info.
func (e EdgeInfo) Clone() EdgeInfo {
	return EdgeInfo{Items: slices.Clone(e.Items)}
}

// Equal reports whether both edges carry the same items in the same order.
func (e EdgeInfo) Equal(other EdgeInfo) bool {
	return slices.Equal(e.Items, other.Items)
}
