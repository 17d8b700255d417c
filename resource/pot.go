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

package resource

import (
	"maps"
	"slices"

	"bennypowers.dev/potter/module"
)

// PotKind enumerates resource pot types.
type PotKind uint8

const (
	PotJs PotKind = iota
	PotCss
	PotHtml
	PotRuntime
	PotAsset
	PotCustom
)

// PotType is the type of a resource pot. Custom pots carry a name.
type PotType struct {
	Kind PotKind
	Name string
}

var (
	PotTypeJs      = PotType{Kind: PotJs}
	PotTypeCss     = PotType{Kind: PotCss}
	PotTypeHtml    = PotType{Kind: PotHtml}
	PotTypeRuntime = PotType{Kind: PotRuntime}
	PotTypeAsset   = PotType{Kind: PotAsset}
)

// CustomPotType returns a Custom(name) pot type.
func CustomPotType(name string) PotType {
	return PotType{Kind: PotCustom, Name: name}
}

func (t PotType) String() string {
	switch t.Kind {
	case PotJs:
		return "js"
	case PotCss:
		return "css"
	case PotHtml:
		return "html"
	case PotRuntime:
		return "runtime"
	case PotAsset:
		return "asset"
	case PotCustom:
		return "custom(" + t.Name + ")"
	default:
		return "unknown"
	}
}

// ParsePotType is the inverse of PotType.String.
func ParsePotType(s string) PotType {
	switch s {
	case "js":
		return PotTypeJs
	case "css":
		return PotTypeCss
	case "html":
		return PotTypeHtml
	case "runtime":
		return PotTypeRuntime
	case "asset":
		return PotTypeAsset
	}
	if len(s) > len("custom()") && s[:7] == "custom(" && s[len(s)-1] == ')' {
		return CustomPotType(s[7 : len(s)-1])
	}
	return CustomPotType(s)
}

// PotTypeFor returns the pot type a module of the given type is bundled into.
func PotTypeFor(t module.Type) PotType {
	switch {
	case t.IsScript():
		return PotTypeJs
	case t.IsCSS():
		return PotTypeCss
	case t.Kind == module.KindHtml:
		return PotTypeHtml
	case t.Kind == module.KindRuntime:
		return PotTypeRuntime
	default:
		return PotTypeAsset
	}
}

// Pot is a bundle-in-progress: the modules that will be rendered together
// into one or more resources.
type Pot struct {
	ID        string
	Name      string
	Type      PotType
	Immutable bool

	modules   map[module.ID]struct{}
	groups    map[module.ID]struct{}
	resources []string
}

// NewPot creates an empty pot.
func NewPot(id, name string, typ PotType, immutable bool) *Pot {
	return &Pot{
		ID:        id,
		Name:      name,
		Type:      typ,
		Immutable: immutable,
		modules:   make(map[module.ID]struct{}),
		groups:    make(map[module.ID]struct{}),
	}
}

// AddModule adds a member module.
func (p *Pot) AddModule(id module.ID) {
	p.modules[id] = struct{}{}
}

// RemoveModule removes a member module, reporting whether it was present.
func (p *Pot) RemoveModule(id module.ID) bool {
	_, ok := p.modules[id]
	delete(p.modules, id)
	return ok
}

// HasModule reports whether the module is a member.
func (p *Pot) HasModule(id module.ID) bool {
	_, ok := p.modules[id]
	return ok
}

// Modules returns the member modules in sorted order.
func (p *Pot) Modules() []module.ID {
	ids := slices.Collect(maps.Keys(p.modules))
	module.SortIDs(ids)
	return ids
}

// Len returns the number of member modules.
func (p *Pot) Len() int {
	return len(p.modules)
}

// AddGroup records that the module group produces this pot.
func (p *Pot) AddGroup(id module.ID) {
	p.groups[id] = struct{}{}
}

// SetGroups replaces the module group set.
func (p *Pot) SetGroups(ids []module.ID) {
	p.groups = make(map[module.ID]struct{}, len(ids))
	for _, id := range ids {
		p.groups[id] = struct{}{}
	}
}

// Groups returns the module groups producing this pot, sorted.
func (p *Pot) Groups() []module.ID {
	ids := slices.Collect(maps.Keys(p.groups))
	module.SortIDs(ids)
	return ids
}

// AddResource records the name of a resource rendered from this pot.
func (p *Pot) AddResource(name string) {
	if !slices.Contains(p.resources, name) {
		p.resources = append(p.resources, name)
	}
}

// Resources returns the names of the resources produced by the last render.
func (p *Pot) Resources() []string {
	return slices.Clone(p.resources)
}

// ClearResources forgets the produced resource names and returns them.
func (p *Pot) ClearResources() []string {
	names := p.resources
	p.resources = nil
	return names
}
