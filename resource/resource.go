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

// Package resource provides emitted resources, the resource pots they are
// rendered from, and the registries holding both.
package resource

import (
	"encoding/json"
	"fmt"

	"bennypowers.dev/potter/module"
)

// TypeKind enumerates resource types.
type TypeKind uint8

const (
	TypeRuntime TypeKind = iota
	TypeJs
	TypeCss
	TypeHtml
	TypeSourceMap
	TypeAsset
	TypeCustom
)

// Type is the type of an emitted resource. SourceMap, Asset and Custom carry
// a payload: the source map's target, the asset extension, or the custom name.
type Type struct {
	Kind    TypeKind
	Payload string
}

var (
	Runtime = Type{Kind: TypeRuntime}
	Js      = Type{Kind: TypeJs}
	Css     = Type{Kind: TypeCss}
	Html    = Type{Kind: TypeHtml}
)

// SourceMap returns a source map type for the named resource.
func SourceMap(of string) Type { return Type{Kind: TypeSourceMap, Payload: of} }

// Asset returns an asset type with the given extension.
func Asset(ext string) Type { return Type{Kind: TypeAsset, Payload: ext} }

// Custom returns a custom resource type.
func Custom(name string) Type { return Type{Kind: TypeCustom, Payload: name} }

// String renders the type. Custom and Asset render their payload.
func (t Type) String() string {
	switch t.Kind {
	case TypeRuntime:
		return "runtime"
	case TypeJs:
		return "js"
	case TypeCss:
		return "css"
	case TypeHtml:
		return "html"
	case TypeSourceMap:
		return "sourceMap"
	case TypeAsset:
		if t.Payload == "" {
			return "asset"
		}
		return t.Payload
	case TypeCustom:
		return t.Payload
	default:
		return t.Payload
	}
}

// ParseType maps a type name back to a Type. Unknown names become Custom.
func ParseType(s string) Type {
	switch s {
	case "js":
		return Js
	case "css":
		return Css
	case "html":
		return Html
	case "runtime":
		return Runtime
	case "sourceMap":
		return SourceMap("")
	default:
		return Custom(s)
	}
}

// Ext returns the file extension (without dot) for the type.
func (t Type) Ext() string {
	switch t.Kind {
	case TypeRuntime, TypeJs:
		return "js"
	case TypeCss:
		return "css"
	case TypeHtml:
		return "html"
	case TypeSourceMap:
		return "map"
	case TypeAsset, TypeCustom:
		return t.Payload
	default:
		return t.Payload
	}
}

// HTMLTag returns the tag used to load the resource from a page, or "" for
// types that are not referenced from HTML.
func (t Type) HTMLTag() string {
	switch t.Kind {
	case TypeRuntime, TypeJs:
		return "script"
	case TypeCss:
		return "link"
	case TypeHtml:
		return "html"
	default:
		return ""
	}
}

// MarshalJSON encodes the type as its string form.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a type string.
func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("resource type: %w", err)
	}
	*t = ParseType(s)
	return nil
}

// OriginKind says what a resource was produced from.
type OriginKind uint8

const (
	OriginResourcePot OriginKind = iota
	OriginModule
)

func (k OriginKind) String() string {
	if k == OriginModule {
		return "Module"
	}
	return "ResourcePot"
}

// Origin is the pot or module a resource came from.
type Origin struct {
	Kind OriginKind
	// Pot is set for OriginResourcePot.
	Pot string
	// Module is set for OriginModule.
	Module module.ID
}

// FromPot returns the origin of a resource rendered from a pot.
func FromPot(id string) Origin { return Origin{Kind: OriginResourcePot, Pot: id} }

// FromModule returns the origin of a resource emitted directly by a module.
func FromModule(id module.ID) Origin { return Origin{Kind: OriginModule, Module: id} }

func (o Origin) String() string {
	if o.Kind == OriginModule {
		return "module:" + o.Module.String()
	}
	return "pot:" + o.Pot
}

type originJSON struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// MarshalJSON encodes the origin as {"type": ..., "value": ...}.
func (o Origin) MarshalJSON() ([]byte, error) {
	value := o.Pot
	if o.Kind == OriginModule {
		value = o.Module.String()
	}
	return json.Marshal(originJSON{Type: o.Kind.String(), Value: value})
}

// UnmarshalJSON decodes the tagged origin form.
func (o *Origin) UnmarshalJSON(data []byte) error {
	var raw originJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("resource origin: %w", err)
	}
	switch raw.Type {
	case "ResourcePot":
		*o = FromPot(raw.Value)
	case "Module":
		*o = FromModule(module.ParseID(raw.Value))
	default:
		return fmt.Errorf("resource origin: unknown type %q", raw.Type)
	}
	return nil
}

// Resource is an emitted output artifact.
type Resource struct {
	Name  string `json:"name"`
	Bytes []byte `json:"bytes"`
	// Emitted is set once the resource has been written out.
	Emitted bool   `json:"emitted"`
	Type    Type   `json:"resourceType"`
	Origin  Origin `json:"origin"`
}
