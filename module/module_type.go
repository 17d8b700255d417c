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
	"path"
	"strings"
)

// Kind is the base kind of a module.
type Kind uint8

const (
	KindJs Kind = iota
	KindJsx
	KindTs
	KindTsx
	KindCss
	KindHtml
	KindAsset
	KindRuntime
)

// String returns the extension-like name of the kind.
func (k Kind) String() string {
	switch k {
	case KindJs:
		return "js"
	case KindJsx:
		return "jsx"
	case KindTs:
		return "ts"
	case KindTsx:
		return "tsx"
	case KindCss:
		return "css"
	case KindHtml:
		return "html"
	case KindAsset:
		return "asset"
	case KindRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}

// Type is the type of a module: a base Kind, optionally specialized as
// Custom(scope) once the module has been copied into a dynamic input scope.
type Type struct {
	Kind Kind
	// custom is the scope of a Custom(scope) specialization.
	custom string
}

// Plain returns the unspecialized type of a kind.
func Plain(k Kind) Type {
	return Type{Kind: k}
}

// IsScript reports whether the module is JavaScript or TypeScript.
func (t Type) IsScript() bool {
	switch t.Kind {
	case KindJs, KindJsx, KindTs, KindTsx:
		return true
	case KindCss, KindHtml, KindAsset, KindRuntime:
		return false
	default:
		return false
	}
}

// IsCSS reports whether the module is a stylesheet.
func (t Type) IsCSS() bool {
	return t.Kind == KindCss
}

// IsScopable reports whether modules of this type may be copied into a scope.
func (t Type) IsScopable() bool {
	return t.IsScript() || t.IsCSS()
}

// ToCustom returns the type specialized as Custom(scope).
func (t Type) ToCustom(scope string) Type {
	return Type{Kind: t.Kind, custom: scope}
}

// Custom returns the scope of a Custom specialization.
func (t Type) Custom() (string, bool) {
	return t.custom, t.custom != ""
}

// String renders the type, e.g. "js" or "custom(js, s1)".
func (t Type) String() string {
	if t.custom != "" {
		return "custom(" + t.Kind.String() + ", " + t.custom + ")"
	}
	return t.Kind.String()
}

// TypeFromPath detects the module type from a file extension.
func TypeFromPath(p string) Type {
	switch strings.ToLower(path.Ext(p)) {
	case ".js", ".mjs", ".cjs":
		return Plain(KindJs)
	case ".jsx":
		return Plain(KindJsx)
	case ".ts", ".mts", ".cts":
		return Plain(KindTs)
	case ".tsx":
		return Plain(KindTsx)
	case ".css":
		return Plain(KindCss)
	case ".html", ".htm":
		return Plain(KindHtml)
	default:
		return Plain(KindAsset)
	}
}
