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

// SystemKind enumerates detected module semantics.
type SystemKind uint8

const (
	SystemUnInitial SystemKind = iota
	SystemEsModule
	SystemCommonJs
	// SystemHybrid mixes CommonJS and ES module syntax.
	SystemHybrid
	SystemCustom
)

// System is the detected module system of a script module.
type System struct {
	Kind SystemKind
	// Name is set for SystemCustom only.
	Name string
}

var (
	UnInitial = System{Kind: SystemUnInitial}
	EsModule  = System{Kind: SystemEsModule}
	CommonJs  = System{Kind: SystemCommonJs}
	Hybrid    = System{Kind: SystemHybrid}
)

// CustomSystem returns a Custom(name) module system.
func CustomSystem(name string) System {
	return System{Kind: SystemCustom, Name: name}
}

// Merge combines the system detected so far with another observation.
// ESM and CommonJS together make Hybrid; UnInitial never changes anything.
func (s System) Merge(other System) System {
	if other.Kind == SystemUnInitial {
		return s
	}

	switch s.Kind {
	case SystemUnInitial:
		return other
	case SystemEsModule:
		if other.Kind == SystemCommonJs {
			return Hybrid
		}
		return other
	case SystemCommonJs:
		if other.Kind == SystemEsModule {
			return Hybrid
		}
		return other
	case SystemHybrid:
		return Hybrid
	case SystemCustom:
		return other
	default:
		return other
	}
}

func (s System) String() string {
	switch s.Kind {
	case SystemUnInitial:
		return "uninitial"
	case SystemEsModule:
		return "esm"
	case SystemCommonJs:
		return "commonjs"
	case SystemHybrid:
		return "hybrid"
	case SystemCustom:
		return "custom(" + s.Name + ")"
	default:
		return "unknown"
	}
}

// ParseSystem is the inverse of System.String.
func ParseSystem(s string) System {
	switch s {
	case "uninitial", "":
		return UnInitial
	case "esm":
		return EsModule
	case "commonjs":
		return CommonJs
	case "hybrid":
		return Hybrid
	}
	if len(s) > len("custom()") && s[:7] == "custom(" && s[len(s)-1] == ')' {
		return CustomSystem(s[7 : len(s)-1])
	}
	return CustomSystem(s)
}
