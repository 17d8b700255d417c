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

// Package importmap builds the ES module import map that points external
// bare specifiers at their URLs.
// See https://developer.mozilla.org/en-US/docs/Web/HTML/Element/script/type/importmap
package importmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"bennypowers.dev/potter/module"
	"bennypowers.dev/potter/packagejson"
)

// ErrInvalidVersion is returned for a dependency range that is not semver.
var ErrInvalidVersion = errors.New("invalid version range")

// LatestVersion is used for externals with no declared version.
const LatestVersion = "latest"

// ImportMap is an ES module import map.
type ImportMap struct {
	Imports map[string]string            `json:"imports,omitempty"`
	Scopes  map[string]map[string]string `json:"scopes,omitempty"`
}

// Parse parses an import map.
func Parse(data []byte) (*ImportMap, error) {
	var im ImportMap
	if err := json.Unmarshal(data, &im); err != nil {
		return nil, err
	}
	return &im, nil
}

// ForExternals maps every external bare-specifier module to a URL expanded
// from tmpl. versions holds the dependency ranges of the project's
// package.json by package name. URL externals need no mapping and are skipped.
func ForExternals(modules []*module.Module, tmpl *Template, versions map[string]string) (*ImportMap, error) {
	im := &ImportMap{Imports: make(map[string]string)}
	var errs []error
	for _, m := range modules {
		if !m.External || isURL(m.ID.Path) {
			continue
		}
		spec := m.ID.Path
		name, subpath := packagejson.SplitSpecifier(spec)
		version := LatestVersion
		if tmpl.HasVersion() {
			if r, ok := versions[name]; ok {
				v, err := NormalizeVersion(r)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", name, err))
					continue
				}
				version = v
			}
		}
		im.Imports[spec] = tmpl.Expand(name, version, strings.TrimPrefix(subpath, "./"))
	}
	if len(im.Imports) == 0 {
		im.Imports = nil
	}
	return im, errors.Join(errs...)
}

var leadingVersion = regexp.MustCompile(`v?(\d+(?:\.\d+){0,2}(?:-[0-9A-Za-z.-]+)?)`)

// NormalizeVersion turns a package.json range into a version usable in a URL:
// an exact version is canonicalized, a range is pinned to its lowest
// satisfying version, and an open range ("*", "latest") becomes LatestVersion.
func NormalizeVersion(r string) (string, error) {
	r = strings.TrimSpace(r)
	switch r {
	case "", "*", "x", LatestVersion:
		return LatestVersion, nil
	}
	if v, err := semver.StrictNewVersion(strings.TrimPrefix(r, "v")); err == nil {
		return v.String(), nil
	}

	c, err := semver.NewConstraint(r)
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", ErrInvalidVersion, r, err)
	}
	if m := leadingVersion.FindStringSubmatch(r); m != nil {
		if v, err := semver.NewVersion(m[1]); err == nil && c.Check(v) {
			return v.String(), nil
		}
	}
	// Ranges whose lower bound is exclusive (">1.2.3", "<2") keep the range.
	return r, nil
}

// Merge returns a new import map with the entries of other overriding im.
func (im *ImportMap) Merge(other *ImportMap) *ImportMap {
	out := &ImportMap{}
	for _, src := range []*ImportMap{im, other} {
		if src == nil {
			continue
		}
		if len(src.Imports) > 0 && out.Imports == nil {
			out.Imports = make(map[string]string)
		}
		maps.Copy(out.Imports, src.Imports)
		for scope, imports := range src.Scopes {
			if out.Scopes == nil {
				out.Scopes = make(map[string]map[string]string)
			}
			if out.Scopes[scope] == nil {
				out.Scopes[scope] = make(map[string]string, len(imports))
			}
			maps.Copy(out.Scopes[scope], imports)
		}
	}
	return out
}

// IsEmpty reports whether the import map maps nothing.
func (im *ImportMap) IsEmpty() bool {
	return im == nil || (len(im.Imports) == 0 && len(im.Scopes) == 0)
}

// ToJSON renders the import map as indented JSON, or "" when it is empty.
func (im *ImportMap) ToJSON() string {
	if im.IsEmpty() {
		return ""
	}
	data, err := json.MarshalIndent(im, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

func isURL(s string) bool {
	for _, prefix := range []string{"http://", "https://", "data:", "//"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
