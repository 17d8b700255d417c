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

package importmap

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// DefaultTemplate maps external packages to esm.sh.
const DefaultTemplate = "https://esm.sh/{package}@{version}/{path}"

// Template is a URL pattern for external packages. Variables:
//   - {package}: full package name, "@scope/name" or "name"
//   - {name}: package name without scope
//   - {scope}: scope without "@", empty for unscoped packages
//   - {version}: package version
//   - {path}: path within the package, empty for the main entry
type Template struct {
	pattern   string
	variables []string
}

var (
	templateVariable = regexp.MustCompile(`\{(\w+)\}`)
	knownVariables   = []string{"package", "name", "scope", "version", "path"}
)

// ParseTemplate parses a URL template.
func ParseTemplate(pattern string) (*Template, error) {
	if pattern == "" {
		return nil, fmt.Errorf("template pattern cannot be empty")
	}
	t := &Template{pattern: pattern}
	for _, m := range templateVariable.FindAllStringSubmatch(pattern, -1) {
		if !slices.Contains(knownVariables, m[1]) {
			return nil, fmt.Errorf("unknown template variable: {%s}", m[1])
		}
		t.variables = append(t.variables, m[1])
	}
	if !slices.Contains(t.variables, "package") && !slices.Contains(t.variables, "name") {
		return nil, fmt.Errorf("template %q names no package", pattern)
	}
	return t, nil
}

// Expand fills in the template. An empty path drops the separator before it.
func (t *Template) Expand(pkg, version, path string) string {
	name, scope := SplitPackageName(pkg)
	r := strings.NewReplacer(
		"{package}", pkg,
		"{name}", name,
		"{scope}", scope,
		"{version}", version,
		"{path}", path,
	)
	url := r.Replace(t.pattern)
	if path == "" && strings.HasSuffix(t.pattern, "/{path}") {
		url = strings.TrimSuffix(url, "/")
	}
	return url
}

// Pattern returns the original pattern.
func (t *Template) Pattern() string {
	return t.pattern
}

// HasVersion reports whether the template uses {version}.
func (t *Template) HasVersion() bool {
	return slices.Contains(t.variables, "version")
}

// SplitPackageName splits "@scope/name" into ("name", "scope") and "name"
// into ("name", "").
func SplitPackageName(pkg string) (name, scope string) {
	if rest, ok := strings.CutPrefix(pkg, "@"); ok {
		if s, n, found := strings.Cut(rest, "/"); found {
			return n, s
		}
	}
	return pkg, ""
}
