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

// Package packagejson parses package.json files and resolves package entry
// points and subpath exports for the module resolver.
package packagejson

import (
	"encoding/json"
	"errors"
	"strings"

	"bennypowers.dev/potter/fs"
)

// ErrNotExported is returned when a subpath is not exported by the package.
var ErrNotExported = errors.New("not exported by package.json")

// DefaultConditions is the default export condition priority for browser environments.
var DefaultConditions = []string{"browser", "import", "default"}

// ResolveOptions configures how conditional exports are resolved.
type ResolveOptions struct {
	// Conditions is the ordered list of conditions to try when resolving exports.
	// If nil, defaults to DefaultConditions.
	Conditions []string
}

// PackageJSON is the subset of package.json the resolver needs.
type PackageJSON struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Type             string            `json:"type,omitempty"`
	Main             string            `json:"main,omitempty"`
	Module           string            `json:"module,omitempty"`
	Exports          any               `json:"exports,omitempty"`
	Dependencies     map[string]string `json:"dependencies,omitempty"`
	DevDependencies  map[string]string `json:"devDependencies,omitempty"`
	PeerDependencies map[string]string `json:"peerDependencies,omitempty"`
}

// Parse parses package.json data.
func Parse(data []byte) (*PackageJSON, error) {
	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ParseFile parses a package.json file.
func ParseFile(fs fs.FileSystem, path string) (*PackageJSON, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// IsESM reports whether .js files of the package are ES modules.
func (pkg *PackageJSON) IsESM() bool {
	return pkg.Type == "module"
}

// DependencyRange returns the version range the package declares for a
// dependency, looking at dependencies, then peer, then dev dependencies.
func (pkg *PackageJSON) DependencyRange(name string) (string, bool) {
	for _, deps := range []map[string]string{pkg.Dependencies, pkg.PeerDependencies, pkg.DevDependencies} {
		if r, ok := deps[name]; ok {
			return r, true
		}
	}
	return "", false
}

// ResolveExport resolves a subpath export to its target file path.
// The subpath should be "." for the main export or "./subpath" for subpath exports.
// Returns the resolved path without leading "./".
// Pass nil for opts to use DefaultConditions.
//
// Without an exports field the main entry falls back to "module", then
// "main", then index.js, and subpaths map directly onto the package directory.
func (pkg *PackageJSON) ResolveExport(subpath string, opts *ResolveOptions) (string, error) {
	if pkg.Exports == nil {
		if subpath != "." {
			return trimDotSlash(subpath), nil
		}
		switch {
		case pkg.Module != "":
			return trimDotSlash(pkg.Module), nil
		case pkg.Main != "":
			return trimDotSlash(pkg.Main), nil
		default:
			return "index.js", nil
		}
	}

	if exportStr, ok := pkg.Exports.(string); ok {
		if subpath == "." {
			return trimDotSlash(exportStr), nil
		}
		return "", ErrNotExported
	}

	exportsMap, ok := pkg.Exports.(map[string]any)
	if !ok {
		return "", ErrNotExported
	}

	hasSubpaths := false
	for key := range exportsMap {
		if strings.HasPrefix(key, ".") {
			hasSubpaths = true
			break
		}
	}

	if !hasSubpaths {
		if subpath == "." {
			return resolveConditions(exportsMap, opts)
		}
		return "", ErrNotExported
	}

	if exportValue, ok := exportsMap[subpath]; ok {
		return resolveExportValue(exportValue, opts)
	}

	// Wildcard patterns such as "./*": "./dist/*.js".
	for pattern, value := range exportsMap {
		prefix, suffix, found := strings.Cut(pattern, "*")
		if !found || !strings.HasPrefix(subpath, prefix) || !strings.HasSuffix(subpath, suffix) {
			continue
		}
		if len(subpath) < len(prefix)+len(suffix) {
			continue
		}
		match := subpath[len(prefix) : len(subpath)-len(suffix)]
		target, err := resolveExportValue(value, opts)
		if err != nil {
			continue
		}
		return strings.ReplaceAll(target, "*", match), nil
	}

	return "", ErrNotExported
}

// resolveExportValue resolves a string, a conditional map or a fallback array.
func resolveExportValue(value any, opts *ResolveOptions) (string, error) {
	switch v := value.(type) {
	case string:
		return trimDotSlash(v), nil
	case map[string]any:
		return resolveConditions(v, opts)
	case []any:
		for _, item := range v {
			if result, err := resolveExportValue(item, opts); err == nil {
				return result, nil
			}
		}
	}
	return "", ErrNotExported
}

// resolveConditions tries each condition in order, recursing into nested maps.
func resolveConditions(conditions map[string]any, opts *ResolveOptions) (string, error) {
	conditionList := DefaultConditions
	if opts != nil && len(opts.Conditions) > 0 {
		conditionList = opts.Conditions
	}

	for _, cond := range conditionList {
		value, ok := conditions[cond]
		if !ok {
			continue
		}
		if result, err := resolveExportValue(value, opts); err == nil {
			return result, nil
		}
	}

	return "", ErrNotExported
}

// trimDotSlash removes a leading "./" from a path.
func trimDotSlash(path string) string {
	return strings.TrimPrefix(path, "./")
}

// SplitSpecifier splits a bare specifier into its package name and subpath:
// "lit/decorators.js" is ("lit", "./decorators.js"), "@lit/reactive-element"
// is ("@lit/reactive-element", ".").
func SplitSpecifier(specifier string) (name, subpath string) {
	parts := strings.SplitN(specifier, "/", 3)
	n := 1
	if strings.HasPrefix(specifier, "@") && len(parts) > 1 {
		n = 2
	}
	name = strings.Join(parts[:min(n, len(parts))], "/")
	rest := strings.TrimPrefix(specifier, name)
	if rest == "" {
		return name, "."
	}
	return name, "." + rest
}
