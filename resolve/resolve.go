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

// Package resolve turns import specifiers into module ids: relative and
// root-absolute paths against the project files, bare specifiers against
// node_modules. Configured externals and bare specifiers with no installed
// package resolve to external modules.
package resolve

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"bennypowers.dev/potter/fs"
	"bennypowers.dev/potter/module"
	"bennypowers.dev/potter/packagejson"
)

// ErrUnresolved is returned when a relative or absolute specifier matches no file.
var ErrUnresolved = errors.New("cannot resolve specifier")

// DefaultImmutable marks installed packages as immutable.
var DefaultImmutable = []string{"**/node_modules/**"}

// Extensions are tried in order when a specifier omits the file extension.
var Extensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".css"}

// Logger is an interface for logging messages during resolution.
type Logger interface {
	Warning(format string, args ...any)
	Debug(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warning(string, ...any) {}
func (nopLogger) Debug(string, ...any)   {}

// Options configures a Resolver.
type Options struct {
	// Root is the project root; module paths are relative to it.
	Root string
	// Externals are package names or doublestar patterns of bare specifiers
	// left to the runtime.
	Externals []string
	// Immutable are doublestar patterns of module paths that never change
	// between builds. Defaults to DefaultImmutable.
	Immutable []string
	// Conditions are the package.json export conditions, in priority order.
	Conditions []string
}

// Result is a resolved specifier.
type Result struct {
	ID        module.ID
	External  bool
	Immutable bool
}

// Resolver resolves specifiers. It is safe for concurrent use.
type Resolver struct {
	fs       fs.FileSystem
	opts     Options
	packages packagejson.Cache
	logger   Logger
}

// New creates a resolver. A nil cache disables package.json caching.
func New(fsys fs.FileSystem, opts Options, packages packagejson.Cache) *Resolver {
	if opts.Immutable == nil {
		opts.Immutable = DefaultImmutable
	}
	return &Resolver{fs: fsys, opts: opts, packages: packages, logger: nopLogger{}}
}

// WithLogger sets the logger for resolution messages.
func (r *Resolver) WithLogger(logger Logger) *Resolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Resolve resolves specifier as imported from importer.
func (r *Resolver) Resolve(specifier string, importer module.ID) (Result, error) {
	if isURL(specifier) {
		return Result{ID: module.NewID(specifier, ""), External: true}, nil
	}

	spec, query := specifier, ""
	if i := strings.IndexByte(spec, '?'); i >= 0 {
		spec, query = spec[:i], spec[i:]
	}

	switch {
	case strings.HasPrefix(spec, "./"), strings.HasPrefix(spec, "../"):
		return r.resolveFile(path.Join(path.Dir(importer.Path), spec), query, specifier, importer)
	case strings.HasPrefix(spec, "/"):
		return r.resolveFile(path.Clean(strings.TrimPrefix(spec, "/")), query, specifier, importer)
	default:
		return r.resolveBare(spec, query, importer)
	}
}

// ResolveEntry resolves an entry path relative to the root.
func (r *Resolver) ResolveEntry(entry string) (Result, error) {
	spec := path.Clean(filepath.ToSlash(entry))
	spec = strings.TrimPrefix(spec, "/")
	query := ""
	if i := strings.IndexByte(spec, '?'); i >= 0 {
		spec, query = spec[:i], spec[i:]
	}
	return r.resolveFile(spec, query, entry, module.ID{})
}

// IsImmutable reports whether a module path matches an immutable pattern.
func (r *Resolver) IsImmutable(p string) bool {
	return matchAny(r.opts.Immutable, p)
}

func (r *Resolver) resolveFile(rel, query, specifier string, importer module.ID) (Result, error) {
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return Result{}, fmt.Errorf("%w: %q from %s escapes the project root", ErrUnresolved, specifier, importer)
	}
	found, ok := r.probe(rel)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q from %s", ErrUnresolved, specifier, importer)
	}
	return Result{ID: module.NewID(found, query), Immutable: r.IsImmutable(found)}, nil
}

// probe finds the file a path refers to, trying extensions and index files.
func (r *Resolver) probe(rel string) (string, bool) {
	if r.isFile(rel) {
		return rel, true
	}
	for _, ext := range Extensions {
		if r.isFile(rel + ext) {
			return rel + ext, true
		}
	}
	// TypeScript sources are imported with a .js extension.
	if strings.HasSuffix(rel, ".js") {
		if ts := strings.TrimSuffix(rel, ".js") + ".ts"; r.isFile(ts) {
			return ts, true
		}
	}
	for _, ext := range Extensions {
		if index := path.Join(rel, "index"+ext); r.isFile(index) {
			return index, true
		}
	}
	return "", false
}

func (r *Resolver) isFile(rel string) bool {
	info, err := r.fs.Stat(r.abs(rel))
	return err == nil && !info.IsDir()
}

func (r *Resolver) abs(rel string) string {
	return filepath.Join(r.opts.Root, filepath.FromSlash(rel))
}

func (r *Resolver) resolveBare(spec, query string, importer module.ID) (Result, error) {
	name, subpath := packagejson.SplitSpecifier(spec)
	if r.isExternal(name, spec) {
		return Result{ID: module.NewID(spec, query), External: true}, nil
	}

	pkgDir, pkg, ok := r.findPackage(name, path.Dir(importer.Path))
	if !ok {
		r.logger.Debug("no installed package for %q imported from %s, treating as external", spec, importer)
		return Result{ID: module.NewID(spec, query), External: true}, nil
	}

	target, err := pkg.ResolveExport(subpath, &packagejson.ResolveOptions{Conditions: r.opts.Conditions})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %q from %s: %w", ErrUnresolved, spec, importer, err)
	}
	found, ok := r.probe(path.Join(pkgDir, target))
	if !ok {
		return Result{}, fmt.Errorf("%w: %q from %s: %s does not exist", ErrUnresolved, spec, importer, path.Join(pkgDir, target))
	}
	return Result{ID: module.NewID(found, query), Immutable: r.IsImmutable(found)}, nil
}

// findPackage looks for node_modules/<name>/package.json from dir up to the root.
func (r *Resolver) findPackage(name, dir string) (string, *packagejson.PackageJSON, bool) {
	for {
		pkgDir := path.Join(dir, "node_modules", name)
		if pkg, err := r.readPackage(path.Join(pkgDir, "package.json")); err == nil {
			return path.Clean(pkgDir), pkg, true
		}
		if dir == "." || dir == "/" || dir == "" {
			return "", nil, false
		}
		dir = path.Dir(dir)
	}
}

func (r *Resolver) readPackage(rel string) (*packagejson.PackageJSON, error) {
	load := func() (*packagejson.PackageJSON, error) {
		return packagejson.ParseFile(r.fs, r.abs(rel))
	}
	if r.packages == nil {
		return load()
	}
	return r.packages.GetOrLoad(r.abs(rel), load)
}

// InvalidatePackage drops a cached package.json after it changed on disk.
func (r *Resolver) InvalidatePackage(rel string) {
	if r.packages != nil {
		r.packages.Invalidate(r.abs(rel))
	}
}

func (r *Resolver) isExternal(name, spec string) bool {
	for _, pattern := range r.opts.Externals {
		if pattern == name || pattern == spec {
			return true
		}
		if ok, _ := doublestar.Match(pattern, spec); ok {
			return true
		}
	}
	return false
}

func matchAny(patterns []string, p string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

func isURL(s string) bool {
	for _, scheme := range []string{"http://", "https://", "data:", "//"} {
		if strings.HasPrefix(s, scheme) {
			return true
		}
	}
	return false
}
