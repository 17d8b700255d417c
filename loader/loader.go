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

// Package loader reads source files, analyzes their imports with tree-sitter
// and builds module graphs: the full graph of a build and the update graph of
// a set of changed files.
package loader

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"bennypowers.dev/potter/fs"
	"bennypowers.dev/potter/internal/hash"
	"bennypowers.dev/potter/module"
	"bennypowers.dev/potter/resolve"
)

// Resolver resolves import specifiers to module ids.
type Resolver interface {
	Resolve(specifier string, importer module.ID) (resolve.Result, error)
	ResolveEntry(entry string) (resolve.Result, error)
	IsImmutable(path string) bool
}

// Logger is an interface for logging messages during loading.
type Logger interface {
	Warning(format string, args ...any)
	Debug(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warning(string, ...any) {}
func (nopLogger) Debug(string, ...any)   {}

// Loader builds module graphs from the filesystem.
type Loader struct {
	fs       fs.FileSystem
	root     string
	resolver Resolver
	logger   Logger
}

// New creates a loader reading files under root.
func New(fsys fs.FileSystem, root string, resolver Resolver) *Loader {
	return &Loader{fs: fsys, root: root, resolver: resolver, logger: nopLogger{}}
}

// WithLogger sets the logger for loading messages.
func (l *Loader) WithLogger(logger Logger) *Loader {
	if logger != nil {
		l.logger = logger
	}
	return l
}

type dependency struct {
	id       module.ID
	external bool
	immut    bool
	edge     module.EdgeInfo
}

// Load builds the module graph reachable from the named entries.
func (l *Loader) Load(ctx context.Context, entries map[string]string) (*module.Graph, error) {
	g := module.NewGraph()
	var queue []resolve.Result
	names := slices.Sorted(maps.Keys(entries))
	for _, name := range names {
		res, err := l.resolver.ResolveEntry(entries[name])
		if err != nil {
			return nil, fmt.Errorf("resolving entry %q: %w", name, err)
		}
		if !g.HasModule(res.ID) {
			g.AddModule(newModule(res))
			queue = append(queue, res)
		}
		if err := g.SetEntry(res.ID, name); err != nil {
			return nil, err
		}
	}

	if err := l.walk(ctx, g, queue, func(module.ID) bool { return false }); err != nil {
		return nil, err
	}
	return g, nil
}

// LoadModules builds the update graph of changed modules. Each id is reloaded
// from disk with its direct dependencies. Dependencies for which known
// returns true are added as placeholders without being loaded; new ones are
// loaded recursively.
func (l *Loader) LoadModules(ctx context.Context, ids []module.ID, known func(module.ID) bool) (*module.Graph, error) {
	g := module.NewGraph()
	var queue []resolve.Result
	for _, id := range ids {
		if g.HasModule(id) {
			continue
		}
		res := resolve.Result{ID: id, Immutable: l.resolver.IsImmutable(id.Path)}
		g.AddModule(newModule(res))
		queue = append(queue, res)
	}
	if err := l.walk(ctx, g, queue, known); err != nil {
		return nil, err
	}
	return g, nil
}

// walk loads queued modules breadth-first, adding their dependencies.
func (l *Loader) walk(ctx context.Context, g *module.Graph, queue []resolve.Result, known func(module.ID) bool) error {
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := queue[0]
		queue = queue[1:]
		m := g.Module(res.ID)
		if m.External {
			continue
		}

		deps, err := l.loadModule(m)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			if !g.HasModule(dep.id) {
				g.AddModule(newModule(resolve.Result{ID: dep.id, External: dep.external, Immutable: dep.immut}))
				if !dep.external && !known(dep.id) {
					queue = append(queue, resolve.Result{ID: dep.id, Immutable: dep.immut})
				}
			}
			if err := g.AddEdge(m.ID, dep.id, dep.edge); err != nil {
				return err
			}
		}
	}
	return nil
}

func newModule(res resolve.Result) *module.Module {
	m := module.New(res.ID)
	m.External = res.External
	m.Immutable = res.Immutable
	return m
}

// loadModule reads and analyzes a module in place, returning its resolved
// dependencies in source order.
func (l *Loader) loadModule(m *module.Module) ([]dependency, error) {
	content, err := l.fs.ReadFile(filepath.Join(l.root, filepath.FromSlash(m.ID.Path)))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", m.ID, err)
	}
	m.Content = string(content)
	m.ContentHash = hash.Sum64(content)

	var imports []Import
	switch {
	case m.Type.IsScript():
		jsx := m.Type.Kind == module.KindJsx || m.Type.Kind == module.KindTsx
		a, err := AnalyzeScript(content, jsx)
		if err != nil {
			return nil, fmt.Errorf("analyzing %s: %w", m.ID, err)
		}
		imports = a.Imports
		m.Script = &module.ScriptMetaData{
			System:          a.System,
			HMRSelfAccepted: a.HMRSelfAccepted,
			Comments:        a.Comments,
			IsAsync:         a.IsAsync,
		}
		for _, spec := range a.HMRAcceptedDeps {
			res, err := l.resolver.Resolve(spec, m.ID)
			if err != nil {
				l.logger.Warning("%s accepts unresolvable %q: %v", m.ID, spec, err)
				continue
			}
			if m.Script.HMRAcceptedDeps == nil {
				m.Script.HMRAcceptedDeps = make(map[module.ID]struct{})
			}
			m.Script.HMRAcceptedDeps[res.ID] = struct{}{}
		}
	case m.Type.IsCSS():
		imports = AnalyzeCSS(content)
	default:
		return nil, nil
	}

	var (
		deps []dependency
		errs []error
	)
	for _, imp := range imports {
		res, err := l.resolver.Resolve(imp.Specifier, m.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		deps = append(deps, dependency{
			id:       res.ID,
			external: res.External,
			immut:    res.Immutable,
			edge:     module.NewEdgeInfo(imp.Specifier, imp.Kind, imp.Order),
		})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("loading %s: %w", m.ID, err)
	}
	return deps, nil
}
