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

// Package compiler runs the full build of a project and the incremental
// updates that follow file changes.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"path/filepath"
	"slices"
	"sync"

	"bennypowers.dev/potter/cache"
	"bennypowers.dev/potter/compilation"
	"bennypowers.dev/potter/diff"
	potterfs "bennypowers.dev/potter/fs"
	"bennypowers.dev/potter/hmr"
	"bennypowers.dev/potter/importmap"
	"bennypowers.dev/potter/inject"
	"bennypowers.dev/potter/internal/config"
	"bennypowers.dev/potter/internal/metrics"
	"bennypowers.dev/potter/internal/output"
	"bennypowers.dev/potter/loader"
	"bennypowers.dev/potter/module"
	"bennypowers.dev/potter/packagejson"
	"bennypowers.dev/potter/partial"
	"bennypowers.dev/potter/plugins/render"
	"bennypowers.dev/potter/regenerate"
	"bennypowers.dev/potter/resolve"
	"bennypowers.dev/potter/resource"
	"bennypowers.dev/potter/scope"
)

// Update outcomes recorded in metrics.
const (
	OutcomeNoop  = "noop"
	OutcomeHMR   = "hmr"
	OutcomeSync  = "sync"
	OutcomeError = "error"
)

type nopLogger struct{}

func (nopLogger) Warning(string, ...any) {}
func (nopLogger) Info(string, ...any)    {}
func (nopLogger) Debug(string, ...any)   {}

// UpdateResult describes one incremental update.
type UpdateResult struct {
	Added   []module.ID
	Updated []module.ID
	Removed []module.ID
	Payload hmr.Payload
	// Sync is set when dynamic input scoping changed the graph. Clients must
	// reload the affected resources instead of applying Payload alone.
	Sync bool
	// Resources are the names of the files written to the output directory.
	Resources []string
}

// IsEmpty reports whether the update changed nothing.
func (r *UpdateResult) IsEmpty() bool {
	return len(r.Added) == 0 && len(r.Updated) == 0 && len(r.Removed) == 0
}

// Compiler owns a compilation and the collaborators that feed it.
// Build, Update and AddDynamicInput are serialized.
type Compiler struct {
	cfg     *config.Config
	fs      potterfs.FileSystem
	logger  compilation.Logger
	metrics *metrics.Metrics

	resolver *resolve.Resolver
	loader   *loader.Loader
	renderer *render.Plugin
	tmpl     *importmap.Template
	out      *output.Writer
	cache    *cache.Manager

	mu   sync.Mutex
	ctx  *compilation.Context
	orch *regenerate.Orchestrator
}

// New creates a compiler for cfg. logger and m may be nil.
func New(cfg *config.Config, fsys potterfs.FileSystem, logger compilation.Logger, m *metrics.Metrics) (*Compiler, error) {
	if logger == nil {
		logger = nopLogger{}
	}
	tmpl, err := importmap.ParseTemplate(cfg.Output.ImportMapTemplate)
	if err != nil {
		return nil, fmt.Errorf("import map template: %w", err)
	}
	packages, err := packagejson.NewCache(packagejson.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	renderer, err := render.New(render.DefaultMemoSize)
	if err != nil {
		return nil, err
	}

	resolver := resolve.New(fsys, resolve.Options{
		Root:       cfg.Root,
		Externals:  cfg.Externals,
		Immutable:  cfg.ImmutableModules,
		Conditions: cfg.Conditions,
	}, packages).WithLogger(logger)

	c := &Compiler{
		cfg:      cfg,
		fs:       fsys,
		logger:   logger,
		metrics:  m,
		resolver: resolver,
		loader:   loader.New(fsys, cfg.Root, resolver).WithLogger(logger),
		renderer: renderer,
		tmpl:     tmpl,
		out:      output.NewWriter(fsys, cfg.OutputDir()),
	}
	if cfg.PersistentCache.Enabled {
		if c.cache, err = cache.NewManager(fsys, cfg.CacheDir(), cache.DefaultItems); err != nil {
			return nil, err
		}
	}
	c.reset()
	return c, nil
}

func (c *Compiler) reset() {
	c.ctx = compilation.NewContext(compilation.Options{
		Root:            c.cfg.Root,
		PersistentCache: c.cache != nil,
	}, c.renderer).WithLogger(c.logger)
	c.orch = regenerate.New(c.ctx, partial.New()).WithMetrics(c.metrics)
	if c.cache != nil {
		c.orch.WithSnapshotWriter(c.cache)
	}
}

// Context returns the compilation of the last Build.
func (c *Compiler) Context() *compilation.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// Build compiles the project from scratch and writes the output directory.
// Returns the names of the files written.
func (c *Compiler) Build(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
	c.readCache(ctx)

	g, err := c.loader.Load(ctx, c.cfg.Entries)
	if err != nil {
		return nil, err
	}
	for _, name := range slices.Sorted(maps.Keys(c.cfg.DynamicInputs)) {
		c.ctx.DynamicInputs.Set(name, compilation.DynamicInput{Scope: c.cfg.DynamicInputs[name]})
	}
	if _, err := scope.HandleDynamicInputs(g, c.ctx.DynamicInputs); err != nil {
		return nil, err
	}
	groups := module.BuildGroups(g)
	c.ctx.ReplaceGraph(g)
	c.ctx.ReplaceGroups(groups)

	initial := diff.NewResult()
	for _, id := range g.IDs() {
		initial.AddedModules[id] = struct{}{}
	}
	if err := c.orch.Regenerate(ctx, groups.IDs(), initial, nil, nil); err != nil {
		return nil, err
	}
	c.logger.Info("built %d modules into %d resources", g.Len(), c.ctx.Resources.Len())

	written, err := c.emit()
	c.writeModules(ctx)
	return written, err
}

// readCache restores plugin caches from the last snapshot.
func (c *Compiler) readCache(ctx context.Context) {
	if c.cache == nil {
		return
	}
	snapshot, err := c.cache.ReadSnapshot()
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		c.logger.Warning("ignoring persistent cache: %v", err)
		return
	}
	if err := c.ctx.Plugins.ReadPluginCache(ctx, c.ctx, snapshot.PluginCaches); err != nil {
		c.logger.Warning("reading plugin caches: %v", err)
		return
	}
	c.logger.Debug("restored plugin caches from snapshot of %d modules", len(snapshot.Modules))
}

func (c *Compiler) writeModules(ctx context.Context) {
	if c.cache == nil {
		return
	}
	n, err := c.cache.WriteModules(ctx, c.ctx)
	if err != nil {
		c.logger.Warning("writing module cache: %v", err)
		c.metrics.CacheWriteFailed("modules")
	}
	c.logger.Debug("wrote %d module cache items", n)
}

// Update rebuilds after the files at paths changed. Paths are relative to
// the project root; paths no module was loaded from are ignored.
func (c *Compiler) Update(ctx context.Context, paths []string) (*UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.update(ctx, paths)
	switch {
	case err != nil:
		c.metrics.Updated(OutcomeError)
	case result.IsEmpty():
		c.metrics.Updated(OutcomeNoop)
	case result.Sync:
		c.metrics.Updated(OutcomeSync)
	default:
		c.metrics.Updated(OutcomeHMR)
	}
	return result, err
}

func (c *Compiler) update(ctx context.Context, paths []string) (*UpdateResult, error) {
	known := make(map[module.ID]bool)
	byPath := make(map[string][]module.ID)
	_ = c.ctx.ReadGraph(func(g *module.Graph) error {
		for _, id := range g.IDs() {
			known[id] = true
			byPath[id.Path] = append(byPath[id.Path], id)
		}
		return nil
	})
	has := func(id module.ID) bool { return known[id] }

	var (
		changed []module.ID
		page    bool
	)
	for _, p := range paths {
		rel := c.relative(p)
		if path.Base(rel) == "package.json" {
			c.resolver.InvalidatePackage(rel)
		}
		if c.cfg.HTML != "" && rel == c.relative(c.cfg.HTML) {
			page = true
		}
		ids := byPath[rel]
		if len(ids) == 0 {
			c.logger.Debug("ignoring change to %s: not part of the build", rel)
			continue
		}
		if !c.fs.Exists(filepath.Join(c.cfg.Root, filepath.FromSlash(rel))) {
			c.logger.Debug("ignoring removal of %s until its importers change", rel)
			continue
		}
		changed = append(changed, ids...)
	}
	if len(changed) == 0 {
		result := &UpdateResult{Payload: hmr.Payload{Immutable: hmr.EmptyPayload, Mutable: hmr.EmptyPayload}}
		if page {
			var err error
			if result.Resources, err = c.emit(); err != nil {
				return nil, err
			}
		}
		return result, nil
	}
	module.SortIDs(changed)

	update, err := c.loadUpdate(ctx, changed, has)
	if err != nil {
		return nil, err
	}
	return c.apply(ctx, update, changed)
}

// relative turns a changed path into a module path.
func (c *Compiler) relative(p string) string {
	if filepath.IsAbs(p) {
		if rel, err := filepath.Rel(c.cfg.Root, p); err == nil {
			p = rel
		}
	}
	return path.Clean(filepath.ToSlash(p))
}

// loadUpdate loads the update graph of the changed modules. Modules are
// loaded by their unscoped ids, then every module the current graph holds a
// scoped copy of is renamed to that copy, so the update graph lines up with
// the current graph scope by scope.
func (c *Compiler) loadUpdate(ctx context.Context, changed []module.ID, has func(module.ID) bool) (*module.Graph, error) {
	byScope := make(map[string][]module.ID)
	for _, id := range changed {
		byScope[id.Scope] = append(byScope[id.Scope], id.Unscoped())
	}

	starts := make(map[module.ID]bool, len(changed))
	for _, id := range changed {
		starts[id] = true
	}

	update := module.NewGraph()
	for _, s := range slices.Sorted(maps.Keys(byScope)) {
		ids := byScope[s]
		g, err := c.loader.LoadModules(ctx, ids, func(id module.ID) bool {
			return has(id) || (s != "" && has(withScope(id, s)))
		})
		if err != nil {
			return nil, err
		}
		if s != "" {
			if err := carryScope(g, s, has, ids); err != nil {
				return nil, err
			}
		}
		if err := merge(update, g, starts); err != nil {
			return nil, err
		}
	}
	return update, nil
}

func withScope(id module.ID, s string) module.ID {
	return module.ID{Path: id.Path, Query: id.Query, Scope: s}
}

// carryScope renames the changed modules of a partial update graph, and the
// modules known in scope s, to their ids in scope s.
func carryScope(g *module.Graph, s string, has func(module.ID) bool, changed []module.ID) error {
	for _, id := range g.IDs() {
		scoped := withScope(id, s)
		if !slices.Contains(changed, id) && !has(scoped) {
			continue
		}
		if err := g.RenameModule(id, scoped); err != nil {
			return err
		}
	}
	return nil
}

// merge copies src into dst. A changed module replaces a placeholder of the
// same id; existing edges are kept as they are.
func merge(dst, src *module.Graph, starts map[module.ID]bool) error {
	for _, m := range src.Modules() {
		if !dst.HasModule(m.ID) || starts[m.ID] {
			dst.AddModule(m)
		}
	}
	for _, id := range src.IDs() {
		for _, dep := range src.DependenciesWithEdges(id) {
			if dst.HasEdge(id, dep.ID) {
				continue
			}
			if err := dst.AddEdge(id, dep.ID, dep.Edge); err != nil {
				return err
			}
		}
	}
	return nil
}

// apply patches update into the current graph and regenerates.
func (c *Compiler) apply(ctx context.Context, update *module.Graph, changed []module.ID) (*UpdateResult, error) {
	var (
		d        *diff.Result
		removed  map[module.ID]*module.Module
		affected []module.ID
		updated  []module.ID
		synced   bool
	)
	err := c.ctx.WriteGraph(func(g *module.Graph) error {
		for _, id := range changed {
			if g.HasModule(id) {
				updated = append(updated, id)
			}
		}
		d = diff.Compute(g, update, updated)
		var err error
		if removed, err = diff.Patch(g, update, updated, d); err != nil {
			return err
		}
		if synced, err = scope.HandleDynamicInputs(g, c.ctx.DynamicInputs); err != nil {
			return err
		}
		if synced {
			scopes := c.inputScopes()
			d.AddedModules = rescope(g, d.AddedModules, scopes)
			updated = slices.Collect(maps.Keys(rescope(g, toSet(updated), scopes)))
			module.SortIDs(updated)
		}
		groups := module.BuildGroups(g)
		c.ctx.ReplaceGroups(groups)
		affected = diff.AffectedGroups(groups, g, updated, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.finish(ctx, d, affected, updated, removed, synced)
}

// finish regenerates, builds the update payload and writes the output.
func (c *Compiler) finish(
	ctx context.Context,
	d *diff.Result,
	affected, updated []module.ID,
	removed map[module.ID]*module.Module,
	synced bool,
) (*UpdateResult, error) {
	if err := c.orch.Regenerate(ctx, affected, d, updated, removed); err != nil {
		return nil, err
	}
	payload, err := hmr.BuildUpdatePayload(ctx, c.ctx, updated, d)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{
		Added:   d.Added(),
		Updated: updated,
		Removed: slices.Collect(maps.Keys(removed)),
		Payload: payload,
		Sync:    synced,
	}
	module.SortIDs(result.Removed)
	c.logger.Info("updated %d, added %d, removed %d modules", len(result.Updated), len(result.Added), len(result.Removed))

	result.Resources, err = c.emit()
	c.writeModules(ctx)
	return result, err
}

// AddDynamicInput registers an entry while the compilation runs and builds
// its modules. A non-empty scope isolates the entry's subgraph.
func (c *Compiler) AddDynamicInput(ctx context.Context, name, entry, s string) (*UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.resolver.ResolveEntry(entry)
	if err != nil {
		return nil, fmt.Errorf("resolving dynamic input %q: %w", name, err)
	}
	c.ctx.DynamicInputs.Set(name, compilation.DynamicInput{Scope: s})

	known := make(map[module.ID]bool)
	_ = c.ctx.ReadGraph(func(g *module.Graph) error {
		for _, id := range g.IDs() {
			known[id] = true
		}
		return nil
	})
	update, err := c.loader.LoadModules(ctx, []module.ID{res.ID}, func(id module.ID) bool { return known[id] })
	if err != nil {
		return nil, err
	}

	var (
		d        *diff.Result
		removed  map[module.ID]*module.Module
		affected []module.ID
		synced   bool
	)
	start := []module.ID{res.ID}
	err = c.ctx.WriteGraph(func(g *module.Graph) error {
		isNew := !g.HasModule(res.ID)
		if isNew {
			g.AddModule(update.Module(res.ID))
		}
		d = diff.Compute(g, update, start)
		var err error
		if removed, err = diff.Patch(g, update, start, d); err != nil {
			return err
		}
		if err := g.SetEntry(res.ID, name); err != nil {
			return err
		}
		if isNew {
			d.AddedModules[res.ID] = struct{}{}
		} else if _, ok := d.DepsChanges[res.ID]; !ok {
			// Becoming an entry starts a module group even when nothing
			// else changed.
			d.DepsChanges[res.ID] = diff.DepsChange{}
		}
		if synced, err = scope.HandleDynamicInputs(g, c.ctx.DynamicInputs); err != nil {
			return err
		}
		if synced {
			d.AddedModules = rescope(g, d.AddedModules, c.inputScopes())
		}
		groups := module.BuildGroups(g)
		c.ctx.ReplaceGroups(groups)
		affected = diff.AffectedGroups(groups, g, nil, d)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result, err := c.finish(ctx, d, affected, nil, removed, synced)
	if err != nil {
		return nil, err
	}
	c.logger.Info("added dynamic input %q", name)
	return result, nil
}

func (c *Compiler) inputScopes() []string {
	var scopes []string
	for _, name := range c.ctx.DynamicInputs.Scoped() {
		if input, ok := c.ctx.DynamicInputs.Get(name); ok && !slices.Contains(scopes, input.Scope) {
			scopes = append(scopes, input.Scope)
		}
	}
	return scopes
}

// rescope follows ids through dynamic input scoping: scoped copies of an id
// are added, and ids the scoper renamed away are dropped.
func rescope(g *module.Graph, ids map[module.ID]struct{}, scopes []string) map[module.ID]struct{} {
	out := make(map[module.ID]struct{}, len(ids))
	for id := range ids {
		if g.HasModule(id) {
			out[id] = struct{}{}
		}
		for _, s := range scopes {
			if scoped := id.Scoped(s); g.HasModule(scoped) {
				out[scoped] = struct{}{}
			}
		}
	}
	return out
}

func toSet(ids []module.ID) map[module.ID]struct{} {
	set := make(map[module.ID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// emit writes the resources, the manifest and the HTML page.
func (c *Compiler) emit() ([]string, error) {
	entries := c.entryResources()
	written, err := c.out.Write(c.ctx.Resources, entries)
	if err != nil {
		return written, err
	}
	if c.cfg.HTML == "" {
		return written, nil
	}
	name, err := c.writeHTML(entries)
	if err != nil {
		return written, err
	}
	return append(written, name), nil
}

// entryResources maps each entry name to the resources of its module group.
func (c *Compiler) entryResources() map[string][]string {
	entries := make(map[string][]string)
	_ = c.ctx.ReadGraph(func(g *module.Graph) error {
		return c.ctx.ReadPots(func(pots *resource.PotMap) error {
			return c.ctx.ReadGroups(func(groups *module.GroupGraph) error {
				for id, name := range g.Entries() {
					names := []string{}
					if group := groups.Group(id); group != nil {
						for _, potID := range group.Pots() {
							if p := pots.Get(potID); p != nil {
								names = append(names, p.Resources()...)
							}
						}
					}
					slices.Sort(names)
					entries[name] = names
				}
				return nil
			})
		})
	})
	return entries
}

// writeHTML injects the import map and the entry resources into the
// configured page and writes it to the output directory.
func (c *Compiler) writeHTML(entries map[string][]string) (string, error) {
	doc, err := c.fs.ReadFile(c.cfg.Path(c.cfg.HTML))
	if err != nil {
		return "", fmt.Errorf("reading html: %w", err)
	}

	var resources []*resource.Resource
	seen := make(map[string]bool)
	for _, name := range slices.Sorted(maps.Keys(entries)) {
		for _, rn := range entries[name] {
			if seen[rn] {
				continue
			}
			seen[rn] = true
			if r, ok := c.ctx.Resources.Get(rn); ok {
				resources = append(resources, r)
			}
		}
	}

	im, err := c.importMap()
	if err != nil {
		return "", err
	}
	page, err := inject.Document(doc, resources, im)
	if err != nil {
		return "", fmt.Errorf("injecting into %s: %w", c.cfg.HTML, err)
	}
	name := path.Base(filepath.ToSlash(c.cfg.HTML))
	return name, c.out.WriteFile(name, page)
}

// importMap builds the import map of the external modules, over the
// configured base import map.
func (c *Compiler) importMap() (*importmap.ImportMap, error) {
	versions := make(map[string]string)
	pkg, err := packagejson.ParseFile(c.fs, c.cfg.Path("package.json"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warning("reading package.json: %v", err)
	}

	var im *importmap.ImportMap
	_ = c.ctx.ReadGraph(func(g *module.Graph) error {
		var externals []*module.Module
		for _, m := range g.Modules() {
			if !m.External {
				continue
			}
			externals = append(externals, m)
			if pkg == nil {
				continue
			}
			name, _ := packagejson.SplitSpecifier(m.ID.Path)
			if r, ok := pkg.DependencyRange(name); ok {
				versions[name] = r
			}
		}
		var err error
		if im, err = importmap.ForExternals(externals, c.tmpl, versions); err != nil {
			c.logger.Warning("import map: %v", err)
		}
		return nil
	})

	if c.cfg.Output.ImportMap == "" {
		return im, nil
	}
	data, err := c.fs.ReadFile(c.cfg.Path(c.cfg.Output.ImportMap))
	if err != nil {
		return nil, fmt.Errorf("reading import map: %w", err)
	}
	base, err := importmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", c.cfg.Output.ImportMap, err)
	}
	return base.Merge(im), nil
}
