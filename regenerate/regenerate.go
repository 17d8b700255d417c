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

// Package regenerate re-renders the resource pots affected by a change to the
// module graph.
package regenerate

import (
	"context"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"bennypowers.dev/potter/compilation"
	"bennypowers.dev/potter/diff"
	"bennypowers.dev/potter/internal/hash"
	"bennypowers.dev/potter/internal/metrics"
	"bennypowers.dev/potter/module"
	"bennypowers.dev/potter/resource"
)

// PotGenerator regroups the modules of the affected module groups into
// resource pots and returns the ids of the pots whose membership changed.
type PotGenerator interface {
	GenerateAndDiff(
		ctx context.Context,
		c *compilation.Context,
		affectedGroups []module.ID,
		d *diff.Result,
		updated []module.ID,
		removed map[module.ID]*module.Module,
	) ([]string, error)
}

// SnapshotWriter persists the compilation state after a regeneration.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, c *compilation.Context, pluginCaches map[string][]byte) error
}

// StructuralError reports a lookup that the graph invariants guarantee to
// succeed, such as a module's pot missing from the pot map.
type StructuralError struct {
	Module module.ID
	Pot    string
	Reason string
}

func (e *StructuralError) Error() string {
	if e.Pot != "" {
		return fmt.Sprintf("structural error: module %s, pot %q: %s", e.Module, e.Pot, e.Reason)
	}
	return fmt.Sprintf("structural error: module %s: %s", e.Module, e.Reason)
}

// Orchestrator runs the regeneration steps against a compilation context.
type Orchestrator struct {
	c         *compilation.Context
	generator PotGenerator
	snapshots SnapshotWriter
	metrics   *metrics.Metrics
}

// New creates an orchestrator using generator for pot membership.
func New(c *compilation.Context, generator PotGenerator) *Orchestrator {
	return &Orchestrator{c: c, generator: generator}
}

// WithSnapshotWriter sets the writer used when persistent caching is enabled.
func (o *Orchestrator) WithSnapshotWriter(w SnapshotWriter) *Orchestrator {
	o.snapshots = w
	return o
}

// WithMetrics sets the metrics recorder.
func (o *Orchestrator) WithMetrics(m *metrics.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// Regenerate brings the resources in line with the module graph:
//
//  1. recompute the execution order
//  2. skip regrouping when the diff is empty
//  3. otherwise unassign the modules of the affected groups and regroup them
//  4. add the pots of the updated modules and drop their old resources
//  5. run the resource pot processors
//  6. render every affected pot
//  7. persist caches when enabled
//
// ctx is only checked before starting; a started regeneration runs to the end.
func (o *Orchestrator) Regenerate(
	ctx context.Context,
	affectedGroups []module.ID,
	d *diff.Result,
	updated []module.ID,
	removed map[module.ID]*module.Module,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	pots, err := o.regenerate(ctx, affectedGroups, d, updated, removed)
	o.metrics.Regenerated(pots, err)
	return err
}

func (o *Orchestrator) regenerate(
	ctx context.Context,
	affectedGroups []module.ID,
	d *diff.Result,
	updated []module.ID,
	removed map[module.ID]*module.Module,
) (int, error) {
	logger := o.c.Logger()

	// 1
	if err := o.c.WriteGraph(func(g *module.Graph) error {
		for _, cycle := range g.UpdateExecutionOrder() {
			logger.Debug("circular dependency: %v", cycle)
		}
		return nil
	}); err != nil {
		return 0, err
	}

	// 2, 3
	affected := make(map[string]struct{})
	if !d.IsEmpty() {
		if err := o.unassign(affectedGroups); err != nil {
			return 0, err
		}
		ids, err := o.generator.GenerateAndDiff(ctx, o.c, affectedGroups, d, updated, removed)
		if err != nil {
			return 0, fmt.Errorf("generating resource pots: %w", err)
		}
		for _, id := range ids {
			affected[id] = struct{}{}
		}
	}

	// 4
	stale, err := o.collectUpdatedPots(updated, affected)
	if err != nil {
		return 0, err
	}
	for _, name := range stale {
		o.c.Resources.Remove(name)
	}

	ids := slices.Collect(maps.Keys(affected))
	slices.Sort(ids)
	var pots []*resource.Pot
	if err := o.c.ReadPots(func(pm *resource.PotMap) error {
		var err error
		pots, err = pm.Filter(ids)
		return err
	}); err != nil {
		return 0, &StructuralError{Reason: err.Error()}
	}

	// 5
	if err := o.c.Plugins.ProcessResourcePots(ctx, o.c, pots); err != nil {
		return 0, fmt.Errorf("processing resource pots: %w", err)
	}

	// 6
	if err := o.render(ctx, pots); err != nil {
		return 0, err
	}
	logger.Debug("regenerated %d resource pots", len(pots))

	// 7
	if o.c.Options.PersistentCache {
		o.writeCache(ctx)
	}

	return len(pots), nil
}

// unassign clears the pot of every module in the affected groups.
func (o *Orchestrator) unassign(affectedGroups []module.ID) error {
	return o.c.WriteGraph(func(g *module.Graph) error {
		return o.c.ReadGroups(func(groups *module.GroupGraph) error {
			for _, groupID := range affectedGroups {
				group := groups.Group(groupID)
				if group == nil {
					continue
				}
				for _, id := range group.Modules() {
					if m := g.Module(id); m != nil {
						m.ResourcePot = ""
					}
				}
			}
			return nil
		})
	})
}

// collectUpdatedPots adds the pot of each updated module to affected, then
// clears the resource list of every affected pot. Returns the names of the
// resources to drop from the store.
func (o *Orchestrator) collectUpdatedPots(updated []module.ID, affected map[string]struct{}) ([]string, error) {
	var stale []string
	err := o.c.ReadGraph(func(g *module.Graph) error {
		return o.c.WritePots(func(pots *resource.PotMap) error {
			for _, id := range updated {
				m := g.Module(id)
				if m == nil {
					return &StructuralError{Module: id, Reason: "updated module is not in the module graph"}
				}
				if m.External {
					continue
				}
				if m.ResourcePot == "" {
					return &StructuralError{Module: id, Reason: "updated module has no resource pot"}
				}
				if !pots.Has(m.ResourcePot) {
					return &StructuralError{Module: id, Pot: m.ResourcePot, Reason: "resource pot is not registered"}
				}
				affected[m.ResourcePot] = struct{}{}
			}

			for id := range affected {
				if p := pots.Get(id); p != nil {
					stale = append(stale, p.ClearResources()...)
				}
			}
			return nil
		})
	})
	return stale, err
}

type rendered struct {
	pot       *resource.Pot
	resources []*resource.Resource
}

func (o *Orchestrator) render(ctx context.Context, pots []*resource.Pot) error {
	start := time.Now()
	defer func() { o.metrics.RenderDuration(time.Since(start)) }()

	results := make([]rendered, len(pots))
	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for i, pot := range pots {
		eg.Go(func() error {
			result, err := o.c.Plugins.RenderResourcePot(ctx, o.c, pot)
			if err != nil {
				return fmt.Errorf("rendering resource pot %s: %w", pot.ID, err)
			}
			if result == nil {
				o.c.Logger().Debug("no renderer for resource pot %s", pot.ID)
				results[i] = rendered{pot: pot}
				return nil
			}
			results[i] = rendered{pot: pot, resources: resourcesFor(pot, result)}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	// Anything still attributed to a re-rendered pot is stale.
	for _, r := range results {
		for _, old := range o.c.Resources.ByOrigin(resource.FromPot(r.pot.ID)) {
			o.c.Resources.Remove(old.Name)
		}
	}

	return o.c.WritePots(func(_ *resource.PotMap) error {
		for _, r := range results {
			for _, res := range r.resources {
				r.pot.AddResource(res.Name)
				o.c.Resources.Insert(res)
			}
		}
		return nil
	})
}

// resourcesFor turns a render result into the pot's resource and optional
// source map, named <pot name>.<hash>.<ext>.
func resourcesFor(pot *resource.Pot, result *compilation.RenderResult) []*resource.Resource {
	typ := TypeForPot(pot.Type)
	if result.Type != nil {
		typ = *result.Type
	}

	name := fmt.Sprintf("%s.%s.%s", pot.Name, hash.Short(result.Content, 8), typ.Ext())
	if typ.Kind == resource.TypeHtml {
		name = pot.Name + ".html"
	}
	origin := resource.FromPot(pot.ID)
	out := []*resource.Resource{{
		Name:   name,
		Bytes:  result.Content,
		Type:   typ,
		Origin: origin,
	}}
	if len(result.SourceMap) > 0 {
		out = append(out, &resource.Resource{
			Name:   name + ".map",
			Bytes:  result.SourceMap,
			Type:   resource.SourceMap(name),
			Origin: origin,
		})
	}
	return out
}

// TypeForPot returns the resource type a pot renders to by default.
func TypeForPot(t resource.PotType) resource.Type {
	switch t.Kind {
	case resource.PotJs:
		return resource.Js
	case resource.PotCss:
		return resource.Css
	case resource.PotHtml:
		return resource.Html
	case resource.PotRuntime:
		return resource.Runtime
	case resource.PotAsset:
		return resource.Asset("")
	case resource.PotCustom:
		return resource.Custom(t.Name)
	default:
		return resource.Custom(t.String())
	}
}

// writeCache persists plugin caches and the snapshot. Failures only warn.
func (o *Orchestrator) writeCache(ctx context.Context) {
	logger := o.c.Logger()
	caches, err := o.c.Plugins.WritePluginCache(ctx, o.c)
	if err != nil {
		logger.Warning("writing plugin cache: %v", err)
		o.metrics.CacheWriteFailed("plugin")
	}
	if o.snapshots == nil {
		return
	}
	if err := o.snapshots.WriteSnapshot(ctx, o.c, caches); err != nil {
		logger.Warning("writing compilation snapshot: %v", err)
		o.metrics.CacheWriteFailed("snapshot")
	}
}
