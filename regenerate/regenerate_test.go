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

package regenerate_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"bennypowers.dev/potter/compilation"
	"bennypowers.dev/potter/diff"
	"bennypowers.dev/potter/module"
	"bennypowers.dev/potter/partial"
	"bennypowers.dev/potter/plugins/render"
	"bennypowers.dev/potter/regenerate"
	"bennypowers.dev/potter/resource"
)

type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *recordingLogger) Warning(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Debug(string, ...any) {}

type failingCache struct{}

func (failingCache) Name() string { return "failing" }
func (failingCache) WritePluginCache(context.Context, *compilation.Context) ([]byte, error) {
	return nil, errors.New("disk full")
}

type failingSnapshot struct{ calls int }

func (s *failingSnapshot) WriteSnapshot(context.Context, *compilation.Context, map[string][]byte) error {
	s.calls++
	return errors.New("read-only filesystem")
}

type brokenRenderer struct{}

func (brokenRenderer) Name() string { return "broken" }
func (brokenRenderer) RenderResourcePot(context.Context, *compilation.Context, *resource.Pot) (*compilation.RenderResult, error) {
	return nil, errors.New("syntax error")
}

// countingGenerator counts the grouping calls it forwards.
type countingGenerator struct {
	regenerate.PotGenerator
	calls int
}

func (g *countingGenerator) GenerateAndDiff(
	ctx context.Context,
	c *compilation.Context,
	affectedGroups []module.ID,
	d *diff.Result,
	updated []module.ID,
	removed map[module.ID]*module.Module,
) ([]string, error) {
	g.calls++
	return g.PotGenerator.GenerateAndDiff(ctx, c, affectedGroups, d, updated, removed)
}

func id(path string) module.ID {
	return module.NewID(path, "")
}

// setup builds main.js -> a.js, main.js -> style.css and runs a full
// regeneration over it.
func setup(t *testing.T, opts compilation.Options, plugins ...compilation.Plugin) (*compilation.Context, *regenerate.Orchestrator) {
	t.Helper()
	renderer, err := render.New(0)
	if err != nil {
		t.Fatal(err)
	}
	c := compilation.NewContext(opts, append(plugins, renderer)...)

	contents := map[string]string{
		"main.js":   "import './a.js'\nimport './style.css'",
		"a.js":      "export const a = 1",
		"style.css": "body { color: red }",
	}
	all := []module.ID{id("main.js"), id("a.js"), id("style.css")}
	if err := c.WriteGraph(func(g *module.Graph) error {
		for _, mid := range all {
			m := module.New(mid)
			m.Content = contents[mid.Path]
			g.AddModule(m)
		}
		if err := g.AddEdge(id("main.js"), id("a.js"), module.NewEdgeInfo("./a.js", module.ResolveImport, 0)); err != nil {
			return err
		}
		if err := g.AddEdge(id("main.js"), id("style.css"), module.NewEdgeInfo("./style.css", module.ResolveImport, 1)); err != nil {
			return err
		}
		if err := g.SetEntry(id("main.js"), "main"); err != nil {
			return err
		}
		c.ReplaceGroups(module.BuildGroups(g))
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	o := regenerate.New(c, partial.New())
	initial := diff.NewResult()
	for _, mid := range all {
		initial.AddedModules[mid] = struct{}{}
	}
	if err := o.Regenerate(context.Background(), []module.ID{id("main.js")}, initial, nil, nil); err != nil {
		t.Fatalf("initial Regenerate: %v", err)
	}
	return c, o
}

func namesWithSuffix(c *compilation.Context, suffix string) []string {
	var out []string
	for _, name := range c.Resources.Names() {
		if strings.HasSuffix(name, suffix) {
			out = append(out, name)
		}
	}
	return out
}

func TestRegenerateFullBuild(t *testing.T) {
	c, _ := setup(t, compilation.Options{})

	js := namesWithSuffix(c, ".js")
	css := namesWithSuffix(c, ".css")
	if len(js) != 1 || len(css) != 1 {
		t.Fatalf("resources = %v", c.Resources.Names())
	}
	if !strings.HasPrefix(js[0], "main.") {
		t.Errorf("js resource name = %q", js[0])
	}

	r, _ := c.Resources.Get(js[0])
	if !strings.Contains(string(r.Bytes), `"a.js": function(module, exports, require)`) {
		t.Errorf("js output missing module a.js:\n%s", r.Bytes)
	}

	_ = c.ReadGraph(func(g *module.Graph) error {
		for _, m := range g.Modules() {
			if m.ResourcePot == "" {
				t.Errorf("module %s has no pot", m.ID)
			}
		}
		return nil
	})
}

func TestRegenerateContentOnlyUpdate(t *testing.T) {
	c, _ := setup(t, compilation.Options{})
	gen := &countingGenerator{PotGenerator: partial.New()}
	o := regenerate.New(c, gen)
	oldJS := namesWithSuffix(c, ".js")[0]
	oldCSS := namesWithSuffix(c, ".css")[0]

	var potsBefore int
	_ = c.ReadPots(func(pots *resource.PotMap) error {
		potsBefore = pots.Len()
		return nil
	})

	_ = c.WriteGraph(func(g *module.Graph) error {
		g.Module(id("a.js")).Content = "export const a = 2"
		return nil
	})

	if err := o.Regenerate(context.Background(), nil, diff.NewResult(), []module.ID{id("a.js")}, nil); err != nil {
		t.Fatal(err)
	}
	if gen.calls != 0 {
		t.Errorf("GenerateAndDiff called %d times for an empty diff", gen.calls)
	}

	js := namesWithSuffix(c, ".js")
	if len(js) != 1 || js[0] == oldJS {
		t.Errorf("expected one fresh js resource, got %v (old %s)", js, oldJS)
	}
	if c.Resources.Has(oldJS) {
		t.Error("stale js resource still in the store")
	}
	if css := namesWithSuffix(c, ".css"); len(css) != 1 || css[0] != oldCSS {
		t.Errorf("css resource should be untouched, got %v", css)
	}

	_ = c.ReadPots(func(pots *resource.PotMap) error {
		if pots.Len() != potsBefore {
			t.Errorf("pot count changed from %d to %d", potsBefore, pots.Len())
		}
		return nil
	})
}

func TestRegenerateRemovedModuleDropsPot(t *testing.T) {
	c, o := setup(t, compilation.Options{})

	var removed map[module.ID]*module.Module
	d := diff.NewResult()
	d.RemovedModules[id("style.css")] = struct{}{}
	d.DepsChanges[id("main.js")] = diff.DepsChange{Removed: []module.ID{id("style.css")}}

	if err := c.WriteGraph(func(g *module.Graph) error {
		m, err := g.RemoveModule(id("style.css"))
		removed = map[module.ID]*module.Module{id("style.css"): m}
		c.ReplaceGroups(module.BuildGroups(g))
		return err
	}); err != nil {
		t.Fatal(err)
	}

	if err := o.Regenerate(context.Background(), []module.ID{id("main.js")}, d, []module.ID{id("main.js")}, removed); err != nil {
		t.Fatal(err)
	}

	if css := namesWithSuffix(c, ".css"); len(css) != 0 {
		t.Errorf("css resources should be gone, got %v", css)
	}
	_ = c.ReadPots(func(pots *resource.PotMap) error {
		for _, p := range pots.Pots() {
			if p.Type == resource.PotTypeCss {
				t.Errorf("css pot %s should be deleted", p.ID)
			}
		}
		return nil
	})
}

func TestRegenerateStructuralError(t *testing.T) {
	_, o := setup(t, compilation.Options{})

	err := o.Regenerate(context.Background(), nil, diff.NewResult(), []module.ID{id("missing.js")}, nil)
	var structural *regenerate.StructuralError
	if !errors.As(err, &structural) {
		t.Fatalf("err = %v, want StructuralError", err)
	}
	if structural.Module != id("missing.js") {
		t.Errorf("structural.Module = %s", structural.Module)
	}
}

func TestRegenerateCacheFailureIsNotFatal(t *testing.T) {
	logger := &recordingLogger{}
	c, o := setup(t, compilation.Options{PersistentCache: true}, failingCache{})
	c.WithLogger(logger)
	snapshots := &failingSnapshot{}
	o.WithSnapshotWriter(snapshots)

	if err := o.Regenerate(context.Background(), nil, diff.NewResult(), []module.ID{id("a.js")}, nil); err != nil {
		t.Fatalf("cache failures must not fail the rebuild: %v", err)
	}
	if snapshots.calls != 1 {
		t.Errorf("snapshot writer called %d times", snapshots.calls)
	}
	if len(logger.warnings) != 2 {
		t.Errorf("warnings = %v", logger.warnings)
	}
}

func TestRegenerateRenderErrorIsFatal(t *testing.T) {
	c := compilation.NewContext(compilation.Options{}, brokenRenderer{})
	if err := c.WriteGraph(func(g *module.Graph) error {
		g.AddModule(module.New(id("main.js")))
		if err := g.SetEntry(id("main.js"), "main"); err != nil {
			return err
		}
		c.ReplaceGroups(module.BuildGroups(g))
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	d := diff.NewResult()
	d.AddedModules[id("main.js")] = struct{}{}
	err := regenerate.New(c, partial.New()).Regenerate(context.Background(), []module.ID{id("main.js")}, d, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "syntax error") {
		t.Errorf("err = %v, want render error", err)
	}
	if c.Resources.Len() != 0 {
		t.Errorf("no resources should be stored after a failed render, got %v", c.Resources.Names())
	}
}

func TestRegenerateCancelledBeforeStart(t *testing.T) {
	_, o := setup(t, compilation.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := o.Regenerate(ctx, nil, diff.NewResult(), nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
