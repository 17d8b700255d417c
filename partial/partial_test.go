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

package partial_test

import (
	"context"
	"strings"
	"testing"

	"bennypowers.dev/potter/compilation"
	"bennypowers.dev/potter/diff"
	"bennypowers.dev/potter/module"
	"bennypowers.dev/potter/partial"
	"bennypowers.dev/potter/resource"
)

func id(path string) module.ID {
	return module.NewID(path, "")
}

// newContext builds
//
//	main.js -> lib.js, logo.svg, node_modules/lit/index.js
//	main.js ~> lazy.js (dynamic) -> lib.js
func newContext(t *testing.T) *compilation.Context {
	t.Helper()
	c := compilation.NewContext(compilation.Options{})
	err := c.WriteGraph(func(g *module.Graph) error {
		for _, path := range []string{"main.js", "lib.js", "logo.svg", "lazy.js", "node_modules/lit/index.js"} {
			m := module.New(id(path))
			m.Immutable = strings.HasPrefix(path, "node_modules/")
			g.AddModule(m)
		}
		edges := []struct {
			from, to string
			kind     module.ResolveKind
		}{
			{"main.js", "lib.js", module.ResolveImport},
			{"main.js", "logo.svg", module.ResolveImport},
			{"main.js", "node_modules/lit/index.js", module.ResolveImport},
			{"main.js", "lazy.js", module.ResolveDynamicImport},
			{"lazy.js", "lib.js", module.ResolveImport},
		}
		for i, e := range edges {
			if err := g.AddEdge(id(e.from), id(e.to), module.NewEdgeInfo("./"+e.to, e.kind, i)); err != nil {
				return err
			}
		}
		if err := g.SetEntry(id("main.js"), "main"); err != nil {
			return err
		}
		c.ReplaceGroups(module.BuildGroups(g))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func allGroups(t *testing.T, c *compilation.Context) []module.ID {
	t.Helper()
	var ids []module.ID
	_ = c.ReadGroups(func(groups *module.GroupGraph) error {
		ids = groups.IDs()
		return nil
	})
	return ids
}

func potOf(t *testing.T, c *compilation.Context, path string) *resource.Pot {
	t.Helper()
	var p *resource.Pot
	_ = c.ReadGraph(func(g *module.Graph) error {
		return c.ReadPots(func(pots *resource.PotMap) error {
			m := g.Module(id(path))
			if m == nil || m.ResourcePot == "" {
				t.Fatalf("%s has no pot", path)
			}
			p = pots.Get(m.ResourcePot)
			return nil
		})
	})
	if p == nil {
		t.Fatalf("pot of %s is not registered", path)
	}
	return p
}

func TestGenerateAndDiff(t *testing.T) {
	c := newContext(t)
	changed, err := partial.New().GenerateAndDiff(context.Background(), c, allGroups(t, c), diff.NewResult(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) == 0 {
		t.Fatal("expected new pots to be reported")
	}

	tests := []struct {
		path string
		name string
		typ  resource.PotType
	}{
		{"main.js", "main", resource.PotTypeJs},
		{"lazy.js", "lazy", resource.PotTypeJs},
		{"lib.js", "shared", resource.PotTypeJs},
		{"logo.svg", "logo", resource.PotTypeAsset},
		{"node_modules/lit/index.js", "main_vendor", resource.PotTypeJs},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p := potOf(t, c, tt.path)
			if p.Name != tt.name {
				t.Errorf("pot name = %q, want %q", p.Name, tt.name)
			}
			if p.Type != tt.typ {
				t.Errorf("pot type = %s, want %s", p.Type, tt.typ)
			}
		})
	}

	if !potOf(t, c, "node_modules/lit/index.js").Immutable {
		t.Error("vendor pot should be immutable")
	}
	if potOf(t, c, "main.js").ID == potOf(t, c, "lazy.js").ID {
		t.Error("entry and dynamic import should not share a pot")
	}
}

func TestGenerateAndDiffUnchanged(t *testing.T) {
	c := newContext(t)
	groups := allGroups(t, c)
	gen := partial.New()
	if _, err := gen.GenerateAndDiff(context.Background(), c, groups, diff.NewResult(), nil, nil); err != nil {
		t.Fatal(err)
	}

	// Unassign everything and regroup; nothing moves.
	_ = c.WriteGraph(func(g *module.Graph) error {
		for _, m := range g.Modules() {
			m.ResourcePot = ""
		}
		return nil
	})
	changed, err := gen.GenerateAndDiff(context.Background(), c, groups, diff.NewResult(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 0 {
		t.Errorf("changed = %v, want none", changed)
	}
}

func TestGenerateAndDiffRemovesEmptyPots(t *testing.T) {
	c := newContext(t)
	groups := allGroups(t, c)
	gen := partial.New()
	if _, err := gen.GenerateAndDiff(context.Background(), c, groups, diff.NewResult(), nil, nil); err != nil {
		t.Fatal(err)
	}
	logoPot := potOf(t, c, "logo.svg")
	c.Resources.Insert(&resource.Resource{Name: "logo.svg", Origin: resource.FromPot(logoPot.ID)})

	removed := make(map[module.ID]*module.Module)
	_ = c.WriteGraph(func(g *module.Graph) error {
		m, err := g.RemoveModule(id("logo.svg"))
		removed[id("logo.svg")] = m
		return err
	})

	if _, err := gen.GenerateAndDiff(context.Background(), c, groups, diff.NewResult(), nil, removed); err != nil {
		t.Fatal(err)
	}
	_ = c.ReadPots(func(pots *resource.PotMap) error {
		if pots.Has(logoPot.ID) {
			t.Errorf("empty pot %s was kept", logoPot.ID)
		}
		return nil
	})
	if c.Resources.Has("logo.svg") {
		t.Error("resources of the emptied pot were kept")
	}
}
