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

package module_test

import (
	"errors"
	"slices"
	"testing"

	"bennypowers.dev/potter/module"
)

func id(path string) module.ID {
	return module.NewID(path, "")
}

func buildGraph(t *testing.T, edges map[string][]string, entries ...string) *module.Graph {
	t.Helper()
	g := module.NewGraph()
	add := func(path string) {
		if !g.HasModule(id(path)) {
			g.AddModule(module.New(id(path)))
		}
	}
	for from, tos := range edges {
		add(from)
		for _, to := range tos {
			add(to)
		}
	}
	for from, tos := range edges {
		for i, to := range tos {
			if err := g.AddEdge(id(from), id(to), module.NewEdgeInfo("./"+to, module.ResolveImport, i)); err != nil {
				t.Fatalf("AddEdge(%s, %s): %v", from, to, err)
			}
		}
	}
	for i, entry := range entries {
		if err := g.SetEntry(id(entry), "entry"+string(rune('A'+i))); err != nil {
			t.Fatalf("SetEntry: %v", err)
		}
	}
	return g
}

func TestIDScoped(t *testing.T) {
	tests := []struct {
		name     string
		id       module.ID
		scope    string
		expected string
	}{
		{"unscoped", module.NewID("src/b.js", ""), "s1", "src/b.js.s1"},
		{"with query", module.NewID("src/b.css", "?inline"), "s1", "src/b.css.s1?inline"},
		{"same scope", module.ID{Path: "src/b.js", Scope: "s1"}, "s1", "src/b.js.s1"},
		{"nested scope", module.ID{Path: "src/b.js", Scope: "s1"}, "s2", "src/b.js.s1.s2"},
		{"nested same scope", module.ID{Path: "src/b.js", Scope: "s1.s2"}, "s2", "src/b.js.s1.s2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.id.Scoped(tt.scope).String()
			if got != tt.expected {
				t.Errorf("Scoped(%q) = %q, want %q", tt.scope, got, tt.expected)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	got := module.ParseID("src/a.js?raw")
	if got.Path != "src/a.js" || got.Query != "?raw" {
		t.Errorf("ParseID() = %#v", got)
	}
	if got.String() != "src/a.js?raw" {
		t.Errorf("String() = %q", got.String())
	}
}

func TestGraphEdges(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"a.js": {"b.js", "c.js"},
		"b.js": {"c.js"},
	}, "a.js")

	if !g.HasEdge(id("a.js"), id("b.js")) {
		t.Error("expected edge a -> b")
	}
	if g.HasEdge(id("b.js"), id("a.js")) {
		t.Error("unexpected edge b -> a")
	}

	deps := g.Dependencies(id("a.js"))
	if !slices.Equal(deps, []module.ID{id("b.js"), id("c.js")}) {
		t.Errorf("Dependencies(a) = %v", deps)
	}

	dependents := g.Dependents(id("c.js"))
	if !slices.Equal(dependents, []module.ID{id("a.js"), id("b.js")}) {
		t.Errorf("Dependents(c) = %v", dependents)
	}

	if err := g.AddEdge(id("a.js"), id("missing.js"), module.EdgeInfo{}); !errors.Is(err, module.ErrModuleNotFound) {
		t.Errorf("AddEdge to missing module: got %v", err)
	}
}

func TestGraphAddEdgeMergesItems(t *testing.T) {
	g := buildGraph(t, map[string][]string{"a.js": {"b.js"}})
	extra := module.NewEdgeInfo("./b.js", module.ResolveDynamicImport, 5)
	if err := g.AddEdge(id("a.js"), id("b.js"), extra); err != nil {
		t.Fatal(err)
	}
	edge, ok := g.EdgeInfo(id("a.js"), id("b.js"))
	if !ok {
		t.Fatal("edge missing")
	}
	if len(edge.Items) != 2 {
		t.Errorf("expected 2 merged items, got %d", len(edge.Items))
	}
	if edge.IsDynamic() {
		t.Error("edge with a static item must not be dynamic")
	}
}

func TestGraphRemoveModule(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"a.js": {"b.js"},
		"b.js": {"c.js"},
	}, "a.js")

	if _, err := g.RemoveModule(id("b.js")); err != nil {
		t.Fatal(err)
	}
	if g.HasEdge(id("a.js"), id("b.js")) {
		t.Error("edge a -> b should be gone")
	}
	if len(g.Dependents(id("c.js"))) != 0 {
		t.Error("c should have no dependents")
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	if _, err := g.RemoveModule(id("b.js")); !errors.Is(err, module.ErrModuleNotFound) {
		t.Errorf("second RemoveModule: got %v", err)
	}
}

func TestGraphRemoveEdge(t *testing.T) {
	g := buildGraph(t, map[string][]string{"a.js": {"b.js"}})
	edge, err := g.RemoveEdge(id("a.js"), id("b.js"))
	if err != nil {
		t.Fatal(err)
	}
	if len(edge.Items) != 1 || edge.Items[0].Source != "./b.js" {
		t.Errorf("RemoveEdge returned %+v", edge)
	}
	if _, err := g.RemoveEdge(id("a.js"), id("b.js")); !errors.Is(err, module.ErrEdgeNotFound) {
		t.Errorf("second RemoveEdge: got %v", err)
	}
}

func TestGraphRenameModule(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"a.js": {"b.js"},
		"b.js": {"c.js", "b.js"},
	}, "a.js")

	scoped := id("b.js").Scoped("s1")
	if err := g.RenameModule(id("b.js"), scoped); err != nil {
		t.Fatal(err)
	}

	if g.HasModule(id("b.js")) {
		t.Error("old id still present")
	}
	m := g.Module(scoped)
	if m == nil || m.ID != scoped {
		t.Fatalf("renamed module = %+v", m)
	}
	if !g.HasEdge(id("a.js"), scoped) || !g.HasEdge(scoped, id("c.js")) || !g.HasEdge(scoped, scoped) {
		t.Error("edges not rewired")
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	if err := g.RenameModule(id("a.js"), scoped); !errors.Is(err, module.ErrModuleExists) {
		t.Errorf("rename onto existing id: got %v", err)
	}
}

func TestGraphRenameSelfImport(t *testing.T) {
	tests := []struct {
		name  string
		edges map[string][]string
	}{
		{"imported and self-importing", map[string][]string{"a.js": {"b.js"}, "b.js": {"b.js"}}},
		{"only self-importing", map[string][]string{"a.js": {}, "b.js": {"b.js"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph(t, tt.edges, "a.js")
			scoped := id("b.js").Scoped("s1")
			if err := g.RenameModule(id("b.js"), scoped); err != nil {
				t.Fatal(err)
			}
			if !g.HasEdge(scoped, scoped) {
				t.Error("self-import did not move with the module")
			}
			if g.HasEdge(scoped, id("b.js")) || g.HasEdge(id("b.js"), scoped) {
				t.Error("edge to the old id left behind")
			}
			if err := g.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}

func TestGraphRenameEntry(t *testing.T) {
	g := buildGraph(t, map[string][]string{"a.js": {"b.js"}}, "a.js")
	if err := g.RenameModule(id("a.js"), id("main.js")); err != nil {
		t.Fatal(err)
	}
	got, ok := g.EntryByName("entryA")
	if !ok || got != id("main.js") {
		t.Errorf("EntryByName() = %v, %v", got, ok)
	}
}

func TestGraphClone(t *testing.T) {
	g := buildGraph(t, map[string][]string{"a.js": {"b.js"}}, "a.js")
	g.Module(id("a.js")).Content = "import './b.js'"

	clone, err := g.Clone()
	if err != nil {
		t.Fatal(err)
	}
	clone.Module(id("a.js")).Content = "changed"
	if _, err := clone.RemoveEdge(id("a.js"), id("b.js")); err != nil {
		t.Fatal(err)
	}

	if g.Module(id("a.js")).Content != "import './b.js'" {
		t.Error("clone shares module state with original")
	}
	if !g.HasEdge(id("a.js"), id("b.js")) {
		t.Error("clone shares edges with original")
	}
}

func TestTransitiveDependents(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"a.js": {"b.js"},
		"b.js": {"c.js"},
		"d.js": {"c.js"},
	})
	got := g.TransitiveDependents(id("c.js"))
	want := []module.ID{id("a.js"), id("b.js"), id("d.js")}
	if !slices.Equal(got, want) {
		t.Errorf("TransitiveDependents(c) = %v, want %v", got, want)
	}
}

func TestUpdateExecutionOrder(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"a.js": {"b.js", "c.js"},
		"b.js": {"d.js"},
	}, "a.js")
	g.AddModule(module.New(id("lazy.js")))
	if err := g.AddEdge(id("a.js"), id("lazy.js"), module.NewEdgeInfo("./lazy.js", module.ResolveDynamicImport, 9)); err != nil {
		t.Fatal(err)
	}

	cycles := g.UpdateExecutionOrder()
	if len(cycles) != 0 {
		t.Errorf("unexpected cycles: %v", cycles)
	}

	order := func(path string) int { return g.Module(id(path)).ExecutionOrder }
	if !(order("d.js") < order("b.js") && order("b.js") < order("c.js") && order("c.js") < order("a.js")) {
		t.Errorf("unexpected order d=%d b=%d c=%d a=%d", order("d.js"), order("b.js"), order("c.js"), order("a.js"))
	}
	if order("lazy.js") < order("a.js") {
		t.Errorf("dynamic import ordered before static graph: lazy=%d a=%d", order("lazy.js"), order("a.js"))
	}
}

func TestUpdateExecutionOrderCycles(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"a.js": {"b.js"},
		"b.js": {"a.js"},
	}, "a.js")
	cycles := g.UpdateExecutionOrder()
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %v", cycles)
	}
	want := []module.ID{id("a.js"), id("b.js"), id("a.js")}
	if !slices.Equal(cycles[0], want) {
		t.Errorf("cycle = %v, want %v", cycles[0], want)
	}
}

func TestBuildGroups(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"a.js":    {"b.js"},
		"lazy.js": {"b.js", "c.js"},
	}, "a.js")
	if err := g.AddEdge(id("a.js"), id("lazy.js"), module.NewEdgeInfo("./lazy.js", module.ResolveDynamicImport, 1)); err != nil {
		t.Fatal(err)
	}
	g.Module(id("b.js")).ResourcePot = "pot-b"

	groups := module.BuildGroups(g)
	if groups.Len() != 2 {
		t.Fatalf("expected 2 groups, got %d", groups.Len())
	}

	entry := groups.Group(id("a.js"))
	if !entry.Entry || !slices.Equal(entry.Modules(), []module.ID{id("a.js"), id("b.js")}) {
		t.Errorf("entry group = %v", entry.Modules())
	}
	lazy := groups.Group(id("lazy.js"))
	if lazy.Entry || !slices.Equal(lazy.Modules(), []module.ID{id("b.js"), id("c.js"), id("lazy.js")}) {
		t.Errorf("lazy group = %v", lazy.Modules())
	}
	if !slices.Equal(groups.GroupsOf(id("b.js")), []module.ID{id("a.js"), id("lazy.js")}) {
		t.Errorf("GroupsOf(b) = %v", groups.GroupsOf(id("b.js")))
	}
	if !slices.Equal(groups.Children(id("a.js")), []module.ID{id("lazy.js")}) {
		t.Errorf("Children(a) = %v", groups.Children(id("a.js")))
	}
	if !slices.Equal(entry.Pots(), []string{"pot-b"}) {
		t.Errorf("entry pots = %v", entry.Pots())
	}
}

func TestSystemMerge(t *testing.T) {
	tests := []struct {
		a, b     module.System
		expected module.System
	}{
		{module.UnInitial, module.EsModule, module.EsModule},
		{module.EsModule, module.UnInitial, module.EsModule},
		{module.EsModule, module.CommonJs, module.Hybrid},
		{module.CommonJs, module.EsModule, module.Hybrid},
		{module.Hybrid, module.EsModule, module.Hybrid},
		{module.CustomSystem("amd"), module.CommonJs, module.CommonJs},
		{module.CommonJs, module.CommonJs, module.CommonJs},
	}
	for _, tt := range tests {
		t.Run(tt.a.String()+"+"+tt.b.String(), func(t *testing.T) {
			if got := tt.a.Merge(tt.b); got != tt.expected {
				t.Errorf("Merge() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTypeFromPath(t *testing.T) {
	tests := []struct {
		path   string
		script bool
		css    bool
	}{
		{"a.js", true, false},
		{"a.tsx", true, false},
		{"a.css", false, true},
		{"a.png", false, false},
		{"index.html", false, false},
	}
	for _, tt := range tests {
		typ := module.TypeFromPath(tt.path)
		if typ.IsScript() != tt.script || typ.IsCSS() != tt.css {
			t.Errorf("TypeFromPath(%q) = %v", tt.path, typ)
		}
	}
	if got := module.TypeFromPath("a.js").ToCustom("s1").String(); got != "custom(js, s1)" {
		t.Errorf("ToCustom().String() = %q", got)
	}
}
