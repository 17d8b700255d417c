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

package loader_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"bennypowers.dev/potter/internal/mapfs"
	"bennypowers.dev/potter/loader"
	"bennypowers.dev/potter/module"
	"bennypowers.dev/potter/resolve"
)

func TestAnalyzeScriptImports(t *testing.T) {
	src := `import { a } from './a.js';
export * from './b.js';
const lazy = () => import('./lazy.js');
import './side-effect.js';
`
	a, err := loader.AnalyzeScript([]byte(src), false)
	if err != nil {
		t.Fatal(err)
	}

	want := []loader.Import{
		{Specifier: "./a.js", Kind: module.ResolveImport, Order: 0},
		{Specifier: "./b.js", Kind: module.ResolveExportFrom, Order: 1},
		{Specifier: "./lazy.js", Kind: module.ResolveDynamicImport, Order: 2},
		{Specifier: "./side-effect.js", Kind: module.ResolveImport, Order: 3},
	}
	if !slices.Equal(a.Imports, want) {
		t.Errorf("imports:\ngot  %+v\nwant %+v", a.Imports, want)
	}
	if a.System != module.EsModule {
		t.Errorf("system = %s, want esm", a.System)
	}
}

func TestAnalyzeScriptSystem(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want module.System
	}{
		{"empty", "const x = 1;", module.UnInitial},
		{"esm", "export const x = 1;", module.EsModule},
		{"commonjs exports", "module.exports = { x: 1 };", module.CommonJs},
		{"commonjs require", "const a = require('./a.js');", module.CommonJs},
		{"hybrid", "import a from './a.js';\nmodule.exports = a;", module.Hybrid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := loader.AnalyzeScript([]byte(tt.src), false)
			if err != nil {
				t.Fatal(err)
			}
			if a.System != tt.want {
				t.Errorf("system = %s, want %s", a.System, tt.want)
			}
		})
	}
}

func TestAnalyzeScriptRequire(t *testing.T) {
	a, err := loader.AnalyzeScript([]byte(`const dep = require("./dep.js");`), false)
	if err != nil {
		t.Fatal(err)
	}
	want := []loader.Import{{Specifier: "./dep.js", Kind: module.ResolveRequire}}
	if !slices.Equal(a.Imports, want) {
		t.Errorf("imports = %+v, want %+v", a.Imports, want)
	}
}

func TestAnalyzeScriptHMR(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		self     bool
		accepted []string
	}{
		{"no hmr", "export const x = 1;", false, nil},
		{"self accept", "export const x = 1;\nimport.meta.hot.accept();", true, nil},
		{"self accept with callback", "import.meta.hot.accept((mod) => {});", true, nil},
		{"single dep", "import.meta.hot.accept('./dep.js', () => {});", false, []string{"./dep.js"}},
		{"dep array", `import.meta.hot.accept(["./a.js", "./b.js"], () => {});`, false, []string{"./a.js", "./b.js"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := loader.AnalyzeScript([]byte(tt.src), false)
			if err != nil {
				t.Fatal(err)
			}
			if a.HMRSelfAccepted != tt.self {
				t.Errorf("self accepted = %v, want %v", a.HMRSelfAccepted, tt.self)
			}
			if !slices.Equal(a.HMRAcceptedDeps, tt.accepted) {
				t.Errorf("accepted deps = %v, want %v", a.HMRAcceptedDeps, tt.accepted)
			}
		})
	}
}

func TestAnalyzeScriptComments(t *testing.T) {
	src := "import a from './a.js'; // trailing\n/* lead */\nexport const x = a;\n"
	a, err := loader.AnalyzeScript([]byte(src), false)
	if err != nil {
		t.Fatal(err)
	}

	if len(a.Comments.Trailing) != 1 {
		t.Fatalf("trailing = %+v, want one item", a.Comments.Trailing)
	}
	trailing := a.Comments.Trailing[0]
	if trailing.BytePos != uint32(len("import a from './a.js';")) {
		t.Errorf("trailing pos = %d", trailing.BytePos)
	}
	if got := trailing.Comments[0]; got.Block || got.Text != " trailing" {
		t.Errorf("trailing comment = %+v", got)
	}

	if len(a.Comments.Leading) != 1 {
		t.Fatalf("leading = %+v, want one item", a.Comments.Leading)
	}
	leading := a.Comments.Leading[0]
	if want := uint32(len("import a from './a.js'; // trailing\n/* lead */\n")); leading.BytePos != want {
		t.Errorf("leading pos = %d, want %d", leading.BytePos, want)
	}
	if got := leading.Comments[0]; !got.Block || got.Text != " lead " {
		t.Errorf("leading comment = %+v", got)
	}
}

func TestAnalyzeScriptTopLevelAwait(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"declaration", "const data = await fetch('/data.json');", true},
		{"statement", "await init();", true},
		{"inside function", "async function f() { await init(); }", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := loader.AnalyzeScript([]byte(tt.src), false)
			if err != nil {
				t.Fatal(err)
			}
			if a.IsAsync != tt.want {
				t.Errorf("async = %v, want %v", a.IsAsync, tt.want)
			}
		})
	}
}

func TestAnalyzeScriptTSX(t *testing.T) {
	src := "import { h } from './h.ts';\nexport const App = () => <div class=\"app\" />;\n"
	a, err := loader.AnalyzeScript([]byte(src), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Imports) != 1 || a.Imports[0].Specifier != "./h.ts" {
		t.Errorf("imports = %+v", a.Imports)
	}
}

func TestAnalyzeCSS(t *testing.T) {
	src := `/* @import "commented.css"; */
@import url("theme.css");
@import './base.css';
.logo { background: url( ./img/logo.png ); }
.inline { background: url(data:image/png;base64,AAAA); }
.remote { background: url('https://example.com/bg.png'); }
.filter { filter: url(#blur); }
`
	got := loader.AnalyzeCSS([]byte(src))
	want := []loader.Import{
		{Specifier: "theme.css", Kind: module.ResolveCSSAtImport, Order: 0},
		{Specifier: "./base.css", Kind: module.ResolveCSSAtImport, Order: 1},
		{Specifier: "./img/logo.png", Kind: module.ResolveCSSURL, Order: 2},
	}
	if !slices.Equal(got, want) {
		t.Errorf("imports:\ngot  %+v\nwant %+v", got, want)
	}
}

func newProject() *mapfs.MapFileSystem {
	mfs := mapfs.New()
	mfs.AddFile("/project/src/main.js", `import { a } from './a.js';
import './style.css';
import 'lit';
import 'https://cdn.example.com/x.js';
const lazy = () => import('./lazy.js');
`, 0644)
	mfs.AddFile("/project/src/a.js", "export const a = 1;\nimport.meta.hot.accept();\n", 0644)
	mfs.AddFile("/project/src/lazy.js", "export default 1;\n", 0644)
	mfs.AddFile("/project/src/style.css", "@import './base.css';\nbody { background: url(./bg.png); }\n", 0644)
	mfs.AddFile("/project/src/base.css", "html { margin: 0 }\n", 0644)
	mfs.AddFile("/project/src/bg.png", "PNG", 0644)
	mfs.AddFile("/project/node_modules/lit/package.json", `{"name": "lit", "exports": "./index.js"}`, 0644)
	mfs.AddFile("/project/node_modules/lit/index.js", "export const html = 1;\n", 0644)
	return mfs
}

func newLoader(mfs *mapfs.MapFileSystem) *loader.Loader {
	r := resolve.New(mfs, resolve.Options{Root: "/project"}, nil)
	return loader.New(mfs, "/project", r)
}

func id(p string) module.ID { return module.NewID(p, "") }

func TestLoad(t *testing.T) {
	g, err := newLoader(newProject()).Load(context.Background(), map[string]string{"main": "src/main.js"})
	if err != nil {
		t.Fatal(err)
	}

	wantIDs := []module.ID{
		id("https://cdn.example.com/x.js"),
		id("node_modules/lit/index.js"),
		id("src/a.js"),
		id("src/base.css"),
		id("src/bg.png"),
		id("src/lazy.js"),
		id("src/main.js"),
		id("src/style.css"),
	}
	got := g.IDs()
	module.SortIDs(got)
	if !slices.Equal(got, wantIDs) {
		t.Fatalf("ids:\ngot  %v\nwant %v", got, wantIDs)
	}

	if entry, ok := g.EntryByName("main"); !ok || entry != id("src/main.js") {
		t.Errorf("entry main = %v, %v", entry, ok)
	}

	main := g.Module(id("src/main.js"))
	if main.ContentHash == 0 || main.Content == "" {
		t.Error("main.js content not loaded")
	}
	if main.Script == nil || main.Script.System != module.EsModule {
		t.Errorf("main.js script meta = %+v", main.Script)
	}

	if edge, ok := g.EdgeInfo(id("src/main.js"), id("src/lazy.js")); !ok || !edge.IsDynamic() {
		t.Errorf("main.js -> lazy.js edge = %+v, %v", edge, ok)
	}
	if edge, ok := g.EdgeInfo(id("src/main.js"), id("src/a.js")); !ok || edge.IsDynamic() {
		t.Errorf("main.js -> a.js edge = %+v, %v", edge, ok)
	}
	if !g.HasEdge(id("src/style.css"), id("src/base.css")) || !g.HasEdge(id("src/style.css"), id("src/bg.png")) {
		t.Error("stylesheet dependencies missing")
	}

	if m := g.Module(id("src/a.js")); !m.Script.HMRSelfAccepted {
		t.Error("a.js should be self-accepting")
	}
	if m := g.Module(id("node_modules/lit/index.js")); !m.Immutable || m.External {
		t.Errorf("lit: immutable=%v external=%v", m.Immutable, m.External)
	}
	if m := g.Module(id("https://cdn.example.com/x.js")); !m.External || m.Content != "" {
		t.Errorf("remote module should be external and unloaded: %+v", m)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("unresolvable import", func(t *testing.T) {
		mfs := newProject()
		mfs.AddFile("/project/src/a.js", "import './missing.js';\n", 0644)
		_, err := newLoader(mfs).Load(context.Background(), map[string]string{"main": "src/main.js"})
		if !errors.Is(err, resolve.ErrUnresolved) {
			t.Errorf("err = %v, want ErrUnresolved", err)
		}
	})

	t.Run("missing entry", func(t *testing.T) {
		_, err := newLoader(newProject()).Load(context.Background(), map[string]string{"main": "src/nope.js"})
		if !errors.Is(err, resolve.ErrUnresolved) {
			t.Errorf("err = %v, want ErrUnresolved", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newLoader(newProject()).Load(ctx, map[string]string{"main": "src/main.js"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

func TestLoadModules(t *testing.T) {
	mfs := newProject()
	l := newLoader(mfs)
	full, err := l.Load(context.Background(), map[string]string{"main": "src/main.js"})
	if err != nil {
		t.Fatal(err)
	}

	mfs.AddFile("/project/src/a.js", "import './style.css';\nimport './new.js';\nexport const a = 2;\nimport.meta.hot.accept('./new.js');\n", 0644)
	mfs.AddFile("/project/src/new.js", "import './fresh.js';\n", 0644)
	mfs.AddFile("/project/src/fresh.js", "export {};\n", 0644)

	g, err := l.LoadModules(context.Background(), []module.ID{id("src/a.js")}, full.HasModule)
	if err != nil {
		t.Fatal(err)
	}

	wantIDs := []module.ID{id("src/a.js"), id("src/fresh.js"), id("src/new.js"), id("src/style.css")}
	got := g.IDs()
	module.SortIDs(got)
	if !slices.Equal(got, wantIDs) {
		t.Fatalf("ids:\ngot  %v\nwant %v", got, wantIDs)
	}

	a := g.Module(id("src/a.js"))
	if a.ContentHash == full.Module(id("src/a.js")).ContentHash {
		t.Error("a.js was not reloaded")
	}
	if a.Script.HMRSelfAccepted {
		t.Error("a.js accepts a dependency, not itself")
	}
	if _, ok := a.Script.HMRAcceptedDeps[id("src/new.js")]; !ok {
		t.Errorf("accepted deps = %v", a.Script.HMRAcceptedDeps)
	}
	if g.Module(id("src/style.css")).Content != "" {
		t.Error("known dependency should be a placeholder")
	}
	if g.Module(id("src/fresh.js")).Content == "" {
		t.Error("new transitive dependency should be loaded")
	}
	if len(g.EntryIDs()) != 0 {
		t.Errorf("update graph should have no entries: %v", g.EntryIDs())
	}
}
