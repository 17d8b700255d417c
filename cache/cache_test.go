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

package cache_test

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"

	"bennypowers.dev/potter/cache"
	"bennypowers.dev/potter/compilation"
	"bennypowers.dev/potter/internal/mapfs"
	"bennypowers.dev/potter/module"
	"bennypowers.dev/potter/resource"
)

func TestScriptMetaRoundTrip(t *testing.T) {
	meta := &module.ScriptMetaData{
		AST:             []byte{1, 2, 3},
		System:          module.Hybrid,
		HMRSelfAccepted: true,
		HMRAcceptedDeps: map[module.ID]struct{}{
			module.NewID("b.js", ""): {},
			module.NewID("c.js", ""): {},
		},
		Comments: module.Comments{
			Leading: []module.CommentsItem{{
				BytePos:  0,
				Comments: []module.Comment{{Block: true, Text: "* @license MIT "}},
			}},
			Trailing: []module.CommentsItem{{
				BytePos:  42,
				Comments: []module.Comment{{Text: " trailing"}},
			}},
		},
		IsAsync: true,
		Custom: module.CustomMetaDataMap{
			"plugin": cache.RawItem{Data: []byte("opaque")},
		},
	}

	data, err := cache.EncodeScriptMeta(meta)
	require.NoError(t, err)

	got, err := cache.DecodeScriptMeta(data)
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestScriptMetaCustomSystem(t *testing.T) {
	meta := &module.ScriptMetaData{System: module.CustomSystem("amd")}
	data, err := cache.EncodeScriptMeta(meta)
	require.NoError(t, err)

	got, err := cache.DecodeScriptMeta(data)
	require.NoError(t, err)
	assert.Equal(t, module.CustomSystem("amd"), got.System)
	assert.Nil(t, got.HMRAcceptedDeps)
}

func TestDecodeScriptMetaMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"wrong arity", msgp.AppendArrayHeader(nil, 2)},
		{"not an array", msgp.AppendString(nil, "nope")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cache.DecodeScriptMeta(tt.data)
			assert.ErrorIs(t, err, cache.ErrMalformedItem)
		})
	}

	t.Run("trailing bytes", func(t *testing.T) {
		data, err := cache.EncodeScriptMeta(&module.ScriptMetaData{})
		require.NoError(t, err)
		_, err = cache.DecodeScriptMeta(append(data, 0xc0))
		assert.ErrorIs(t, err, cache.ErrMalformedItem)
	})
}

func TestModuleRoundTrip(t *testing.T) {
	m := module.New(module.ID{Path: "src/app.ts", Query: "?inline", Scope: "client"})
	m.Type = m.Type.ToCustom("client")
	m.Content = "export {}"
	m.ContentHash = 1234
	m.Immutable = true
	m.ResourcePot = "not persisted"
	m.Script = &module.ScriptMetaData{System: module.EsModule}

	data, err := cache.EncodeModule(m)
	require.NoError(t, err)

	got, err := cache.DecodeModule(data)
	require.NoError(t, err)

	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Type, got.Type)
	assert.Equal(t, m.Content, got.Content)
	assert.Equal(t, m.ContentHash, got.ContentHash)
	assert.True(t, got.Immutable)
	assert.Empty(t, got.ResourcePot)
	require.NotNil(t, got.Script)
	assert.True(t, got.Script.IsESM())

	scope, ok := got.Type.Custom()
	assert.True(t, ok)
	assert.Equal(t, "client", scope)
}

func newContext(t *testing.T) *compilation.Context {
	t.Helper()
	c := compilation.NewContext(compilation.Options{PersistentCache: true})
	a, b := module.NewID("a.js", ""), module.NewID("b.js", "")
	require.NoError(t, c.WriteGraph(func(g *module.Graph) error {
		ma := module.New(a)
		ma.Content = "import './b.js'"
		ma.ResourcePot = "main_js_00000000"
		g.AddModule(ma)
		mb := module.New(b)
		mb.ResourcePot = "main_js_00000000"
		g.AddModule(mb)
		ext := module.New(module.NewID("lit", ""))
		ext.External = true
		g.AddModule(ext)
		if err := g.AddEdge(a, b, module.NewEdgeInfo("./b.js", module.ResolveImport, 0)); err != nil {
			return err
		}
		return g.SetEntry(a, "main")
	}))
	require.NoError(t, c.WritePots(func(pots *resource.PotMap) error {
		p := resource.NewPot("main_js_00000000", "main", resource.PotTypeJs, false)
		p.AddModule(a)
		p.AddModule(b)
		p.AddResource("main.0123abcd.js")
		pots.Add(p)
		return nil
	}))
	c.Resources.Insert(&resource.Resource{Name: "main.0123abcd.js", Type: resource.Js, Origin: resource.FromPot("main_js_00000000")})
	return c
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := newContext(t)
	s, err := cache.TakeSnapshot(c, map[string][]byte{"potter:render": {0x90}})
	require.NoError(t, err)

	got, err := cache.UnmarshalSnapshot(cache.MarshalSnapshot(s))
	require.NoError(t, err)

	assert.Equal(t, cache.FormatVersion, got.Format)
	assert.Equal(t, s.Modules, got.Modules)
	assert.Equal(t, s.Edges, got.Edges)
	assert.Equal(t, s.Entries, got.Entries)
	assert.Equal(t, s.Pots, got.Pots)
	assert.Equal(t, []string{"main.0123abcd.js"}, got.Resources)
	assert.Equal(t, []byte{0x90}, got.PluginCaches["potter:render"])

	g, err := got.Graph()
	require.NoError(t, err)
	require.NoError(t, g.Validate())
	assert.True(t, g.HasEdge(module.NewID("a.js", ""), module.NewID("b.js", "")))
	assert.True(t, g.IsEntry(module.NewID("a.js", "")))

	pots := got.PotMap()
	require.True(t, pots.Has("main_js_00000000"))
	assert.Equal(t, []string{"main.0123abcd.js"}, pots.Get("main_js_00000000").Resources())
}

func TestSnapshotRejectsCorruption(t *testing.T) {
	s, err := cache.TakeSnapshot(newContext(t), nil)
	require.NoError(t, err)
	data := cache.MarshalSnapshot(s)

	// Flip a byte inside the payload.
	data[len(data)-2] ^= 0xff
	_, err = cache.UnmarshalSnapshot(data)
	assert.ErrorIs(t, err, cache.ErrCorruptSnapshot)
}

func TestSnapshotRejectsIncompatibleFormat(t *testing.T) {
	for _, format := range []string{"2.0.0", "0.9.0", "not-a-version"} {
		t.Run(format, func(t *testing.T) {
			s := &cache.Snapshot{Format: format}
			_, err := cache.UnmarshalSnapshot(cache.MarshalSnapshot(s))
			assert.ErrorIs(t, err, cache.ErrIncompatibleSnapshot)
		})
	}

	t.Run("older minor", func(t *testing.T) {
		s := &cache.Snapshot{Format: "1.0.3"}
		_, err := cache.UnmarshalSnapshot(cache.MarshalSnapshot(s))
		assert.NoError(t, err)
	})
}

func TestManagerWriteModules(t *testing.T) {
	mfs := mapfs.New()
	m, err := cache.NewManager(mfs, ".potter/cache", 0)
	require.NoError(t, err)
	c := newContext(t)

	written, err := m.WriteModules(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 2, written, "external modules are not cached")

	written, err = m.WriteModules(context.Background(), c)
	require.NoError(t, err)
	assert.Zero(t, written, "unchanged modules are not rewritten")

	require.NoError(t, c.WriteGraph(func(g *module.Graph) error {
		g.Module(module.NewID("b.js", "")).Content = "export const b = 2"
		return nil
	}))
	written, err = m.WriteModules(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	got, err := m.ReadModule(module.NewID("b.js", ""))
	require.NoError(t, err)
	assert.Equal(t, "export const b = 2", got.Content)

	_, err = m.ReadModule(module.NewID("missing.js", ""))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestManagerSnapshot(t *testing.T) {
	mfs := mapfs.New()
	m, err := cache.NewManager(mfs, ".potter/cache", 0)
	require.NoError(t, err)

	_, err = m.ReadSnapshot()
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, m.WriteSnapshot(context.Background(), newContext(t), map[string][]byte{"x": []byte("y")}))

	s, err := m.ReadSnapshot()
	require.NoError(t, err)
	assert.Len(t, s.Modules, 3)
	assert.Equal(t, []byte("y"), s.PluginCaches["x"])
}
