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

// Package render is the built-in render plugin. Script pots render to a module
// map of wrapped module functions, stylesheet pots to the concatenated CSS,
// html and asset pots to their single module's content.
package render

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tinylib/msgp/msgp"

	"bennypowers.dev/potter/compilation"
	"bennypowers.dev/potter/internal/hash"
	"bennypowers.dev/potter/module"
	"bennypowers.dev/potter/resource"
)

// Name is the plugin name, also the key of its persisted cache.
const Name = "potter:render"

// DefaultMemoSize is the number of wrapped modules kept in memory.
const DefaultMemoSize = 4096

// RegistryGlobal is the global object the rendered module maps register into.
const RegistryGlobal = "__POTTER_MODULES__"

type memoKey struct {
	id   string
	hash uint64
}

// Plugin renders resource pots.
type Plugin struct {
	memo *lru.Cache[memoKey, string]
}

// New creates the render plugin with a wrapped-module memo of the given size.
func New(memoSize int) (*Plugin, error) {
	if memoSize <= 0 {
		memoSize = DefaultMemoSize
	}
	memo, err := lru.New[memoKey, string](memoSize)
	if err != nil {
		return nil, fmt.Errorf("creating render memo: %w", err)
	}
	return &Plugin{memo: memo}, nil
}

func (p *Plugin) Name() string { return Name }

// RenderResourcePot renders a pot of the module graph.
func (p *Plugin) RenderResourcePot(_ context.Context, c *compilation.Context, pot *resource.Pot) (*compilation.RenderResult, error) {
	modules, err := p.collect(c, pot)
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		return nil, nil
	}

	switch pot.Type.Kind {
	case resource.PotJs, resource.PotRuntime:
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "(function (modules) {\n")
		fmt.Fprintf(&buf, "  var registry = globalThis.%s || (globalThis.%s = {});\n", RegistryGlobal, RegistryGlobal)
		fmt.Fprintf(&buf, "  for (var id in modules) registry[id] = modules[id];\n")
		fmt.Fprintf(&buf, "})(%s);\n", p.moduleMap(modules))
		return &compilation.RenderResult{Content: buf.Bytes()}, nil

	case resource.PotCss:
		var buf bytes.Buffer
		for _, m := range modules {
			fmt.Fprintf(&buf, "/* %s */\n%s\n", m.ID, strings.TrimRight(m.Content, "\n"))
		}
		return &compilation.RenderResult{Content: buf.Bytes()}, nil

	case resource.PotHtml:
		return &compilation.RenderResult{Content: []byte(modules[0].Content)}, nil

	case resource.PotAsset:
		typ := resource.Asset(strings.TrimPrefix(path.Ext(modules[0].ID.Path), "."))
		return &compilation.RenderResult{Content: []byte(modules[0].Content), Type: &typ}, nil

	case resource.PotCustom:
		return nil, nil

	default:
		return nil, nil
	}
}

// RenderUpdateResourcePot renders an HMR update pot as a bare module map.
func (p *Plugin) RenderUpdateResourcePot(_ context.Context, c *compilation.Context, pot *resource.Pot) (*compilation.RenderResult, error) {
	modules, err := p.collect(c, pot)
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		return nil, nil
	}
	return &compilation.RenderResult{Content: []byte(p.moduleMap(modules))}, nil
}

// collect snapshots the pot's modules in execution order.
func (p *Plugin) collect(c *compilation.Context, pot *resource.Pot) ([]module.Module, error) {
	ids := pot.Modules()
	var modules []module.Module
	err := c.ReadGraph(func(g *module.Graph) error {
		g.SortByExecutionOrder(ids)
		for _, id := range ids {
			m := g.Module(id)
			if m == nil {
				return fmt.Errorf("pot %s: %s: %w", pot.ID, id, module.ErrModuleNotFound)
			}
			modules = append(modules, *m)
		}
		return nil
	})
	return modules, err
}

func (p *Plugin) moduleMap(modules []module.Module) string {
	var b strings.Builder
	b.WriteString("{\n")
	for _, m := range modules {
		if m.Type.IsCSS() {
			continue
		}
		b.WriteString(p.wrap(m))
	}
	b.WriteString("}")
	return b.String()
}

// wrap renders one module map entry, memoized by id and content hash.
func (p *Plugin) wrap(m module.Module) string {
	h := m.ContentHash
	if h == 0 {
		h = hash.String(m.Content)
	}
	key := memoKey{id: m.ID.String(), hash: h}
	if code, ok := p.memo.Get(key); ok {
		return code
	}

	code := strconv.Quote(key.id) + ": function(module, exports, require) {\n" +
		strings.TrimRight(m.Content, "\n") + "\n},\n"
	p.memo.Add(key, code)
	return code
}

// WritePluginCache serializes the memo as a msgpack array of
// [id, hash, code] triples.
func (p *Plugin) WritePluginCache(context.Context, *compilation.Context) ([]byte, error) {
	keys := p.memo.Keys()
	b := msgp.AppendArrayHeader(nil, uint32(len(keys)))
	for _, key := range keys {
		code, ok := p.memo.Peek(key)
		if !ok {
			code = ""
		}
		b = msgp.AppendArrayHeader(b, 3)
		b = msgp.AppendString(b, key.id)
		b = msgp.AppendUint64(b, key.hash)
		b = msgp.AppendString(b, code)
	}
	return b, nil
}

// ReadPluginCache restores a memo written by WritePluginCache.
func (p *Plugin) ReadPluginCache(_ context.Context, _ *compilation.Context, data []byte) error {
	n, rest, err := msgp.ReadArrayHeaderBytes(data)
	if err != nil {
		return fmt.Errorf("reading render cache: %w", err)
	}
	for range n {
		var (
			fields uint32
			key    memoKey
			code   string
		)
		if fields, rest, err = msgp.ReadArrayHeaderBytes(rest); err != nil {
			return fmt.Errorf("reading render cache: %w", err)
		}
		if fields != 3 {
			return fmt.Errorf("reading render cache: entry has %d fields, want 3", fields)
		}
		if key.id, rest, err = msgp.ReadStringBytes(rest); err != nil {
			return fmt.Errorf("reading render cache: %w", err)
		}
		if key.hash, rest, err = msgp.ReadUint64Bytes(rest); err != nil {
			return fmt.Errorf("reading render cache: %w", err)
		}
		if code, rest, err = msgp.ReadStringBytes(rest); err != nil {
			return fmt.Errorf("reading render cache: %w", err)
		}
		p.memo.Add(key, code)
	}
	return nil
}

// MemoLen returns the number of memoized modules.
func (p *Plugin) MemoLen() int {
	return p.memo.Len()
}
