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

// Package cache persists compilation state between runs: binary cache items
// for modules and their script metadata, and a checksummed snapshot of the
// module graph, resource pots and plugin caches.
package cache

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/tinylib/msgp/msgp"

	"bennypowers.dev/potter/module"
)

// ErrMalformedItem is returned when a cache item cannot be decoded.
var ErrMalformedItem = errors.New("malformed cache item")

// RawItem is custom metadata restored from a cache item. The owning plugin
// decodes Data into its own type.
type RawItem struct {
	Data []byte
}

func (r RawItem) MarshalCacheItem() ([]byte, error) {
	return slices.Clone(r.Data), nil
}

func (r RawItem) UnmarshalCacheItem(data []byte) (module.CustomMetaData, error) {
	return RawItem{Data: slices.Clone(data)}, nil
}

// EncodeScriptMeta serializes script metadata as a msgpack array of
// [ast, system, selfAccepted, acceptedDeps, leading, trailing, isAsync, custom].
func EncodeScriptMeta(s *module.ScriptMetaData) ([]byte, error) {
	return appendScriptMeta(nil, s)
}

// DecodeScriptMeta is the inverse of EncodeScriptMeta.
func DecodeScriptMeta(data []byte) (*module.ScriptMetaData, error) {
	s, rest, err := readScriptMeta(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedItem, len(rest))
	}
	return s, nil
}

func appendScriptMeta(b []byte, s *module.ScriptMetaData) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 8)
	b = msgp.AppendBytes(b, s.AST)
	b = msgp.AppendString(b, s.System.String())
	b = msgp.AppendBool(b, s.HMRSelfAccepted)

	deps := s.AcceptedDeps()
	b = msgp.AppendArrayHeader(b, uint32(len(deps)))
	for _, id := range deps {
		b = appendID(b, id)
	}

	b = appendComments(b, s.Comments.Leading)
	b = appendComments(b, s.Comments.Trailing)
	b = msgp.AppendBool(b, s.IsAsync)

	keys := slices.Sorted(maps.Keys(s.Custom))
	b = msgp.AppendMapHeader(b, uint32(len(keys)))
	for _, key := range keys {
		data, err := s.Custom[key].MarshalCacheItem()
		if err != nil {
			return nil, fmt.Errorf("serializing custom metadata %q: %w", key, err)
		}
		b = msgp.AppendString(b, key)
		b = msgp.AppendBytes(b, data)
	}
	return b, nil
}

func readScriptMeta(b []byte) (*module.ScriptMetaData, []byte, error) {
	if err := expectArray(&b, 8); err != nil {
		return nil, nil, err
	}
	s := &module.ScriptMetaData{}
	var (
		system string
		err    error
	)
	if s.AST, b, err = msgp.ReadBytesBytes(b, nil); err != nil {
		return nil, nil, malformed("ast", err)
	}
	if len(s.AST) == 0 {
		s.AST = nil
	}
	if system, b, err = msgp.ReadStringBytes(b); err != nil {
		return nil, nil, malformed("module system", err)
	}
	s.System = module.ParseSystem(system)
	if s.HMRSelfAccepted, b, err = msgp.ReadBoolBytes(b); err != nil {
		return nil, nil, malformed("self accepted", err)
	}

	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, nil, malformed("accepted deps", err)
	}
	if n > 0 {
		s.HMRAcceptedDeps = make(map[module.ID]struct{}, n)
	}
	for range n {
		var id module.ID
		if id, b, err = readID(b); err != nil {
			return nil, nil, err
		}
		s.HMRAcceptedDeps[id] = struct{}{}
	}

	if s.Comments.Leading, b, err = readComments(b); err != nil {
		return nil, nil, err
	}
	if s.Comments.Trailing, b, err = readComments(b); err != nil {
		return nil, nil, err
	}
	if s.IsAsync, b, err = msgp.ReadBoolBytes(b); err != nil {
		return nil, nil, malformed("is async", err)
	}

	n, b, err = msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, nil, malformed("custom metadata", err)
	}
	if n > 0 {
		s.Custom = make(module.CustomMetaDataMap, n)
	}
	for range n {
		var (
			key  string
			data []byte
		)
		if key, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, nil, malformed("custom metadata key", err)
		}
		if data, b, err = msgp.ReadBytesBytes(b, nil); err != nil {
			return nil, nil, malformed("custom metadata "+key, err)
		}
		s.Custom[key] = RawItem{Data: data}
	}
	return s, b, nil
}

func appendComments(b []byte, items []module.CommentsItem) []byte {
	b = msgp.AppendArrayHeader(b, uint32(len(items)))
	for _, item := range items {
		b = msgp.AppendArrayHeader(b, 2)
		b = msgp.AppendUint32(b, item.BytePos)
		b = msgp.AppendArrayHeader(b, uint32(len(item.Comments)))
		for _, c := range item.Comments {
			b = msgp.AppendArrayHeader(b, 2)
			b = msgp.AppendBool(b, c.Block)
			b = msgp.AppendString(b, c.Text)
		}
	}
	return b
}

func readComments(b []byte) ([]module.CommentsItem, []byte, error) {
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, nil, malformed("comments", err)
	}
	if n == 0 {
		return nil, b, nil
	}
	items := make([]module.CommentsItem, 0, n)
	for range n {
		if err := expectArray(&b, 2); err != nil {
			return nil, nil, err
		}
		var item module.CommentsItem
		if item.BytePos, b, err = msgp.ReadUint32Bytes(b); err != nil {
			return nil, nil, malformed("comment position", err)
		}
		var count uint32
		if count, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
			return nil, nil, malformed("comment list", err)
		}
		for range count {
			if err := expectArray(&b, 2); err != nil {
				return nil, nil, err
			}
			var c module.Comment
			if c.Block, b, err = msgp.ReadBoolBytes(b); err != nil {
				return nil, nil, malformed("comment kind", err)
			}
			if c.Text, b, err = msgp.ReadStringBytes(b); err != nil {
				return nil, nil, malformed("comment text", err)
			}
			item.Comments = append(item.Comments, c)
		}
		items = append(items, item)
	}
	return items, b, nil
}

// EncodeModule serializes a module, including its content and script
// metadata. The pot assignment and execution order are not persisted.
func EncodeModule(m *module.Module) ([]byte, error) {
	b := msgp.AppendArrayHeader(nil, 8)
	b = appendID(b, m.ID)
	b = appendType(b, m.Type)
	b = msgp.AppendBool(b, m.External)
	b = msgp.AppendBool(b, m.Immutable)
	b = msgp.AppendString(b, m.Content)
	b = msgp.AppendUint64(b, m.ContentHash)
	if m.Script == nil {
		b = msgp.AppendNil(b)
	} else {
		var err error
		if b, err = appendScriptMeta(b, m.Script); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", m.ID, err)
		}
	}

	keys := slices.Sorted(maps.Keys(m.Custom))
	b = msgp.AppendMapHeader(b, uint32(len(keys)))
	for _, key := range keys {
		data, err := m.Custom[key].MarshalCacheItem()
		if err != nil {
			return nil, fmt.Errorf("encoding %s: custom metadata %q: %w", m.ID, key, err)
		}
		b = msgp.AppendString(b, key)
		b = msgp.AppendBytes(b, data)
	}
	return b, nil
}

// DecodeModule is the inverse of EncodeModule.
func DecodeModule(data []byte) (*module.Module, error) {
	b := data
	if err := expectArray(&b, 8); err != nil {
		return nil, err
	}
	m := &module.Module{}
	var err error
	if m.ID, b, err = readID(b); err != nil {
		return nil, err
	}
	if m.Type, b, err = readType(b); err != nil {
		return nil, err
	}
	if m.External, b, err = msgp.ReadBoolBytes(b); err != nil {
		return nil, malformed("external", err)
	}
	if m.Immutable, b, err = msgp.ReadBoolBytes(b); err != nil {
		return nil, malformed("immutable", err)
	}
	if m.Content, b, err = msgp.ReadStringBytes(b); err != nil {
		return nil, malformed("content", err)
	}
	if m.ContentHash, b, err = msgp.ReadUint64Bytes(b); err != nil {
		return nil, malformed("content hash", err)
	}
	if msgp.IsNil(b) {
		if b, err = msgp.ReadNilBytes(b); err != nil {
			return nil, malformed("script metadata", err)
		}
	} else if m.Script, b, err = readScriptMeta(b); err != nil {
		return nil, err
	}

	n, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, malformed("custom metadata", err)
	}
	if n > 0 {
		m.Custom = make(module.CustomMetaDataMap, n)
	}
	for range n {
		var (
			key   string
			value []byte
		)
		if key, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, malformed("custom metadata key", err)
		}
		if value, b, err = msgp.ReadBytesBytes(b, nil); err != nil {
			return nil, malformed("custom metadata "+key, err)
		}
		m.Custom[key] = RawItem{Data: value}
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedItem, len(b))
	}
	return m, nil
}

func appendID(b []byte, id module.ID) []byte {
	b = msgp.AppendArrayHeader(b, 3)
	b = msgp.AppendString(b, id.Path)
	b = msgp.AppendString(b, id.Query)
	return msgp.AppendString(b, id.Scope)
}

func readID(b []byte) (module.ID, []byte, error) {
	var id module.ID
	if err := expectArray(&b, 3); err != nil {
		return id, nil, err
	}
	var err error
	if id.Path, b, err = msgp.ReadStringBytes(b); err != nil {
		return id, nil, malformed("module id", err)
	}
	if id.Query, b, err = msgp.ReadStringBytes(b); err != nil {
		return id, nil, malformed("module id", err)
	}
	if id.Scope, b, err = msgp.ReadStringBytes(b); err != nil {
		return id, nil, malformed("module id", err)
	}
	return id, b, nil
}

func appendType(b []byte, t module.Type) []byte {
	scope, _ := t.Custom()
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendUint8(b, uint8(t.Kind))
	return msgp.AppendString(b, scope)
}

func readType(b []byte) (module.Type, []byte, error) {
	if err := expectArray(&b, 2); err != nil {
		return module.Type{}, nil, err
	}
	kind, b, err := msgp.ReadUint8Bytes(b)
	if err != nil {
		return module.Type{}, nil, malformed("module type", err)
	}
	scope, b, err := msgp.ReadStringBytes(b)
	if err != nil {
		return module.Type{}, nil, malformed("module type", err)
	}
	t := module.Plain(module.Kind(kind))
	if scope != "" {
		t = t.ToCustom(scope)
	}
	return t, b, nil
}

func expectArray(b *[]byte, want uint32) error {
	n, rest, err := msgp.ReadArrayHeaderBytes(*b)
	if err != nil {
		return malformed("array header", err)
	}
	if n != want {
		return fmt.Errorf("%w: array has %d elements, want %d", ErrMalformedItem, n, want)
	}
	*b = rest
	return nil
}

func malformed(field string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformedItem, field, err)
}
