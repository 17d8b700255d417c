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

package module

import (
	"fmt"
	"maps"
	"slices"
)

// Module is a node of the module graph.
type Module struct {
	ID   ID
	Type Type

	// External modules are resolved outside the graph and never bundled.
	External bool
	// Immutable modules (vendor code) can be cached long term.
	Immutable bool

	// ResourcePot is the id of the pot currently owning this module.
	// Empty while reassignment is pending.
	ResourcePot string

	// ExecutionOrder is the post-order position assigned by UpdateExecutionOrder.
	ExecutionOrder int

	Content     string
	ContentHash uint64

	// Script is set for script modules once analyzed.
	Script *ScriptMetaData
	// Custom holds plugin specific metadata.
	Custom CustomMetaDataMap
}

// New creates a module with the type detected from its path.
func New(id ID) *Module {
	return &Module{
		ID:   id,
		Type: TypeFromPath(id.Path),
	}
}

// Size returns the content length in bytes.
func (m *Module) Size() int {
	return len(m.Content)
}

// Clone deep-copies the module. Custom metadata entries are copied through a
// serialize/deserialize round trip.
func (m *Module) Clone() (*Module, error) {
	c := *m
	if m.Script != nil {
		script, err := m.Script.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning script metadata of %s: %w", m.ID, err)
		}
		c.Script = script
	}
	custom, err := m.Custom.Clone()
	if err != nil {
		return nil, fmt.Errorf("cloning custom metadata of %s: %w", m.ID, err)
	}
	c.Custom = custom
	return &c, nil
}

// CustomMetaData is plugin owned metadata attached to a module. It must be
// able to serialize itself into a cache item and back.
type CustomMetaData interface {
	MarshalCacheItem() ([]byte, error)
	UnmarshalCacheItem(data []byte) (CustomMetaData, error)
}

// CustomMetaDataMap maps a plugin key to its metadata.
type CustomMetaDataMap map[string]CustomMetaData

// Clone copies every entry through its cache-item round trip.
func (c CustomMetaDataMap) Clone() (CustomMetaDataMap, error) {
	if len(c) == 0 {
		return nil, nil
	}
	out := make(CustomMetaDataMap, len(c))
	for key, value := range c {
		data, err := value.MarshalCacheItem()
		if err != nil {
			return nil, fmt.Errorf("serializing %q: %w", key, err)
		}
		copied, err := value.UnmarshalCacheItem(data)
		if err != nil {
			return nil, fmt.Errorf("deserializing %q: %w", key, err)
		}
		out[key] = copied
	}
	return out, nil
}

// ScriptMetaData holds script specific analysis results.
type ScriptMetaData struct {
	// AST is the parser's serialized syntax tree, opaque to this package.
	AST    []byte
	System System
	// HMRSelfAccepted is true if the module calls import.meta.hot.accept()
	// without dependencies.
	HMRSelfAccepted bool
	HMRAcceptedDeps map[ID]struct{}
	Comments        Comments
	IsAsync         bool
	Custom          CustomMetaDataMap
}

// IsCJS reports whether the module is CommonJS.
func (s *ScriptMetaData) IsCJS() bool { return s.System.Kind == SystemCommonJs }

// IsESM reports whether the module is an ES module.
func (s *ScriptMetaData) IsESM() bool { return s.System.Kind == SystemEsModule }

// IsHybrid reports whether the module mixes both systems.
func (s *ScriptMetaData) IsHybrid() bool { return s.System.Kind == SystemHybrid }

// AcceptedDeps returns the accepted dependency ids in sorted order.
func (s *ScriptMetaData) AcceptedDeps() []ID {
	ids := slices.Collect(maps.Keys(s.HMRAcceptedDeps))
	SortIDs(ids)
	return ids
}

// Clone deep-copies the metadata. IsAsync is reset, matching how a copied
// module is re-analyzed before use.
func (s *ScriptMetaData) Clone() (*ScriptMetaData, error) {
	custom, err := s.Custom.Clone()
	if err != nil {
		return nil, err
	}
	c := &ScriptMetaData{
		AST:             slices.Clone(s.AST),
		System:          s.System,
		HMRSelfAccepted: s.HMRSelfAccepted,
		Comments:        s.Comments.Clone(),
		Custom:          custom,
	}
	if s.HMRAcceptedDeps != nil {
		c.HMRAcceptedDeps = maps.Clone(s.HMRAcceptedDeps)
	}
	return c, nil
}

// Comment is a single source comment.
type Comment struct {
	Block bool
	Text  string
}

// CommentsItem groups the comments attached at one byte offset.
type CommentsItem struct {
	BytePos  uint32
	Comments []Comment
}

// Comments splits a module's comments into leading and trailing tables.
type Comments struct {
	Leading  []CommentsItem
	Trailing []CommentsItem
}

// Clone deep-copies the comment tables.
func (c Comments) Clone() Comments {
	cloneItems := func(items []CommentsItem) []CommentsItem {
		if items == nil {
			return nil
		}
		out := make([]CommentsItem, len(items))
		for i, item := range items {
			out[i] = CommentsItem{BytePos: item.BytePos, Comments: slices.Clone(item.Comments)}
		}
		return out
	}
	return Comments{Leading: cloneItems(c.Leading), Trailing: cloneItems(c.Trailing)}
}

// Len returns the total number of comments in both tables.
func (c Comments) Len() int {
	n := 0
	for _, item := range c.Leading {
		n += len(item.Comments)
	}
	for _, item := range c.Trailing {
		n += len(item.Comments)
	}
	return n
}
