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

// Package module provides the module graph: modules, dependency edges,
// module groups and the execution order used by code generation.
package module

import (
	"errors"
	"slices"
	"strings"
)

var (
	// ErrModuleNotFound is returned when a module id is not present in the graph.
	ErrModuleNotFound = errors.New("module not found")
	// ErrEdgeNotFound is returned when an edge between two modules does not exist.
	ErrEdgeNotFound = errors.New("edge not found")
	// ErrModuleExists is returned when inserting or renaming onto an occupied id.
	ErrModuleExists = errors.New("module already exists")
)

// ID identifies a module in the graph.
// Two ids are equal iff Path, Query and Scope all match, so ids can be used
// directly as map keys.
type ID struct {
	// Path is the canonical path of the source file, relative to the project root.
	Path string
	// Query is the query string including its leading "?", or empty.
	Query string
	// Scope is the dynamic input scope this copy of the module belongs to.
	Scope string
}

// NewID creates an unscoped id from a path and an optional query.
func NewID(path, query string) ID {
	return ID{Path: path, Query: query}
}

// ParseID splits a raw id such as "src/a.js?raw" into path and query.
// Scope suffixes cannot be recovered from a string and are treated as part of the path.
func ParseID(raw string) ID {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return ID{Path: raw[:i], Query: raw[i:]}
	}
	return ID{Path: raw}
}

// RelativePath returns the path including any scope suffix.
func (id ID) RelativePath() string {
	if id.Scope == "" {
		return id.Path
	}
	return id.Path + "." + id.Scope
}

// String renders the id as path[.scope]query.
func (id ID) String() string {
	return id.RelativePath() + id.Query
}

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Scoped returns the id this module takes when copied into scope.
// An id already carrying scope as its innermost scope is returned unchanged.
func (id ID) Scoped(scope string) ID {
	if id.Scope == scope || strings.HasSuffix(id.Scope, "."+scope) {
		return id
	}
	return ID{Path: id.Path, Query: id.Query, Scope: joinScope(id.Scope, scope)}
}

// Unscoped returns the id of the original module a scoped copy was made from.
func (id ID) Unscoped() ID {
	return ID{Path: id.Path, Query: id.Query}
}

// MarshalText implements encoding.TextMarshaler so ids can be JSON map keys.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// joinScope nests scopes so that a module scoped twice renders as path.s1.s2.
func joinScope(existing, scope string) string {
	if existing == "" {
		return scope
	}
	return existing + "." + scope
}

// SortIDs orders ids by their string form.
func SortIDs(ids []ID) {
	slices.SortFunc(ids, func(a, b ID) int {
		return strings.Compare(a.String(), b.String())
	})
}
