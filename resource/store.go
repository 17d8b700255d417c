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

package resource

import (
	"maps"
	"slices"
	"strings"
	"sync"
)

// Store holds every emitted resource by name.
// It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	resources map[string]*Resource
}

// NewStore creates an empty resource store.
func NewStore() *Store {
	return &Store{resources: make(map[string]*Resource)}
}

// Insert adds or replaces a resource.
func (s *Store) Insert(r *Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[r.Name] = r
}

// Remove deletes a resource, returning it if it existed.
func (s *Store) Remove(name string) *Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.resources[name]
	delete(s.resources, name)
	return r
}

// Get returns the resource with the given name.
func (s *Store) Get(name string) (*Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[name]
	return r, ok
}

// Has reports whether a resource is stored under name.
func (s *Store) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Len returns the number of resources.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.resources)
}

// Names returns all resource names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := slices.Collect(maps.Keys(s.resources))
	slices.Sort(names)
	return names
}

// All returns every resource ordered by name.
func (s *Store) All() []*Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := slices.Collect(maps.Keys(s.resources))
	slices.Sort(names)
	out := make([]*Resource, len(names))
	for i, name := range names {
		out[i] = s.resources[name]
	}
	return out
}

// ByOrigin returns the resources produced by the given origin, ordered by name.
func (s *Store) ByOrigin(origin Origin) []*Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Resource
	for _, r := range s.resources {
		if r.Origin == origin {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b *Resource) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
