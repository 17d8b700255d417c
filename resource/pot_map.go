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
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrPotNotFound is returned when a pot id is not registered.
var ErrPotNotFound = errors.New("resource pot not found")

// PotMap is the registry of resource pots keyed by id. Like the module graph
// it is not synchronized; compilation.Context guards it.
type PotMap struct {
	pots map[string]*Pot
}

// NewPotMap creates an empty pot map.
func NewPotMap() *PotMap {
	return &PotMap{pots: make(map[string]*Pot)}
}

// Add registers a pot, replacing any pot with the same id.
func (m *PotMap) Add(p *Pot) {
	m.pots[p.ID] = p
}

// Get returns the pot with the given id, or nil.
func (m *PotMap) Get(id string) *Pot {
	return m.pots[id]
}

// Has reports whether the pot is registered.
func (m *PotMap) Has(id string) bool {
	_, ok := m.pots[id]
	return ok
}

// Remove unregisters a pot and returns it.
func (m *PotMap) Remove(id string) (*Pot, error) {
	p, ok := m.pots[id]
	if !ok {
		return nil, fmt.Errorf("removing %q: %w", id, ErrPotNotFound)
	}
	delete(m.pots, id)
	return p, nil
}

// Len returns the number of pots.
func (m *PotMap) Len() int {
	return len(m.pots)
}

// IDs returns all pot ids, sorted.
func (m *PotMap) IDs() []string {
	ids := slices.Collect(maps.Keys(m.pots))
	slices.Sort(ids)
	return ids
}

// Pots returns all pots ordered by id.
func (m *PotMap) Pots() []*Pot {
	ids := m.IDs()
	pots := make([]*Pot, len(ids))
	for i, id := range ids {
		pots[i] = m.pots[id]
	}
	return pots
}

// Filter returns the pots whose id is in ids, in the order given.
// Unknown ids are reported as an error after collecting the known ones.
func (m *PotMap) Filter(ids []string) ([]*Pot, error) {
	var (
		pots []*Pot
		errs []error
	)
	for _, id := range ids {
		p, ok := m.pots[id]
		if !ok {
			errs = append(errs, fmt.Errorf("%q: %w", id, ErrPotNotFound))
			continue
		}
		pots = append(pots, p)
	}
	return pots, errors.Join(errs...)
}
