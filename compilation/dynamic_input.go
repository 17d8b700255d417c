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

package compilation

import (
	"maps"
	"slices"
	"sync"
)

// DynamicInput is an entry added while the compilation is running. A non-empty
// Scope isolates the entry's module subgraph from other entries.
type DynamicInput struct {
	Scope string
}

// DynamicInputs is the registry of dynamic inputs keyed by input name.
// It is safe for concurrent use.
type DynamicInputs struct {
	mu     sync.RWMutex
	inputs map[string]DynamicInput
}

// NewDynamicInputs creates an empty registry.
func NewDynamicInputs() *DynamicInputs {
	return &DynamicInputs{inputs: make(map[string]DynamicInput)}
}

// Set registers or replaces the input called name.
func (d *DynamicInputs) Set(name string, input DynamicInput) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inputs[name] = input
}

// Delete unregisters an input.
func (d *DynamicInputs) Delete(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inputs, name)
}

// Get returns the input called name.
func (d *DynamicInputs) Get(name string) (DynamicInput, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	input, ok := d.inputs[name]
	return input, ok
}

// All returns a copy of the registry.
func (d *DynamicInputs) All() map[string]DynamicInput {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.inputs)
}

// Scoped returns the names of the inputs that carry a scope, sorted.
func (d *DynamicInputs) Scoped() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var names []string
	for name, input := range d.inputs {
		if input.Scope != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}
