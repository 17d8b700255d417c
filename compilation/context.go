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

// Package compilation holds the state shared by every stage of a build: the
// module graph, the resource pot map and the module group graph behind their
// locks, the resource store, the dynamic input registry and the plugins.
package compilation

import (
	"sync"

	"bennypowers.dev/potter/module"
	"bennypowers.dev/potter/resource"
)

// Logger is an interface for logging messages during compilation.
type Logger interface {
	Warning(format string, args ...any)
	Info(format string, args ...any)
	Debug(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warning(string, ...any) {}
func (nopLogger) Info(string, ...any)    {}
func (nopLogger) Debug(string, ...any)   {}

// Options configures a compilation.
type Options struct {
	// Root is the project root directory.
	Root string
	// PersistentCache enables writing plugin caches and snapshots after
	// each regeneration.
	PersistentCache bool
}

// Context is the shared state of a compilation.
//
// The module graph, pot map and group graph are only reachable through the
// Read*/Write* methods, which run a function while holding the structure's
// lock. Hooks must never be invoked from inside such a function.
type Context struct {
	Options Options

	graphMu sync.RWMutex
	graph   *module.Graph

	potsMu sync.RWMutex
	pots   *resource.PotMap

	groupsMu sync.RWMutex
	groups   *module.GroupGraph

	Resources     *resource.Store
	DynamicInputs *DynamicInputs
	Plugins       *PluginDriver

	logger Logger
}

// NewContext creates a compilation context with empty structures.
func NewContext(opts Options, plugins ...Plugin) *Context {
	return &Context{
		Options:       opts,
		graph:         module.NewGraph(),
		pots:          resource.NewPotMap(),
		groups:        module.NewGroupGraph(),
		Resources:     resource.NewStore(),
		DynamicInputs: NewDynamicInputs(),
		Plugins:       NewPluginDriver(plugins...),
		logger:        nopLogger{},
	}
}

// WithLogger sets the logger for compilation messages.
func (c *Context) WithLogger(logger Logger) *Context {
	if logger == nil {
		logger = nopLogger{}
	}
	c.logger = logger
	return c
}

// Logger returns the context's logger. Never nil.
func (c *Context) Logger() Logger {
	return c.logger
}

// ReadGraph runs fn with the module graph read-locked.
func (c *Context) ReadGraph(fn func(g *module.Graph) error) error {
	c.graphMu.RLock()
	defer c.graphMu.RUnlock()
	return fn(c.graph)
}

// WriteGraph runs fn with the module graph write-locked.
func (c *Context) WriteGraph(fn func(g *module.Graph) error) error {
	c.graphMu.Lock()
	defer c.graphMu.Unlock()
	return fn(c.graph)
}

// ReplaceGraph swaps in a new module graph.
func (c *Context) ReplaceGraph(g *module.Graph) {
	c.graphMu.Lock()
	defer c.graphMu.Unlock()
	c.graph = g
}

// ReadPots runs fn with the resource pot map read-locked.
func (c *Context) ReadPots(fn func(pots *resource.PotMap) error) error {
	c.potsMu.RLock()
	defer c.potsMu.RUnlock()
	return fn(c.pots)
}

// WritePots runs fn with the resource pot map write-locked.
func (c *Context) WritePots(fn func(pots *resource.PotMap) error) error {
	c.potsMu.Lock()
	defer c.potsMu.Unlock()
	return fn(c.pots)
}

// ReadGroups runs fn with the module group graph read-locked.
func (c *Context) ReadGroups(fn func(groups *module.GroupGraph) error) error {
	c.groupsMu.RLock()
	defer c.groupsMu.RUnlock()
	return fn(c.groups)
}

// WriteGroups runs fn with the module group graph write-locked.
func (c *Context) WriteGroups(fn func(groups *module.GroupGraph) error) error {
	c.groupsMu.Lock()
	defer c.groupsMu.Unlock()
	return fn(c.groups)
}

// ReplaceGroups swaps in a new module group graph.
func (c *Context) ReplaceGroups(groups *module.GroupGraph) {
	c.groupsMu.Lock()
	defer c.groupsMu.Unlock()
	c.groups = groups
}
