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
	"context"
	"errors"
	"fmt"

	"bennypowers.dev/potter/resource"
)

// Plugin is anything registered with the plugin driver. Hooks are optional:
// a plugin takes part in a hook by implementing its interface.
type Plugin interface {
	Name() string
}

// RenderResult is the output of rendering a resource pot.
type RenderResult struct {
	Content []byte
	// SourceMap is optional.
	SourceMap []byte
	// Type overrides the resource type derived from the pot type.
	Type *resource.Type
}

// ResourcePotRenderer renders a pot into resource content. Returning a nil
// result passes the pot to the next renderer.
type ResourcePotRenderer interface {
	Plugin
	RenderResourcePot(ctx context.Context, c *Context, pot *resource.Pot) (*RenderResult, error)
}

// UpdateResourcePotRenderer renders the scratch pots of an HMR update.
type UpdateResourcePotRenderer interface {
	Plugin
	RenderUpdateResourcePot(ctx context.Context, c *Context, pot *resource.Pot) (*RenderResult, error)
}

// ResourcePotsProcessor post-processes freshly regrouped pots before they are
// rendered.
type ResourcePotsProcessor interface {
	Plugin
	ProcessResourcePots(ctx context.Context, c *Context, pots []*resource.Pot) error
}

// PluginCacheWriter returns the plugin's state to persist between runs.
type PluginCacheWriter interface {
	Plugin
	WritePluginCache(ctx context.Context, c *Context) ([]byte, error)
}

// PluginCacheReader restores state written by PluginCacheWriter.
type PluginCacheReader interface {
	Plugin
	ReadPluginCache(ctx context.Context, c *Context, data []byte) error
}

// PluginDriver calls the hooks of the registered plugins in order.
type PluginDriver struct {
	plugins []Plugin
}

// NewPluginDriver creates a driver for the given plugins.
func NewPluginDriver(plugins ...Plugin) *PluginDriver {
	return &PluginDriver{plugins: plugins}
}

// Plugins returns the registered plugins.
func (d *PluginDriver) Plugins() []Plugin {
	return d.plugins
}

// RenderResourcePot returns the first non-nil render result.
func (d *PluginDriver) RenderResourcePot(ctx context.Context, c *Context, pot *resource.Pot) (*RenderResult, error) {
	for _, p := range d.plugins {
		r, ok := p.(ResourcePotRenderer)
		if !ok {
			continue
		}
		result, err := r.RenderResourcePot(ctx, c, pot)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// RenderUpdateResourcePot returns the first non-nil update render result.
func (d *PluginDriver) RenderUpdateResourcePot(ctx context.Context, c *Context, pot *resource.Pot) (*RenderResult, error) {
	for _, p := range d.plugins {
		r, ok := p.(UpdateResourcePotRenderer)
		if !ok {
			continue
		}
		result, err := r.RenderUpdateResourcePot(ctx, c, pot)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// ProcessResourcePots runs every processor in order, stopping at the first error.
func (d *PluginDriver) ProcessResourcePots(ctx context.Context, c *Context, pots []*resource.Pot) error {
	for _, p := range d.plugins {
		proc, ok := p.(ResourcePotsProcessor)
		if !ok {
			continue
		}
		if err := proc.ProcessResourcePots(ctx, c, pots); err != nil {
			return fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
	}
	return nil
}

// WritePluginCache collects the cache of every writer, keyed by plugin name.
// Writers that fail are skipped and their errors joined.
func (d *PluginDriver) WritePluginCache(ctx context.Context, c *Context) (map[string][]byte, error) {
	caches := make(map[string][]byte)
	var errs []error
	for _, p := range d.plugins {
		w, ok := p.(PluginCacheWriter)
		if !ok {
			continue
		}
		data, err := w.WritePluginCache(ctx, c)
		if err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", p.Name(), err))
			continue
		}
		if data != nil {
			caches[p.Name()] = data
		}
	}
	return caches, errors.Join(errs...)
}

// ReadPluginCache hands each reader the cache stored under its name.
func (d *PluginDriver) ReadPluginCache(ctx context.Context, c *Context, caches map[string][]byte) error {
	var errs []error
	for _, p := range d.plugins {
		r, ok := p.(PluginCacheReader)
		if !ok {
			continue
		}
		data, ok := caches[p.Name()]
		if !ok {
			continue
		}
		if err := r.ReadPluginCache(ctx, c, data); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
