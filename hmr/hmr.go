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

// Package hmr builds the code sent to clients for a hot module update.
package hmr

import (
	"context"
	"fmt"

	"bennypowers.dev/potter/compilation"
	"bennypowers.dev/potter/diff"
	"bennypowers.dev/potter/module"
	"bennypowers.dev/potter/resource"
)

const (
	// ImmutablePotID names the scratch pot holding changed immutable modules.
	ImmutablePotID = "__IMMUTABLE_UPDATE_RESOURCE_POT__"
	// MutablePotID names the scratch pot holding all other changed modules.
	MutablePotID = "__MUTABLE_UPDATE_RESOURCE_POT__"

	// EmptyPayload is the rendered text of a pot with nothing to update.
	EmptyPayload = "{}"
)

// Payload is the rendered update code, split by module immutability.
type Payload struct {
	Immutable string
	Mutable   string
}

// BuildUpdatePayload renders the added modules, then the updated modules,
// into two scratch pots, one for immutable modules and one for the rest.
// External modules are skipped. A pot that renders to nothing yields "{}".
//
// The module graph and the pot map are not modified.
func BuildUpdatePayload(ctx context.Context, c *compilation.Context, updated []module.ID, d *diff.Result) (Payload, error) {
	immutable := resource.NewPot(ImmutablePotID, ImmutablePotID, resource.PotTypeJs, true)
	mutable := resource.NewPot(MutablePotID, MutablePotID, resource.PotTypeJs, false)

	var ids []module.ID
	if d != nil {
		ids = append(ids, d.Added()...)
	}
	ids = append(ids, updated...)

	if err := c.ReadGraph(func(g *module.Graph) error {
		for _, id := range ids {
			m := g.Module(id)
			if m == nil {
				return fmt.Errorf("building update payload: %s: %w", id, module.ErrModuleNotFound)
			}
			if m.External {
				continue
			}
			if m.Immutable {
				immutable.AddModule(id)
			} else {
				mutable.AddModule(id)
			}
		}
		return nil
	}); err != nil {
		return Payload{}, err
	}

	var (
		payload Payload
		err     error
	)
	if payload.Immutable, err = render(ctx, c, immutable); err != nil {
		return Payload{}, err
	}
	if payload.Mutable, err = render(ctx, c, mutable); err != nil {
		return Payload{}, err
	}
	return payload, nil
}

func render(ctx context.Context, c *compilation.Context, pot *resource.Pot) (string, error) {
	result, err := c.Plugins.RenderUpdateResourcePot(ctx, c, pot)
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", pot.ID, err)
	}
	if result == nil || len(result.Content) == 0 {
		return EmptyPayload, nil
	}
	return string(result.Content), nil
}
