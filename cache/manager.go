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

package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"bennypowers.dev/potter/compilation"
	potterfs "bennypowers.dev/potter/fs"
	"bennypowers.dev/potter/internal/hash"
	"bennypowers.dev/potter/module"
)

// DefaultItems is the number of module items remembered between writes.
const DefaultItems = 8192

const (
	snapshotFile = "snapshot.bin"
	modulesDir   = "modules"
)

// Manager reads and writes the persistent cache directory.
type Manager struct {
	fs  potterfs.FileSystem
	dir string
	// written remembers the checksum of the item last written per module,
	// so unchanged modules are not rewritten.
	written *lru.Cache[module.ID, uint64]
}

// NewManager creates a cache manager rooted at dir.
func NewManager(fsys potterfs.FileSystem, dir string, items int) (*Manager, error) {
	if items <= 0 {
		items = DefaultItems
	}
	written, err := lru.New[module.ID, uint64](items)
	if err != nil {
		return nil, fmt.Errorf("creating cache item index: %w", err)
	}
	return &Manager{fs: fsys, dir: dir, written: written}, nil
}

// Dir returns the cache directory.
func (m *Manager) Dir() string {
	return m.dir
}

func (m *Manager) modulePath(id module.ID) string {
	return filepath.Join(m.dir, modulesDir, hash.Short([]byte(id.String()), 16)+".bin")
}

// WriteModules writes a cache item for every non-external module whose
// encoding changed since the last write. Returns the number of items written.
func (m *Manager) WriteModules(ctx context.Context, c *compilation.Context) (int, error) {
	type item struct {
		id   module.ID
		data []byte
	}
	var items []item
	err := c.ReadGraph(func(g *module.Graph) error {
		for _, mod := range g.Modules() {
			if mod.External {
				continue
			}
			data, err := EncodeModule(mod)
			if err != nil {
				return err
			}
			items = append(items, item{id: mod.ID, data: data})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := m.fs.MkdirAll(filepath.Join(m.dir, modulesDir), 0o755); err != nil {
		return 0, fmt.Errorf("creating cache directory: %w", err)
	}

	written := 0
	var errs []error
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		sum := hash.Sum64(it.data)
		if prev, ok := m.written.Get(it.id); ok && prev == sum {
			continue
		}
		if err := m.fs.WriteFile(m.modulePath(it.id), it.data, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("writing cache item for %s: %w", it.id, err))
			continue
		}
		m.written.Add(it.id, sum)
		written++
	}
	return written, errors.Join(errs...)
}

// ReadModule reads the cache item of a module. Returns fs.ErrNotExist if no
// item was written for it.
func (m *Manager) ReadModule(id module.ID) (*module.Module, error) {
	data, err := m.fs.ReadFile(m.modulePath(id))
	if err != nil {
		return nil, err
	}
	mod, err := DecodeModule(data)
	if err != nil {
		return nil, fmt.Errorf("reading cache item for %s: %w", id, err)
	}
	if mod.ID != id {
		return nil, fmt.Errorf("reading cache item for %s: %w: belongs to %s", id, ErrMalformedItem, mod.ID)
	}
	return mod, nil
}

// WriteSnapshot writes the compilation state and plugin caches.
func (m *Manager) WriteSnapshot(_ context.Context, c *compilation.Context, pluginCaches map[string][]byte) error {
	s, err := TakeSnapshot(c, pluginCaches)
	if err != nil {
		return fmt.Errorf("taking snapshot: %w", err)
	}
	if err := m.fs.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := potterfs.WriteAtomic(m.fs, filepath.Join(m.dir, snapshotFile), MarshalSnapshot(s), 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot reads the last written snapshot. Returns fs.ErrNotExist if
// there is none.
func (m *Manager) ReadSnapshot() (*Snapshot, error) {
	data, err := m.fs.ReadFile(filepath.Join(m.dir, snapshotFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return UnmarshalSnapshot(data)
}
