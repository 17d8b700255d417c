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

package packagejson

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of parsed package.json files kept by NewCache.
const DefaultCacheSize = 1024

// Cache provides a caching interface for parsed package.json files.
type Cache interface {
	// Get retrieves a cached package.json by its file path.
	Get(path string) (*PackageJSON, bool)

	// Invalidate removes a cached entry, typically called when a file changes.
	Invalidate(path string)

	// GetOrLoad retrieves from cache or loads using the provided function.
	// Concurrent callers for the same path share one load.
	GetOrLoad(path string, loader func() (*PackageJSON, error)) (*PackageJSON, error)
}

// LRUCache is a bounded, thread-safe Cache.
type LRUCache struct {
	entries *lru.Cache[string, *PackageJSON]
	loads   singleflight.Group
}

// NewCache creates a cache holding at most size package.json files.
func NewCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *PackageJSON](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{entries: entries}, nil
}

// Get retrieves a cached package.json by its file path.
func (c *LRUCache) Get(path string) (*PackageJSON, bool) {
	return c.entries.Get(path)
}

// Invalidate removes a cached entry.
func (c *LRUCache) Invalidate(path string) {
	c.entries.Remove(path)
	c.loads.Forget(path)
}

// Len returns the number of cached files.
func (c *LRUCache) Len() int {
	return c.entries.Len()
}

// GetOrLoad retrieves from cache or runs loader once for all concurrent
// callers of the same path. Failed loads are not cached.
func (c *LRUCache) GetOrLoad(path string, loader func() (*PackageJSON, error)) (*PackageJSON, error) {
	if pkg, ok := c.entries.Get(path); ok {
		return pkg, nil
	}
	v, err, _ := c.loads.Do(path, func() (any, error) {
		pkg, err := loader()
		if err != nil {
			return nil, err
		}
		c.entries.Add(path, pkg)
		return pkg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*PackageJSON), nil
}
