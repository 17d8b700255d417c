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

package packagejson_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"bennypowers.dev/potter/packagejson"
)

func TestLRUCache(t *testing.T) {
	cache, err := packagejson.NewCache(2)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := cache.Get("/a/package.json"); ok {
		t.Error("expected a miss on an empty cache")
	}

	load := func(name string) func() (*packagejson.PackageJSON, error) {
		return func() (*packagejson.PackageJSON, error) {
			return &packagejson.PackageJSON{Name: name}, nil
		}
	}

	for _, name := range []string{"a", "b", "c"} {
		if _, err := cache.GetOrLoad("/"+name+"/package.json", load(name)); err != nil {
			t.Fatal(err)
		}
	}
	if cache.Len() != 2 {
		t.Errorf("Len = %d, want 2", cache.Len())
	}
	if _, ok := cache.Get("/a/package.json"); ok {
		t.Error("least recently used entry should be evicted")
	}

	cache.Invalidate("/c/package.json")
	if _, ok := cache.Get("/c/package.json"); ok {
		t.Error("invalidated entry still cached")
	}
}

func TestLRUCacheLoadError(t *testing.T) {
	cache, err := packagejson.NewCache(0)
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	_, err = cache.GetOrLoad("/x/package.json", func() (*packagejson.PackageJSON, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if _, ok := cache.Get("/x/package.json"); ok {
		t.Error("failed loads must not be cached")
	}
}

func TestLRUCacheConcurrentLoad(t *testing.T) {
	cache, err := packagejson.NewCache(0)
	if err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	release := make(chan struct{})
	loader := func() (*packagejson.PackageJSON, error) {
		calls.Add(1)
		<-release
		return &packagejson.PackageJSON{Name: "lit"}, nil
	}

	var wg sync.WaitGroup
	results := make([]*packagejson.PackageJSON, 10)
	for i := range results {
		wg.Go(func() {
			pkg, err := cache.GetOrLoad("/lit/package.json", loader)
			if err != nil {
				t.Error(err)
			}
			results[i] = pkg
		})
	}
	close(release)
	wg.Wait()

	for _, pkg := range results {
		if pkg == nil || pkg.Name != "lit" {
			t.Fatalf("unexpected result %+v", pkg)
		}
	}
	if n := calls.Load(); n < 1 || n > int32(len(results)) {
		t.Errorf("loader called %d times", n)
	}
}
