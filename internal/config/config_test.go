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

package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/spf13/viper"

	"bennypowers.dev/potter/importmap"
	"bennypowers.dev/potter/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "potter.config.yaml"), `
entries:
  main: src/main.ts
  admin: src/admin.ts
dynamicInputs:
  admin: admin
output:
  path: build
persistentCache:
  enabled: true
externals:
  - react
html: index.html
`)

	v := viper.New()
	v.Set("root", dir)
	cfg, err := config.Load(v)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Root != dir {
		t.Errorf("Root = %q, want %q", cfg.Root, dir)
	}
	if cfg.Entries["main"] != "src/main.ts" || cfg.Entries["admin"] != "src/admin.ts" {
		t.Errorf("Entries = %v", cfg.Entries)
	}
	if cfg.DynamicInputs["admin"] != "admin" {
		t.Errorf("DynamicInputs = %v", cfg.DynamicInputs)
	}
	if got, want := cfg.OutputDir(), filepath.Join(dir, "build"); got != want {
		t.Errorf("OutputDir = %q, want %q", got, want)
	}
	if !cfg.PersistentCache.Enabled {
		t.Error("persistent cache should be enabled")
	}
	if got, want := cfg.CacheDir(), filepath.Join(dir, "node_modules", ".potter"); got != want {
		t.Errorf("CacheDir = %q, want %q", got, want)
	}
	if cfg.Output.ImportMapTemplate != importmap.DefaultTemplate {
		t.Errorf("ImportMapTemplate = %q", cfg.Output.ImportMapTemplate)
	}
	if !slices.Equal(cfg.Externals, []string{"react"}) {
		t.Errorf("Externals = %v", cfg.Externals)
	}
	if !slices.Equal(cfg.ImmutableModules, []string{"**/node_modules/**"}) {
		t.Errorf("ImmutableModules = %v", cfg.ImmutableModules)
	}
	if cfg.HTML != "index.html" {
		t.Errorf("HTML = %q", cfg.HTML)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.json")
	writeFile(t, path, `{"entries": {"main": "app.js"}, "conditions": ["production", "browser"]}`)

	v := viper.New()
	v.Set("root", dir)
	v.SetConfigFile(path)
	cfg, err := config.Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Entries["main"] != "app.js" {
		t.Errorf("Entries = %v", cfg.Entries)
	}
	if !slices.Equal(cfg.Conditions, []string{"production", "browser"}) {
		t.Errorf("Conditions = %v", cfg.Conditions)
	}
}

func TestLoadFlagsWithoutFile(t *testing.T) {
	v := viper.New()
	v.Set("root", t.TempDir())
	v.Set("entries", map[string]string{"main": "index.js"})
	cfg, err := config.Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Entries["main"] != "index.js" {
		t.Errorf("Entries = %v", cfg.Entries)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		is     error
	}{
		{"no entries", "output:\n  path: dist\n", config.ErrNoEntries},
		{"dynamic input without entry", "entries:\n  main: a.js\ndynamicInputs:\n  other: s\n", nil},
		{"bad template", "entries:\n  main: a.js\noutput:\n  importMapTemplate: /x/{bogus}\n", nil},
		{"malformed file", "entries: [", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "potter.config.yaml"), tt.config)
			v := viper.New()
			v.Set("root", dir)
			_, err := config.Load(v)
			if err == nil {
				t.Fatal("want error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("err = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestLoadFindsRootFromSubdirectory(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "potter.config.yaml"), "entries:\n  main: src/main.js\n")
	sub := filepath.Join(dir, "src", "components")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)

	cfg, err := config.Load(viper.New())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Root != dir {
		t.Errorf("Root = %q, want %q", cfg.Root, dir)
	}
	if cfg.Entries["main"] != "src/main.js" {
		t.Errorf("Entries = %v", cfg.Entries)
	}
}
