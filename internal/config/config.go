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

// Package config loads the potter configuration from potter.config.* files,
// environment variables and command-line flags through viper.
package config

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"bennypowers.dev/potter/fs"
	"bennypowers.dev/potter/importmap"
	"bennypowers.dev/potter/packagejson"
	"bennypowers.dev/potter/resolve"
)

// FileName is the config file name without extension. yaml, json and toml
// are supported.
const FileName = "potter.config"

// ErrNoEntries is returned when the configuration names no entry.
var ErrNoEntries = errors.New("no entries configured")

// Config is the resolved configuration of a project.
//
// viper lowercases map keys, so entry and dynamic input names are lowercase.
type Config struct {
	// Root is the absolute project root.
	Root string `mapstructure:"root"`
	// Entries maps entry names to paths relative to Root.
	Entries map[string]string `mapstructure:"entries"`
	// DynamicInputs maps entry names to the scope isolating their subgraph.
	DynamicInputs    map[string]string `mapstructure:"dynamicInputs"`
	Output           Output            `mapstructure:"output"`
	PersistentCache  PersistentCache   `mapstructure:"persistentCache"`
	ImmutableModules []string          `mapstructure:"immutableModules"`
	Externals        []string          `mapstructure:"externals"`
	Conditions       []string          `mapstructure:"conditions"`
	// HTML is an optional page template, relative to Root, that gets the
	// import map and resource tags injected.
	HTML string `mapstructure:"html"`
}

// Output configures emitted files.
type Output struct {
	// Path is the output directory, relative to Root.
	Path              string `mapstructure:"path"`
	ImportMapTemplate string `mapstructure:"importMapTemplate"`
	// ImportMap is an optional import map file merged under the generated one.
	ImportMap string `mapstructure:"importMap"`
}

// PersistentCache configures the on-disk cache.
type PersistentCache struct {
	Enabled bool `mapstructure:"enabled"`
	// Dir is the cache directory, relative to Root.
	Dir string `mapstructure:"dir"`
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("output.path", "dist")
	v.SetDefault("output.importMapTemplate", importmap.DefaultTemplate)
	v.SetDefault("persistentCache.enabled", false)
	v.SetDefault("persistentCache.dir", "node_modules/.potter")
	v.SetDefault("immutableModules", resolve.DefaultImmutable)
	v.SetDefault("conditions", packagejson.DefaultConditions)
}

// Load reads the config file into v and returns the validated configuration.
// The file is the one set with v.SetConfigFile, or potter.config.* in the
// root. A missing file is not an error: flags and defaults may be enough.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	root, err := filepath.Abs(v.GetString("root"))
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}
	if v.GetString("root") == "." {
		// Run from a subdirectory, the nearest marked ancestor is the root.
		root = resolve.FindRoot(fs.NewOSFileSystem(), root)
	}

	if v.ConfigFileUsed() == "" {
		v.SetConfigName(FileName)
		v.AddConfigPath(root)
	}
	v.SetEnvPrefix("potter")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Root = root
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration can drive a build.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Entries) == 0 {
		errs = append(errs, ErrNoEntries)
	}
	for _, name := range slices.Sorted(maps.Keys(c.DynamicInputs)) {
		if _, ok := c.Entries[name]; !ok {
			errs = append(errs, fmt.Errorf("dynamic input %q is not an entry", name))
		}
	}
	if _, err := importmap.ParseTemplate(c.Output.ImportMapTemplate); err != nil {
		errs = append(errs, fmt.Errorf("output.importMapTemplate: %w", err))
	}
	return errors.Join(errs...)
}

// OutputDir returns the absolute output directory.
func (c *Config) OutputDir() string {
	return c.abs(c.Output.Path)
}

// CacheDir returns the absolute persistent cache directory.
func (c *Config) CacheDir() string {
	return c.abs(c.PersistentCache.Dir)
}

// Path returns the absolute form of a path relative to Root.
func (c *Config) Path(rel string) string {
	return c.abs(rel)
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}
