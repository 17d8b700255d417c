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

// Package build provides the build command for potter.
package build

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/potter/compiler"
	"bennypowers.dev/potter/fs"
	"bennypowers.dev/potter/internal/config"
	"bennypowers.dev/potter/internal/logging"
)

// Cmd is the build command.
var Cmd = &cobra.Command{
	Use:   "build",
	Short: "Build the project into the output directory",
	Long: `Build loads the module graph from the configured entries, renders every
resource pot and writes the resources and manifest.json to the output directory.`,
	Example: `  # Build with potter.config.yaml from the current directory
  potter build

  # Inject the resources into a page and keep a persistent cache
  potter build --html index.html --cache`,
	RunE: run,
}

func init() {
	Cmd.Flags().String("html", "", "HTML page to inject the import map and resources into")
	Cmd.Flags().Bool("cache", false, "Enable the persistent cache")

	_ = viper.BindPFlag("html", Cmd.Flags().Lookup("html"))
	_ = viper.BindPFlag("persistentCache.enabled", Cmd.Flags().Lookup("cache"))
}

func run(cmd *cobra.Command, args []string) error {
	logger := logging.New(cmd.ErrOrStderr(), viper.GetBool("verbose"))
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	c, err := compiler.New(cfg, fs.NewOSFileSystem(), logger, nil)
	if err != nil {
		return err
	}
	written, err := c.Build(cmd.Context())
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	logger.Info("wrote %d files to %s", len(written), cfg.OutputDir())
	return nil
}
