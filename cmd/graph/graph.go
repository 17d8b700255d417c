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

// Package graph provides the graph command for potter.
package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"bennypowers.dev/potter/compiler"
	"bennypowers.dev/potter/fs"
	"bennypowers.dev/potter/internal/config"
	"bennypowers.dev/potter/internal/logging"
	"bennypowers.dev/potter/internal/output"
	"bennypowers.dev/potter/module"
)

// Cmd is the graph command.
var Cmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the module graph",
	Long: `Graph builds the project and prints the resulting module graph, with scoped
copies of dynamic input modules and the resource pot of every module.`,
	Example: `  # Print the graph as JSON
  potter graph

  # Write the graph as YAML
  potter graph --format yaml --file graph.yaml`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("format", "f", "json", "Output format (json, yaml)")
	Cmd.Flags().String("file", "", "Write the graph to a file (default: stdout)")
}

func run(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("error reading format flag: %w", err)
	}
	if format != "json" && format != "yaml" {
		return fmt.Errorf("invalid format %q: must be 'json' or 'yaml'", format)
	}
	file, err := cmd.Flags().GetString("file")
	if err != nil {
		return fmt.Errorf("error reading file flag: %w", err)
	}

	logger := logging.New(cmd.ErrOrStderr(), viper.GetBool("verbose"))
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	osfs := fs.NewOSFileSystem()
	c, err := compiler.New(cfg, osfs, logger, nil)
	if err != nil {
		return err
	}
	if _, err := c.Build(cmd.Context()); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	var doc module.Document
	_ = c.Context().ReadGraph(func(g *module.Graph) error {
		doc = g.Document()
		return nil
	})

	var out []byte
	switch format {
	case "yaml":
		out, err = yaml.Marshal(doc)
	default:
		out, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("error marshaling graph: %w", err)
	}
	return output.Text(osfs, cmd.OutOrStdout(), file, strings.TrimSuffix(string(out), "\n"))
}
