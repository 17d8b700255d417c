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

package testutil

import (
	"testing"

	"gopkg.in/yaml.v3"

	"bennypowers.dev/potter/module"
)

// LoadGraph builds a module graph from a YAML module.Document under testdata.
func LoadGraph(t *testing.T, fixturePath string) *module.Graph {
	t.Helper()
	return ParseGraph(t, LoadFixtureFile(t, fixturePath))
}

// ParseGraph builds a module graph from a YAML module.Document.
func ParseGraph(t *testing.T, data []byte) *module.Graph {
	t.Helper()
	var doc module.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Failed to parse graph fixture: %v", err)
	}
	g, err := doc.Graph()
	if err != nil {
		t.Fatalf("Failed to build graph fixture: %v", err)
	}
	return g
}

// GraphYAML renders g as a YAML module.Document, for golden comparisons.
func GraphYAML(t *testing.T, g *module.Graph) []byte {
	t.Helper()
	data, err := yaml.Marshal(g.Document())
	if err != nil {
		t.Fatalf("Failed to render graph: %v", err)
	}
	return data
}
