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

// Package testutil loads test fixtures and golden files from testdata.
package testutil

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

var updateGolden = flag.Bool("update", false, "update golden files with actual output")

// locate finds rel under the nearest testdata directory. Tests run in their
// package directory, so the repository's testdata may be one or two levels up.
func locate(rel string) (string, bool) {
	for _, dir := range []string{"testdata", "../testdata", "../../testdata"} {
		p := filepath.Join(dir, rel)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// LoadFixtureFile reads a file relative to testdata.
func LoadFixtureFile(t *testing.T, rel string) []byte {
	t.Helper()
	p, ok := locate(rel)
	if !ok {
		t.Fatalf("fixture %s not found", rel)
	}
	content, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("reading fixture %s: %v", rel, err)
	}
	return content
}

// LoadGoldenFile reads an expected-output file. It returns nil under -update,
// when the caller is about to rewrite it.
func LoadGoldenFile(t *testing.T, rel string) []byte {
	t.Helper()
	if *updateGolden {
		return nil
	}
	return LoadFixtureFile(t, rel)
}

// UpdateGoldenFile replaces a golden file with actual under -update and is a
// no-op otherwise. The file must sit next to an existing fixture directory.
func UpdateGoldenFile(t *testing.T, rel string, actual []byte) {
	t.Helper()
	if !*updateGolden {
		return
	}
	dir, ok := locate(filepath.Dir(rel))
	if !ok {
		t.Fatalf("golden directory for %s not found", rel)
	}
	target := filepath.Join(dir, filepath.Base(rel))
	if err := os.WriteFile(target, actual, 0o644); err != nil {
		t.Fatalf("writing golden file %s: %v", rel, err)
	}
	t.Logf("updated %s", target)
}
