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

package resolve

import (
	"path/filepath"

	"bennypowers.dev/potter/fs"
)

// rootMarkers are files that mark a project root, in priority order.
var rootMarkers = []string{
	"potter.config.yaml",
	"potter.config.yml",
	"potter.config.json",
	"potter.config.toml",
	"package.json",
	".git",
}

// FindRoot walks up the directory tree from startDir to the first directory
// holding a potter config, a package.json or a .git directory. Returns
// startDir if none is found.
func FindRoot(fsys fs.FileSystem, startDir string) string {
	dir := startDir
	for {
		for _, marker := range rootMarkers {
			if fsys.Exists(filepath.Join(dir, marker)) {
				return dir
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}
