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

// Package output writes emitted resources and the build manifest to the
// output directory, and prints command output.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"path/filepath"
	"slices"

	potterfs "bennypowers.dev/potter/fs"
	"bennypowers.dev/potter/resource"
)

// ManifestName is the file name of the manifest in the output directory.
const ManifestName = "manifest.json"

// Manifest describes the contents of the output directory.
type Manifest struct {
	// Entries maps entry names to the resources loading them.
	Entries   map[string][]string `json:"entries"`
	Resources []ManifestResource  `json:"resources"`
}

// ManifestResource is one emitted file.
type ManifestResource struct {
	Name   string          `json:"name"`
	Type   resource.Type   `json:"type"`
	Origin resource.Origin `json:"origin"`
	Size   int             `json:"size"`
}

// Writer mirrors a resource store into a directory. Files of resources that
// left the store since the previous Write are deleted.
type Writer struct {
	fs      potterfs.FileSystem
	dir     string
	written map[string]bool
}

// NewWriter creates a writer for dir.
func NewWriter(fsys potterfs.FileSystem, dir string) *Writer {
	return &Writer{fs: fsys, dir: dir, written: make(map[string]bool)}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write writes every resource not yet emitted, removes stale files and
// rewrites the manifest. Returns the names written, sorted.
func (w *Writer) Write(store *resource.Store, entries map[string][]string) ([]string, error) {
	if err := w.fs.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	all := store.All()
	live := make(map[string]bool, len(all))
	manifest := Manifest{Entries: entries, Resources: make([]ManifestResource, 0, len(all))}
	var written []string
	for _, r := range all {
		live[r.Name] = true
		manifest.Resources = append(manifest.Resources, ManifestResource{
			Name:   r.Name,
			Type:   r.Type,
			Origin: r.Origin,
			Size:   len(r.Bytes),
		})
		if r.Emitted && w.written[r.Name] {
			continue
		}
		if err := w.WriteFile(r.Name, r.Bytes); err != nil {
			return written, err
		}
		r.Emitted = true
		w.written[r.Name] = true
		written = append(written, r.Name)
	}

	var errs []error
	for _, name := range slices.Sorted(maps.Keys(w.written)) {
		if live[name] {
			continue
		}
		delete(w.written, name)
		if err := w.fs.Remove(filepath.Join(w.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing stale %s: %w", name, err))
		}
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return written, err
	}
	if err := w.WriteFile(ManifestName, append(data, '\n')); err != nil {
		errs = append(errs, err)
	}
	return written, errors.Join(errs...)
}

// WriteFile writes a file into the output directory.
func (w *Writer) WriteFile(name string, data []byte) error {
	path := filepath.Join(w.dir, filepath.FromSlash(name))
	if err := w.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := w.fs.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// Text writes text to the file at path, or to stdout when path is empty.
func Text(fsys potterfs.FileSystem, stdout io.Writer, path, text string) error {
	if path != "" {
		return fsys.WriteFile(path, []byte(text+"\n"), 0644)
	}
	_, err := fmt.Fprintln(stdout, text)
	return err
}
