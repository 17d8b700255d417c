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

// Package mapfs provides an in-memory fs.FileSystem for tests.
package mapfs

import (
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	"testing/fstest"
	"time"
)

// keep marks an explicitly created directory.
const keep = ".keep"

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// MapFileSystem is a FileSystem over an fstest.MapFS. Paths are absolute
// slash paths; directories exist implicitly or through a .keep file.
type MapFileSystem struct {
	mu    sync.RWMutex
	files fstest.MapFS
}

// New creates an empty filesystem.
func New() *MapFileSystem {
	return &MapFileSystem{files: make(fstest.MapFS)}
}

// FromMap creates a filesystem holding files, keyed by path.
func FromMap(files map[string]string) *MapFileSystem {
	mfs := New()
	for p, content := range files {
		mfs.AddFile(p, content, 0o644)
	}
	return mfs
}

// AddFile creates or replaces a file.
func (mfs *MapFileSystem) AddFile(name, content string, mode fs.FileMode) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	mfs.put(key(name), []byte(content), mode)
}

func (mfs *MapFileSystem) put(k string, data []byte, mode fs.FileMode) {
	mfs.files[k] = &fstest.MapFile{Data: data, Mode: mode, ModTime: epoch}
}

// WriteFile implements FileSystem.
func (mfs *MapFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	k := key(name)
	if err := mfs.checkParent("open", k); err != nil {
		return err
	}
	mfs.put(k, slices.Clone(data), perm)
	return nil
}

// ReadFile implements FileSystem.
func (mfs *MapFileSystem) ReadFile(name string) ([]byte, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return fs.ReadFile(mfs.files, key(name))
}

// Remove implements FileSystem.
func (mfs *MapFileSystem) Remove(name string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	k := key(name)
	if _, ok := mfs.files[k]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(mfs.files, k)
	return nil
}

// MkdirAll implements FileSystem.
func (mfs *MapFileSystem) MkdirAll(dir string, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	k := key(dir)
	if f, ok := mfs.files[k]; ok && !f.Mode.IsDir() {
		return &fs.PathError{Op: "mkdir", Path: dir, Err: fmt.Errorf("not a directory")}
	}
	mfs.put(path.Join(k, keep), nil, perm.Perm())
	return nil
}

// Rename implements FileSystem. Only files can be renamed.
func (mfs *MapFileSystem) Rename(oldpath, newpath string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	from, to := key(oldpath), key(newpath)
	f, ok := mfs.files[from]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: fs.ErrNotExist}
	}
	if err := mfs.checkParent("rename", to); err != nil {
		return err
	}
	delete(mfs.files, from)
	mfs.files[to] = f
	return nil
}

// Stat implements FileSystem.
func (mfs *MapFileSystem) Stat(name string) (fs.FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return fs.Stat(mfs.files, key(name))
}

// Exists reports whether name is a file or a directory holding files.
func (mfs *MapFileSystem) Exists(name string) bool {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	k := key(name)
	if _, ok := mfs.files[k]; ok {
		return true
	}
	for p := range mfs.files {
		if strings.HasPrefix(p, k+"/") {
			return true
		}
	}
	return false
}

// ReadDir implements FileSystem.
func (mfs *MapFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return fs.ReadDir(mfs.files, key(name))
}

// Open implements FileSystem.
func (mfs *MapFileSystem) Open(name string) (fs.File, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return mfs.files.Open(key(name))
}

// Files returns the absolute paths of all regular files under dir, sorted.
func (mfs *MapFileSystem) Files(dir string) []string {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	prefix := key(dir) + "/"
	if prefix == "./" {
		prefix = ""
	}
	var out []string
	for p := range mfs.files {
		if strings.HasPrefix(p, prefix) && path.Base(p) != keep {
			out = append(out, "/"+p)
		}
	}
	slices.Sort(out)
	return out
}

// key converts an absolute or relative path into an fs.FS name.
func key(p string) string {
	k := strings.TrimPrefix(path.Clean("/"+p), "/")
	if k == "" {
		return "."
	}
	return k
}

func (mfs *MapFileSystem) checkParent(op, k string) error {
	dir := path.Dir(k)
	if dir == "." {
		return nil
	}
	if f, ok := mfs.files[dir]; ok && !f.Mode.IsDir() {
		return &fs.PathError{Op: op, Path: "/" + k, Err: fmt.Errorf("not a directory")}
	}
	return nil
}
