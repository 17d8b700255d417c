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

package output_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"bennypowers.dev/potter/internal/mapfs"
	"bennypowers.dev/potter/internal/output"
	"bennypowers.dev/potter/resource"
)

func TestWriter(t *testing.T) {
	mfs := mapfs.New()
	w := output.NewWriter(mfs, "/project/dist")
	store := resource.NewStore()
	store.Insert(&resource.Resource{Name: "main.1111.js", Bytes: []byte("js"), Type: resource.Js, Origin: resource.FromPot("main")})
	store.Insert(&resource.Resource{Name: "main.2222.css", Bytes: []byte("css"), Type: resource.Css, Origin: resource.FromPot("main_css")})

	written, err := w.Write(store, map[string][]string{"main": {"main.1111.js", "main.2222.css"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 2 {
		t.Errorf("written = %v", written)
	}
	data, err := mfs.ReadFile("/project/dist/main.1111.js")
	if err != nil || string(data) != "js" {
		t.Errorf("main.1111.js = %q, %v", data, err)
	}

	raw, err := mfs.ReadFile("/project/dist/" + output.ManifestName)
	if err != nil {
		t.Fatal(err)
	}
	var manifest output.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatal(err)
	}
	if len(manifest.Resources) != 2 || manifest.Resources[0].Name != "main.1111.js" || manifest.Resources[0].Size != 2 {
		t.Errorf("manifest resources = %+v", manifest.Resources)
	}
	if manifest.Resources[1].Type != resource.Css || manifest.Resources[1].Origin != resource.FromPot("main_css") {
		t.Errorf("manifest css = %+v", manifest.Resources[1])
	}
	if got := manifest.Entries["main"]; len(got) != 2 {
		t.Errorf("manifest entries = %v", manifest.Entries)
	}

	// A rebuild replaces the script; only it is written and the old file goes.
	store.Remove("main.1111.js")
	store.Insert(&resource.Resource{Name: "main.3333.js", Bytes: []byte("js2"), Type: resource.Js, Origin: resource.FromPot("main")})
	written, err = w.Write(store, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 1 || written[0] != "main.3333.js" {
		t.Errorf("written = %v", written)
	}
	if mfs.Exists("/project/dist/main.1111.js") {
		t.Error("stale resource not removed")
	}
	if !mfs.Exists("/project/dist/main.2222.css") {
		t.Error("unchanged resource removed")
	}
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	mfs := mapfs.New()
	if err := output.Text(mfs, &buf, "", "hello"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "hello\n" {
		t.Errorf("stdout = %q", buf.String())
	}
	if err := output.Text(mfs, &buf, "/out.txt", "file"); err != nil {
		t.Fatal(err)
	}
	if data, _ := mfs.ReadFile("/out.txt"); string(data) != "file\n" {
		t.Errorf("out.txt = %q", data)
	}
}
