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

// Package inject writes the import map and the tags loading emitted
// resources into an HTML document. The document is edited in place: only the
// inserted tags and the content of an existing import map change.
package inject

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"bennypowers.dev/potter/importmap"
	"bennypowers.dev/potter/resource"
)

// ErrNoInsertPoint is returned for documents with neither </head> nor </body>.
var ErrNoInsertPoint = errors.New("could not find insertion point (no </head> or </body> tag)")

// BasePath prefixes resource names in src and href attributes.
const BasePath = "/"

// location is what scan learns about a document.
type location struct {
	importMap    bool
	contentStart int
	contentEnd   int
	// insert is the offset of </head>, or of </body> when there is no head.
	insert int
	indent string
	// referenced holds existing script src and stylesheet href values.
	referenced map[string]bool
}

// Document returns doc with im and tags for the JS and CSS resources added.
// An existing import map is merged with im, im taking precedence. Resources
// the document already references are skipped, so injecting twice is a no-op.
func Document(doc []byte, resources []*resource.Resource, im *importmap.ImportMap) ([]byte, error) {
	loc, err := scan(doc)
	if err != nil {
		return nil, err
	}

	var tags strings.Builder
	child := loc.indent + "  "
	write := func(tag string) {
		tags.WriteString(child)
		tags.WriteString(tag)
		tags.WriteString("\n")
	}

	out := doc
	if loc.importMap {
		existing := bytes.TrimSpace(doc[loc.contentStart:loc.contentEnd])
		base := &importmap.ImportMap{}
		if len(existing) > 0 {
			if base, err = importmap.Parse(existing); err != nil {
				return nil, fmt.Errorf("parsing existing import map: %w", err)
			}
		}
		merged := base.Merge(im)
		var b bytes.Buffer
		b.Write(doc[:loc.contentStart])
		if !merged.IsEmpty() {
			b.WriteString("\n" + merged.ToJSON() + "\n" + child)
		}
		b.Write(doc[loc.contentEnd:])
		if loc.contentEnd <= loc.insert {
			loc.insert += b.Len() - len(doc)
		}
		out = b.Bytes()
	} else if !im.IsEmpty() {
		tags.WriteString(child)
		tags.WriteString(`<script type="importmap">` + "\n")
		tags.WriteString(im.ToJSON())
		tags.WriteString("\n" + child + "</script>\n")
	}

	for _, r := range resources {
		href := BasePath + r.Name
		if loc.referenced[href] {
			continue
		}
		switch r.Type.HTMLTag() {
		case "link":
			write(`<link rel="stylesheet" href="` + html.EscapeString(href) + `">`)
		case "script":
			write(`<script type="module" src="` + html.EscapeString(href) + `"></script>`)
		}
	}

	if tags.Len() == 0 {
		return out, nil
	}
	// The insert offset sits after the closing tag's indentation; tags go on
	// their own lines before it.
	lineStart := loc.insert - len(loc.indent)
	var b bytes.Buffer
	b.Write(out[:lineStart])
	if lineStart == 0 || out[lineStart-1] != '\n' {
		b.WriteString("\n")
	}
	b.WriteString(tags.String())
	b.WriteString(loc.indent)
	b.Write(out[loc.insert:])
	return b.Bytes(), nil
}

// scan tokenizes doc, tracking byte offsets.
func scan(doc []byte) (location, error) {
	loc := location{insert: -1, referenced: make(map[string]bool)}
	bodyEnd := -1
	inImportMap := false

	z := html.NewTokenizer(bytes.NewReader(doc))
	pos := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return loc, err
			}
			break
		}
		raw := z.Raw()
		start := pos
		pos += len(raw)

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			attrs := map[string]string{}
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				attrs[string(k)] = string(v)
			}
			switch atom.Lookup(name) {
			case atom.Script:
				if src, ok := attrs["src"]; ok {
					loc.referenced[src] = true
				}
				if attrs["type"] == "importmap" && !loc.importMap && tt == html.StartTagToken {
					loc.importMap = true
					loc.contentStart = pos
					inImportMap = true
				}
			case atom.Link:
				if attrs["rel"] == "stylesheet" {
					loc.referenced[attrs["href"]] = true
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script:
				if inImportMap {
					loc.contentEnd = start
					inImportMap = false
				}
			case atom.Head:
				if loc.insert < 0 {
					loc.insert = start
				}
			case atom.Body:
				bodyEnd = start
			}
		}
	}

	if loc.insert < 0 {
		loc.insert = bodyEnd
	}
	if loc.insert < 0 {
		return loc, ErrNoInsertPoint
	}
	loc.indent = indentBefore(doc, loc.insert)
	return loc, nil
}

// indentBefore returns the whitespace between the start of the line and
// offset, or "" when other text precedes offset on its line.
func indentBefore(doc []byte, offset int) string {
	i := offset
	for i > 0 && (doc[i-1] == ' ' || doc[i-1] == '\t') {
		i--
	}
	if i > 0 && doc[i-1] != '\n' {
		return ""
	}
	return string(doc[i:offset])
}
