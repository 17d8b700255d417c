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

package loader

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"bennypowers.dev/potter/module"
)

// Import is a dependency reference found in a module.
type Import struct {
	Specifier string
	Kind      module.ResolveKind
	// Order is the position of the reference among the module's imports.
	Order int
}

// Analysis is what the loader learns from a script module's source.
type Analysis struct {
	Imports []Import
	System  module.System
	// HMRSelfAccepted is set by import.meta.hot.accept() without dependencies.
	HMRSelfAccepted bool
	// HMRAcceptedDeps are the specifiers passed to import.meta.hot.accept.
	HMRAcceptedDeps []string
	Comments        module.Comments
	IsAsync         bool
}

// AnalyzeScript parses JavaScript or TypeScript source and extracts its
// imports, module system, HMR acceptance and comments. jsx selects the TSX
// grammar.
func AnalyzeScript(content []byte, jsx bool) (*Analysis, error) {
	qm, err := getQueryManager(jsx)
	if err != nil {
		return nil, err
	}

	parser := getParser(jsx)
	defer putParser(parser, jsx)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse content")
	}
	defer tree.Close()
	root := tree.RootNode()

	a := &Analysis{}

	type found struct {
		Import
		pos uint
	}
	var imports []found
	err = runQuery(qm, "imports", root, content, func(name string, node *ts.Node) {
		var kind module.ResolveKind
		switch name {
		case "import.spec":
			kind = module.ResolveImport
		case "reexport.spec":
			kind = module.ResolveExportFrom
		case "dynamicImport.spec":
			kind = module.ResolveDynamicImport
		case "require.spec":
			kind = module.ResolveRequire
		default:
			return
		}
		imports = append(imports, found{
			Import: Import{Specifier: node.Utf8Text(content), Kind: kind},
			pos:    node.StartByte(),
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(imports, func(x, y found) int { return cmp.Compare(x.pos, y.pos) })
	for i, imp := range imports {
		imp.Order = i
		a.Imports = append(a.Imports, imp.Import)
	}

	system := module.UnInitial
	err = runQuery(qm, "system", root, content, func(name string, _ *ts.Node) {
		switch name {
		case "esm":
			system = system.Merge(module.EsModule)
		case "cjs":
			system = system.Merge(module.CommonJs)
		case "async":
			a.IsAsync = true
		}
	})
	if err != nil {
		return nil, err
	}
	a.System = system

	err = runQuery(qm, "hmr", root, content, func(name string, node *ts.Node) {
		if name != "hmr.accept" {
			return
		}
		deps := acceptedDeps(node, content)
		if len(deps) == 0 {
			a.HMRSelfAccepted = true
			return
		}
		a.HMRAcceptedDeps = append(a.HMRAcceptedDeps, deps...)
	})
	if err != nil {
		return nil, err
	}

	err = runQuery(qm, "comments", root, content, func(_ string, node *ts.Node) {
		addComment(&a.Comments, node, content)
	})
	if err != nil {
		return nil, err
	}

	return a, nil
}

// runQuery calls fn for every capture of the named query.
func runQuery(qm *QueryManager, name string, root *ts.Node, content []byte, fn func(capture string, node *ts.Node)) error {
	query, err := qm.Query(name)
	if err != nil {
		return err
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	matches := cursor.Matches(query, root, content)
	captureNames := query.CaptureNames()
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, capture := range match.Captures {
			fn(captureNames[capture.Index], &capture.Node)
		}
	}
	return nil
}

// acceptedDeps returns the string specifiers among the arguments of an
// accept call: accept("./a.js") or accept(["./a.js", "./b.js"]).
func acceptedDeps(args *ts.Node, content []byte) []string {
	var deps []string
	for i := range args.NamedChildCount() {
		arg := args.NamedChild(i)
		switch arg.Kind() {
		case "string":
			deps = append(deps, stringValue(arg, content))
		case "array":
			for j := range arg.NamedChildCount() {
				if el := arg.NamedChild(j); el.Kind() == "string" {
					deps = append(deps, stringValue(el, content))
				}
			}
		}
	}
	return deps
}

func stringValue(node *ts.Node, content []byte) string {
	text := node.Utf8Text(content)
	if len(text) >= 2 {
		return text[1 : len(text)-1]
	}
	return text
}

// addComment records a comment as trailing the previous node on the same
// line, or leading the next node otherwise.
func addComment(c *module.Comments, node *ts.Node, content []byte) {
	text := node.Utf8Text(content)
	comment := module.Comment{Block: strings.HasPrefix(text, "/*")}
	if comment.Block {
		comment.Text = strings.TrimSuffix(strings.TrimPrefix(text, "/*"), "*/")
	} else {
		comment.Text = strings.TrimPrefix(text, "//")
	}

	if prev := node.PrevSibling(); prev != nil && prev.EndPosition().Row == node.StartPosition().Row {
		c.Trailing = appendComment(c.Trailing, uint32(prev.EndByte()), comment)
		return
	}
	pos := node.EndByte()
	if next := node.NextSibling(); next != nil {
		pos = next.StartByte()
	}
	c.Leading = appendComment(c.Leading, uint32(pos), comment)
}

func appendComment(items []module.CommentsItem, pos uint32, comment module.Comment) []module.CommentsItem {
	for i := range items {
		if items[i].BytePos == pos {
			items[i].Comments = append(items[i].Comments, comment)
			return items
		}
	}
	return append(items, module.CommentsItem{BytePos: pos, Comments: []module.Comment{comment}})
}

var (
	cssImportPattern  = regexp.MustCompile(`@import\s+(?:url\(\s*)?["']?([^"')\s;]+)["']?\s*\)?`)
	cssURLPattern     = regexp.MustCompile(`url\(\s*["']?([^"')]+?)["']?\s*\)`)
	cssCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// AnalyzeCSS finds @import rules and url() references in a stylesheet.
// Remote, data and fragment URLs are skipped.
func AnalyzeCSS(content []byte) []Import {
	src := cssCommentPattern.ReplaceAll(content, nil)

	type found struct {
		Import
		pos int
	}
	var imports []found
	importSpans := cssImportPattern.FindAllSubmatchIndex(src, -1)
	for _, m := range importSpans {
		imports = append(imports, found{
			Import: Import{Specifier: string(src[m[2]:m[3]]), Kind: module.ResolveCSSAtImport},
			pos:    m[0],
		})
	}
	for _, m := range cssURLPattern.FindAllSubmatchIndex(src, -1) {
		inImport := slices.ContainsFunc(importSpans, func(span []int) bool {
			return m[0] >= span[0] && m[0] < span[1]
		})
		if inImport {
			continue
		}
		imports = append(imports, found{
			Import: Import{Specifier: strings.TrimSpace(string(src[m[2]:m[3]])), Kind: module.ResolveCSSURL},
			pos:    m[0],
		})
	}

	slices.SortStableFunc(imports, func(x, y found) int { return cmp.Compare(x.pos, y.pos) })
	var out []Import
	for _, imp := range imports {
		if skipCSSURL(imp.Specifier) {
			continue
		}
		imp.Order = len(out)
		out = append(out, imp.Import)
	}
	return out
}

func skipCSSURL(spec string) bool {
	if spec == "" || strings.HasPrefix(spec, "#") {
		return true
	}
	for _, prefix := range []string{"data:", "http://", "https://", "//"} {
		if strings.HasPrefix(spec, prefix) {
			return true
		}
	}
	return false
}
