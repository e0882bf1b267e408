package toc

import (
	"strings"

	"github.com/gomarkdown/markdown/ast"

	"github.com/keithlinneman/docsite/internal/mdx"
)

// Entry is one heading in the table of contents.
type Entry struct {
	Text  string `json:"text"`
	ID    string `json:"id"`
	Level int    `json:"level"`
}

// Parse normalizes raw content, parses it and annotates heading ids.
func Parse(raw []byte) ast.Node {
	body, _ := Normalize(raw)
	doc := mdx.Parse(body)
	Annotate(doc)
	return doc
}

// Annotate assigns an anchor id to every heading of doc. Headings that
// already carry an explicit {#id} keep it.
func Annotate(doc ast.Node) {
	var s Slugger
	var headings []*ast.Heading
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if h, ok := node.(*ast.Heading); ok && entering {
			headings = append(headings, h)
			if h.HeadingID != "" {
				s.Reserve(h.HeadingID)
			}
		}
		return ast.GoToNext
	})
	for _, h := range headings {
		if h.HeadingID == "" {
			h.HeadingID = s.Slug(HeadingText(h))
		}
	}
}

// Collect walks an annotated document and returns its headings in order.
func Collect(doc ast.Node) []Entry {
	entries := make([]Entry, 0, 16)
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		h, ok := node.(*ast.Heading)
		if !ok || !entering {
			return ast.GoToNext
		}
		text := strings.Join(strings.Fields(HeadingText(h)), " ")
		if text == "" {
			return ast.SkipChildren
		}
		entries = append(entries, Entry{Text: text, ID: h.HeadingID, Level: h.Level})
		return ast.SkipChildren
	})
	return entries
}

// Extract is Collect(Parse(raw)).
func Extract(raw []byte) []Entry {
	return Collect(Parse(raw))
}

// HeadingText concatenates the text and inline code of a node.
func HeadingText(n ast.Node) string {
	var b strings.Builder
	ast.WalkFunc(n, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch t := node.(type) {
		case *ast.Text:
			b.Write(t.Literal)
		case *ast.Code:
			b.Write(t.Literal)
		}
		return ast.GoToNext
	})
	return strings.TrimSpace(b.String())
}
