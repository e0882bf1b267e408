// Package render turns parsed documentation into HTML through a registry
// of element components.
//
// Every element of the document is classified into a Kind. The registry
// maps kinds to Components; kinds without a component fall through to the
// default passthrough, which lets gomarkdown's HTML renderer emit its
// stock markup.
package render

import (
	"fmt"
	"html/template"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/html"

	"github.com/keithlinneman/docsite/internal/mdx"
)

// Kind names a content element.
type Kind string

// Element kinds with built-in components.
const (
	KindLink       Kind = "a"
	KindCode       Kind = "code"
	KindEmphasis   Kind = "em"
	KindH1         Kind = "h1"
	KindH2         Kind = "h2"
	KindH3         Kind = "h3"
	KindH4         Kind = "h4"
	KindH5         Kind = "h5"
	KindH6         Kind = "h6"
	KindRule       Kind = "hr"
	KindImage      Kind = "img"
	KindInlineCode Kind = "inlineCode"
	KindOrdered    Kind = "ol"
	KindParagraph  Kind = "p"
	KindTable      Kind = "table"
	KindUnordered  Kind = "ul"
)

// Widget kinds, named as they are written in content.
const (
	KindAnimation    Kind = "Animation"
	KindCodeTabs     Kind = "CodeTabs"
	KindImageWidget  Kind = "Image"
	KindNewsletter   Kind = "NewsletterWidget"
	KindNote         Kind = "Note"
	KindNotification Kind = "Notification"
	KindStepLinks    Kind = "StepLinks"
)

// Component renders one node. Returning handled=false hands the node back
// to the stock HTML renderer.
type Component interface {
	Render(w io.Writer, node ast.Node, entering bool) (status ast.WalkStatus, handled bool)
}

// ComponentFunc adapts a function to Component.
type ComponentFunc func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool)

func (f ComponentFunc) Render(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	return f(w, node, entering)
}

// Passthrough is the fallback component. Standard markdown nodes are left
// to the stock renderer; widgets without a component become a plain
// container so their content still shows.
var Passthrough Component = ComponentFunc(func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	if wg, ok := node.(*mdx.Widget); ok {
		return genericWidget(w, wg, entering), true
	}
	return ast.GoToNext, false
})

// Registry maps kinds to components. It is never modified after New.
type Registry struct {
	components map[Kind]Component
}

// New builds a Registry from components.
func New(components map[Kind]Component) *Registry {
	return &Registry{components: maps.Clone(components)}
}

var defaultRegistry = New(Builtins())

// Default returns the shared registry of built-in components.
func Default() *Registry { return defaultRegistry }

// With returns a copy of r with kind bound to c.
func (r *Registry) With(kind Kind, c Component) *Registry {
	next := maps.Clone(r.components)
	if next == nil {
		next = make(map[Kind]Component, 1)
	}
	next[kind] = c
	return &Registry{components: next}
}

// Resolve returns the component for kind, or Passthrough.
func (r *Registry) Resolve(kind Kind) Component {
	if r != nil {
		if c, ok := r.components[kind]; ok && c != nil {
			return c
		}
	}
	return Passthrough
}

// Kinds lists the kinds with an assigned component, sorted.
func (r *Registry) Kinds() []Kind {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.components))
}

// Options tunes a render.
type Options struct {
	// Untrusted drops raw HTML from the output and neutralizes script
	// URLs. Use it for content fetched from outside the bundle.
	Untrusted bool
}

// Render renders doc to HTML.
func (r *Registry) Render(doc ast.Node, opts Options) template.HTML {
	if doc == nil {
		return ""
	}
	flags := html.CommonFlags
	if opts.Untrusted {
		flags |= html.SkipHTML
	}
	hook := func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
		if opts.Untrusted {
			sanitize(node)
		}
		return r.Resolve(KindOf(node)).Render(w, node, entering)
	}
	renderer := html.NewRenderer(html.RendererOptions{
		Flags:          flags,
		RenderNodeHook: hook,
	})
	return template.HTML(markdown.Render(doc, renderer))
}

// KindOf classifies node. Nodes outside the built-in kinds get their
// lowercased ast type name ("blockquote", "strong", "text"...).
func KindOf(node ast.Node) Kind {
	switch n := node.(type) {
	case *ast.Link:
		return KindLink
	case *ast.CodeBlock:
		return KindCode
	case *ast.Emph:
		return KindEmphasis
	case *ast.Heading:
		return Kind(fmt.Sprintf("h%d", min(max(n.Level, 1), 6)))
	case *ast.HorizontalRule:
		return KindRule
	case *ast.Image:
		return KindImage
	case *ast.Code:
		return KindInlineCode
	case *ast.List:
		switch {
		case n.ListFlags&ast.ListTypeDefinition != 0:
			return "dl"
		case n.ListFlags&ast.ListTypeOrdered != 0:
			return KindOrdered
		default:
			return KindUnordered
		}
	case *ast.Paragraph:
		return KindParagraph
	case *ast.Table:
		return KindTable
	case *mdx.Widget:
		return Kind(n.Name)
	}
	name := fmt.Sprintf("%T", node)
	name = name[strings.LastIndex(name, ".")+1:]
	return Kind(strings.ToLower(name))
}

func sanitize(node ast.Node) {
	switch n := node.(type) {
	case *ast.Link:
		if unsafeURL(n.Destination) {
			n.Destination = []byte("#")
		}
	case *ast.Image:
		if unsafeURL(n.Destination) {
			n.Destination = nil
		}
	case *mdx.Widget:
		// dropped attributes fall back to the component default
		for _, k := range widgetURLAttrs {
			if v, ok := n.Attrs[k]; ok && unsafeURL([]byte(v)) {
				delete(n.Attrs, k)
			}
		}
	}
}

// widgetURLAttrs are widget attributes written into href, src or action.
var widgetURLAttrs = []string{"action", "href", "src", "url", "link"}

func unsafeURL(dest []byte) bool {
	s := strings.ToLower(strings.TrimSpace(string(dest)))
	return strings.HasPrefix(s, "javascript:") ||
		strings.HasPrefix(s, "vbscript:") ||
		strings.HasPrefix(s, "data:text/html")
}
