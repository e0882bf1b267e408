package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/html"

	"github.com/keithlinneman/docsite/internal/mdx"
)

// Builtins returns a fresh map of the built-in components.
func Builtins() map[Kind]Component {
	heading := ComponentFunc(renderHeading)
	return map[Kind]Component{
		KindLink:       ComponentFunc(renderLink),
		KindCode:       ComponentFunc(renderCodeBlock),
		KindEmphasis:   ComponentFunc(renderEmphasis),
		KindH1:         heading,
		KindH2:         heading,
		KindH3:         heading,
		KindH4:         heading,
		KindH5:         heading,
		KindH6:         heading,
		KindRule:       ComponentFunc(renderRule),
		KindImage:      ComponentFunc(renderImage),
		KindInlineCode: ComponentFunc(renderInlineCode),
		KindOrdered:    ComponentFunc(renderList),
		KindParagraph:  ComponentFunc(renderParagraph),
		KindTable:      ComponentFunc(renderTable),
		KindUnordered:  ComponentFunc(renderList),

		KindAnimation:    widget(renderAnimation),
		KindCodeTabs:     widget(renderCodeTabs),
		KindImageWidget:  widget(renderFigure),
		KindNewsletter:   widget(renderNewsletter),
		KindNote:         widget(renderNote),
		KindNotification: widget(renderNotification),
		KindStepLinks:    widget(renderStepLinks),
	}
}

func out(w io.Writer, s string) {
	_, _ = io.WriteString(w, s)
}

func attr(w io.Writer, name string, value []byte) {
	out(w, " "+name+`="`)
	html.EscapeHTML(w, value)
	out(w, `"`)
}

func renderLink(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	l, ok := node.(*ast.Link)
	if !ok || l.NoteID != 0 || l.Footnote != nil {
		return ast.GoToNext, false
	}
	if !entering {
		out(w, "</a>")
		return ast.GoToNext, true
	}
	out(w, `<a class="docs-link"`)
	attr(w, "href", l.Destination)
	if len(l.Title) > 0 {
		attr(w, "title", l.Title)
	}
	if isExternal(l.Destination) {
		out(w, ` target="_blank" rel="noopener noreferrer"`)
	}
	out(w, ">")
	return ast.GoToNext, true
}

func isExternal(dest []byte) bool {
	s := strings.ToLower(string(dest))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "//")
}

func renderCodeBlock(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	cb, ok := node.(*ast.CodeBlock)
	if !ok {
		return ast.GoToNext, false
	}
	if !entering {
		return ast.GoToNext, true
	}
	lang := codeLang(cb)
	out(w, `<div class="docs-code"`)
	if lang != "" {
		attr(w, "data-lang", []byte(lang))
	}
	out(w, "><pre><code")
	if lang != "" {
		attr(w, "class", []byte("language-"+lang))
	}
	out(w, ">")
	html.EscapeHTML(w, cb.Literal)
	out(w, "</code></pre></div>\n")
	return ast.GoToNext, true
}

func codeLang(cb *ast.CodeBlock) string {
	if f := strings.Fields(string(cb.Info)); len(f) > 0 {
		return f[0]
	}
	return ""
}

func renderEmphasis(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	if entering {
		out(w, `<em class="docs-em">`)
	} else {
		out(w, "</em>")
	}
	return ast.GoToNext, true
}

func renderHeading(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	h, ok := node.(*ast.Heading)
	if !ok {
		return ast.GoToNext, false
	}
	level := min(max(h.Level, 1), 6)
	if !entering {
		fmt.Fprintf(w, "</h%d>\n", level)
		return ast.GoToNext, true
	}
	fmt.Fprintf(w, `<h%d class="docs-heading"`, level)
	if h.HeadingID != "" {
		attr(w, "id", []byte(h.HeadingID))
	}
	out(w, ">")
	if h.HeadingID != "" {
		out(w, `<a class="docs-heading-anchor" aria-hidden="true"`)
		attr(w, "href", []byte("#"+h.HeadingID))
		out(w, ">#</a>")
	}
	return ast.GoToNext, true
}

func renderRule(w io.Writer, _ ast.Node, entering bool) (ast.WalkStatus, bool) {
	if entering {
		out(w, "<hr class=\"docs-separator\">\n")
	}
	return ast.GoToNext, true
}

func renderImage(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	img, ok := node.(*ast.Image)
	if !ok {
		return ast.GoToNext, false
	}
	if !entering {
		return ast.GoToNext, true
	}
	out(w, `<img class="docs-image"`)
	attr(w, "src", img.Destination)
	attr(w, "alt", []byte(plainText(img)))
	if len(img.Title) > 0 {
		attr(w, "title", img.Title)
	}
	out(w, ` loading="lazy">`)
	return ast.SkipChildren, true
}

// plainText concatenates the literal text beneath node.
func plainText(node ast.Node) string {
	var b strings.Builder
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Literal)
		case *ast.Code:
			b.Write(t.Literal)
		}
		return ast.GoToNext
	})
	return b.String()
}

func renderInlineCode(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	c, ok := node.(*ast.Code)
	if !ok {
		return ast.GoToNext, false
	}
	out(w, `<code class="docs-inline-code">`)
	html.EscapeHTML(w, c.Literal)
	out(w, "</code>")
	return ast.GoToNext, true
}

func renderList(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	l, ok := node.(*ast.List)
	if !ok || l.IsFootnotesList || l.ListFlags&ast.ListTypeDefinition != 0 {
		return ast.GoToNext, false
	}
	tag := "ul"
	class := "docs-list docs-list-unordered"
	if l.ListFlags&ast.ListTypeOrdered != 0 {
		tag = "ol"
		class = "docs-list docs-list-ordered"
	}
	if !entering {
		out(w, "</"+tag+">\n")
		return ast.GoToNext, true
	}
	out(w, "<"+tag)
	attr(w, "class", []byte(class))
	if tag == "ol" && l.Start > 1 {
		fmt.Fprintf(w, ` start="%d"`, l.Start)
	}
	out(w, ">\n")
	return ast.GoToNext, true
}

func renderParagraph(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	p, ok := node.(*ast.Paragraph)
	if !ok {
		return ast.GoToNext, false
	}
	if html.SkipParagraphTags(p) {
		return ast.GoToNext, true
	}
	if entering {
		out(w, `<p class="docs-paragraph">`)
	} else {
		out(w, "</p>\n")
	}
	return ast.GoToNext, true
}

func renderTable(w io.Writer, _ ast.Node, entering bool) (ast.WalkStatus, bool) {
	if entering {
		out(w, "<div class=\"docs-table\"><table>\n")
	} else {
		out(w, "</table></div>\n")
	}
	return ast.GoToNext, true
}

// widget adapts a widget renderer to Component. Non-widget nodes bound to
// a widget kind are declined.
func widget(fn func(w io.Writer, wg *mdx.Widget, entering bool) ast.WalkStatus) Component {
	return ComponentFunc(func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
		wg, ok := node.(*mdx.Widget)
		if !ok {
			return ast.GoToNext, false
		}
		return fn(w, wg, entering), true
	})
}

func genericWidget(w io.Writer, wg *mdx.Widget, entering bool) ast.WalkStatus {
	if entering {
		out(w, `<div class="docs-widget"`)
		attr(w, "data-widget", []byte(wg.Name))
		out(w, ">\n")
	} else {
		out(w, "</div>\n")
	}
	return ast.GoToNext
}

func renderNote(w io.Writer, wg *mdx.Widget, entering bool) ast.WalkStatus {
	if !entering {
		out(w, "</aside>\n")
		return ast.GoToNext
	}
	out(w, "<aside class=\"docs-note\" role=\"note\">\n")
	if title := wg.Attr("title", ""); title != "" {
		out(w, `<p class="docs-note-title">`)
		html.EscapeHTML(w, []byte(title))
		out(w, "</p>\n")
	}
	return ast.GoToNext
}

func renderNotification(w io.Writer, wg *mdx.Widget, entering bool) ast.WalkStatus {
	if !entering {
		out(w, "</div>\n")
		return ast.GoToNext
	}
	out(w, "<div")
	attr(w, "class", []byte("docs-notification docs-notification-"+wg.Attr("type", "standard")))
	out(w, " role=\"status\">\n")
	return ast.GoToNext
}

func renderNewsletter(w io.Writer, wg *mdx.Widget, entering bool) ast.WalkStatus {
	if !entering {
		return ast.GoToNext
	}
	out(w, `<div class="docs-newsletter"><form method="post"`)
	attr(w, "action", []byte(wg.Attr("action", "/newsletter")))
	out(w, `><label>`)
	html.EscapeHTML(w, []byte(wg.Attr("heading", "Subscribe to the newsletter")))
	out(w, `<input type="email" name="email" required></label><button type="submit">Subscribe</button></form></div>`+"\n")
	return ast.SkipChildren
}

func renderStepLinks(w io.Writer, _ *mdx.Widget, entering bool) ast.WalkStatus {
	if entering {
		out(w, "<nav class=\"docs-step-links\">\n")
	} else {
		out(w, "</nav>\n")
	}
	return ast.GoToNext
}

func renderCodeTabs(w io.Writer, wg *mdx.Widget, entering bool) ast.WalkStatus {
	if !entering {
		out(w, "</div>\n")
		return ast.GoToNext
	}
	out(w, "<div class=\"docs-code-tabs\">\n<div class=\"docs-code-tabs-labels\" role=\"tablist\">")
	tab := 0
	for _, child := range wg.GetChildren() {
		cb, ok := child.(*ast.CodeBlock)
		if !ok {
			continue
		}
		tab++
		label := codeLang(cb)
		if label == "" {
			label = fmt.Sprintf("Tab %d", tab)
		}
		out(w, `<button type="button" role="tab"`)
		if tab == 1 {
			out(w, ` aria-selected="true"`)
		}
		out(w, ">")
		html.EscapeHTML(w, []byte(label))
		out(w, "</button>")
	}
	out(w, "</div>\n")
	return ast.GoToNext
}

func renderAnimation(w io.Writer, wg *mdx.Widget, entering bool) ast.WalkStatus {
	if !entering {
		return ast.GoToNext
	}
	out(w, `<div class="docs-animation"`)
	attr(w, "data-animation", []byte(wg.Attr("name", "")))
	for _, k := range []string{"width", "height"} {
		if v := wg.Attr(k, ""); v != "" {
			attr(w, "data-"+k, []byte(v))
		}
	}
	out(w, "></div>\n")
	return ast.SkipChildren
}

func renderFigure(w io.Writer, wg *mdx.Widget, entering bool) ast.WalkStatus {
	hasCaption := len(wg.GetChildren()) > 0 || wg.Attr("caption", "") != ""
	if !entering {
		if hasCaption {
			out(w, "</figcaption>")
		}
		out(w, "</figure>\n")
		return ast.GoToNext
	}
	out(w, `<figure class="docs-figure"><img`)
	attr(w, "src", []byte(wg.Attr("src", "")))
	attr(w, "alt", []byte(wg.Attr("alt", "")))
	out(w, ` loading="lazy">`)
	if hasCaption {
		out(w, "<figcaption>")
		html.EscapeHTML(w, []byte(wg.Attr("caption", "")))
	}
	return ast.GoToNext
}
