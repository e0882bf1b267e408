package mdx

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"golang.org/x/net/html"
)

// Widget is a JSX component block. Children hold the parsed markdown
// between the opening and closing tags; self-closing widgets have none.
type Widget struct {
	ast.Container

	Name        string
	Attrs       map[string]string
	SelfClosing bool
}

// Attr returns the named attribute (lowercase key) or def.
func (w *Widget) Attr(key, def string) string {
	if v, ok := w.Attrs[key]; ok && v != "" {
		return v
	}
	return def
}

var (
	widgetOpen = regexp.MustCompile(`^ {0,3}<([A-Z][A-Za-z0-9]*)(\s[^>]*)?>`)
	widgetTag  = regexp.MustCompile(`</?([A-Z][A-Za-z0-9]*)(\s[^>]*)?>`)
)

// widgetBlock is the parser hook. It claims a block that starts with a
// capitalized tag and, unless self-closing, has a matching close tag.
func widgetBlock(data []byte) (ast.Node, []byte, int) {
	m := widgetOpen.FindSubmatchIndex(data)
	if m == nil {
		return nil, nil, 0
	}
	name := string(data[m[2]:m[3]])
	tag := data[:m[1]]
	w := &Widget{
		Name:        name,
		Attrs:       parseAttrs(bytes.TrimSpace(tag)),
		SelfClosing: bytes.HasSuffix(tag, []byte("/>")),
	}

	if w.SelfClosing {
		return w, []byte{}, lineEnd(data, m[1])
	}

	closeStart, closeEnd := findClose(data[m[1]:], name)
	if closeStart < 0 {
		return nil, nil, 0
	}
	inner := dedent(data[m[1] : m[1]+closeStart])
	return w, inner, lineEnd(data, m[1]+closeEnd)
}

// findClose returns the offsets of the close tag balancing an already
// consumed open tag of the same name.
func findClose(data []byte, name string) (int, int) {
	depth := 1
	for _, loc := range widgetTag.FindAllSubmatchIndex(data, -1) {
		if string(data[loc[2]:loc[3]]) != name {
			continue
		}
		tag := data[loc[0]:loc[1]]
		switch {
		case bytes.HasPrefix(tag, []byte("</")):
			depth--
		case bytes.HasSuffix(tag, []byte("/>")):
		default:
			depth++
		}
		if depth == 0 {
			return loc[0], loc[1]
		}
	}
	return -1, -1
}

// lineEnd extends pos past trailing blanks and one newline.
func lineEnd(data []byte, pos int) int {
	for pos < len(data) && (data[pos] == ' ' || data[pos] == '\t') {
		pos++
	}
	if pos < len(data) && data[pos] == '\n' {
		pos++
	}
	return pos
}

// dedent strips the indentation shared by all non-blank lines so indented
// widget bodies are not parsed as code blocks.
func dedent(b []byte) []byte {
	lines := strings.Split(strings.Trim(string(b), "\n"), "\n")
	indent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	var out strings.Builder
	for _, l := range lines {
		if len(l) >= indent && indent > 0 {
			l = l[indent:]
		}
		out.WriteString(l)
		out.WriteByte('\n')
	}
	return []byte(out.String())
}

// parseAttrs reads the attributes of an opening tag. Keys come back
// lowercased; JSX expression values like {"x"} or {3} are unwrapped.
func parseAttrs(tag []byte) map[string]string {
	attrs := make(map[string]string)
	z := html.NewTokenizer(bytes.NewReader(tag))
	switch z.Next() {
	case html.StartTagToken, html.SelfClosingTagToken:
	default:
		return attrs
	}
	_, more := z.TagName()
	for more {
		var k, v []byte
		k, v, more = z.TagAttr()
		if len(k) == 0 || string(k) == "/" {
			continue
		}
		attrs[string(k)] = unwrapJSX(string(v))
	}
	return attrs
}

func unwrapJSX(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "{") && strings.HasSuffix(v, "}") {
		v = strings.TrimSpace(v[1 : len(v)-1])
		v = strings.Trim(v, "\"'`")
	}
	return v
}
