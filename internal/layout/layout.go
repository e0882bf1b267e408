// Package layout holds the site chrome shared by every server-rendered
// page. Page packages extend the base template with a "content" block.
package layout

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"strings"
)

//go:embed templates/*.html
var files embed.FS

var base = template.Must(template.New("base").Funcs(Funcs()).ParseFS(files, "templates/*.html"))

// Head is the document metadata of a page.
type Head struct {
	Title       string
	Description string
	Keywords    string
	// Theme selects the stylesheet variant ("docs", "staking", "about").
	Theme string
	// Loading marks a page whose main content is still pending.
	Loading bool
}

// Funcs are the template helpers available to every page template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"join": strings.Join,
		"add":  func(a, b int) int { return a + b },
	}
}

// Extend returns a copy of the base template with the page templates
// matched by patterns in fsys added. The page must define "content" and
// may define "scripts".
func Extend(fsys fs.FS, patterns ...string) (*template.Template, error) {
	t, err := base.Clone()
	if err != nil {
		return nil, err
	}
	return t.ParseFS(fsys, patterns...)
}

// Execute renders the "base" template of t with data.
func Execute(w io.Writer, t *template.Template, data any) error {
	return t.ExecuteTemplate(w, "base", data)
}
