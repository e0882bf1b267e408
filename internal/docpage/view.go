package docpage

import (
	"embed"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/keithlinneman/docsite/internal/docload"
	"github.com/keithlinneman/docsite/internal/layout"
	"github.com/keithlinneman/docsite/internal/render"
	"github.com/keithlinneman/docsite/internal/toc"
)

//go:embed templates/*.html
var templates embed.FS

// Link is a labelled URL.
type Link struct {
	Label string
	Href  string
}

// Settings are the presentation knobs of documentation pages.
type Settings struct {
	SiteName string
	// HeaderOffset is the fixed header height the anchor script scrolls past.
	HeaderOffset int
	TOCMinLevel  int
	TOCMaxLevel  int
	HelpTitle    string
	HelpLinks    []Link
}

// DefaultSettings returns the stock presentation settings.
func DefaultSettings() Settings {
	return Settings{
		SiteName:     "Docs",
		HeaderOffset: 90,
		TOCMinLevel:  2,
		TOCMaxLevel:  3,
		HelpTitle:    "Need some help?",
		HelpLinks: []Link{
			{Label: "Join the community chat", Href: "/community"},
			{Label: "Open an issue", Href: "/community#issues"},
		},
	}
}

// Renderer writes documentation pages as HTML.
type Renderer struct {
	tmpl       *template.Template
	components *render.Registry
	settings   Settings
}

// NewRenderer builds a Renderer. A nil registry means render.Default().
func NewRenderer(components *render.Registry, settings Settings) (*Renderer, error) {
	if components == nil {
		components = render.Default()
	}
	tmpl, err := layout.Extend(templates, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl, components: components, settings: settings}, nil
}

// VersionLink is one entry of the version picker.
type VersionLink struct {
	Label   string
	Href    string
	Current bool
}

// View is the template data of a documentation page.
type View struct {
	Head         layout.Head
	Title        string
	Subtitle     string
	Status       string
	Type         string
	Key          string
	TOC          []*toc.Node
	Versions     []VersionLink
	Body         template.HTML
	Anchor       string
	HeaderOffset int
	HelpTitle    string
	HelpLinks    []Link
}

// StatusCode is the HTTP status for a state.
func StatusCode(st State) int {
	if st.Status() == StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusOK
}

// View builds the template data for st.
func (r *Renderer) View(st State) View {
	v := View{
		Status:       st.Status().String(),
		Type:         st.Page.Type,
		Key:          st.Page.Key,
		HeaderOffset: r.settings.HeaderOffset,
		HelpTitle:    r.settings.HelpTitle,
		HelpLinks:    r.settings.HelpLinks,
		Head:         layout.Head{Theme: "docs"},
	}

	if st.Status() == StatusNotFound {
		v.Head.Title = "Page not found | " + r.settings.SiteName
		return v
	}

	meta := st.Page.Meta
	v.Title = meta.Title
	v.Head.Title = meta.Title + " | " + r.settings.SiteName
	v.Head.Description = meta.Description
	v.Head.Keywords = meta.Keywords
	v.Head.Loading = st.Status() == StatusLoading
	v.Subtitle = meta.Subtitle
	v.Versions = versionLinks(st)

	if st.Document != nil {
		v.TOC = toc.Nest(toc.Filter(st.TOC, r.settings.TOCMinLevel, r.settings.TOCMaxLevel))
		v.Body = r.components.Render(st.Document.Root, render.Options{
			Untrusted: st.Document.Kind == docload.KindRaw,
		})
		v.Anchor = st.Anchor
	}
	return v
}

// Render writes the page for st.
func (r *Renderer) Render(w io.Writer, st State) error {
	return layout.Execute(w, r.tmpl, r.View(st))
}

func versionLinks(st State) []VersionLink {
	versions := st.Page.Meta.Versions
	if len(versions) == 0 {
		return nil
	}
	current := st.Page.Version
	if current == "" {
		current = versions[0]
	}
	out := make([]VersionLink, 0, len(versions))
	for _, ver := range versions {
		out = append(out, VersionLink{
			Label:   ver,
			Href:    path.Join("/docs", url.PathEscape(st.Page.Type), url.PathEscape(st.Page.Key), url.PathEscape(ver)),
			Current: ver == current,
		})
	}
	return out
}
