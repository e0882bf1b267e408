// Package docmodule is the registry of bundled documentation content.
//
// Each content file in the bundle becomes a Module: a parsed document plus
// its precomputed table of contents. Modules are looked up by content path
// through an explicit path -> loader map that is built once per bundle.
package docmodule

import (
	"context"
	"errors"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/samber/oops"

	"github.com/keithlinneman/docsite/internal/toc"
)

// ErrNotFound is returned by Lookup for unknown content paths.
var ErrNotFound = errors.New("docmodule: module not found")

// Module is one content file, parsed and annotated.
type Module struct {
	Path        string
	Title       string
	Description string
	Document    ast.Node

	entries []toc.Entry
}

// NewModule parses raw content into a Module.
func NewModule(p string, raw []byte) *Module {
	_, fm := toc.Normalize(raw)
	doc := toc.Parse(raw)
	return &Module{
		Path:        p,
		Title:       fm.Title,
		Description: fm.Description,
		Document:    doc,
		entries:     toc.Collect(doc),
	}
}

// TableOfContents returns the module's headings in document order.
func (m *Module) TableOfContents() []toc.Entry {
	return slices.Clone(m.entries)
}

// LoaderFunc produces a module. Loaders must be safe to call concurrently.
type LoaderFunc func(ctx context.Context) (*Module, error)

// Registry maps normalized content paths to loaders. Immutable once built.
type Registry struct {
	loaders map[string]LoaderFunc
}

// NewRegistry builds a Registry from path -> loader pairs. Paths are
// normalized with Key.
func NewRegistry(loaders map[string]LoaderFunc) *Registry {
	r := &Registry{loaders: make(map[string]LoaderFunc, len(loaders))}
	for p, fn := range loaders {
		r.loaders[Key(p)] = fn
	}
	return r
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.loaders)
}

// Paths returns the registered keys in sorted order.
func (r *Registry) Paths() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.loaders))
	for k := range r.loaders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Has reports whether a loader is registered for contentPath.
func (r *Registry) Has(contentPath string) bool {
	if r == nil {
		return false
	}
	_, ok := r.loaders[Key(contentPath)]
	return ok
}

// Lookup resolves a content path and runs its loader.
func (r *Registry) Lookup(ctx context.Context, contentPath string) (*Module, error) {
	key := Key(contentPath)
	var fn LoaderFunc
	if r != nil {
		fn = r.loaders[key]
	}
	if fn == nil {
		return nil, oops.
			Code("MODULE_NOT_FOUND").
			With("path", contentPath).
			Wrap(ErrNotFound)
	}
	m, err := fn(ctx)
	if err != nil {
		return nil, oops.
			Code("MODULE_LOAD_FAILED").
			With("path", contentPath).
			Wrapf(err, "loading content module")
	}
	return m, nil
}

// Key normalizes a content path: no leading slash, no "mdx/" root and no
// .md/.mdx extension. "mdx/guides/intro.mdx" and "guides/intro" match.
func Key(p string) string {
	p = path.Clean("/" + strings.TrimSpace(p))
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimPrefix(p, Root+"/")
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".mdx":
		p = strings.TrimSuffix(p, path.Ext(p))
	}
	return p
}
