// Package docmeta is the static registry of documentation pages: what a
// page is called, where its content lives and which versions it has.
package docmeta

import (
	"encoding/json"
	"errors"
	"slices"
	"sort"
	"strings"

	"github.com/samber/oops"
)

// ToolsType is the page type whose content is fetched from ResourceURI
// instead of being bundled as a content module.
const ToolsType = "tools"

// ErrNotFound is returned by Resolve when no metadata exists for a page.
var ErrNotFound = errors.New("docmeta: page not found")

// PageMeta describes one documentation page. Field names follow meta.json.
type PageMeta struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Keywords    string   `json:"keywords,omitempty"`
	Path        string   `json:"path,omitempty"`
	ResourceURI string   `json:"resourceUri,omitempty"`
	Subtitle    string   `json:"subtitle,omitempty"`
	Versions    []string `json:"versions,omitempty"`
}

// Page is a resolved page: its metadata plus the content path to load.
type Page struct {
	Type     string
	Key      string
	Version  string
	Meta     PageMeta
	FilePath string
	IsTool   bool
}

// Registry maps (type, key) to PageMeta. It is immutable once built.
type Registry struct {
	pages map[string]map[string]PageMeta
	count int
}

// NewRegistry copies pages into a new Registry.
func NewRegistry(pages map[string]map[string]PageMeta) *Registry {
	r := &Registry{pages: make(map[string]map[string]PageMeta, len(pages))}
	for typ, byKey := range pages {
		inner := make(map[string]PageMeta, len(byKey))
		for key, m := range byKey {
			m.Versions = slices.Clone(m.Versions)
			inner[key] = m
			r.count++
		}
		r.pages[typ] = inner
	}
	return r
}

// ParseRegistry decodes a meta.json document.
func ParseRegistry(data []byte) (*Registry, error) {
	var pages map[string]map[string]PageMeta
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, oops.
			Code("CONFIG_INVALID").
			Hint("meta.json must be an object of page types to objects of page keys").
			Wrapf(err, "decoding page metadata")
	}
	return NewRegistry(pages), nil
}

// Len returns the number of pages in the registry.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return r.count
}

// Types returns the page types in sorted order.
func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.pages))
	for typ := range r.pages {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// HasType reports whether any page of typ exists.
func (r *Registry) HasType(typ string) bool {
	if r == nil {
		return false
	}
	return len(r.pages[typ]) > 0
}

// Keys returns the page keys of a type in sorted order.
func (r *Registry) Keys(typ string) []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.pages[typ]))
	for key := range r.pages[typ] {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the raw metadata for (typ, key).
func (r *Registry) Lookup(typ, key string) (PageMeta, bool) {
	if r == nil {
		return PageMeta{}, false
	}
	m, ok := r.pages[typ][key]
	if !ok {
		return PageMeta{}, false
	}
	m.Versions = slices.Clone(m.Versions)
	return m, true
}

// Resolve maps a docs route to a Page. An empty page segment means the
// type itself is the key (e.g. /docs/core-concepts). When a version is
// requested and the page is versioned, the first occurrence of the
// default version in Path is replaced by it.
func (r *Registry) Resolve(typ, page, version string) (Page, error) {
	key := page
	if key == "" {
		key = typ
	}
	meta, ok := r.Lookup(typ, key)
	if !ok {
		return Page{}, oops.
			Code("METADATA_NOT_FOUND").
			With("type", typ).
			With("key", key).
			Wrap(ErrNotFound)
	}

	filePath := meta.Path
	if version != "" && len(meta.Versions) > 0 {
		filePath = strings.Replace(meta.Path, meta.Versions[0], version, 1)
	}

	return Page{
		Type:     typ,
		Key:      key,
		Version:  version,
		Meta:     meta,
		FilePath: filePath,
		IsTool:   typ == ToolsType,
	}, nil
}
