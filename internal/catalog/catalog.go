// Package catalog bundles the immutable registries built from one content
// bundle: page metadata, content modules and the team roster.
package catalog

import (
	"context"
	"errors"
	"io/fs"

	"github.com/samber/oops"

	"github.com/keithlinneman/docsite/internal/docmeta"
	"github.com/keithlinneman/docsite/internal/docmodule"
	"github.com/keithlinneman/docsite/internal/pages"
)

const (
	// MetaFile is the page metadata registry at the bundle root.
	MetaFile = "meta.json"
	// TeamFile is the team roster at the bundle root. It is optional.
	TeamFile = "team.json"
)

// Catalog is shared read-only across requests; it is replaced as a whole
// when a new bundle is activated.
type Catalog struct {
	Meta    *docmeta.Registry
	Modules *docmodule.Registry
	Roster  pages.Roster
}

// Options tunes Build.
type Options struct {
	Modules docmodule.BuildOptions
}

// Build reads the registries out of fsys.
func Build(ctx context.Context, fsys fs.FS, opts Options) (*Catalog, error) {
	errb := oops.In("catalog")

	raw, err := fs.ReadFile(fsys, MetaFile)
	if err != nil {
		return nil, errb.Code("CONFIG_INVALID").With("file", MetaFile).Wrapf(err, "reading page metadata")
	}
	meta, err := docmeta.ParseRegistry(raw)
	if err != nil {
		return nil, err
	}

	modules, err := docmodule.FromFS(ctx, fsys, opts.Modules)
	if err != nil {
		return nil, err
	}

	var roster pages.Roster
	switch raw, err := fs.ReadFile(fsys, TeamFile); {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, errb.Code("CONFIG_INVALID").With("file", TeamFile).Wrapf(err, "reading team roster")
	default:
		if roster, err = pages.ParseRoster(raw); err != nil {
			return nil, err
		}
	}

	return &Catalog{Meta: meta, Modules: modules, Roster: roster}, nil
}

// MissingModules lists the non-tool pages whose content path has no module
// in the bundle. Versioned paths are checked at their default version.
func (c *Catalog) MissingModules() []string {
	if c == nil {
		return nil
	}
	var out []string
	for _, typ := range c.Meta.Types() {
		if typ == docmeta.ToolsType {
			continue
		}
		for _, key := range c.Meta.Keys(typ) {
			m, _ := c.Meta.Lookup(typ, key)
			if !c.Modules.Has(m.Path) {
				out = append(out, typ+"/"+key)
			}
		}
	}
	return out
}

// Summary is the shape reported by the content summary API.
type Summary struct {
	Pages   int            `json:"pages"`
	Types   map[string]int `json:"types"`
	Modules int            `json:"modules"`
	Team    int            `json:"team"`
	Missing []string       `json:"missing,omitempty"`
}

// Summarize counts what the catalog holds.
func (c *Catalog) Summarize() Summary {
	if c == nil {
		return Summary{Types: map[string]int{}}
	}
	s := Summary{
		Pages:   c.Meta.Len(),
		Types:   make(map[string]int),
		Modules: c.Modules.Len(),
		Team:    c.Roster.Len(),
		Missing: c.MissingModules(),
	}
	for _, typ := range c.Meta.Types() {
		s.Types[typ] = len(c.Meta.Keys(typ))
	}
	return s
}
